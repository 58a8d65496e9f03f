// Package artifact provides a SQLite-backed index of generated build
// artifacts.
//
// Each invocation of the generator opens one session and records every
// file it emits: the system description XML and the per-participant
// configuration blobs. Rows carry a SHA-256 digest of the file content
// so later runs can tell whether an artifact changed.
//
// The index is an append-only log:
//   - Sessions: one row per generator run
//   - Artifacts: one row per emitted file, linked to its session
//
// All listing queries order by insertion id with COLLATE BINARY
// tiebreakers so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package artifact
