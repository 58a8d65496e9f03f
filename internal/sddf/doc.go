// Package sddf composes sDDF device-class subsystems.
//
// Each subsystem binds a driver (and, per class, one or two virtualiser
// PDs) to a set of client PDs, wires the channels between them, and emits
// one binary configuration blob per participating PD. All variants share
// one lifecycle: Created, Configured (clients added), Connected (channels
// wired, ids allocated), Serialised (blobs emitted). Transitions are
// one-directional; out-of-order operations fail with InvalidState.
package sddf
