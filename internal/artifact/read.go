package artifact

import (
	"context"
	"fmt"
)

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID        string
	Label     string
	Arch      string
	CreatedAt string
}

// Record is one indexed artifact.
type Record struct {
	ID        int64
	SessionID string
	Subsystem string
	Name      string
	Path      string
	Size      int64
	SHA256    string
}

// ListSessions returns all sessions, oldest first. Returns an empty
// slice (not nil) if none exist.
func (ix *Index) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, label, arch, created_at
		FROM sessions
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var sr SessionRecord
		if err := rows.Scan(&sr.ID, &sr.Label, &sr.Arch, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	if sessions == nil {
		sessions = []SessionRecord{}
	}
	return sessions, nil
}

// ListArtifacts returns artifacts matching the filter with deterministic
// ordering. Returns an empty slice (not nil) if none match.
func (ix *Index) ListArtifacts(ctx context.Context, f Filter) ([]Record, error) {
	query, params := compileFilter(f)

	rows, err := ix.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Subsystem, &r.Name, &r.Path, &r.Size, &r.SHA256); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}
