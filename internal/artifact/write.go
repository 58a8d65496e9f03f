package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Session is one generator run. It satisfies the recorder interface the
// subsystems emit their blobs through, so a connected system can be
// serialised straight into the index.
type Session struct {
	ix  *Index
	ctx context.Context

	// ID is the session's UUID, assigned at BeginSession.
	ID string
}

// BeginSession inserts a session row and returns a handle for recording
// artifacts against it.
func (ix *Index) BeginSession(ctx context.Context, label, arch string) (*Session, error) {
	id := uuid.NewString()
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, arch)
		VALUES (?, ?, ?)
	`, id, label, arch)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{ix: ix, ctx: ctx, ID: id}, nil
}

// Record indexes one emitted file. Re-recording the same name within a
// session is silently ignored for idempotency; the first digest wins.
func (s *Session) Record(subsystem, name, path string, data []byte) error {
	sum := sha256.Sum256(data)
	_, err := s.ix.db.ExecContext(s.ctx, `
		INSERT INTO artifacts (session_id, subsystem, name, path, size, sha256)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, name) DO NOTHING
	`,
		s.ID,
		subsystem,
		name,
		path,
		len(data),
		hex.EncodeToString(sum[:]),
	)
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// RecordSystem indexes the rendered system description itself under the
// reserved "system" subsystem.
func (s *Session) RecordSystem(name, path string, data []byte) error {
	return s.Record("system", name, path, data)
}
