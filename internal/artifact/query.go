package artifact

import "strings"

// Filter narrows an artifact listing. Zero fields match everything.
type Filter struct {
	SessionID string
	Subsystem string
	Name      string
}

// compileFilter builds the parameterized listing query. Values are never
// interpolated; every query carries a stable ORDER BY so results are
// identical across runs.
func compileFilter(f Filter) (string, []any) {
	var conds []string
	var params []any

	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		params = append(params, f.SessionID)
	}
	if f.Subsystem != "" {
		conds = append(conds, "subsystem = ?")
		params = append(params, f.Subsystem)
	}
	if f.Name != "" {
		conds = append(conds, "name = ?")
		params = append(params, f.Name)
	}

	var where string
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	query := `
		SELECT id, session_id, subsystem, name, path, size, sha256
		FROM artifacts` + where + `
		ORDER BY id ASC, name COLLATE BINARY ASC
	`
	return query, params
}
