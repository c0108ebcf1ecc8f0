package memory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ─── Sessions ────────────────────────────────────────────────────────────────

const sessionColumns = `id, title, workspace_id, started_at, ended_at, summary`

// CreateSession starts a new session and returns its id. A blank title is
// replaced by DefaultSessionTitle.
func (s *Store) CreateSession(ctx context.Context, title string, workspaceID *int64) (int64, error) {
	const op = "memory.CreateSession"
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultSessionTitle
	}
	_, now := s.stamp()

	res, err := s.execHook(ctx, s.db,
		`INSERT INTO sessions (title, workspace_id, started_at) VALUES (?, ?, ?)`,
		title, workspaceID, now,
	)
	if err != nil {
		return 0, storageErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr(op, err)
	}
	return id, nil
}

// EndSession marks a session as ended and stores its summary. Calling it
// again overwrites both the end time and the summary; the start time is
// never touched. An empty summary is stored as NULL.
func (s *Store) EndSession(ctx context.Context, id int64, summary string) error {
	const op = "memory.EndSession"
	_, now := s.stamp()

	// MAX keeps ended_at >= started_at even if the clock stepped backwards.
	res, err := s.execHook(ctx, s.db,
		`UPDATE sessions SET ended_at = MAX(?, started_at), summary = ? WHERE id = ?`,
		now, nullableString(strings.TrimSpace(summary)), id,
	)
	if err != nil {
		return storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return NotFound(op, "session %d not found", id)
	}
	return nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	const op = "memory.GetSession"
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(op, "session %d not found", id)
	}
	if err != nil {
		return nil, storageErr(op, err)
	}
	return sess, nil
}

// ActiveSessions returns sessions that have not ended, most recently
// started first.
func (s *Store) ActiveSessions(ctx context.Context) ([]Session, error) {
	return s.querySessions(ctx, "memory.ActiveSessions",
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE ended_at IS NULL
		 ORDER BY started_at DESC, id DESC`,
	)
}

// ListSessions returns up to limit sessions, most recently started first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		return []Session{}, nil
	}
	return s.querySessions(ctx, "memory.ListSessions",
		`SELECT `+sessionColumns+` FROM sessions
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, limit,
	)
}

func (s *Store) querySessions(ctx context.Context, op, query string, args ...any) ([]Session, error) {
	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, *sess)
	}
	return out, storageErr(op, rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess      Session
		workspace sql.NullInt64
		started   string
		ended     sql.NullString
		summary   sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.Title, &workspace, &started, &ended, &summary); err != nil {
		return nil, err
	}
	var err error
	if sess.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = parseNullTime(ended); err != nil {
		return nil, err
	}
	if workspace.Valid {
		w := workspace.Int64
		sess.WorkspaceID = &w
	}
	sess.Summary = nullString(summary)
	return &sess, nil
}
