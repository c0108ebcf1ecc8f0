package memory

import (
	"context"
	"database/sql"
	"time"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetCommitHook replaces the commit step so tests can simulate a write
// transaction that fails at the last moment.
func (s *Store) SetCommitHook(fn func(tx *sql.Tx) error) {
	s.hooks.commit = fn
}

// SetBeginTxHook replaces the start of every write transaction so tests
// can simulate a writer lock that is never granted.
func (s *Store) SetBeginTxHook(fn func(ctx context.Context) error) {
	s.hooks.beginTx = func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		return db.BeginTx(ctx, nil)
	}
}

// SetExecHook replaces every hooked statement so tests can simulate a
// failing write.
func (s *Store) SetExecHook(fn func(ctx context.Context, query string) error) {
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if err := fn(ctx, query); err != nil {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// SetQueryHook replaces every hooked query so tests can simulate an
// unavailable database on reads.
func (s *Store) SetQueryHook(fn func(ctx context.Context, query string) error) {
	s.hooks.query = func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
		if err := fn(ctx, query); err != nil {
			return nil, err
		}
		return db.QueryContext(ctx, query, args...)
	}
}

// SeedMessage inserts a conversation message directly; the store itself
// never writes transcripts.
func (s *Store) SeedMessage(conversationTitle, role, content string) (int64, error) {
	_, now := s.stamp()
	var convID int64
	err := s.db.QueryRow(`SELECT id FROM conversations WHERE title = ?`, conversationTitle).Scan(&convID)
	if err == sql.ErrNoRows {
		res, err := s.db.Exec(
			`INSERT INTO conversations (title, created_at, updated_at) VALUES (?, ?, ?)`,
			conversationTitle, now, now,
		)
		if err != nil {
			return 0, err
		}
		if convID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		convID, role, content, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FixedClock returns a clock that starts at t and advances by step on
// every call.
func FixedClock(t time.Time, step time.Duration) func() time.Time {
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}
