package memory

import (
	"context"
	"fmt"
)

// migration is one forward-only schema step. Steps are applied in order,
// each inside its own transaction, and recorded in schema_migrations.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "001_memory",
		sql: `
			CREATE TABLE sessions (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				title        TEXT    NOT NULL DEFAULT 'Untitled Session',
				workspace_id INTEGER,
				started_at   TEXT    NOT NULL,
				ended_at     TEXT,
				summary      TEXT,
				CHECK (ended_at IS NULL OR ended_at >= started_at)
			);

			CREATE INDEX idx_sessions_started ON sessions(started_at DESC);
			CREATE INDEX idx_sessions_active  ON sessions(ended_at) WHERE ended_at IS NULL;

			CREATE TABLE observations (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				type       TEXT    NOT NULL CHECK (type IN ('decision', 'bugfix', 'feature', 'learning', 'preference', 'context', 'general')),
				content    TEXT    NOT NULL CHECK (length(content) > 0),
				tags       TEXT    NOT NULL DEFAULT '[]',
				source     TEXT,
				created_at TEXT    NOT NULL,
				FOREIGN KEY (session_id) REFERENCES sessions(id)
			);

			CREATE INDEX idx_obs_session ON observations(session_id);
			CREATE INDEX idx_obs_type    ON observations(type);
			CREATE INDEX idx_obs_created ON observations(created_at DESC);

			CREATE VIRTUAL TABLE observations_fts USING fts5(
				content,
				tags,
				content='observations',
				content_rowid='id',
				tokenize='porter unicode61'
			);

			CREATE TRIGGER obs_fts_insert AFTER INSERT ON observations BEGIN
				INSERT INTO observations_fts(rowid, content, tags)
				VALUES (new.id, new.content, new.tags);
			END;

			CREATE TRIGGER obs_fts_delete AFTER DELETE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, content, tags)
				VALUES ('delete', old.id, old.content, old.tags);
			END;

			CREATE TRIGGER obs_fts_update AFTER UPDATE ON observations BEGIN
				INSERT INTO observations_fts(observations_fts, rowid, content, tags)
				VALUES ('delete', old.id, old.content, old.tags);
				INSERT INTO observations_fts(rowid, content, tags)
				VALUES (new.id, new.content, new.tags);
			END;
		`,
	},
	{
		version: 2,
		name:    "002_transcripts",
		sql: `
			CREATE TABLE conversations (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				title      TEXT    NOT NULL DEFAULT 'New Conversation',
				session_id INTEGER,
				created_at TEXT    NOT NULL,
				updated_at TEXT    NOT NULL,
				FOREIGN KEY (session_id) REFERENCES sessions(id)
			);

			CREATE TABLE messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id INTEGER NOT NULL,
				role            TEXT    NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
				content         TEXT    NOT NULL,
				created_at      TEXT    NOT NULL,
				FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			);

			CREATE INDEX idx_messages_conversation ON messages(conversation_id, created_at);

			CREATE VIRTUAL TABLE messages_fts USING fts5(
				content,
				content='messages',
				content_rowid='id',
				tokenize='porter unicode61'
			);

			CREATE TRIGGER msg_fts_insert AFTER INSERT ON messages BEGIN
				INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
			END;

			CREATE TRIGGER msg_fts_delete AFTER DELETE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
			END;

			CREATE TRIGGER msg_fts_update AFTER UPDATE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
				INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
			END;
		`,
	},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.execHook(ctx, s.db, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.queryHook(ctx, s.db, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Another process may have applied m between the read in migrate and
	// taking the writer lock.
	var done int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version,
	).Scan(&done); err != nil {
		return err
	}
	if done > 0 {
		return nil
	}

	if _, err := s.execHook(ctx, tx, m.sql); err != nil {
		return err
	}
	_, now := s.stamp()
	if _, err := s.execHook(ctx, tx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, now,
	); err != nil {
		return err
	}
	return s.commitHook(tx)
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, storageErr("memory.SchemaVersion", err)
}
