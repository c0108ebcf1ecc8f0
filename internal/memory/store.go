// Package memory implements the observation store for memoria.
//
// Sessions, observations and conversation transcripts live in SQLite with
// FTS5 full-text indexes. Index rows are maintained by triggers inside the
// same transaction as the base row, so a reader never sees one without the
// other. The store is an explicitly constructed object: components receive
// it at construction time instead of reaching for a process-wide handle.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	// DataDir is created if missing; the database file lives inside it.
	DataDir string
	// DBName defaults to "memory.db".
	DBName string
	// BusyTimeout is how long a connection waits for the writer lock.
	BusyTimeout time.Duration
	// MaxContentLength rejects larger observations. Zero means no limit.
	MaxContentLength int
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".memoria"),
		DBName:           "memory.db",
		BusyTimeout:      5 * time.Second,
		MaxContentLength: 16 * 1024,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent memory engine backed by SQLite + FTS5.
type Store struct {
	db    *sql.DB
	cfg   Config
	hooks storeHooks
	now   func() time.Time
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// storeHooks lets tests inject failures at the SQL boundary.
type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite in WAL mode with
// per-connection pragmas, and runs pending migrations.
func New(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, InvalidArgument("memory.New", "data dir is required")
	}
	if cfg.DBName == "" {
		cfg.DBName = "memory.db"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, storageErr("memory.New", fmt.Errorf("create data dir: %w", err))
	}

	db, err := openDB("sqlite", dsn(filepath.Join(cfg.DataDir, cfg.DBName), cfg.BusyTimeout))
	if err != nil {
		return nil, storageErr("memory.New", fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storageErr("memory.New", fmt.Errorf("ping database: %w", err))
	}

	s := &Store{db: db, cfg: cfg, now: cfg.Clock}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, storageErr("memory.New", fmt.Errorf("migration: %w", err))
	}

	return s, nil
}

// dsn builds a modernc.org/sqlite DSN. Pragmas are passed as _pragma
// parameters so they apply to every pooled connection, not just the first.
// synchronous=FULL keeps committed transactions across a process crash;
// _txlock=immediate makes write transactions take the writer lock on BEGIN.
func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+strconv.FormatInt(busy.Milliseconds(), 10)+")")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return storageErr("memory.Ping", s.db.PingContext(ctx))
}

// Revision identifies the committed set of observations. Observations are
// insert-only, so any commit from any connection or process sharing the
// database file yields a different Revision.
type Revision struct {
	MaxID int64
	Count int64
}

// Revision reads the current observation revision from the database.
// Readers compare it to invalidate cached results.
func (s *Store) Revision(ctx context.Context) (Revision, error) {
	var r Revision
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0), COUNT(*) FROM observations`,
	).Scan(&r.MaxID, &r.Count)
	return r, storageErr("memory.Revision", err)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// timeLayout is sortable as text and keeps millisecond precision so rows
// written within the same second still order by creation.
const timeLayout = "2006-01-02 15:04:05.000"

func (s *Store) stamp() (time.Time, string) {
	t := s.now().UTC().Truncate(time.Millisecond)
	return t, t.Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// Truncate shortens a string to max bytes with an ellipsis, never splitting
// a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
