// Package session provides lifecycle operations over memory sessions.
package session

import (
	"context"
	"log/slog"

	"github.com/HendryAvila/memoria/internal/memory"
)

const (
	// DefaultListLimit is used when All is called without a positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps how many sessions a single All call returns.
	MaxListLimit = 500
)

// Store is the subset of *memory.Store the manager needs.
type Store interface {
	CreateSession(ctx context.Context, title string, workspaceID *int64) (int64, error)
	EndSession(ctx context.Context, id int64, summary string) error
	GetSession(ctx context.Context, id int64) (*memory.Session, error)
	ActiveSessions(ctx context.Context) ([]memory.Session, error)
	ListSessions(ctx context.Context, limit int) ([]memory.Session, error)
}

// Manager orchestrates session create/end/list on top of a Store.
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Create starts a session and returns it.
func (m *Manager) Create(ctx context.Context, title string, workspaceID *int64) (*memory.Session, error) {
	id, err := m.store.CreateSession(ctx, title, workspaceID)
	if err != nil {
		return nil, err
	}
	return m.store.GetSession(ctx, id)
}

// End closes a session with an optional summary and returns its new state.
func (m *Manager) End(ctx context.Context, id int64, summary string) (*memory.Session, error) {
	if err := m.store.EndSession(ctx, id, summary); err != nil {
		return nil, err
	}
	return m.store.GetSession(ctx, id)
}

// Get returns a session by id.
func (m *Manager) Get(ctx context.Context, id int64) (*memory.Session, error) {
	return m.store.GetSession(ctx, id)
}

// Active returns sessions that have not been ended. Storage failures are
// logged and reported as an empty list.
func (m *Manager) Active(ctx context.Context) []memory.Session {
	sessions, err := m.store.ActiveSessions(ctx)
	if err != nil {
		m.logger.Warn("listing active sessions failed", "error", err)
		return []memory.Session{}
	}
	return sessions
}

// All returns up to limit sessions, most recently started first. A limit
// of zero or less means DefaultListLimit; larger values are capped at
// MaxListLimit. Storage failures are logged and reported as an empty list.
func (m *Manager) All(ctx context.Context, limit int) []memory.Session {
	sessions, err := m.store.ListSessions(ctx, ClampLimit(limit))
	if err != nil {
		m.logger.Warn("listing sessions failed", "limit", limit, "error", err)
		return []memory.Session{}
	}
	return sessions
}

// ClampLimit applies the default and the cap to a requested list size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
