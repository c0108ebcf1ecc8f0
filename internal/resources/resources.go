// Package resources implements MCP resource handlers for memoria.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (memoria://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/session"
)

const (
	StatsURI          = "memoria://stats"
	ActiveSessionsURI = "memoria://sessions/active"
)

// Handler manages memoria resource endpoints.
type Handler struct {
	store    *memory.Store
	sessions *session.Manager
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *memory.Store, sessions *session.Manager) *Handler {
	return &Handler{store: store, sessions: sessions}
}

// StatsResource returns the MCP resource definition for memory statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Memory Statistics",
		mcp.WithResourceDescription("Session, observation and message counts"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current store statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.store.Stats(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

// ActiveSessionsResource returns the MCP resource definition for sessions
// that have not ended.
func (h *Handler) ActiveSessionsResource() mcp.Resource {
	return mcp.NewResource(
		ActiveSessionsURI,
		"Active Sessions",
		mcp.WithResourceDescription("Sessions that have been started and not yet ended"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActiveSessions returns the active sessions as JSON.
func (h *Handler) HandleActiveSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.sessions.Active(ctx))
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
