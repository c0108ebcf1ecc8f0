package memtools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/session"
)

// SessionCreateTool handles the session_create MCP tool.
type SessionCreateTool struct {
	sessions *session.Manager
}

// NewSessionCreateTool creates a SessionCreateTool.
func NewSessionCreateTool(sessions *session.Manager) *SessionCreateTool {
	return &SessionCreateTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_create.
func (t *SessionCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("session_create",
		mcp.WithDescription(
			"Start a new session. Observations are grouped by session; call this at the "+
				"beginning of a unit of work and keep the returned id.",
		),
		mcp.WithString("title",
			mcp.Description("Session title (default: Untitled Session)"),
		),
		mcp.WithNumber("workspace_id",
			mcp.Description("Optional workspace the session belongs to"),
		),
	)
}

// Handle processes the session_create tool call.
func (t *SessionCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workspaceID, fault := optionalIDArg(req, "workspace_id")
	if fault != nil {
		return fault, nil
	}
	sess, err := t.sessions.Create(ctx, req.GetString("title", ""), workspaceID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sess)
}

// ─── SessionEndTool ─────────────────────────────────────────────────────────

// SessionEndTool handles the session_end MCP tool.
type SessionEndTool struct {
	sessions *session.Manager
}

// NewSessionEndTool creates a SessionEndTool.
func NewSessionEndTool(sessions *session.Manager) *SessionEndTool {
	return &SessionEndTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_end.
func (t *SessionEndTool) Definition() mcp.Tool {
	return mcp.NewTool("session_end",
		mcp.WithDescription(
			"Mark a session as ended with an optional summary. Calling it again replaces the summary.",
		),
		mcp.WithNumber("session_id",
			mcp.Required(),
			mcp.Description("ID of the session to end"),
		),
		mcp.WithString("summary",
			mcp.Description("What was accomplished in this session"),
		),
	)
}

// Handle processes the session_end tool call.
func (t *SessionEndTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, fault := idArg(req, "session_id")
	if fault != nil {
		return fault, nil
	}
	sess, err := t.sessions.End(ctx, id, req.GetString("summary", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sess)
}

// ─── SessionListTool ────────────────────────────────────────────────────────

// SessionListTool handles the session_list MCP tool.
type SessionListTool struct {
	sessions *session.Manager
}

// NewSessionListTool creates a SessionListTool.
func NewSessionListTool(sessions *session.Manager) *SessionListTool {
	return &SessionListTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_list.
func (t *SessionListTool) Definition() mcp.Tool {
	return mcp.NewTool("session_list",
		mcp.WithDescription("List sessions, most recently started first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions (default: 50, max: 500)"),
		),
	)
}

type sessionsResult struct {
	Count    int              `json:"count"`
	Sessions []memory.Session `json:"sessions"`
}

// Handle processes the session_list tool call.
func (t *SessionListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := t.sessions.All(ctx, intArg(req, "limit", session.DefaultListLimit))
	return jsonResult(sessionsResult{Count: len(sessions), Sessions: sessions})
}

// ─── SessionActiveTool ──────────────────────────────────────────────────────

// SessionActiveTool handles the session_active MCP tool.
type SessionActiveTool struct {
	sessions *session.Manager
}

// NewSessionActiveTool creates a SessionActiveTool.
func NewSessionActiveTool(sessions *session.Manager) *SessionActiveTool {
	return &SessionActiveTool{sessions: sessions}
}

// Definition returns the MCP tool definition for session_active.
func (t *SessionActiveTool) Definition() mcp.Tool {
	return mcp.NewTool("session_active",
		mcp.WithDescription("List sessions that have not been ended yet."),
	)
}

// Handle processes the session_active tool call.
func (t *SessionActiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := t.sessions.Active(ctx)
	return jsonResult(sessionsResult{Count: len(sessions), Sessions: sessions})
}
