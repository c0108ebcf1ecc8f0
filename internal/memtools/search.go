package memtools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/search"
)

// DefaultSearchLimit applies when a search call omits limit.
const DefaultSearchLimit = 10

// SearchTool handles the memory_search MCP tool.
type SearchTool struct {
	engine *search.Engine
}

// NewSearchTool creates a SearchTool over the given engine.
func NewSearchTool(engine *search.Engine) *SearchTool {
	return &SearchTool{engine: engine}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search persistent memory. Verbatim matches are returned first (newest first), followed by "+
				"full-text matches ranked by relevance. Each hit says which layer found it.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free text to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)
}

type searchResult struct {
	Query   string             `json:"query"`
	Count   int                `json:"count"`
	Results []memory.SearchHit `json:"results"`
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return Fault(memory.KindInvalidArgument, "'query' is required"), nil
	}
	limit := intArg(req, "limit", DefaultSearchLimit)

	hits, err := t.engine.Search(ctx, query, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(searchResult{Query: query, Count: len(hits), Results: hits})
}

// ─── MessageSearchTool ──────────────────────────────────────────────────────

// MessageSearchTool handles the message_search MCP tool.
type MessageSearchTool struct {
	engine *search.Engine
}

// NewMessageSearchTool creates a MessageSearchTool over the given engine.
func NewMessageSearchTool(engine *search.Engine) *MessageSearchTool {
	return &MessageSearchTool{engine: engine}
}

// Definition returns the MCP tool definition for message_search.
func (t *MessageSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("message_search",
		mcp.WithDescription(
			"Full-text search over conversation transcripts, ranked by relevance. "+
				"Each message includes the title of its conversation.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free text to look for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages (default: 10)"),
		),
	)
}

type messageSearchResult struct {
	Query    string           `json:"query"`
	Count    int              `json:"count"`
	Messages []memory.Message `json:"messages"`
}

// Handle processes the message_search tool call.
func (t *MessageSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return Fault(memory.KindInvalidArgument, "'query' is required"), nil
	}
	limit := intArg(req, "limit", DefaultSearchLimit)

	msgs, err := t.engine.SearchMessages(ctx, query, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(messageSearchResult{Query: query, Count: len(msgs), Messages: msgs})
}

// ─── GetObservationsTool ────────────────────────────────────────────────────

// GetObservationsTool handles the memory_get_observations MCP tool.
type GetObservationsTool struct {
	store *memory.Store
}

// NewGetObservationsTool creates a GetObservationsTool.
func NewGetObservationsTool(store *memory.Store) *GetObservationsTool {
	return &GetObservationsTool{store: store}
}

// Definition returns the MCP tool definition for memory_get_observations.
func (t *GetObservationsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_get_observations",
		mcp.WithDescription("List every observation recorded in a session, most recent first."),
		mcp.WithNumber("session_id",
			mcp.Required(),
			mcp.Description("Session ID"),
		),
	)
}

type observationsResult struct {
	SessionID    int64                `json:"session_id"`
	Count        int                  `json:"count"`
	Observations []memory.Observation `json:"observations"`
}

// Handle processes the memory_get_observations tool call.
func (t *GetObservationsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, fault := idArg(req, "session_id")
	if fault != nil {
		return fault, nil
	}
	obs, err := t.store.GetObservations(ctx, sessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(observationsResult{SessionID: sessionID, Count: len(obs), Observations: obs})
}
