package memtools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
)

// SaveTool handles the memory_save MCP tool.
type SaveTool struct {
	store *memory.Store
}

// NewSaveTool creates a SaveTool with the given memory store.
func NewSaveTool(store *memory.Store) *SaveTool {
	return &SaveTool{store: store}
}

// Definition returns the MCP tool definition for memory_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_save",
		mcp.WithDescription(
			"Save an observation to persistent memory. Record decisions, bug fixes, new features, "+
				"things learned, user preferences and background context as they happen. "+
				"Observations are immutable: to correct one, save a new observation.",
		),
		mcp.WithNumber("session_id",
			mcp.Required(),
			mcp.Description("ID of the session this observation belongs to (see session_create)"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Enum(memory.TypeNames()...),
			mcp.Description("Category of the observation"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The observation text. Must not be empty."),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("Optional tags; order does not matter and duplicates are dropped"),
		),
		mcp.WithString("source",
			mcp.Description("Optional provenance, e.g. the tool or file this came from"),
		),
	)
}

// Handle processes the memory_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, fault := idArg(req, "session_id")
	if fault != nil {
		return fault, nil
	}
	typ, err := memory.ParseObservationType(req.GetString("type", ""))
	if err != nil {
		return errorResult(err), nil
	}
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return Fault(memory.KindInvalidArgument, "'content' is required"), nil
	}

	id, err := t.store.SaveObservation(ctx, memory.SaveParams{
		SessionID: sessionID,
		Type:      typ,
		Content:   content,
		Tags:      req.GetStringSlice("tags", nil),
		Source:    req.GetString("source", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}

	obs, err := t.store.GetObservation(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(obs)
}

// ─── CaptureTool ────────────────────────────────────────────────────────────

// CaptureTool handles the memory_capture MCP tool: it splits free text into
// paragraphs, classifies each one and saves it.
type CaptureTool struct {
	store *memory.Store
}

// NewCaptureTool creates a CaptureTool with the given memory store.
func NewCaptureTool(store *memory.Store) *CaptureTool {
	return &CaptureTool{store: store}
}

// Definition returns the MCP tool definition for memory_capture.
func (t *CaptureTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_capture",
		mcp.WithDescription(
			"Capture observations from free text without choosing a type. Each paragraph becomes one "+
				"observation whose type is inferred from keywords (decided, fixed, implemented, learned, "+
				"prefer, background). Text matching no keyword is saved as general.",
		),
		mcp.WithNumber("session_id",
			mcp.Required(),
			mcp.Description("ID of the session the observations belong to"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free text; separate observations with blank lines"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("Tags applied to every captured observation"),
		),
	)
}

type captureResult struct {
	Count        int                  `json:"count"`
	Observations []memory.Observation `json:"observations"`
}

// Handle processes the memory_capture tool call. Each observation is saved
// in its own transaction; on failure the error names how many were saved.
func (t *CaptureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, fault := idArg(req, "session_id")
	if fault != nil {
		return fault, nil
	}
	parsed := memory.ParseObservations(req.GetString("text", ""))
	if len(parsed) == 0 {
		return Fault(memory.KindInvalidArgument, "'text' is required"), nil
	}
	tags := req.GetStringSlice("tags", nil)

	out := captureResult{Observations: []memory.Observation{}}
	for _, p := range parsed {
		id, err := t.store.SaveObservation(ctx, memory.SaveParams{
			SessionID: sessionID,
			Type:      p.Type,
			Content:   p.Content,
			Tags:      tags,
			Source:    "memory_capture",
		})
		if err != nil {
			if out.Count > 0 {
				return Fault(memory.KindOf(err), "saved %d of %d observations: %v", out.Count, len(parsed), err), nil
			}
			return errorResult(err), nil
		}
		obs, err := t.store.GetObservation(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		out.Observations = append(out.Observations, *obs)
		out.Count++
	}
	return jsonResult(out)
}
