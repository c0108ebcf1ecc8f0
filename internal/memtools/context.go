package memtools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/inject"
	"github.com/HendryAvila/memoria/internal/memory"
)

// ContextTool handles the memory_context MCP tool.
type ContextTool struct {
	injector *inject.Injector
}

// NewContextTool creates a ContextTool.
func NewContextTool(injector *inject.Injector) *ContextTool {
	return &ContextTool{injector: injector}
}

// Definition returns the MCP tool definition for memory_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_context",
		mcp.WithDescription(
			"Build the memory block that would be prepended to a chat turn for the given utterance. "+
				"Returns an empty context when nothing relevant is remembered.",
		),
		mcp.WithString("utterance",
			mcp.Required(),
			mcp.Description("The user's message"),
		),
	)
}

type contextResult struct {
	Context string `json:"context"`
	Empty   bool   `json:"empty"`
}

// Handle processes the memory_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	utterance := req.GetString("utterance", "")
	if strings.TrimSpace(utterance) == "" {
		return Fault(memory.KindInvalidArgument, "'utterance' is required"), nil
	}
	block := t.injector.BuildContext(ctx, utterance)
	return jsonResult(contextResult{Context: block, Empty: block == ""})
}
