package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// RecapPrompt handles the session-recap MCP prompt.
// It instructs the AI to review a session's observations and close it.
type RecapPrompt struct{}

// NewRecapPrompt creates a RecapPrompt.
func NewRecapPrompt() *RecapPrompt {
	return &RecapPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RecapPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("session-recap",
		mcp.WithPromptDescription(
			"Summarize what was recorded in a session and end it with that summary.",
		),
		mcp.WithArgument("session_id",
			mcp.ArgumentDescription("ID of the session to recap"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the session-recap prompt request.
func (p *RecapPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := req.Params.Arguments["session_id"]
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	return &mcp.GetPromptResult{
		Description: "Session recap",
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(fmt.Sprintf(
				"Please run `memory_get_observations` with session_id %s.\n\n"+
					"Then:\n"+
					"1. Group the observations by type and summarize each group in one or two sentences\n"+
					"2. Point out any decision that a later observation contradicts\n"+
					"3. Call `session_end` with session_id %s and your summary",
				id, id,
			))),
		},
	}, nil
}
