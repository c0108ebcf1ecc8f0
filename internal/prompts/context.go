// Package prompts implements MCP prompt handlers for memoria.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/inject"
)

// ContextPrompt handles the memory-context MCP prompt.
// It returns the user's message with remembered context prepended.
type ContextPrompt struct {
	injector *inject.Injector
}

// NewContextPrompt creates a ContextPrompt.
func NewContextPrompt(injector *inject.Injector) *ContextPrompt {
	return &ContextPrompt{injector: injector}
}

// Definition returns the MCP prompt definition for registration.
func (p *ContextPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memory-context",
		mcp.WithPromptDescription(
			"Ask a question with relevant past observations attached. "+
				"Nothing is attached when memory has no match.",
		),
		mcp.WithArgument("utterance",
			mcp.ArgumentDescription("Your message"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the memory-context prompt request.
func (p *ContextPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	utterance := strings.TrimSpace(req.Params.Arguments["utterance"])

	text := utterance
	if block := p.injector.BuildContext(ctx, utterance); block != "" {
		text = block + utterance
	}

	return &mcp.GetPromptResult{
		Description: "Message with memory context",
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	}, nil
}
