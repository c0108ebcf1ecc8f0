package memtools

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memoria/internal/inject"
	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/search"
	"github.com/HendryAvila/memoria/internal/session"
)

// Deps are the components tool handlers delegate to.
type Deps struct {
	Store    *memory.Store
	Sessions *session.Manager
	Search   *search.Engine
	Injector *inject.Injector
}

// Tool is implemented by every handler in this package.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Tools returns every tool handler wired to deps.
func Tools(deps Deps) []Tool {
	return []Tool{
		NewSearchTool(deps.Search),
		NewSaveTool(deps.Store),
		NewSessionListTool(deps.Sessions),
		NewSessionCreateTool(deps.Sessions),
		NewSessionEndTool(deps.Sessions),
		NewMessageSearchTool(deps.Search),
		NewGetObservationsTool(deps.Store),
		NewSessionActiveTool(deps.Sessions),
		NewContextTool(deps.Injector),
		NewCaptureTool(deps.Store),
		NewStatsTool(deps.Store),
	}
}

// Catalog is the declarative tool table: one entry per tool pairing its
// definition with its handler, sorted by name. Listing and dispatch both
// read from the same table, so they cannot drift apart.
func Catalog(deps Deps) []server.ServerTool {
	tools := Tools(deps)
	out := make([]server.ServerTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, server.ServerTool{Tool: t.Definition(), Handler: t.Handle})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool.Name < out[j].Tool.Name })
	return out
}
