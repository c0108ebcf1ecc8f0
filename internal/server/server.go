// Package server wires all MCP components and owns the server lifecycle.
//
// This is the composition root: it takes the constructed memory
// components and exposes them as tools, prompts and resources. No
// business logic lives here, only wiring, argument validation and the
// stopped/running state machine.
package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memoria/internal/config"
	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/memtools"
	"github.com/HendryAvila/memoria/internal/prompts"
	"github.com/HendryAvila/memoria/internal/resources"
)

// Version is set at build time via ldflags.
var Version = "dev"

// State is the lifecycle state of a Server.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// Options configure a Server. The zero value is usable.
type Options struct {
	Name           string
	Logger         *slog.Logger
	WorkerPoolSize int
	External       []config.ExternalServer
}

// Server exposes the memory components as MCP tools. It is safe for
// concurrent use; tool calls run concurrently with each other.
type Server struct {
	deps     memtools.Deps
	opts     Options
	logger   *slog.Logger
	registry *Registry

	mu       sync.RWMutex
	state    State
	mcp      *mcpserver.MCPServer
	stream   *mcpserver.StreamableHTTPServer
	tools    []mcp.Tool
	handlers map[string]mcpserver.ToolHandlerFunc
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a stopped Server. Call Start before serving.
func New(deps memtools.Deps, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "memoria"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = 5
	}
	return &Server{
		deps:     deps,
		opts:     opts,
		logger:   opts.Logger.With("component", "server"),
		registry: NewRegistry(),
		state:    StateStopped,
	}
}

// Start builds the tool catalog and installs handlers. Starting a running
// server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.logger.Info("server already running")
		return nil
	}

	if err := s.registry.Replace(s.opts.External); err != nil {
		return err
	}

	catalog := memtools.Catalog(s.deps)
	schemas := make(map[string]mcp.ToolInputSchema, len(catalog))
	for _, t := range catalog {
		schemas[t.Tool.Name] = t.Tool.InputSchema
	}
	mws := []mcpserver.ToolHandlerMiddleware{
		recoverTools(s.logger),
		logCalls(s.logger),
		validateArguments(schemas),
	}

	hooks := &mcpserver.Hooks{}
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		s.logger.Warn("mcp request failed", "method", method, "id", id, "error", err)
	})

	opts := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithInstructions(serverInstructions()),
		mcpserver.WithHooks(hooks),
	}
	for _, mw := range mws {
		opts = append(opts, mcpserver.WithToolHandlerMiddleware(mw))
	}
	m := mcpserver.NewMCPServer(s.opts.Name, Version, opts...)
	m.AddTools(catalog...)

	// --- Register resources ---

	if s.deps.Store != nil && s.deps.Sessions != nil {
		rh := resources.NewHandler(s.deps.Store, s.deps.Sessions)
		m.AddResource(rh.StatsResource(), rh.HandleStats)
		m.AddResource(rh.ActiveSessionsResource(), rh.HandleActiveSessions)
	}

	// --- Register prompts ---

	if s.deps.Injector != nil {
		contextPrompt := prompts.NewContextPrompt(s.deps.Injector)
		m.AddPrompt(contextPrompt.Definition(), contextPrompt.Handle)
	}
	recapPrompt := prompts.NewRecapPrompt()
	m.AddPrompt(recapPrompt.Definition(), recapPrompt.Handle)

	handlers := make(map[string]mcpserver.ToolHandlerFunc, len(catalog))
	tools := make([]mcp.Tool, 0, len(catalog))
	for _, t := range catalog {
		handlers[t.Tool.Name] = chain(t.Handler, mws...)
		tools = append(tools, t.Tool)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mcp = m
	s.stream = mcpserver.NewStreamableHTTPServer(m,
		mcpserver.WithStateLess(true),
		mcpserver.WithEndpointPath(MCPPath),
	)
	s.tools = tools
	s.handlers = handlers
	s.state = StateRunning
	s.logger.Info("server started", "tools", len(tools), "external_servers", s.registry.Len())
	return nil
}

// Stop tears down the channel and clears the external server registry.
// Stopping a stopped server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return
	}
	s.cancel()
	s.ctx, s.cancel = nil, nil
	s.mcp = nil
	s.stream = nil
	s.tools = nil
	s.handlers = nil
	s.registry.Clear()
	s.state = StateStopped
	s.logger.Info("server stopped")
}

// State reports the current lifecycle state.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ListTools returns the tool catalog sorted by name. It is empty while
// stopped.
func (s *Server) ListTools() []mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]mcp.Tool(nil), s.tools...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call dispatches one tool call in-process through the same validation
// and middleware as calls arriving over a transport. It always returns a
// result: unknown tools and calls on a stopped server get a ProtocolFault.
//
// Over stdio and HTTP, tool names are resolved by mcp-go before any
// middleware runs, so an unknown name there is answered with a JSON-RPC
// invalid-params error (-32602) rather than a ProtocolFault result.
func (s *Server) Call(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	state := s.state
	h, ok := s.handlers[name]
	s.mu.RUnlock()

	if state != StateRunning {
		return memtools.Fault(memory.KindProtocol, "server is %s", state), nil
	}
	if !ok {
		return memtools.Fault(memory.KindProtocol, "unknown tool %q", name), nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return h(ctx, req)
}

// MCP returns the underlying MCP server, or nil while stopped.
func (s *Server) MCP() *mcpserver.MCPServer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mcp
}

// Registry returns the external server registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// runContext returns a context cancelled by Stop, or nil while stopped.
func (s *Server) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// serverInstructions returns the system instructions that tell the AI
// how to use memoria effectively.
func serverInstructions() string {
	return `You have access to memoria, a persistent memory for this workspace.

## SESSIONS

Call session_create at the start of a unit of work and keep its id.
Call session_end with a short summary when the work is done.
session_active lists sessions that were never ended.

## SAVING

Use memory_save for one observation with an explicit type:
decision, bugfix, feature, learning, preference, context or general.
Use memory_capture to save free text; each paragraph becomes one
observation and its type is inferred.

Observations are immutable. To correct one, save a new observation.

## RECALL

memory_search returns verbatim matches first, then full-text matches.
message_search searches past conversation transcripts.
memory_context returns a ready-to-prepend block, or nothing when
memory has no match.`
}
