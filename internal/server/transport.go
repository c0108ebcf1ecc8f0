package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memoria/internal/memory"
)

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

func errNotRunning(op string) error {
	return memory.ProtocolFault(op, "server is not running")
}

// ServeStdio serves newline-delimited JSON-RPC on in/out until ctx is
// done, in reaches EOF, or the server is stopped.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	m, runCtx := s.MCP(), s.runContext()
	if m == nil || runCtx == nil {
		return errNotRunning("server.ServeStdio")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(runCtx, cancel)()

	stdio := mcpserver.NewStdioServer(m)
	mcpserver.WithWorkerPoolSize(s.opts.WorkerPoolSize)(stdio)
	mcpserver.WithErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))(stdio)

	s.logger.Info("serving stdio", "workers", s.opts.WorkerPoolSize)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the HTTP surface: the streamable MCP transport at
// MCPPath and a health probe at /healthz. Requests to MCPPath while the
// server is stopped get 503.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		state := s.State()
		w.Header().Set("Content-Type", "application/json")
		if state != StateRunning {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"state":   state.String(),
			"version": Version,
			"tools":   len(s.ListTools()),
		})
	})

	r.Handle(MCPPath, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.RLock()
		stream := s.stream
		s.mu.RUnlock()
		if stream == nil {
			http.Error(w, "server is not running", http.StatusServiceUnavailable)
			return
		}
		stream.ServeHTTP(w, req)
	}))

	return r
}

// ListenAndServe serves Handler on addr until ctx is done or the server
// is stopped, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	runCtx := s.runContext()
	if runCtx == nil {
		return errNotRunning("server.ListenAndServe")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving http", "addr", addr, "path", MCPPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
