package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/memoria/internal/config"
	"github.com/HendryAvila/memoria/internal/inject"
	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/memtools"
	"github.com/HendryAvila/memoria/internal/search"
	"github.com/HendryAvila/memoria/internal/session"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestDeps(t *testing.T) memtools.Deps {
	t.Helper()
	store, err := memory.New(memory.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := search.New(store, search.DefaultConfig(), nil)
	require.NoError(t, err)
	return memtools.Deps{
		Store:    store,
		Sessions: session.NewManager(store, nil),
		Search:   engine,
		Injector: inject.New(engine),
	}
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	if buf == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRunning(t *testing.T, opts Options) (*Server, memtools.Deps) {
	t.Helper()
	deps := newTestDeps(t)
	if opts.Logger == nil {
		opts.Logger = quietLogger(nil)
	}
	s := New(deps, opts)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s, deps
}

func text(r *mcp.CallToolResult) string {
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustCall(t *testing.T, s *Server, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.Call(context.Background(), name, args)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func decodeOK(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, "unexpected error result: %s", text(res))
	require.NoError(t, json.Unmarshal([]byte(text(res)), v))
}

func sessionCount(t *testing.T, deps memtools.Deps) int {
	t.Helper()
	stats, err := deps.Store.Stats(context.Background())
	require.NoError(t, err)
	return stats.Sessions
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

func TestServer_StateMachine(t *testing.T) {
	var logs bytes.Buffer
	s := New(newTestDeps(t), Options{Logger: quietLogger(&logs)})

	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, s.ListTools())
	assert.Nil(t, s.MCP())

	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.Len(t, s.ListTools(), 11)
	assert.NotNil(t, s.MCP())

	require.NoError(t, s.Start(), "second start is not an error")
	assert.Equal(t, StateRunning, s.State())
	assert.Contains(t, logs.String(), "server already running")

	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.Empty(t, s.ListTools())
	assert.Nil(t, s.MCP())
	s.Stop()

	require.NoError(t, s.Start(), "a stopped server can be restarted")
	assert.Equal(t, StateRunning, s.State())
	s.Stop()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestServer_ListToolsSorted(t *testing.T) {
	s, _ := newRunning(t, Options{})
	tools := s.ListTools()
	for i := 1; i < len(tools); i++ {
		assert.Less(t, tools[i-1].Name, tools[i].Name)
	}
}

// ─── Dispatch ────────────────────────────────────────────────────────────────

func TestCall_StoppedServer(t *testing.T) {
	s := New(newTestDeps(t), Options{Logger: quietLogger(nil)})
	res := mustCall(t, s, "session_list", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, memory.KindProtocol, memtools.ErrorKind(res))
}

func TestCall_UnknownTool(t *testing.T) {
	s, _ := newRunning(t, Options{})
	res := mustCall(t, s, "memory_delete", map[string]any{})
	assert.True(t, res.IsError)
	assert.Equal(t, memory.KindProtocol, memtools.ErrorKind(res))
	assert.Contains(t, text(res), "memory_delete")
}

func TestCall_SaveBogusTypeIsRejectedBeforeStore(t *testing.T) {
	s, deps := newRunning(t, Options{})

	var sess memory.Session
	decodeOK(t, mustCall(t, s, "session_create", map[string]any{"title": "Demo"}), &sess)

	res := mustCall(t, s, "memory_save", map[string]any{
		"session_id": sess.ID,
		"type":       "bogus",
		"content":    "should never be stored",
	})
	assert.True(t, res.IsError)
	assert.Equal(t, memory.KindInvalidArgument, memtools.ErrorKind(res))

	obs, err := deps.Store.GetObservations(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestCall_EndUnknownSession(t *testing.T) {
	s, deps := newRunning(t, Options{})
	decodeOK(t, mustCall(t, s, "session_create", map[string]any{}), &memory.Session{})
	before := sessionCount(t, deps)

	res := mustCall(t, s, "session_end", map[string]any{"session_id": 424242})
	assert.True(t, res.IsError)
	assert.Equal(t, memory.KindNotFound, memtools.ErrorKind(res))
	assert.Equal(t, before, sessionCount(t, deps))

	all, err := deps.Store.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	for _, sess := range all {
		assert.True(t, sess.Active())
	}
}

func TestCall_ArgumentShapes(t *testing.T) {
	s, _ := newRunning(t, Options{})

	t.Run("json raw message", func(t *testing.T) {
		res := mustCall(t, s, "session_create", json.RawMessage(`{"title":"raw"}`))
		var sess memory.Session
		decodeOK(t, res, &sess)
		assert.Equal(t, "raw", sess.Title)
	})
	t.Run("nil arguments", func(t *testing.T) {
		var out struct {
			Count int `json:"count"`
		}
		decodeOK(t, mustCall(t, s, "session_list", nil), &out)
	})
	t.Run("go ints and string slices", func(t *testing.T) {
		var sess memory.Session
		decodeOK(t, mustCall(t, s, "session_create", map[string]any{}), &sess)
		res := mustCall(t, s, "memory_save", map[string]any{
			"session_id": int(sess.ID),
			"type":       "decision",
			"content":    "use SQLite FTS5",
			"tags":       []string{"db"},
		})
		var obs memory.Observation
		decodeOK(t, res, &obs)
		assert.Equal(t, []string{"db"}, obs.Tags)
	})
	t.Run("array is not an object", func(t *testing.T) {
		res := mustCall(t, s, "session_list", []any{1, 2})
		assert.Equal(t, memory.KindProtocol, memtools.ErrorKind(res))
	})
	t.Run("malformed json", func(t *testing.T) {
		res := mustCall(t, s, "session_list", json.RawMessage(`{"limit":`))
		assert.Equal(t, memory.KindProtocol, memtools.ErrorKind(res))
	})
}

func TestCall_SchemaValidation(t *testing.T) {
	s, _ := newRunning(t, Options{})

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing required", "memory_search", map[string]any{}, "'query' is required"},
		{"null required", "memory_search", map[string]any{"query": nil}, "'query' is required"},
		{"string for number", "session_list", map[string]any{"limit": "ten"}, "'limit' must be a number"},
		{"number for string", "memory_search", map[string]any{"query": 7}, "'query' must be a string"},
		{"enum violation", "memory_save", map[string]any{"session_id": 1, "type": "todo", "content": "x"}, "must be one of"},
		{"array item type", "memory_save", map[string]any{"session_id": 1, "type": "general", "content": "x", "tags": []any{"ok", 3}}, "'tags[1]' must be a string"},
		{"array for string", "session_create", map[string]any{"title": []any{"a"}}, "'title' must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustCall(t, s, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Equal(t, memory.KindInvalidArgument, memtools.ErrorKind(res))
			assert.Contains(t, text(res), tt.want)
		})
	}
}

func TestCall_UnknownArgumentsIgnored(t *testing.T) {
	s, _ := newRunning(t, Options{})
	var sess memory.Session
	decodeOK(t, mustCall(t, s, "session_create", map[string]any{"title": "x", "colour": "blue"}), &sess)
	assert.Equal(t, "x", sess.Title)
}

func TestCall_LogsCallID(t *testing.T) {
	var logs bytes.Buffer
	s, _ := newRunning(t, Options{Logger: quietLogger(&logs)})
	mustCall(t, s, "memory_search", map[string]any{})
	assert.Contains(t, logs.String(), "tool call rejected")
	assert.Contains(t, logs.String(), "call_id=")
	assert.Contains(t, logs.String(), "kind=InvalidArgument")
}

func TestRecoverTools(t *testing.T) {
	h := chain(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	}, recoverTools(quietLogger(nil)))

	req := mcp.CallToolRequest{}
	req.Params.Name = "explode"
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, memory.KindStorage, memtools.ErrorKind(res))
}

func TestCall_Concurrent(t *testing.T) {
	s, deps := newRunning(t, Options{})
	var sess memory.Session
	decodeOK(t, mustCall(t, s, "session_create", map[string]any{}), &sess)

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := s.Call(context.Background(), "memory_save", map[string]any{
				"session_id": float64(sess.ID),
				"type":       "general",
				"content":    "parallel write",
			})
			if err == nil && res.IsError {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	obs, err := deps.Store.GetObservations(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, obs, n)
}

// ─── External server registry ────────────────────────────────────────────────

func TestServer_RegistryLifecycle(t *testing.T) {
	ext := []config.ExternalServer{
		{Name: "git", Command: "mcp-git", Enabled: true},
		{Name: "fs", Command: "mcp-fs"},
	}
	s := New(newTestDeps(t), Options{Logger: quietLogger(nil), External: ext})
	require.NoError(t, s.Start())
	assert.Equal(t, 2, s.Registry().Len())

	s.Stop()
	assert.Equal(t, 0, s.Registry().Len(), "stop clears external bookkeeping")

	require.NoError(t, s.Start())
	assert.Equal(t, 2, s.Registry().Len(), "restart reseeds from options")
	s.Stop()
}

func TestServer_StartRejectsBadExternal(t *testing.T) {
	s := New(newTestDeps(t), Options{
		Logger:   quietLogger(nil),
		External: []config.ExternalServer{{Name: "x"}},
	})
	err := s.Start()
	require.Error(t, err)
	assert.True(t, memory.IsInvalidArgument(err))
	assert.Equal(t, StateStopped, s.State())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Add(config.ExternalServer{Name: "b", Command: "cmd-b", Args: []string{"-v"}}))
	require.NoError(t, r.Add(config.ExternalServer{Name: "a", Command: "cmd-a"}))

	err := r.Add(config.ExternalServer{Name: "a", Command: "other"})
	assert.True(t, memory.IsInvalidArgument(err))
	assert.True(t, memory.IsInvalidArgument(r.Add(config.ExternalServer{Command: "x"})))
	assert.True(t, memory.IsInvalidArgument(r.Add(config.ExternalServer{Name: "c"})))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, []string{"-v"}, got.Args)

	require.NoError(t, r.Remove("a"))
	assert.True(t, memory.IsNotFound(r.Remove("a")))
	_, ok = r.Get("a")
	assert.False(t, ok)

	err = r.Replace([]config.ExternalServer{{Name: "d", Command: "x"}, {Name: "d", Command: "y"}})
	assert.True(t, memory.IsInvalidArgument(err))
	assert.Equal(t, 1, r.Len(), "failed replace leaves the registry unchanged")

	require.NoError(t, r.Replace([]config.ExternalServer{{Name: "e", Command: "x"}}))
	assert.Equal(t, []string{"e"}, names(r.List()))

	r.Clear()
	assert.Zero(t, r.Len())
}

func names(list []config.ExternalServer) []string {
	out := make([]string, len(list))
	for i, es := range list {
		out[i] = es.Name
	}
	return out
}

func TestRegistry_CopiesArgs(t *testing.T) {
	r := NewRegistry()
	args := []string{"--one"}
	require.NoError(t, r.Add(config.ExternalServer{Name: "x", Command: "c", Args: args}))
	args[0] = "--mutated"
	got, _ := r.Get("x")
	assert.Equal(t, "--one", got.Args[0])
}

// ─── Transports ──────────────────────────────────────────────────────────────

func TestInProcessClient(t *testing.T) {
	s, _ := newRunning(t, Options{})
	ctx := context.Background()

	c, err := client.NewInProcessClient(s.MCP())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0"}
	info, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, "memoria", info.ServerInfo.Name)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 11)

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = "session_create"
	callReq.Params.Arguments = map[string]any{"title": "Demo"}
	res, err := c.CallTool(ctx, callReq)
	require.NoError(t, err)
	var sess memory.Session
	decodeOK(t, res, &sess)
	assert.Equal(t, "Demo", sess.Title)

	callReq.Params.Name = "memory_save"
	callReq.Params.Arguments = map[string]any{"session_id": sess.ID, "type": "bogus", "content": "x"}
	res, err = c.CallTool(ctx, callReq)
	require.NoError(t, err)
	assert.Equal(t, memory.KindInvalidArgument, memtools.ErrorKind(res))

	prompts, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
	require.NoError(t, err)
	assert.Len(t, prompts.Prompts, 2)

	resources, err := c.ListResources(ctx, mcp.ListResourcesRequest{})
	require.NoError(t, err)
	assert.Len(t, resources.Resources, 2)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// rpcTextResponse decodes only the text payload of a tool result.
type rpcTextResponse struct {
	Result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHTTP_Handler(t *testing.T) {
	s, _ := newRunning(t, Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", health["state"])
	assert.EqualValues(t, 11, health["tools"])

	resp = postJSON(t, ts.URL+MCPPath, `{"jsonrpc":"2.0","id":1,"method":"tools/call",`+
		`"params":{"name":"session_create","arguments":{"title":"over http"}}}`)
	var out rpcTextResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Nil(t, out.Error)
	require.False(t, out.Result.IsError)
	require.NotEmpty(t, out.Result.Content)
	var sess memory.Session
	require.NoError(t, json.Unmarshal([]byte(out.Result.Content[0].Text), &sess))
	assert.Equal(t, "over http", sess.Title)

	resp = postJSON(t, ts.URL+MCPPath, `{"jsonrpc":"2.0","id":2,"method":"tools/call",`+
		`"params":{"name":"session_end","arguments":{"session_id":999}}}`)
	out = rpcTextResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.True(t, out.Result.IsError)
	assert.Contains(t, out.Result.Content[0].Text, `"kind":"NotFound"`)

	s.Stop()

	resp = postJSON(t, ts.URL+MCPPath, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTP_UnknownToolIsAResponse(t *testing.T) {
	s, _ := newRunning(t, Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+MCPPath, `{"jsonrpc":"2.0","id":1,"method":"tools/call",`+
		`"params":{"name":"no_such_tool","arguments":{}}}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Error)
	assert.Contains(t, out.Error.Message, "no_such_tool")
}

func TestServeStdio(t *testing.T) {
	s, _ := newRunning(t, Options{WorkerPoolSize: 2})

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.ServeStdio(context.Background(), inR, outW) }()

	lines := bufio.NewReader(outR)
	roundTrip := func(msg string) map[string]any {
		t.Helper()
		_, err := io.WriteString(inW, msg+"\n")
		require.NoError(t, err)
		line, err := lines.ReadString('\n')
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &out))
		return out
	}

	init := roundTrip(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"` +
		mcp.LATEST_PROTOCOL_VERSION + `","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`)
	require.Contains(t, init, "result")

	call := roundTrip(`{"jsonrpc":"2.0","id":2,"method":"tools/call",` +
		`"params":{"name":"memory_save","arguments":{"session_id":1,"type":"bogus","content":"x"}}}`)
	result, ok := call["result"].(map[string]any)
	require.True(t, ok, "tool errors are results, not protocol errors: %v", call)
	assert.Equal(t, true, result["isError"])

	// Stop ends the stdio loop.
	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStdio did not return after Stop")
	}
	_ = inW.Close()
	_ = outW.Close()
}

func TestTransports_RequireRunning(t *testing.T) {
	s := New(newTestDeps(t), Options{Logger: quietLogger(nil)})

	err := s.ServeStdio(context.Background(), strings.NewReader(""), io.Discard)
	assert.Equal(t, memory.KindProtocol, memory.KindOf(err))

	err = s.ListenAndServe(context.Background(), "127.0.0.1:0")
	assert.Equal(t, memory.KindProtocol, memory.KindOf(err))
}

func TestListenAndServe_StopsWithContext(t *testing.T) {
	s, _ := newRunning(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}

var _ mcpserver.ToolHandlerMiddleware = validateArguments(nil)
