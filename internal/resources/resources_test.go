package resources

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/session"
)

func newHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	store, err := memory.New(memory.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewHandler(store, session.NewManager(store, nil)), store
}

func readReq(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func contentText(t *testing.T, contents []mcp.ResourceContents) mcp.TextResourceContents {
	t.Helper()
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T, want TextResourceContents", contents[0])
	}
	return tc
}

func TestHandleStats(t *testing.T) {
	h, store := newHandler(t)
	ctx := context.Background()
	sid, err := store.CreateSession(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveObservation(ctx, memory.SaveParams{SessionID: sid, Type: memory.TypeLearning, Content: "x"}); err != nil {
		t.Fatal(err)
	}

	if uri := h.StatsResource().URI; uri != StatsURI {
		t.Errorf("URI = %q, want %q", uri, StatsURI)
	}

	contents, err := h.HandleStats(ctx, readReq(StatsURI))
	if err != nil {
		t.Fatalf("HandleStats: %v", err)
	}
	tc := contentText(t, contents)
	if tc.MIMEType != "application/json" {
		t.Errorf("MIMEType = %q", tc.MIMEType)
	}

	var stats memory.Stats
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Sessions != 1 || stats.Observations != 1 || stats.ByType["learning"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleStats_StoreClosed(t *testing.T) {
	h, store := newHandler(t)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	contents, err := h.HandleStats(context.Background(), readReq(StatsURI))
	if err != nil {
		t.Fatalf("HandleStats returned error instead of content: %v", err)
	}
	tc := contentText(t, contents)
	if tc.MIMEType != "text/plain" || !strings.Contains(tc.Text, "Error:") {
		t.Errorf("got %q %q, want a text/plain error", tc.MIMEType, tc.Text)
	}
}

func TestHandleActiveSessions(t *testing.T) {
	h, store := newHandler(t)
	ctx := context.Background()
	open, err := store.CreateSession(ctx, "open", nil)
	if err != nil {
		t.Fatal(err)
	}
	closed, err := store.CreateSession(ctx, "closed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.EndSession(ctx, closed, ""); err != nil {
		t.Fatal(err)
	}

	contents, err := h.HandleActiveSessions(ctx, readReq(ActiveSessionsURI))
	if err != nil {
		t.Fatalf("HandleActiveSessions: %v", err)
	}

	var list []memory.Session
	if err := json.Unmarshal([]byte(contentText(t, contents).Text), &list); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(list) != 1 || list[0].ID != open {
		t.Errorf("active = %+v, want only session %d", list, open)
	}
}
