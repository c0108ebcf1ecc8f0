package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memoria/internal/inject"
	"github.com/HendryAvila/memoria/internal/memory"
	"github.com/HendryAvila/memoria/internal/search"
)

func promptText(t *testing.T, res *mcp.GetPromptResult) string {
	t.Helper()
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Messages[0].Content)
	}
	return tc.Text
}

func getReq(args map[string]string) mcp.GetPromptRequest {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args
	return req
}

func TestContextPrompt(t *testing.T) {
	store, err := memory.New(memory.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	sid, err := store.CreateSession(ctx, "demo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveObservation(ctx, memory.SaveParams{
		SessionID: sid, Type: memory.TypeDecision, Content: "use SQLite FTS5",
	}); err != nil {
		t.Fatal(err)
	}

	engine, err := search.New(store, search.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := NewContextPrompt(inject.New(engine))

	def := p.Definition()
	if def.Name != "memory-context" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Arguments) != 1 || !def.Arguments[0].Required {
		t.Errorf("Arguments = %+v, want one required argument", def.Arguments)
	}

	res, err := p.Handle(ctx, getReq(map[string]string{"utterance": "why SQLite?"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, res)
	for _, want := range []string{"<memory_context>", "[decision] use SQLite FTS5", "</memory_context>\nwhy SQLite?"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt text missing %q:\n%s", want, text)
		}
	}

	// No block when memory has no match.
	res, err = p.Handle(ctx, getReq(map[string]string{"utterance": "unrelated question"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if text := promptText(t, res); text != "unrelated question" {
		t.Errorf("prompt text = %q, want the bare utterance", text)
	}
}

func TestRecapPrompt(t *testing.T) {
	p := NewRecapPrompt()
	if name := p.Definition().Name; name != "session-recap" {
		t.Errorf("Name = %q", name)
	}

	res, err := p.Handle(context.Background(), getReq(map[string]string{"session_id": "7"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, res)
	for _, want := range []string{"`memory_get_observations` with session_id 7", "`session_end` with session_id 7"} {
		if !strings.Contains(text, want) {
			t.Errorf("recap missing %q:\n%s", want, text)
		}
	}

	if _, err := p.Handle(context.Background(), getReq(nil)); err == nil {
		t.Error("expected error without session_id")
	}
}
