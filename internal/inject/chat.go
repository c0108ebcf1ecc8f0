package inject

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of an outbound chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is a chat-completion capability supplied by the host. memoria
// never talks to an AI vendor itself.
type Completer interface {
	Complete(ctx context.Context, msgs []ChatMessage) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, msgs []ChatMessage) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	return f(ctx, msgs)
}

// Prepend returns a copy of msgs with memory context placed in front of
// the latest user message. msgs is never modified. Without a user message
// or without matching memory the copy is identical to msgs.
func (i *Injector) Prepend(ctx context.Context, msgs []ChatMessage) []ChatMessage {
	out := append([]ChatMessage(nil), msgs...)
	for j := len(out) - 1; j >= 0; j-- {
		if out[j].Role != RoleUser {
			continue
		}
		if block := i.BuildContext(ctx, out[j].Content); block != "" {
			out[j].Content = block + out[j].Content
		}
		break
	}
	return out
}

// WithMemory decorates next so every request is enriched by inj first.
func WithMemory(next Completer, inj *Injector) Completer {
	return CompleterFunc(func(ctx context.Context, msgs []ChatMessage) (string, error) {
		return next.Complete(ctx, inj.Prepend(ctx, msgs))
	})
}
