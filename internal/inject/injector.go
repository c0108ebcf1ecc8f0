// Package inject turns a user utterance into a block of remembered context
// that is prepended to an outbound chat request.
package inject

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/HendryAvila/memoria/internal/memory"
)

const (
	// ContextLimit is the fixed number of observations injected per turn.
	ContextLimit = 5
	// DefaultTimeout bounds the search on the chat hot path.
	DefaultTimeout = 250 * time.Millisecond

	blockHeader = "\n<memory_context>\nRelevant past observations:\n"
	blockFooter = "</memory_context>\n"
	timeLayout  = "2006-01-02 15:04:05"
)

// Searcher is the retrieval capability the injector consumes.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]memory.SearchHit, error)
}

// Injector builds memory context blocks. It performs no writes.
type Injector struct {
	searcher Searcher
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithTimeout overrides DefaultTimeout. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(i *Injector) { i.timeout = d }
}

// WithLogger sets the logger used for degraded searches.
func WithLogger(l *slog.Logger) Option {
	return func(i *Injector) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an Injector over searcher.
func New(searcher Searcher, opts ...Option) *Injector {
	i := &Injector{searcher: searcher, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BuildContext searches memory for utterance and renders up to
// ContextLimit hits as a delimited block. It returns "" when nothing
// matched; callers must then omit the block entirely. A failed or slow
// search is logged and also yields "", so a chat turn never fails here.
func (i *Injector) BuildContext(ctx context.Context, utterance string) string {
	if strings.TrimSpace(utterance) == "" {
		return ""
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	hits, err := i.searcher.Search(ctx, utterance, ContextLimit)
	if err != nil {
		i.logger.Warn("memory context search failed", "error", err)
		return ""
	}
	return Format(hits)
}

// Format renders hits as a memory context block, one line per hit in the
// form "[type] content (timestamp)". No hits renders as "".
func Format(hits []memory.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	if len(hits) > ContextLimit {
		hits = hits[:ContextLimit]
	}
	var b strings.Builder
	b.WriteString(blockHeader)
	for _, h := range hits {
		b.WriteString("[")
		b.WriteString(string(h.Type))
		b.WriteString("] ")
		b.WriteString(h.Content)
		b.WriteString(" (")
		b.WriteString(h.CreatedAt.UTC().Format(timeLayout))
		b.WriteString(")\n")
	}
	b.WriteString(blockFooter)
	return b.String()
}
