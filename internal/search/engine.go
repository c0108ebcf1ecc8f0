// Package search implements layered retrieval over memory observations.
//
// A query runs through a fixed cascade of layers. Each layer only fills the
// budget the previous ones left and never returns an id already returned,
// so the combined result is bounded by the limit and free of duplicates:
//
//  1. exact:   substring containment, newest first
//  2. indexed: FTS5 full-text with porter stemming, best bm25 rank first
//  3. fuzzy:   FTS5 prefix terms (opt-in via Config.FuzzyLayer)
//
// Exact hits always precede indexed hits regardless of rank.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/HendryAvila/memoria/internal/memory"
)

// Store is the subset of *memory.Store the engine queries.
type Store interface {
	MatchExact(ctx context.Context, query string, limit int) ([]memory.SearchHit, error)
	MatchIndexed(ctx context.Context, ftsQuery string, exclude []int64, limit int) ([]memory.SearchHit, error)
	MatchPrefix(ctx context.Context, ftsQuery string, exclude []int64, limit int) ([]memory.SearchHit, error)
	SearchMessages(ctx context.Context, ftsQuery string, limit int) ([]memory.Message, error)
	Revision(ctx context.Context) (memory.Revision, error)
}

// Config tunes the engine.
type Config struct {
	// CacheSize is the number of (query, limit) results kept. Zero disables
	// caching.
	CacheSize int
	// FuzzyLayer enables the prefix-match layer after the indexed one.
	FuzzyLayer bool
	// Timeout bounds a single Search or SearchMessages call. Zero means no
	// bound beyond the caller's context.
	Timeout time.Duration
	// MaxLimit caps any requested limit. Zero means uncapped.
	MaxLimit int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CacheSize: 256,
		Timeout:   2 * time.Second,
		MaxLimit:  100,
	}
}

type cacheKey struct {
	query string
	limit int
}

type cacheEntry struct {
	rev  memory.Revision
	hits []memory.SearchHit
}

// Engine runs layered searches. It holds no state besides an optional
// result cache, tagged with the database revision so that writes committed
// by any process invalidate it.
type Engine struct {
	store  Store
	cfg    Config
	cache  *lru.Cache[cacheKey, cacheEntry]
	logger *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default.
func New(store Store, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{store: store, cfg: cfg, logger: logger}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, cacheEntry](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Search returns at most limit observations matching query, exact-layer
// hits first. A blank query or a non-positive limit returns an empty result.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]memory.SearchHit, error) {
	query = strings.TrimSpace(query)
	limit = e.clamp(limit)
	if query == "" || limit <= 0 {
		return []memory.SearchHit{}, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// Read the revision before querying: a write that lands mid-search
	// changes it and the entry stored below is already stale.
	key := cacheKey{query: query, limit: limit}
	rev, cacheable := e.revision(ctx)
	if cacheable {
		if entry, ok := e.cache.Get(key); ok && entry.rev == rev {
			return cloneHits(entry.hits), nil
		}
	}

	hits, err := e.cascade(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if cacheable {
		e.cache.Add(key, cacheEntry{rev: rev, hits: cloneHits(hits)})
	}
	return hits, nil
}

// revision reports the current store revision, and false when the cache is
// disabled or the revision cannot be read.
func (e *Engine) revision(ctx context.Context) (memory.Revision, bool) {
	if e.cache == nil {
		return memory.Revision{}, false
	}
	rev, err := e.store.Revision(ctx)
	if err != nil {
		e.logger.Warn("search cache bypassed", "error", err)
		return memory.Revision{}, false
	}
	return rev, true
}

func cloneHits(hits []memory.SearchHit) []memory.SearchHit {
	out := make([]memory.SearchHit, len(hits))
	for i, h := range hits {
		if h.Tags != nil {
			h.Tags = append(make([]string, 0, len(h.Tags)), h.Tags...)
		}
		if h.Source != nil {
			src := *h.Source
			h.Source = &src
		}
		out[i] = h
	}
	return out
}

// layer is one index-backed step of the cascade after the exact layer.
type layer struct {
	name  memory.Layer
	query string
	run   func(ctx context.Context, ftsQuery string, exclude []int64, limit int) ([]memory.SearchHit, error)
}

func (e *Engine) cascade(ctx context.Context, query string, limit int) ([]memory.SearchHit, error) {
	hits, err := e.store.MatchExact(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) >= limit {
		return hits[:limit], nil
	}

	layers := []layer{{memory.LayerIndexed, Sanitize(query), e.store.MatchIndexed}}
	if e.cfg.FuzzyLayer {
		layers = append(layers, layer{memory.LayerFuzzy, PrefixQuery(query), e.store.MatchPrefix})
	}

	seen := make(map[int64]bool, len(hits))
	for _, h := range hits {
		seen[h.ID] = true
	}
	for _, l := range layers {
		remaining := limit - len(hits)
		if remaining <= 0 {
			break
		}
		if l.query == "" {
			continue
		}
		more, err := l.run(ctx, l.query, ids(hits), remaining)
		if err != nil {
			return nil, err
		}
		for _, h := range more {
			if seen[h.ID] || len(hits) >= limit {
				continue
			}
			seen[h.ID] = true
			hits = append(hits, h)
		}
		e.logger.Debug("search layer", "layer", l.name, "query", query, "hits", len(more))
	}
	return hits, nil
}

// SearchMessages runs a single indexed-layer search over transcripts.
// Results are never cached: transcripts are written by the host
// application and do not move the observation revision.
func (e *Engine) SearchMessages(ctx context.Context, query string, limit int) ([]memory.Message, error) {
	limit = e.clamp(limit)
	fts := Sanitize(query)
	if fts == "" || limit <= 0 {
		return []memory.Message{}, nil
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.store.SearchMessages(ctx, fts, limit)
}

func (e *Engine) clamp(limit int) int {
	if e.cfg.MaxLimit > 0 && limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func ids(hits []memory.SearchHit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

// ─── FTS query building ─────────────────────────────────────────────────────

// Sanitize turns free text into a safe FTS5 expression: every whitespace
// separated token is stripped of double quotes, wrapped in quotes so FTS5
// operators lose their meaning, and OR-joined for broad recall. Text with no
// usable tokens yields "".
func Sanitize(query string) string {
	return buildFTS(query, 1, "")
}

// PrefixQuery is Sanitize with a trailing * on every token of at least
// three characters; shorter tokens are dropped to keep prefix scans narrow.
func PrefixQuery(query string) string {
	return buildFTS(query, 3, "*")
}

func buildFTS(query string, minRunes int, suffix string) string {
	var terms []string
	for _, tok := range strings.Fields(query) {
		tok = strings.ReplaceAll(tok, `"`, "")
		if tok == "" || utf8.RuneCountInString(tok) < minRunes {
			continue
		}
		terms = append(terms, `"`+tok+`"`+suffix)
	}
	return strings.Join(terms, " OR ")
}
