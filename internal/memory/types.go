package memory

import (
	"strings"
	"time"
)

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "Untitled Session"

// Session is a bounded window of activity that groups observations.
// EndedAt is nil while the session is active.
type Session struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	WorkspaceID *int64     `json:"workspace_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
}

// Active reports whether the session has not been ended.
func (s Session) Active() bool { return s.EndedAt == nil }

// ObservationType is the closed set of observation kinds.
type ObservationType string

const (
	TypeDecision   ObservationType = "decision"
	TypeBugfix     ObservationType = "bugfix"
	TypeFeature    ObservationType = "feature"
	TypeLearning   ObservationType = "learning"
	TypePreference ObservationType = "preference"
	TypeContext    ObservationType = "context"
	TypeGeneral    ObservationType = "general"
)

// ObservationTypes lists every valid type in a stable order. Tool schemas
// use it as their enum.
var ObservationTypes = []ObservationType{
	TypeDecision, TypeBugfix, TypeFeature, TypeLearning,
	TypePreference, TypeContext, TypeGeneral,
}

// TypeNames returns ObservationTypes as plain strings.
func TypeNames() []string {
	out := make([]string, len(ObservationTypes))
	for i, t := range ObservationTypes {
		out[i] = string(t)
	}
	return out
}

// Valid reports whether t is in the closed set.
func (t ObservationType) Valid() bool {
	for _, v := range ObservationTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseObservationType validates s against the closed set. Matching is exact:
// "Decision" is rejected, not folded.
func ParseObservationType(s string) (ObservationType, error) {
	t := ObservationType(s)
	if !t.Valid() {
		return "", InvalidArgument("memory.ParseObservationType",
			"invalid observation type %q: must be one of %s", s, strings.Join(TypeNames(), ", "))
	}
	return t, nil
}

// Observation is one immutable, typed unit of remembered knowledge.
type Observation struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"session_id"`
	Type      ObservationType `json:"type"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags"`
	Source    *string         `json:"source,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveParams holds the input for SaveObservation.
type SaveParams struct {
	SessionID int64
	Type      ObservationType
	Content   string
	Tags      []string
	Source    string
}

// Message is a transcript entry. The store reads messages but never
// writes them; conversations belong to the host application.
type Message struct {
	ID                int64     `json:"id"`
	ConversationID    int64     `json:"conversation_id"`
	ConversationTitle string    `json:"conversation_title"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
}

// Layer names the retrieval strategy that produced a search hit.
type Layer string

const (
	LayerExact   Layer = "exact"
	LayerIndexed Layer = "indexed"
	LayerFuzzy   Layer = "fuzzy"
)

// SearchHit is an observation returned by a search layer. Rank is the
// bm25 score for index layers (lower is better) and zero for the exact layer.
type SearchHit struct {
	Observation
	Layer Layer   `json:"layer"`
	Rank  float64 `json:"rank"`
}

// Stats summarizes the store contents.
type Stats struct {
	Sessions       int            `json:"sessions"`
	ActiveSessions int            `json:"active_sessions"`
	Observations   int            `json:"observations"`
	Messages       int            `json:"messages"`
	ByType         map[string]int `json:"by_type"`
	SchemaVersion  int            `json:"schema_version"`
}
