package memory

import (
	"regexp"
	"strings"
)

// typePatterns are checked in order; the first match wins.
// Patterns are anchored on word boundaries so "until" is not a TIL and
// "renewal" is not a feature.
var typePatterns = []struct {
	re  *regexp.Regexp
	typ ObservationType
}{
	{regexp.MustCompile(`(?i)\b(decided|decision|chose|choice)\b`), TypeDecision},
	{regexp.MustCompile(`(?i)\b(fix|fixed|bug|error|issue|resolved)\b`), TypeBugfix},
	{regexp.MustCompile(`(?i)\b(implement|implemented|feature|add|added|new)\b`), TypeFeature},
	{regexp.MustCompile(`(?i)\b(learn|learned|til|found out|discovered)\b`), TypeLearning},
	{regexp.MustCompile(`(?i)\b(prefer|like|want|always|never)\b`), TypePreference},
	{regexp.MustCompile(`(?i)\b(context|background|note)\b`), TypeContext},
}

// ClassifyObservation guesses the type of free text using keyword
// heuristics. Text that matches nothing is general.
func ClassifyObservation(text string) ObservationType {
	for _, p := range typePatterns {
		if p.re.MatchString(text) {
			return p.typ
		}
	}
	return TypeGeneral
}

// ParsedObservation is a typed candidate extracted from free text.
type ParsedObservation struct {
	Type    ObservationType `json:"type"`
	Content string          `json:"content"`
}

// ParseObservations extracts candidate observations from free text. Each
// non-empty paragraph becomes one observation; blank input yields none.
func ParseObservations(text string) []ParsedObservation {
	out := []ParsedObservation{}
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, ParsedObservation{Type: ClassifyObservation(para), Content: para})
	}
	return out
}
