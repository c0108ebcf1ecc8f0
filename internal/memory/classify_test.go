package memory_test

import (
	"reflect"
	"testing"

	"github.com/HendryAvila/memoria/internal/memory"
)

func TestClassifyObservation(t *testing.T) {
	tests := []struct {
		text string
		want memory.ObservationType
	}{
		{"We decided to use SQLite", memory.TypeDecision},
		{"Fixed the race in the watcher", memory.TypeBugfix},
		{"Implemented the export command", memory.TypeFeature},
		{"TIL that FTS5 supports prefix queries", memory.TypeLearning},
		{"I always prefer tabs", memory.TypePreference},
		{"Background: the service runs on ARM", memory.TypeContext},
		{"lunch was good", memory.TypeGeneral},
		// First pattern wins.
		{"decided to fix the bug", memory.TypeDecision},
		// Word boundaries: no accidental matches inside longer words.
		{"wait until tomorrow", memory.TypeGeneral},
		{"the renewal is pending", memory.TypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := memory.ClassifyObservation(tt.text); got != tt.want {
				t.Errorf("ClassifyObservation(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseObservations(t *testing.T) {
	got := memory.ParseObservations("We chose Go.\n\n  \n\nFound out WAL needs shm files.\r\n\r\nplain")
	want := []memory.ParsedObservation{
		{Type: memory.TypeDecision, Content: "We chose Go."},
		{Type: memory.TypeLearning, Content: "Found out WAL needs shm files."},
		{Type: memory.TypeGeneral, Content: "plain"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseObservations = %+v, want %+v", got, want)
	}

	if blank := memory.ParseObservations("   "); len(blank) != 0 {
		t.Errorf("ParseObservations(blank) = %+v, want empty", blank)
	}
}
