package knowledge

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		want     []string
	}{
		{
			name:     "empty context",
			messages: nil,
			want:     nil,
		},
		{
			name:     "stopwords and short words dropped",
			messages: []string{"this is the plan for the api"},
			want:     []string{"plan"},
		},
		{
			name:     "frequency ordering",
			messages: []string{"deploy deploy deploy pipeline pipeline rollback"},
			want:     []string{"deploy", "pipeline", "rollback"},
		},
		{
			name:     "alphabetical tie-break",
			messages: []string{"zebra apple"},
			want:     []string{"apple", "zebra"},
		},
		{
			name:     "case folded",
			messages: []string{"Marketing EMAIL marketing"},
			want:     []string{"marketing", "email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.messages)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords(%v) = %v, want %v", tt.messages, got, tt.want)
			}
		})
	}
}

func TestExtractKeywordsWindowAndCap(t *testing.T) {
	// Only the last 5 messages count: "ancient" appears in message 0 of 6.
	messages := []string{
		"ancient ancient ancient ancient",
		"alpha", "bravo", "charlie", "delta", "echo",
	}
	got := ExtractKeywords(messages)
	for _, kw := range got {
		if kw == "ancient" {
			t.Errorf("ExtractKeywords included %q from outside the context window", kw)
		}
	}

	// More than 10 distinct words: capped at 10.
	many := "alpha bravo charlie delta echo foxtrot golf hotel india juliett kilo lima"
	got = ExtractKeywords([]string{many})
	if len(got) != maxKeywords {
		t.Errorf("ExtractKeywords returned %d keywords, want %d", len(got), maxKeywords)
	}
}

func TestAugmentQuery(t *testing.T) {
	if got := AugmentQuery("marketing email", nil); got != "marketing email" {
		t.Errorf("AugmentQuery with no keywords = %q, want query unchanged", got)
	}

	got := AugmentQuery("marketing email", []string{"launch", "budget", "review", "extra"})
	want := "marketing email OR launch OR budget OR review"
	if got != want {
		t.Errorf("AugmentQuery = %q, want %q", got, want)
	}

	// Original query always leads: context nudges, never replaces.
	if !strings.HasPrefix(got, "marketing email") {
		t.Errorf("AugmentQuery = %q, want original query first", got)
	}
}
