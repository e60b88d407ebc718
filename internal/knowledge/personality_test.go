package knowledge

import (
	"errors"
	"testing"
)

func TestTableStrategyFactor(t *testing.T) {
	s := NewTableStrategy("test", TableParams{
		ContentTypeWeights: map[string]float64{"conversation": 1.3},
		ShortWordLimit:     500,
		ShortWeight:        1.15,
		LongWordLimit:      5000,
		LongWeight:         0.9,
	})

	tests := []struct {
		name  string
		entry Entry
		want  float64
	}{
		{"conversation short", Entry{ContentType: "conversation", WordCount: 100}, 1.3 * 1.15},
		{"conversation mid", Entry{ContentType: "conversation", WordCount: 1000}, 1.3},
		{"unlisted type long", Entry{ContentType: "text", WordCount: 6000}, 0.9},
		{"unlisted type mid", Entry{ContentType: "text", WordCount: 1000}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Factor(&tt.entry); got != tt.want {
				t.Errorf("Factor(%+v) = %v, want %v", tt.entry, got, tt.want)
			}
		})
	}
}

func TestTableStrategyNeutralDefaults(t *testing.T) {
	s := NewTableStrategy("neutral", TableParams{})
	if got := s.Factor(&Entry{ContentType: "anything", WordCount: 42}); got != 1.0 {
		t.Errorf("empty table Factor = %v, want 1.0", got)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{"syntaxprime", "precision", "muse"} {
		s, err := r.Get(id)
		if err != nil {
			t.Errorf("Get(%q) error: %v", id, err)
			continue
		}
		if s.Name() != id {
			t.Errorf("Get(%q).Name() = %q", id, s.Name())
		}
	}

	_, err := r.Get("nonexistent")
	if !errors.Is(err, ErrUnknownPersonality) {
		t.Errorf("Get(nonexistent) error = %v, want ErrUnknownPersonality", err)
	}
}

func TestRegistryOverride(t *testing.T) {
	r := NewRegistry()
	r.Register(NewTableStrategy("syntaxprime", TableParams{
		ContentTypeWeights: map[string]float64{"code": 2.0},
	}))

	s, err := r.Get("syntaxprime")
	if err != nil {
		t.Fatalf("Get after override: %v", err)
	}
	if got := s.Factor(&Entry{ContentType: "code"}); got != 2.0 {
		t.Errorf("overridden strategy Factor = %v, want 2.0", got)
	}
}

func TestSyntaxprimeFavorsConversation(t *testing.T) {
	r := NewRegistry()
	s, err := r.Get("syntaxprime")
	if err != nil {
		t.Fatal(err)
	}

	conv := s.Factor(&Entry{ContentType: "conversation", WordCount: 1000})
	raw := s.Factor(&Entry{ContentType: "raw", WordCount: 1000})
	if conv <= raw {
		t.Errorf("syntaxprime: conversation factor %v should exceed raw factor %v", conv, raw)
	}
}
