package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/koopa0/elephant/internal/log"
)

type fakeHistory struct {
	messages []*Message
	err      error
}

func (f *fakeHistory) History(_ context.Context, _ uuid.UUID, _ int32, _ bool) ([]*Message, error) {
	return f.messages, f.err
}

// msgOfTokens builds a message whose CharEstimator cost is exactly tokens.
func msgOfTokens(role string, tokens int) *Message {
	return &Message{
		ID:      uuid.New(),
		Role:    role,
		Content: strings.Repeat("x", tokens*charsPerToken),
	}
}

func newTestAssembler(t *testing.T, history HistoryProvider) *Assembler {
	t.Helper()
	a, err := NewAssembler(history, nil, log.NewNop())
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return a
}

func TestCharEstimator(t *testing.T) {
	e := CharEstimator{}
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := e.Estimate(tt.content); got != tt.want {
			t.Errorf("Estimate(%d chars) = %d, want %d", len(tt.content), got, tt.want)
		}
	}
}

func TestAssembleInvalidBudget(t *testing.T) {
	a := newTestAssembler(t, &fakeHistory{})
	for _, budget := range []int{0, -100} {
		_, _, err := a.Assemble(context.Background(), uuid.New(), budget)
		if !errors.Is(err, ErrInvalidBudget) {
			t.Errorf("Assemble(budget=%d) error = %v, want ErrInvalidBudget", budget, err)
		}
	}
}

func TestAssembleEmptyThread(t *testing.T) {
	a := newTestAssembler(t, &fakeHistory{})

	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 4000)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 0 {
		t.Errorf("selected = %d messages, want 0", len(selected))
	}
	want := ContextStats{Messages: 0, EstimatedTokens: 0, TokenBudget: 4000}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestAssembleAllFit(t *testing.T) {
	history := &fakeHistory{messages: []*Message{
		msgOfTokens(RoleUser, 100),
		msgOfTokens(RoleAssistant, 200),
		msgOfTokens(RoleUser, 50),
	}}
	a := newTestAssembler(t, history)

	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 1000)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("selected = %d messages, want all 3", len(selected))
	}
	if stats.EstimatedTokens != 350 {
		t.Errorf("EstimatedTokens = %d, want 350", stats.EstimatedTokens)
	}
	for i := range selected {
		if selected[i].ID != history.messages[i].ID {
			t.Errorf("message %d out of chronological order", i)
		}
	}
}

func TestAssembleDropsOldest(t *testing.T) {
	old := msgOfTokens(RoleUser, 500)
	mid := msgOfTokens(RoleAssistant, 300)
	recent := msgOfTokens(RoleUser, 100)
	a := newTestAssembler(t, &fakeHistory{messages: []*Message{old, mid, recent}})

	// Budget fits recent+mid (400) but not old as well.
	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 450)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("selected = %d messages, want 2", len(selected))
	}
	if selected[0].ID != mid.ID || selected[1].ID != recent.ID {
		t.Error("selection is not the chronological suffix mid, recent")
	}
	if stats.EstimatedTokens != 400 {
		t.Errorf("EstimatedTokens = %d, want 400", stats.EstimatedTokens)
	}
	if stats.EstimatedTokens > stats.TokenBudget {
		t.Errorf("estimated %d exceeds budget %d", stats.EstimatedTokens, stats.TokenBudget)
	}
}

func TestAssembleStopsAtFirstOverflow(t *testing.T) {
	// The walk stops at the first message that would overflow, even if an
	// older, smaller one would still fit: the result must stay a contiguous
	// suffix with no gaps.
	tiny := msgOfTokens(RoleUser, 10)
	huge := msgOfTokens(RoleAssistant, 900)
	recent := msgOfTokens(RoleUser, 50)
	a := newTestAssembler(t, &fakeHistory{messages: []*Message{tiny, huge, recent}})

	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 1 || selected[0].ID != recent.ID {
		t.Fatalf("selected = %d messages, want only the newest", len(selected))
	}
	if stats.EstimatedTokens != 50 {
		t.Errorf("EstimatedTokens = %d, want 50", stats.EstimatedTokens)
	}
}

func TestAssembleNewestOverBudget(t *testing.T) {
	a := newTestAssembler(t, &fakeHistory{messages: []*Message{
		msgOfTokens(RoleUser, 5000),
	}})

	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 0 {
		t.Errorf("selected = %d messages, want 0 when newest alone overflows", len(selected))
	}
	if stats.EstimatedTokens != 0 {
		t.Errorf("EstimatedTokens = %d, want 0", stats.EstimatedTokens)
	}
}

func TestAssembleHistoryError(t *testing.T) {
	storeErr := errors.New("connection reset")
	a := newTestAssembler(t, &fakeHistory{err: storeErr})

	_, _, err := a.Assemble(context.Background(), uuid.New(), 1000)
	if !errors.Is(err, storeErr) {
		t.Errorf("Assemble error = %v, want wrapped store error", err)
	}
}

type fixedEstimator struct{ cost int }

func (f fixedEstimator) Estimate(string) int { return f.cost }

func TestAssembleCustomEstimator(t *testing.T) {
	history := &fakeHistory{messages: []*Message{
		msgOfTokens(RoleUser, 1),
		msgOfTokens(RoleAssistant, 1),
	}}
	a, err := NewAssembler(history, fixedEstimator{cost: 60}, log.NewNop())
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	selected, stats, err := a.Assemble(context.Background(), uuid.New(), 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(selected) != 1 {
		t.Errorf("selected = %d messages, want 1 under injected estimator", len(selected))
	}
	if stats.EstimatedTokens != 60 {
		t.Errorf("EstimatedTokens = %d, want 60", stats.EstimatedTokens)
	}
}
