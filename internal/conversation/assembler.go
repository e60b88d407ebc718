package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// TokenEstimator estimates the token cost of message content. The default
// CharEstimator is a coarse heuristic; swap in a real tokenizer without
// touching the assembly algorithm.
type TokenEstimator interface {
	Estimate(content string) int
}

// charsPerToken is the character-to-token ratio used by CharEstimator.
// One token is roughly four characters of English text.
const charsPerToken = 4

// CharEstimator estimates tokens as len(content)/4. Deliberately
// approximate: it keeps the core independent of any model's vocabulary.
type CharEstimator struct{}

// Estimate implements TokenEstimator.
func (CharEstimator) Estimate(content string) int {
	return len(content) / charsPerToken
}

// HistoryProvider supplies a thread's message history in ascending
// creation order. *Store implements it; tests supply fakes.
type HistoryProvider interface {
	History(ctx context.Context, threadID uuid.UUID, limit int32, includeMetadata bool) ([]*Message, error)
}

// Assembler builds token-bounded context windows from thread history.
type Assembler struct {
	history   HistoryProvider
	estimator TokenEstimator
	logger    *slog.Logger
}

// NewAssembler creates an Assembler. A nil estimator falls back to
// CharEstimator.
func NewAssembler(history HistoryProvider, estimator TokenEstimator, logger *slog.Logger) (*Assembler, error) {
	if history == nil {
		return nil, fmt.Errorf("history provider is required")
	}
	if estimator == nil {
		estimator = CharEstimator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{history: history, estimator: estimator, logger: logger}, nil
}

// Assemble selects the most recent messages of a thread that fit within
// tokenBudget and returns them in chronological order.
//
// The walk runs newest to oldest and stops before the message that would
// exceed the budget, so the result is always a chronological suffix of the
// full history and the estimated total never exceeds the budget. If even
// the newest message is over budget the result is empty — documented
// behavior, not an error.
func (a *Assembler) Assemble(ctx context.Context, threadID uuid.UUID, tokenBudget int) ([]*Message, ContextStats, error) {
	if tokenBudget <= 0 {
		return nil, ContextStats{}, fmt.Errorf("%w: %d", ErrInvalidBudget, tokenBudget)
	}

	full, err := a.history.History(ctx, threadID, 0, true)
	if err != nil {
		return nil, ContextStats{}, err
	}

	stats := ContextStats{TokenBudget: tokenBudget}

	cut := len(full)
	for i := len(full) - 1; i >= 0; i-- {
		cost := a.estimator.Estimate(full[i].Content)
		if stats.EstimatedTokens+cost > tokenBudget {
			break
		}
		stats.EstimatedTokens += cost
		cut = i
	}

	selected := full[cut:]
	stats.Messages = len(selected)

	a.logger.Debug("assembled context",
		"thread_id", threadID,
		"messages", stats.Messages,
		"estimated_tokens", stats.EstimatedTokens,
		"token_budget", tokenBudget,
		"dropped", len(full)-len(selected))

	return selected, stats, nil
}
