package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/elephant/internal/cache"
)

// Over-fetch factor for candidate retrieval: re-ranking needs headroom
// beyond the requested limit because the multi-signal score reorders the
// native ranking.
const overFetchFactor = 2

// Suggestion tuning: the retrieval floor is lower than a typical direct
// search (proactive surfacing casts a wider net), but results are then
// held to a stricter post-hoc score floor and a minimum length so thin or
// marginal content is never volunteered unprompted.
const (
	suggestMinRelevance = 0.15
	suggestScoreFloor   = 0.5
	suggestMinWords     = 100
)

// Searcher is the corpus access the engine needs. *Store implements it;
// tests supply instrumented fakes.
type Searcher interface {
	SearchCandidates(ctx context.Context, query string, limit int32) ([]*Candidate, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	RelatedCandidates(ctx context.Context, ref *Entry, limit int32) ([]*Candidate, error)
	TouchAccess(ctx context.Context, ids []uuid.UUID) error
}

// Engine ranks the knowledge corpus. It is stateless apart from its result
// cache and safe for concurrent use.
type Engine struct {
	store              Searcher
	registry           *Registry
	results            *cache.Cache[[]Result]
	defaultPersonality string
	logger             *slog.Logger
}

// NewEngine creates a ranking engine. The results cache should carry the
// search TTL (1 h by default); defaultPersonality resolves empty
// personality ids on requests.
func NewEngine(store Searcher, registry *Registry, results *cache.Cache[[]Result], defaultPersonality string, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("personality registry is required")
	}
	if results == nil {
		return nil, fmt.Errorf("results cache is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := registry.Get(defaultPersonality); err != nil {
		return nil, fmt.Errorf("default personality: %w", err)
	}
	return &Engine{
		store:              store,
		registry:           registry,
		results:            results,
		defaultPersonality: defaultPersonality,
		logger:             logger,
	}, nil
}

// Search ranks the corpus against req. Results are sorted by score
// descending, thresholded at req.MinRelevance, and truncated to req.Limit.
//
// The ranked list is cached under (query, personality, limit) for the
// cache's TTL; a hit skips the store entirely, including the access-count
// side effect. A store failure degrades to an empty result set with a
// logged error — retrieval problems never block context assembly for a
// caller that tolerates empty knowledge context.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSearchLimit, req.Limit)
	}
	strategy, err := e.resolvePersonality(req.Personality)
	if err != nil {
		return nil, err
	}

	key := searchKey(req.Query, strategy.Name(), req.Limit)
	if cached, ok := e.results.Get(key); ok {
		return slices.Clone(cached), nil
	}

	keywords := ExtractKeywords(req.Context)
	augmented := AugmentQuery(req.Query, keywords)

	ranked, err := e.rank(ctx, augmented, keywords, strategy, req.Limit, req.MinRelevance)
	if err != nil {
		e.logger.Error("knowledge search degraded to empty result",
			"query", req.Query, "error", err)
		return []Result{}, nil
	}

	e.touchAccess(ctx, ranked)
	e.results.Set(key, ranked)

	return slices.Clone(ranked), nil
}

// Related finds entries adjacent to entryID: same content type plus a
// shared project or overlapping key topics, ordered by the composite
// project/topic/prior/popularity score. The queried entry is never in the
// output.
func (e *Engine) Related(ctx context.Context, entryID uuid.UUID, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSearchLimit, limit)
	}

	ref, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.RelatedCandidates(ctx, ref, int32(limit*overFetchFactor))
	if err != nil {
		e.logger.Error("related lookup degraded to empty result",
			"entry_id", entryID, "error", err)
		return []Result{}, nil
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{Entry: c.Entry, Score: scoreRelated(c, ref)})
	}
	sortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SuggestForContext proactively surfaces entries for a conversation
// without an explicit query: the query is built entirely from extracted
// context keywords. Compared to Search, the retrieval floor is lower but
// results must clear suggestScoreFloor and suggestMinWords.
func (e *Engine) SuggestForContext(ctx context.Context, contextMsgs []string, personalityID string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSearchLimit, limit)
	}
	strategy, err := e.resolvePersonality(personalityID)
	if err != nil {
		return nil, err
	}

	keywords := ExtractKeywords(contextMsgs)
	if len(keywords) == 0 {
		return []Result{}, nil
	}
	query := strings.Join(keywords, " OR ")

	ranked, err := e.rank(ctx, query, keywords, strategy, limit*overFetchFactor, suggestMinRelevance)
	if err != nil {
		e.logger.Error("suggestion degraded to empty result", "error", err)
		return []Result{}, nil
	}

	suggestions := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		if r.WordCount <= suggestMinWords || r.Score < suggestScoreFloor {
			continue
		}
		suggestions = append(suggestions, r)
		if len(suggestions) == limit {
			break
		}
	}

	e.touchAccess(ctx, suggestions)
	return suggestions, nil
}

// rank runs candidate retrieval and multi-signal scoring: over-fetch,
// score, sort descending, threshold, truncate. No caching, no side
// effects.
func (e *Engine) rank(ctx context.Context, query string, keywords []string, strategy Strategy, limit int, minRelevance float64) ([]Result, error) {
	candidates, err := e.store.SearchCandidates(ctx, query, int32(limit*overFetchFactor))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := scoreCandidate(c, strategy, keywords)
		if score < minRelevance {
			continue
		}
		results = append(results, Result{Entry: c.Entry, Score: score})
	}
	sortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// touchAccess bumps access tracking for returned entries. Best-effort: a
// failure is logged and swallowed, never surfaced to the caller.
func (e *Engine) touchAccess(ctx context.Context, results []Result) {
	if len(results) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	if err := e.store.TouchAccess(ctx, ids); err != nil {
		e.logger.Warn("updating access tracking", "error", err)
	}
}

// resolvePersonality maps an id (empty = default) to its strategy.
func (e *Engine) resolvePersonality(id string) (Strategy, error) {
	if id == "" {
		id = e.defaultPersonality
	}
	return e.registry.Get(id)
}

// sortResults orders by score descending with deterministic tie-breaks
// (stored prior, then id) so identical inputs always produce identical
// output order.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].ID.String() < results[j].ID.String()
	})
}

// searchKey builds the result-cache key. Context is deliberately not part
// of the key: the cache contract is (query, personality, limit).
func searchKey(query, personality string, limit int) string {
	return query + "\x1f" + personality + "\x1f" + strconv.Itoa(limit)
}
