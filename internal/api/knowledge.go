package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/koopa0/elephant/internal/knowledge"
)

const (
	defaultSearchLimit  = 10
	defaultRelatedLimit = 5
	defaultSuggestLimit = 5
	maxSearchLimit      = 100
)

// KnowledgeEngine is the retrieval surface the handlers need.
// *knowledge.Engine implements it.
type KnowledgeEngine interface {
	Search(ctx context.Context, req knowledge.SearchRequest) ([]knowledge.Result, error)
	Related(ctx context.Context, entryID uuid.UUID, limit int) ([]knowledge.Result, error)
	SuggestForContext(ctx context.Context, contextMsgs []string, personalityID string, limit int) ([]knowledge.Result, error)
}

type knowledgeHandler struct {
	engine KnowledgeEngine
	logger *slog.Logger
}

func (h *knowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := queryInt(w, r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if !ok {
		return
	}

	minRelevance := 0.0
	if raw := q.Get("min_relevance"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid_min_relevance", "min_relevance must be a non-negative number")
			return
		}
		minRelevance = v
	}

	results, err := h.engine.Search(r.Context(), knowledge.SearchRequest{
		Query:        q.Get("q"),
		Context:      q["context"],
		Personality:  q.Get("personality"),
		Limit:        limit,
		MinRelevance: minRelevance,
	})
	if err != nil {
		h.writeEngineError(w, r, "search_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *knowledgeHandler) related(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultRelatedLimit, 1, maxSearchLimit)
	if !ok {
		return
	}

	results, err := h.engine.Related(r.Context(), id, limit)
	if err != nil {
		h.writeEngineError(w, r, "related_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type suggestRequest struct {
	Context     []string `json:"context"`
	Personality string   `json:"personality,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

func (h *knowledgeHandler) suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultSuggestLimit
	}
	if limit < 0 || limit > maxSearchLimit {
		writeError(w, http.StatusBadRequest, "invalid_limit",
			"limit must be between 1 and "+strconv.Itoa(maxSearchLimit))
		return
	}

	results, err := h.engine.SuggestForContext(r.Context(), req.Context, req.Personality, limit)
	if err != nil {
		h.writeEngineError(w, r, "suggest_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// writeEngineError maps knowledge errors to HTTP statuses. The engine
// already degrades retrieval failures to empty results, so anything
// arriving here is either the client's fault or a genuine internal error.
func (h *knowledgeHandler) writeEngineError(w http.ResponseWriter, r *http.Request, code string, err error) {
	switch {
	case errors.Is(err, knowledge.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", "knowledge entry not found")
	case errors.Is(err, knowledge.ErrEmptyQuery),
		errors.Is(err, knowledge.ErrInvalidSearchLimit),
		errors.Is(err, knowledge.ErrUnknownPersonality):
		writeError(w, http.StatusBadRequest, code, err.Error())
	default:
		h.logger.Error("knowledge engine failure", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, code, "internal error")
	}
}
