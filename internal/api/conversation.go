package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/koopa0/elephant/internal/conversation"
	"github.com/koopa0/elephant/internal/database"
)

// Request body and pagination limits.
const (
	maxBodyBytes         = 1 << 20 // 1 MiB
	maxListLimit         = 200
	defaultListLimit     = 50
	defaultContextBudget = 4000
	maxContextBudget     = 200_000
)

// ThreadStore is the conversation persistence the handlers need.
// *conversation.Store implements it.
type ThreadStore interface {
	CreateThread(ctx context.Context, p conversation.CreateThreadParams) (*conversation.Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*conversation.Thread, error)
	ListThreads(ctx context.Context, ownerID string, limit, offset int32) ([]*conversation.Thread, error)
	AppendMessage(ctx context.Context, threadID uuid.UUID, p conversation.AppendMessageParams) (*conversation.Message, error)
	History(ctx context.Context, threadID uuid.UUID, limit int32, includeMetadata bool) ([]*conversation.Message, error)
}

// ContextAssembler builds token-bounded context windows.
// *conversation.Assembler implements it.
type ContextAssembler interface {
	Assemble(ctx context.Context, threadID uuid.UUID, tokenBudget int) ([]*conversation.Message, conversation.ContextStats, error)
}

type threadHandler struct {
	store     ThreadStore
	assembler ContextAssembler
	logger    *slog.Logger
}

type createThreadRequest struct {
	OwnerID   string     `json:"owner_id"`
	Platform  string     `json:"platform"`
	Title     string     `json:"title,omitempty"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
}

func (h *threadHandler) createThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	thread, err := h.store.CreateThread(r.Context(), conversation.CreateThreadParams{
		OwnerID:   req.OwnerID,
		Platform:  req.Platform,
		Title:     req.Title,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		h.writeStoreError(w, r, "create_failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, thread)
}

func (h *threadHandler) listThreads(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner_id query parameter is required")
		return
	}

	limit, ok := queryInt(w, r, "limit", defaultListLimit, 1, maxListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0, 0, 1_000_000)
	if !ok {
		return
	}

	threads, err := h.store.ListThreads(r.Context(), ownerID, int32(limit), int32(offset))
	if err != nil {
		h.writeStoreError(w, r, "list_failed", err)
		return
	}
	if threads == nil {
		threads = []*conversation.Thread{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (h *threadHandler) getThread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	thread, err := h.store.GetThread(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "get_failed", err)
		return
	}

	writeJSON(w, http.StatusOK, thread)
}

type appendMessageRequest struct {
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (h *threadHandler) appendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req appendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), id, conversation.AppendMessageParams{
		Role:        req.Role,
		Content:     req.Content,
		ContentType: req.ContentType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeStoreError(w, r, "append_failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *threadHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	limit, ok := queryInt(w, r, "limit", 0, 0, 10_000)
	if !ok {
		return
	}
	includeMetadata := r.URL.Query().Get("include_metadata") == "true"

	messages, err := h.store.History(r.Context(), id, int32(limit), includeMetadata)
	if err != nil {
		h.writeStoreError(w, r, "history_failed", err)
		return
	}
	if messages == nil {
		messages = []*conversation.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *threadHandler) getContext(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	budget, ok := queryInt(w, r, "budget", defaultContextBudget, 1, maxContextBudget)
	if !ok {
		return
	}

	messages, stats, err := h.assembler.Assemble(r.Context(), id, budget)
	if err != nil {
		h.writeStoreError(w, r, "assemble_failed", err)
		return
	}
	if messages == nil {
		messages = []*conversation.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"stats":    stats,
	})
}

// writeStoreError maps conversation errors to HTTP statuses: sentinel
// validation errors are the client's fault, transient database errors are
// 503, everything else is 500.
func (h *threadHandler) writeStoreError(w http.ResponseWriter, r *http.Request, code string, err error) {
	switch {
	case errors.Is(err, conversation.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread_not_found", "thread not found")
	case errors.Is(err, conversation.ErrInvalidRole),
		errors.Is(err, conversation.ErrEmptyContent),
		errors.Is(err, conversation.ErrInvalidLimit),
		errors.Is(err, conversation.ErrInvalidBudget),
		errors.Is(err, conversation.ErrMissingOwner),
		errors.Is(err, conversation.ErrMissingPlatform):
		writeError(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, database.ErrTransient):
		h.logger.Warn("transient store failure", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable")
	default:
		h.logger.Error("store failure", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, code, "internal error")
	}
}

// decodeJSON decodes a bounded JSON request body, writing a 400 on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON request body")
		return false
	}
	return true
}

// pathUUID parses a UUID path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an integer query parameter with a default and an
// inclusive range, writing a 400 when out of bounds.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		writeError(w, http.StatusBadRequest, "invalid_"+name,
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return v, true
}
