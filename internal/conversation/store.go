package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/elephant/internal/cache"
	"github.com/koopa0/elephant/internal/database"
)

// threadCols is the standard SELECT column list for scanThread.
const threadCols = `id, owner_id, title, platform, status, project_id,
	message_count, created_at, updated_at, last_message_at`

// Store manages conversation threads and messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool    *pgxpool.Pool
	history *cache.Cache[[]*Message]
	logger  *slog.Logger
}

// NewStore creates a conversation Store. The history cache has no TTL; it
// is invalidated exclusively by AppendMessage.
func NewStore(pool *pgxpool.Pool, history *cache.Cache[[]*Message], logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history cache is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, history: history, logger: logger}, nil
}

// CreateThreadParams are the inputs to CreateThread. Title is optional; an
// empty title gets the timestamp-based placeholder.
type CreateThreadParams struct {
	OwnerID   string
	Platform  string
	Title     string
	ProjectID *uuid.UUID
}

// CreateThread allocates a new thread with zero messages.
func (s *Store) CreateThread(ctx context.Context, p CreateThreadParams) (*Thread, error) {
	if p.OwnerID == "" {
		return nil, ErrMissingOwner
	}
	if p.Platform == "" {
		return nil, ErrMissingPlatform
	}

	title := p.Title
	if title == "" {
		title = placeholderTitle(time.Now())
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO threads (owner_id, title, platform, status, project_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+threadCols,
		p.OwnerID, title, p.Platform, StatusActive, p.ProjectID,
	)

	thread, err := scanThread(row)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", database.Classify(err))
	}

	s.logger.Debug("created thread", "id", thread.ID, "platform", thread.Platform)
	return thread, nil
}

// GetThread retrieves a thread by id.
func (s *Store) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+threadCols+` FROM threads WHERE id = $1`, id)

	thread, err := scanThread(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread %s: %w", id, database.Classify(err))
	}
	return thread, nil
}

// ListThreads lists an owner's threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context, ownerID string, limit, offset int32) ([]*Thread, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+threadCols+`
		 FROM threads
		 WHERE owner_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", database.Classify(err))
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating threads: %w", database.Classify(err))
	}
	return threads, nil
}

// AppendMessageParams are the inputs to AppendMessage. Metadata is opaque
// generation metadata stored as JSONB.
type AppendMessageParams struct {
	Role        string
	Content     string
	ContentType string
	Metadata    map[string]any
}

// AppendMessage inserts an immutable message and updates the owning
// thread's counters in a single transaction. The thread row is locked
// first, so concurrent appends to the same thread serialize and
// message_count never under-counts.
//
// When the message is a user turn and the thread still carries a system
// default title, the title is rewritten from the message content. A
// user-customized title is never touched.
//
// On success every cached history view of the thread is invalidated.
func (s *Store) AppendMessage(ctx context.Context, threadID uuid.UUID, p AppendMessageParams) (*Message, error) {
	if p.Role != RoleUser && p.Role != RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, p.Role)
	}
	if p.Content == "" {
		return nil, ErrEmptyContent
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "text"
	}

	var metadataJSON []byte
	if len(p.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling message metadata: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", database.Classify(err))
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Lock the thread row. Serializes concurrent appends and makes the
	// title check read a stable value.
	var title string
	err = tx.QueryRow(ctx,
		`SELECT title FROM threads WHERE id = $1 FOR UPDATE`, threadID,
	).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking thread %s: %w", threadID, database.Classify(err))
	}

	msg := &Message{
		ThreadID:    threadID,
		Role:        p.Role,
		Content:     p.Content,
		ContentType: contentType,
		Metadata:    p.Metadata,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (thread_id, role, content, content_type, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		threadID, p.Role, p.Content, contentType, metadataJSON,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", database.Classify(err))
	}

	var newTitle *string
	if p.Role == RoleUser && isGenericTitle(title) {
		derived := deriveTitle(p.Content)
		newTitle = &derived
	}

	_, err = tx.Exec(ctx,
		`UPDATE threads
		 SET message_count = message_count + 1,
		     last_message_at = $2,
		     updated_at = now(),
		     title = COALESCE($3, title)
		 WHERE id = $1`,
		threadID, msg.CreatedAt, newTitle,
	)
	if err != nil {
		return nil, fmt.Errorf("updating thread stats: %w", database.Classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message append: %w", database.Classify(err))
	}

	s.history.InvalidatePrefix(historyKeyPrefix(threadID))

	s.logger.Debug("appended message",
		"thread_id", threadID, "message_id", msg.ID, "role", p.Role)
	return msg, nil
}

// History returns a thread's messages in ascending creation order. A
// positive limit returns the most recent limit messages (still ascending);
// limit 0 returns everything. When includeMetadata is false, generation
// metadata is omitted from the result.
//
// Results are cached per (thread, limit, metadata flag) with no TTL; the
// cache is invalidated by AppendMessage.
func (s *Store) History(ctx context.Context, threadID uuid.UUID, limit int32, includeMetadata bool) ([]*Message, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	key := historyKey(threadID, limit, includeMetadata)
	if cached, ok := s.history.Get(key); ok {
		return slices.Clone(cached), nil
	}

	messages, err := s.queryHistory(ctx, threadID, limit, includeMetadata)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		// Distinguish an empty thread from a missing one.
		if _, err := s.GetThread(ctx, threadID); err != nil {
			return nil, err
		}
	}

	s.history.Set(key, messages)
	return slices.Clone(messages), nil
}

// queryHistory loads messages from the store, bypassing the cache.
func (s *Store) queryHistory(ctx context.Context, threadID uuid.UUID, limit int32, includeMetadata bool) ([]*Message, error) {
	query := `SELECT id, thread_id, role, content, content_type, metadata, created_at
		 FROM messages
		 WHERE thread_id = $1
		 ORDER BY created_at ASC, id ASC`
	args := []any{threadID}

	if limit > 0 {
		// Most recent N, reordered to ascending.
		query = `SELECT id, thread_id, role, content, content_type, metadata, created_at
			 FROM (
			   SELECT id, thread_id, role, content, content_type, metadata, created_at
			   FROM messages
			   WHERE thread_id = $1
			   ORDER BY created_at DESC, id DESC
			   LIMIT $2
			 ) recent
			 ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", database.Classify(err))
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var metadataJSON []byte
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content,
			&m.ContentType, &metadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if includeMetadata && len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
				s.logger.Warn("unmarshaling message metadata",
					"message_id", m.ID, "error", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", database.Classify(err))
	}

	return messages, nil
}

// historyKeyPrefix is shared by every cached view of a thread, so one
// append invalidates them all.
func historyKeyPrefix(threadID uuid.UUID) string {
	return threadID.String() + ":"
}

// historyKey builds the cache key for a (thread, limit, metadata) view.
func historyKey(threadID uuid.UUID, limit int32, includeMetadata bool) string {
	return historyKeyPrefix(threadID) + strconv.Itoa(int(limit)) + ":" + strconv.FormatBool(includeMetadata)
}

// scanThread reads a Thread from a row using the threadCols column order.
func scanThread(row pgx.Row) (*Thread, error) {
	t := &Thread{}
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Platform, &t.Status,
		&t.ProjectID, &t.MessageCount, &t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
