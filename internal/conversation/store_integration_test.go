//go:build integration
// +build integration

package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/elephant/internal/cache"
	"github.com/koopa0/elephant/internal/log"
	"github.com/koopa0/elephant/internal/testutil"
)

func newIntegrationStore(t *testing.T) (*Store, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)
	store, err := NewStore(db.Pool, cache.New[[]*Message](128, 0), log.NewNop())
	require.NoError(t, err)
	return store, cleanup
}

func TestStore_CreateAndGetThread_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{
		OwnerID:  "owner-1",
		Platform: "web",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, thread.ID)
	assert.Equal(t, StatusActive, thread.Status)
	assert.Zero(t, thread.MessageCount)
	assert.True(t, isGenericTitle(thread.Title), "untitled thread should get a placeholder title, got %q", thread.Title)
	assert.Nil(t, thread.LastMessageAt)

	retrieved, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, retrieved.ID)
	assert.Equal(t, thread.Title, retrieved.Title)

	_, err = store.GetThread(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestStore_AppendMaintainsCounters_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "owner-1", Platform: "web"})
	require.NoError(t, err)

	const n = 7
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		_, err := store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role:    role,
			Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	retrieved, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, n, retrieved.MessageCount, "message_count must equal the number of appended messages")
	require.NotNil(t, retrieved.LastMessageAt)

	history, err := store.History(ctx, thread.ID, 0, true)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt),
			"history must be in ascending creation order")
	}
}

func TestStore_AppendConcurrent_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "owner-1", Platform: "web"})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
				Role:    RoleAssistant,
				Content: fmt.Sprintf("concurrent %d", i),
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "append %d", i)
	}

	retrieved, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, retrieved.MessageCount,
		"concurrent appends must not lose counter updates")
}

func TestStore_AutoTitle_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("first user message retitles placeholder", func(t *testing.T) {
		thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
		require.NoError(t, err)

		content := strings.Repeat("a", 60)
		_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role: RoleUser, Content: content,
		})
		require.NoError(t, err)

		retrieved, err := store.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", 50)+"...", retrieved.Title)
	})

	t.Run("assistant message never retitles", func(t *testing.T) {
		thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
		require.NoError(t, err)

		_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role: RoleAssistant, Content: "Hello! How can I help?",
		})
		require.NoError(t, err)

		retrieved, err := store.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.True(t, isGenericTitle(retrieved.Title),
			"assistant turn must leave the placeholder title, got %q", retrieved.Title)
	})

	t.Run("custom title preserved", func(t *testing.T) {
		thread, err := store.CreateThread(ctx, CreateThreadParams{
			OwnerID: "o", Platform: "web", Title: "Trip planning",
		})
		require.NoError(t, err)

		_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role: RoleUser, Content: "completely unrelated first message",
		})
		require.NoError(t, err)

		retrieved, err := store.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, "Trip planning", retrieved.Title)
	})

	t.Run("only first user message sets the title", func(t *testing.T) {
		thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
		require.NoError(t, err)

		_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role: RoleUser, Content: "first question",
		})
		require.NoError(t, err)
		_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role: RoleUser, Content: "second question",
		})
		require.NoError(t, err)

		retrieved, err := store.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, "first question", retrieved.Title)
	})
}

func TestStore_AppendValidation_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{Role: RoleUser, Content: ""})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = store.AppendMessage(ctx, uuid.New(), AppendMessageParams{Role: RoleUser, Content: "x"})
	assert.ErrorIs(t, err, ErrThreadNotFound)

	// A failed append must not bump the counter.
	retrieved, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, retrieved.MessageCount)
}

func TestStore_HistoryLimitAndMetadata_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.AppendMessage(ctx, thread.ID, AppendMessageParams{
			Role:     RoleAssistant,
			Content:  fmt.Sprintf("message %d", i),
			Metadata: map[string]any{"model": "test", "seq": float64(i)},
		})
		require.NoError(t, err)
	}

	// Positive limit: most recent N, ascending.
	recent, err := store.History(ctx, thread.ID, 2, true)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "message 3", recent[0].Content)
	assert.Equal(t, "message 4", recent[1].Content)
	assert.Equal(t, "test", recent[0].Metadata["model"])

	// Metadata stripped on request.
	bare, err := store.History(ctx, thread.ID, 2, false)
	require.NoError(t, err)
	require.Len(t, bare, 2)
	assert.Nil(t, bare[0].Metadata)

	_, err = store.History(ctx, thread.ID, -1, true)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = store.History(ctx, uuid.New(), 0, true)
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestStore_HistoryCacheInvalidation_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{Role: RoleUser, Content: "one"})
	require.NoError(t, err)

	first, err := store.History(ctx, thread.ID, 0, true)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Append must invalidate every cached view of the thread.
	_, err = store.AppendMessage(ctx, thread.ID, AppendMessageParams{Role: RoleAssistant, Content: "two"})
	require.NoError(t, err)

	second, err := store.History(ctx, thread.ID, 0, true)
	require.NoError(t, err)
	assert.Len(t, second, 2, "cached history must not be served after an append")
}

func TestStore_ListThreads_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		thread, err := store.CreateThread(ctx, CreateThreadParams{
			OwnerID: "lister", Platform: "web", Title: fmt.Sprintf("Thread %d", i),
		})
		require.NoError(t, err)
		ids = append(ids, thread.ID)
	}
	_, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "other", Platform: "web"})
	require.NoError(t, err)

	// Touch the first thread so it sorts to the top.
	_, err = store.AppendMessage(ctx, ids[0], AppendMessageParams{Role: RoleUser, Content: "bump"})
	require.NoError(t, err)

	threads, err := store.ListThreads(ctx, "lister", 10, 0)
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, ids[0], threads[0].ID, "most recently updated thread first")
	for _, th := range threads {
		assert.Equal(t, "lister", th.OwnerID)
	}

	page, err := store.ListThreads(ctx, "lister", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestStore_AppendRollbackOnCancel_Integration(t *testing.T) {
	store, cleanup := newIntegrationStore(t)
	defer cleanup()
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, CreateThreadParams{OwnerID: "o", Platform: "web"})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.AppendMessage(cancelled, thread.ID, AppendMessageParams{
		Role: RoleUser, Content: "never lands",
	})
	require.Error(t, err)

	retrieved, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, retrieved.MessageCount, "aborted append must leave no trace")

	history, err := store.History(ctx, thread.ID, 0, true)
	require.NoError(t, err)
	assert.Empty(t, history)
}
