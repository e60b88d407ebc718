package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/elephant/internal/cache"
	"github.com/koopa0/elephant/internal/config"
	"github.com/koopa0/elephant/internal/conversation"
	"github.com/koopa0/elephant/internal/database"
	"github.com/koopa0/elephant/internal/knowledge"
	"github.com/koopa0/elephant/internal/log"
)

// app holds the wired retrieval core shared by the serve and mcp
// commands.
type app struct {
	Pool      *pgxpool.Pool
	Threads   *conversation.Store
	Assembler *conversation.Assembler
	Engine    *knowledge.Engine
	Logger    *slog.Logger
}

// setupApp connects to PostgreSQL and wires stores, caches, and the
// ranking engine from configuration.
func setupApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := log.New(log.Config{
		Level: cfg.SlogLevel(),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	historyCache := cache.New[[]*conversation.Message](cfg.HistoryCacheSize, 0)
	threads, err := conversation.NewStore(pool, historyCache, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}

	assembler, err := conversation.NewAssembler(threads, nil, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating context assembler: %w", err)
	}

	registry := knowledge.NewRegistry()
	for id, p := range cfg.Personalities {
		registry.Register(knowledge.NewTableStrategy(id, knowledge.TableParams{
			ContentTypeWeights: p.ContentTypeWeights,
			ShortWordLimit:     p.ShortWordLimit,
			ShortWeight:        p.ShortWeight,
			LongWordLimit:      p.LongWordLimit,
			LongWeight:         p.LongWeight,
		}))
	}

	knowledgeStore, err := knowledge.NewStore(pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	resultCache := cache.New[[]knowledge.Result](cfg.SearchCacheSize, cfg.SearchCacheTTL)
	engine, err := knowledge.NewEngine(knowledgeStore, registry, resultCache,
		config.DefaultPersonality, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating knowledge engine: %w", err)
	}

	return &app{
		Pool:      pool,
		Threads:   threads,
		Assembler: assembler,
		Engine:    engine,
		Logger:    logger,
	}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	a.Pool.Close()
}
