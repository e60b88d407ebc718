// Package database manages the PostgreSQL connection pool and classifies
// store errors into the transient/permanent taxonomy used by the retrieval
// core.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool settings. The retrieval core issues short-lived queries only, so a
// small pool with aggressive idle reaping is enough.
const (
	maxConns        = 10
	minConns        = 2
	maxConnIdleTime = 5 * time.Minute
	connectTimeout  = 10 * time.Second
)

// Connect creates a pgx connection pool and verifies connectivity.
// The caller owns the pool and must Close() it on shutdown.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = maxConnIdleTime

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", Classify(err))
	}

	return pool, nil
}
