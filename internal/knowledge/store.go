package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/elephant/internal/database"
)

// candidateCols is the SELECT list for scanCandidates: entry columns, the
// native rank, and the scoring inputs joined from the lookup tables.
const candidateCols = `e.id, e.source_id, e.project_id, e.title, e.content,
	e.content_type, e.key_topics, e.word_count, e.access_count,
	e.relevance_score, e.created_at, e.last_accessed`

// Store reads the knowledge corpus from PostgreSQL and performs the one
// write this core owns: access tracking.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// SearchCandidates runs the query against the full-text index and returns
// up to limit candidates with their native rank (ts_rank_cd), source
// priority weight, and project affinity boost. The query is
// websearch_to_tsquery syntax, so OR-disjunctions from query augmentation
// pass through unchanged.
func (s *Store) SearchCandidates(ctx context.Context, query string, limit int32) ([]*Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateCols+`,
		        ts_rank_cd(e.search_vector, websearch_to_tsquery('english', $1)) AS rank,
		        COALESCE(s.priority_weight, 1.0) AS source_weight,
		        COALESCE(p.affinity_boost, 0.0) AS project_boost
		 FROM knowledge_entries e
		 LEFT JOIN knowledge_sources s ON s.id = e.source_id
		 LEFT JOIN knowledge_projects p ON p.id = e.project_id
		 WHERE e.search_vector @@ websearch_to_tsquery('english', $1)
		 ORDER BY rank DESC, e.id ASC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge entries: %w", database.Classify(err))
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// GetEntry retrieves a single entry by id.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e := &Entry{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+candidateCols+`
		 FROM knowledge_entries e
		 WHERE e.id = $1`,
		id,
	).Scan(&e.ID, &e.SourceID, &e.ProjectID, &e.Title, &e.Content,
		&e.ContentType, &e.KeyTopics, &e.WordCount, &e.AccessCount,
		&e.RelevanceScore, &e.CreatedAt, &e.LastAccessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry %s: %w", id, database.Classify(err))
	}
	return e, nil
}

// RelatedCandidates fetches entries that share ref's content type and
// either its project or at least one key topic, excluding ref itself.
// Composite ordering happens in the engine; the SQL only pre-sorts by the
// stored prior to keep the over-fetch meaningful.
func (s *Store) RelatedCandidates(ctx context.Context, ref *Entry, limit int32) ([]*Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+candidateCols+`,
		        0.0 AS rank,
		        COALESCE(s.priority_weight, 1.0) AS source_weight,
		        COALESCE(p.affinity_boost, 0.0) AS project_boost
		 FROM knowledge_entries e
		 LEFT JOIN knowledge_sources s ON s.id = e.source_id
		 LEFT JOIN knowledge_projects p ON p.id = e.project_id
		 WHERE e.id <> $1
		   AND e.content_type = $2
		   AND (e.project_id = $3 OR e.key_topics && $4)
		 ORDER BY e.relevance_score DESC, e.access_count DESC, e.id ASC
		 LIMIT $5`,
		ref.ID, ref.ContentType, ref.ProjectID, ref.KeyTopics, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying related entries: %w", database.Classify(err))
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// TouchAccess increments access_count and sets last_accessed for the given
// ids. Best-effort by contract: callers log failures and continue —
// access tracking is advisory, never authoritative.
func (s *Store) TouchAccess(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE knowledge_entries
		 SET access_count = access_count + 1,
		     last_accessed = now()
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("updating access for %d entries: %w", len(ids), database.Classify(err))
	}
	return nil
}

// scanCandidates reads Candidate rows (candidateCols + rank + weights).
func scanCandidates(rows pgx.Rows) ([]*Candidate, error) {
	var candidates []*Candidate
	for rows.Next() {
		c := &Candidate{}
		if err := rows.Scan(&c.ID, &c.SourceID, &c.ProjectID, &c.Title,
			&c.Content, &c.ContentType, &c.KeyTopics, &c.WordCount,
			&c.AccessCount, &c.RelevanceScore, &c.CreatedAt, &c.LastAccessed,
			&c.Rank, &c.SourceWeight, &c.ProjectBoost); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", database.Classify(err))
	}
	return candidates, nil
}
