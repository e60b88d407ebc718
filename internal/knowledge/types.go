package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Source types for knowledge entries, in descending trust order.
const (
	SourceTypeConversation = "conversation"
	SourceTypeNote         = "note"
	SourceTypeDocument     = "document"
	SourceTypeWeb          = "web"
	SourceTypeRaw          = "raw"
)

// Entry is a knowledge corpus entry. All fields except AccessCount and
// LastAccessed are owned by the external ingestion pipeline; this core
// only bumps access tracking as a retrieval side effect.
type Entry struct {
	ID             uuid.UUID  `json:"id"`
	SourceID       *uuid.UUID `json:"source_id,omitempty"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	ContentType    string     `json:"content_type"`
	KeyTopics      []string   `json:"key_topics"`
	WordCount      int        `json:"word_count"`
	AccessCount    int        `json:"access_count"`
	RelevanceScore float64    `json:"relevance_score"` // static prior, 0-10
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessed   *time.Time `json:"last_accessed,omitempty"`
}

// Candidate is an entry as fetched from the full-text index, carrying the
// native text rank and the scoring inputs joined from the lookup tables.
type Candidate struct {
	Entry
	Rank         float64 // ts_rank_cd against the augmented query
	SourceWeight float64 // knowledge_sources.priority_weight (1.0 when unsourced)
	ProjectBoost float64 // knowledge_projects.affinity_boost (0 when unassigned)
}

// Result is a ranked entry returned to the caller.
type Result struct {
	Entry
	Score float64 `json:"score"`
}

// SearchRequest are the inputs to Engine.Search. Context carries the
// bodies of recent conversation messages (oldest first) and is optional:
// it nudges ranking but never replaces the explicit query.
type SearchRequest struct {
	Query        string
	Context      []string
	Personality  string
	Limit        int
	MinRelevance float64
}
