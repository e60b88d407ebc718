// Package knowledge ranks a knowledge corpus against a query, optional
// conversation context, and a named personality profile.
//
// Candidate retrieval is PostgreSQL full-text search; ranking is
// multi-signal: the native text rank is shaped by source priority, entry
// length, and a per-personality strategy, then nudged by project affinity,
// context-keyword matches, historical access counts, and the entry's
// stored relevance prior. The engine holds no state beyond its result
// cache — it is a deterministic function of corpus state plus inputs at
// the moment of computation.
//
// A failed search degrades to an empty result set rather than failing the
// caller; a failed access-count update is logged and swallowed.
package knowledge
