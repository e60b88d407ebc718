// Package conversation owns the durable per-thread message log and builds
// token-bounded context windows from it.
//
// A Store persists threads and their append-only messages in PostgreSQL.
// Appending a message is a single transaction: the thread row is locked,
// the message inserted, and the thread's message_count, last_message_at and
// (when applicable) title updated together, so readers never observe a
// thread whose counters disagree with its messages.
//
// An Assembler turns a thread's history into a bounded context window using
// a pluggable TokenEstimator. The default estimator is a deliberate
// approximation (4 characters per token) so the core stays independent of
// any model's vocabulary.
package conversation
