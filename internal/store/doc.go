// Package store persists patterns.
//
// Two backends implement Store: SQLiteStore (modernc.org/sqlite, pure Go)
// for durable use and MemoryStore for tests and ephemeral runs. Both give
// WithTx all-or-nothing semantics and return deep copies, so callers may
// mutate what they read without affecting stored state.
//
// List results are always ordered by quality_score descending, then
// frequency descending, then pattern_id ascending.
package store
