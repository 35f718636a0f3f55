// Package pattern defines the data model of the learning engine.
//
// A Pattern is a generalized unit of reusable engineering experience: a
// workflow, a decision, a code structure, an error and its fix, an
// architecture choice or a configuration recipe. Shared fields live on
// Pattern; the variant-specific attributes live in a Details payload whose
// concrete type is fixed by the pattern's Type.
//
// # Scores
//
// Three scores describe how much a pattern can be trusted:
//   - Confidence: slow-moving belief that the pattern is a correct generalization
//   - QualityScore: reliability plus popularity, used for ranking and filtering
//   - SuccessRate: successes / (successes + failures) from recorded usage
//
// All three are clamped to [0, 1].
//
// # Lifecycle
//
// Extractors create unpersisted candidates with New. The learning engine
// either merges a candidate into an existing pattern (Frequency++, a History
// entry appended) or inserts it. Usage outcomes mutate the scores in place.
// Deprecation is terminal but never deletes the pattern.
//
// # History
//
// History is a fixed-capacity ring buffer of lifecycle events. Appending to a
// full history evicts the oldest entry, so a pattern never carries more than
// HistoryCapacity entries.
package pattern
