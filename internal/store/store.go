package store

import (
	"context"
	"errors"
	"sort"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// Errors returned by Store implementations. Missing patterns are reported
// with pattern.ErrNotFound.
var (
	ErrClosed    = errors.New("store is closed")
	ErrDuplicate = errors.New("pattern already exists")
	ErrCorrupt   = errors.New("stored pattern is corrupt")
)

// Query selects patterns for List.
type Query struct {
	// Type restricts results to one pattern type; empty means all types.
	Type pattern.Type

	// MinQuality excludes patterns with a lower quality score.
	MinQuality float64

	// Limit caps the number of results; 0 means no limit.
	Limit int

	// IncludeDeprecated also returns deprecated patterns.
	IncludeDeprecated bool
}

// TypeStats aggregates the patterns of one type. Averages cover active
// (non-deprecated) patterns only.
type TypeStats struct {
	Type           pattern.Type `json:"pattern_type"`
	Count          int          `json:"count"`
	Deprecated     int          `json:"deprecated"`
	AvgQuality     float64      `json:"avg_quality"`
	AvgConfidence  float64      `json:"avg_confidence"`
	TotalFrequency int          `json:"total_frequency"`
	TotalReuse     int          `json:"total_reuse"`
}

// Reader reads patterns.
type Reader interface {
	// Get returns the pattern with id, or pattern.ErrNotFound.
	Get(ctx context.Context, id string) (*pattern.Pattern, error)

	// List returns the patterns selected by q in canonical order.
	List(ctx context.Context, q Query) ([]*pattern.Pattern, error)
}

// Tx is a unit of work. Reads observe the transaction's own writes.
type Tx interface {
	Reader

	// Insert adds a new pattern; ErrDuplicate if the id exists.
	Insert(ctx context.Context, p *pattern.Pattern) error

	// Update replaces an existing pattern; pattern.ErrNotFound if absent.
	Update(ctx context.Context, p *pattern.Pattern) error
}

// Store is a pattern repository.
type Store interface {
	Reader

	// Stats returns per-type aggregates ordered by type.
	Stats(ctx context.Context) ([]TypeStats, error)

	// WithTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn must use only the Tx it is
	// given.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Close releases resources.
	Close() error
}

// Ensure backends implement Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Matches reports whether p is selected by q, ignoring Limit.
func (q Query) Matches(p *pattern.Pattern) bool {
	if !q.IncludeDeprecated && p.Deprecated {
		return false
	}
	if q.Type != "" && p.Type != q.Type {
		return false
	}
	return p.QualityScore >= q.MinQuality
}

// SortPatterns orders patterns by quality desc, frequency desc, id asc.
func SortPatterns(ps []*pattern.Pattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.ID < b.ID
	})
}

func validateForWrite(p *pattern.Pattern) error {
	if p == nil {
		return pattern.ErrInvalidPattern
	}
	return p.Validate()
}
