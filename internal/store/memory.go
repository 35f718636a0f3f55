package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// MemoryStore keeps patterns in a map. Transactions work on a copy of the
// map that replaces the live one on commit; stored patterns are never
// mutated in place.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]*pattern.Pattern
	closed   bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[string]*pattern.Pattern)}
}

// Get implements Reader.
func (s *MemoryStore) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return getFrom(s.patterns, id)
}

// List implements Reader.
func (s *MemoryStore) List(ctx context.Context, q Query) ([]*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return listFrom(s.patterns, q), nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) ([]TypeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	byType := make(map[pattern.Type]*TypeStats)
	qualitySum := make(map[pattern.Type]float64)
	confidenceSum := make(map[pattern.Type]float64)
	active := make(map[pattern.Type]int)

	for _, p := range s.patterns {
		st, ok := byType[p.Type]
		if !ok {
			st = &TypeStats{Type: p.Type}
			byType[p.Type] = st
		}
		st.Count++
		st.TotalFrequency += p.Frequency
		st.TotalReuse += p.ReuseCount
		if p.Deprecated {
			st.Deprecated++
			continue
		}
		active[p.Type]++
		qualitySum[p.Type] += p.QualityScore
		confidenceSum[p.Type] += p.Confidence
	}

	out := make([]TypeStats, 0, len(byType))
	for t, st := range byType {
		if n := active[t]; n > 0 {
			st.AvgQuality = qualitySum[t] / float64(n)
			st.AvgConfidence = confidenceSum[t] / float64(n)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// WithTx implements Store. Transactions are serialized.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	start := time.Now()
	defer func() { recordTransaction(backendMemory, start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := make(map[string]*pattern.Pattern, len(s.patterns))
	for id, p := range s.patterns {
		snapshot[id] = p
	}

	if err := fn(&memoryTx{patterns: snapshot}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.patterns = snapshot
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memoryTx struct {
	patterns map[string]*pattern.Pattern
}

func (tx *memoryTx) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	return getFrom(tx.patterns, id)
}

func (tx *memoryTx) List(ctx context.Context, q Query) ([]*pattern.Pattern, error) {
	return listFrom(tx.patterns, q), nil
}

func (tx *memoryTx) Insert(ctx context.Context, p *pattern.Pattern) error {
	if err := validateForWrite(p); err != nil {
		return err
	}
	if _, exists := tx.patterns[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
	}
	tx.patterns[p.ID] = p.Clone()
	WritesTotal.WithLabelValues(backendMemory, "insert").Inc()
	return nil
}

func (tx *memoryTx) Update(ctx context.Context, p *pattern.Pattern) error {
	if err := validateForWrite(p); err != nil {
		return err
	}
	if _, exists := tx.patterns[p.ID]; !exists {
		return fmt.Errorf("%w: %s", pattern.ErrNotFound, p.ID)
	}
	tx.patterns[p.ID] = p.Clone()
	WritesTotal.WithLabelValues(backendMemory, "update").Inc()
	return nil
}

func getFrom(m map[string]*pattern.Pattern, id string) (*pattern.Pattern, error) {
	p, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pattern.ErrNotFound, id)
	}
	return p.Clone(), nil
}

func listFrom(m map[string]*pattern.Pattern, q Query) []*pattern.Pattern {
	out := make([]*pattern.Pattern, 0)
	for _, p := range m {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	SortPatterns(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, p := range out {
		out[i] = p.Clone()
	}
	return out
}
