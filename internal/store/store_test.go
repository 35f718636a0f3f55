package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

type backendFactory struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backendFactory {
	return []backendFactory{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite", open: func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "patterns.db"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func newTestPattern(id string, details pattern.Details, template string, quality float64, freq int) *pattern.Pattern {
	p := pattern.New(details, "name "+id, "description "+id, template)
	p.ID = id
	p.QualityScore = quality
	p.Frequency = freq
	return p
}

func decision(id string, quality float64, freq int) *pattern.Pattern {
	return newTestPattern(id, &pattern.DecisionDetails{ChosenOption: id}, "Decision: "+id, quality, freq)
}

func insertAll(t *testing.T, s Store, ps ...*pattern.Pattern) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx Tx) error {
		for _, p := range ps {
			if err := tx.Insert(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func ids(ps []*pattern.Pattern) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func allVariants() []*pattern.Pattern {
	used := time.Now().UTC().Add(-time.Hour)
	wf := newTestPattern("wf", &pattern.WorkflowDetails{
		Steps:             []string{"Create schema", "Run migration"},
		Conditions:        map[string]string{"step_2": "If tests pass"},
		EstimatedDuration: 90 * time.Second,
	}, "Create schema -> Run migration", 0.4, 1)
	wf.LastUsed = &used
	wf.SetTags("database", "workflow")
	wf.History.Append(pattern.HistoryEntry{At: used, Event: pattern.EventMerged, MergedFrom: "x", Similarity: 0.9})

	return []*pattern.Pattern{
		wf,
		newTestPattern("dec", &pattern.DecisionDetails{
			Options: []string{"PostgreSQL", "MySQL"}, ChosenOption: "PostgreSQL", Rationale: "JSON",
			AlternativesConsidered: []string{"MySQL"}, Context: map[string]string{"session_id": "s1"},
		}, "Decision: PostgreSQL", 0.45, 1),
		newTestPattern("code", &pattern.CodeDetails{
			Language: "go", Framework: "cobra", StructureType: "module", Files: []string{"cmd/main.go"},
		}, "Code: go", 0.4, 1),
		newTestPattern("err", &pattern.ErrorDetails{
			ErrorType: "timeout", ErrorMessage: "request timed out", Solution: "raise timeout", Resolved: true,
		}, "Error: timeout", 0.45, 1),
		newTestPattern("arch", &pattern.ArchitectureDetails{
			ArchitectureType: "microservices", Components: []string{"auth", "api"},
		}, "Architecture: microservices", 0.4, 1),
		newTestPattern("cfg", &pattern.ConfigurationDetails{
			ConfigType: "docker", Environment: "production", Secrets: []string{"API_KEY"},
			Settings: map[string]string{"PORT": "8080"},
		}, "Configuration: docker", 0.4, 1),
	}
}

func TestStore_RoundTripsEveryVariant(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			want := allVariants()
			insertAll(t, s, want...)

			for _, w := range want {
				got, err := s.Get(ctx, w.ID)
				require.NoError(t, err, w.ID)
				assert.Equal(t, w.Type, got.Type)
				assert.Equal(t, w.Template, got.Template)
				assert.Equal(t, w.Details, got.Details)
				assert.Equal(t, w.Tags, got.Tags)
				assert.Equal(t, w.History.Len(), got.History.Len())
				assert.True(t, w.CreatedAt.Equal(got.CreatedAt))
				if w.LastUsed != nil {
					require.NotNil(t, got.LastUsed)
					assert.True(t, w.LastUsed.Equal(*got.LastUsed))
				} else {
					assert.Nil(t, got.LastUsed)
				}
			}
		})
	}
}

func TestStore_NotFoundAndDuplicate(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, pattern.ErrNotFound)

			insertAll(t, s, decision("a", 0.5, 1))

			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.Insert(ctx, decision("a", 0.5, 1))
			})
			assert.ErrorIs(t, err, ErrDuplicate)

			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.Update(ctx, decision("ghost", 0.5, 1))
			})
			assert.ErrorIs(t, err, pattern.ErrNotFound)

			err = s.WithTx(ctx, func(tx Tx) error {
				bad := decision("b", 0.5, 1)
				bad.Template = ""
				return tx.Insert(ctx, bad)
			})
			assert.ErrorIs(t, err, pattern.ErrEmptyTemplate)
		})
	}
}

func TestStore_ListOrderingAndFilters(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			deprecated := decision("dep", 0.99, 9)
			deprecated.Deprecated = true
			wf := newTestPattern("wf", &pattern.WorkflowDetails{Steps: []string{"a", "b"}}, "a -> b", 0.7, 1)

			insertAll(t, s,
				decision("c", 0.6, 2),
				decision("b", 0.8, 1),
				decision("a", 0.6, 2),
				decision("d", 0.6, 5),
				decision("low", 0.2, 1),
				deprecated,
				wf,
			)

			all, err := s.List(ctx, Query{})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "wf", "d", "a", "c", "low"}, ids(all))

			decisions, err := s.List(ctx, Query{Type: pattern.TypeDecision, MinQuality: 0.5})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "d", "a", "c"}, ids(decisions))

			limited, err := s.List(ctx, Query{Type: pattern.TypeDecision, Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "d"}, ids(limited))

			withDeprecated, err := s.List(ctx, Query{IncludeDeprecated: true, Limit: 1})
			require.NoError(t, err)
			assert.Equal(t, []string{"dep"}, ids(withDeprecated))

			none, err := s.List(ctx, Query{MinQuality: 0.999})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			insertAll(t, s, decision("existing", 0.5, 1))

			boom := errors.New("boom")
			err := s.WithTx(ctx, func(tx Tx) error {
				require.NoError(t, tx.Insert(ctx, decision("new", 0.5, 1)))

				p, err := tx.Get(ctx, "existing")
				require.NoError(t, err)
				p.Frequency = 42
				require.NoError(t, tx.Update(ctx, p))

				// The transaction observes its own writes.
				seen, err := tx.List(ctx, Query{})
				require.NoError(t, err)
				assert.Len(t, seen, 2)
				got, err := tx.Get(ctx, "existing")
				require.NoError(t, err)
				assert.Equal(t, 42, got.Frequency)

				return boom
			})
			assert.ErrorIs(t, err, boom)

			_, err = s.Get(ctx, "new")
			assert.ErrorIs(t, err, pattern.ErrNotFound)
			existing, err := s.Get(ctx, "existing")
			require.NoError(t, err)
			assert.Equal(t, 1, existing.Frequency)

			all, err := s.List(ctx, Query{IncludeDeprecated: true})
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			p := decision("a", 0.5, 1)
			insertAll(t, s, p)

			p.Frequency = 99
			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 1, got.Frequency)

			got.Frequency = 77
			got.Details.(*pattern.DecisionDetails).ChosenOption = "mutated"
			again, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 1, again.Frequency)
			assert.Equal(t, "a", again.Details.(*pattern.DecisionDetails).ChosenOption)
		})
	}
}

func TestStore_Stats(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			empty, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			dep := decision("c", 0.1, 4)
			dep.Deprecated = true
			a := decision("a", 0.4, 2)
			a.ReuseCount = 3
			insertAll(t, s, a, decision("b", 0.6, 1), dep,
				newTestPattern("wf", &pattern.WorkflowDetails{Steps: []string{"x", "y"}}, "x -> y", 0.5, 1))

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			require.Len(t, stats, 2)

			assert.Equal(t, pattern.TypeDecision, stats[0].Type)
			assert.Equal(t, 3, stats[0].Count)
			assert.Equal(t, 1, stats[0].Deprecated)
			assert.InDelta(t, 0.5, stats[0].AvgQuality, 1e-9)
			assert.InDelta(t, pattern.DefaultConfidence, stats[0].AvgConfidence, 1e-9)
			assert.Equal(t, 7, stats[0].TotalFrequency)
			assert.Equal(t, 3, stats[0].TotalReuse)

			assert.Equal(t, pattern.TypeWorkflow, stats[1].Type)
			assert.Equal(t, 1, stats[1].Count)
		})
	}
}

func TestQueryMatches(t *testing.T) {
	p := decision("a", 0.5, 1)
	assert.True(t, Query{}.Matches(p))
	assert.True(t, Query{Type: pattern.TypeDecision, MinQuality: 0.5}.Matches(p))
	assert.False(t, Query{Type: pattern.TypeCode}.Matches(p))
	assert.False(t, Query{MinQuality: 0.51}.Matches(p))

	p.Deprecated = true
	assert.False(t, Query{}.Matches(p))
	assert.True(t, Query{IncludeDeprecated: true}.Matches(p))
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.List(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Stats(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	err = s.WithTx(context.Background(), func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
