package learning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// failingStore wraps a Store so that the Nth insert of a transaction fails.
type failingStore struct {
	store.Store
	failOnInsert int
}

func (s *failingStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: s.failOnInsert})
	})
}

type failingTx struct {
	store.Tx
	failOn  int
	inserts int
}

func (tx *failingTx) Insert(ctx context.Context, p *pattern.Pattern) error {
	tx.inserts++
	if tx.inserts == tx.failOn {
		return errors.New("disk full")
	}
	return tx.Tx.Insert(ctx, p)
}

func TestEngine_Store_InsertsNewPatterns(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)

	c := workflow("clone repository -> install dependencies -> run tests")
	c.ReuseCount = 4
	c.SuccessRate = 0.9
	c.Usage.Successes = 3

	n, err := e.Store(context.Background(), []*pattern.Pattern{c})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Frequency)
	assert.Equal(t, 1, got.Version)
	assert.Zero(t, got.ReuseCount)
	assert.Zero(t, got.SuccessRate)
	assert.Zero(t, got.Usage.Successes)
	assert.Nil(t, got.LastUsed)
	assert.Equal(t, fixedNow, got.CreatedAt)
}

func TestEngine_Store_MergesSimilarTemplate(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)

	existing := workflow("clone repository -> install dependencies -> run tests")
	seed(t, st, existing)

	c := workflow("clone repository -> install dependencies -> run tests")
	c.SourceSessionID = "sess-2"
	c.Confidence = 0.6

	n, err := e.Store(context.Background(), []*pattern.Pattern{c})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all := listAll(t, st)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, 2, got.Frequency)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, fixedNow, got.UpdatedAt)

	last, ok := got.History.Last()
	require.True(t, ok)
	assert.Equal(t, pattern.EventMerged, last.Event)
	assert.Equal(t, c.ID, last.MergedFrom)
	assert.Equal(t, "sess-2", last.SessionID)
	assert.InDelta(t, 1.0, last.Similarity, 1e-9)
	assert.InDelta(t, 0.6, last.Confidence, 1e-9)
	assert.Equal(t, c.Template, last.Template)
}

func TestEngine_Store_DissimilarInserts(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)
	seed(t, st, workflow("clone repository -> install dependencies -> run tests"))

	_, err := e.Store(context.Background(), []*pattern.Pattern{workflow("rotate credentials")})
	require.NoError(t, err)
	assert.Len(t, listAll(t, st), 2)
}

func TestEngine_Store_DifferentTypesNeverMerge(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)
	seed(t, st, workflow("use postgres for storage"))

	_, err := e.Store(context.Background(), []*pattern.Pattern{decision("use postgres for storage")})
	require.NoError(t, err)
	assert.Len(t, listAll(t, st), 2)
}

func TestEngine_Store_DeprecatedNotMerged(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)
	old := workflow("build image -> push image")
	old.Deprecated = true
	seed(t, st, old)

	_, err := e.Store(context.Background(), []*pattern.Pattern{workflow("build image -> push image")})
	require.NoError(t, err)

	all := listAll(t, st)
	require.Len(t, all, 2)
	got, err := st.Get(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Frequency)
}

func TestEngine_Store_StoreTwice(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)

	var counts []int
	for i := 0; i < 2; i++ {
		n, err := e.Store(context.Background(), []*pattern.Pattern{decision("Decision: Use Redis | Rationale: caching")})
		require.NoError(t, err)
		counts = append(counts, n)
	}
	assert.Equal(t, []int{1, 0}, counts)

	all := listAll(t, st)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Frequency)
}

func TestEngine_Store_BatchDoesNotSelfMerge(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)

	n, err := e.Store(context.Background(), []*pattern.Pattern{
		workflow("lint -> test -> build"),
		workflow("lint -> test -> build"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, listAll(t, st), 2)
}

func TestEngine_Store_RepeatedMergeInOneBatch(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)
	existing := workflow("lint -> test -> build")
	seed(t, st, existing)

	n, err := e.Store(context.Background(), []*pattern.Pattern{
		workflow("lint -> test -> build"),
		workflow("lint -> test -> build"),
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := st.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Frequency)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, 2, got.History.Len())
}

func TestEngine_Store_TieBreak(t *testing.T) {
	t.Run("higher quality wins", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st)
		low := workflow("deploy service")
		low.ID = "aaa"
		low.QualityScore = 0.3
		high := workflow("deploy service")
		high.ID = "bbb"
		high.QualityScore = 0.7
		seed(t, st, low, high)

		_, err := e.Store(context.Background(), []*pattern.Pattern{workflow("deploy service")})
		require.NoError(t, err)

		got, err := st.Get(context.Background(), "bbb")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Frequency)
	})

	t.Run("lower id wins on equal quality", func(t *testing.T) {
		st := store.NewMemoryStore()
		e := newTestEngine(t, st)
		a := workflow("deploy service")
		a.ID = "aaa"
		b := workflow("deploy service")
		b.ID = "bbb"
		seed(t, st, b, a)

		_, err := e.Store(context.Background(), []*pattern.Pattern{workflow("deploy service")})
		require.NoError(t, err)

		got, err := st.Get(context.Background(), "aaa")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Frequency)
	})
}

func TestEngine_Store_Atomic(t *testing.T) {
	mem := store.NewMemoryStore()
	st := &failingStore{Store: mem, failOnInsert: 2}
	e := newTestEngine(t, st)

	existing := decision("Decision: Use Kafka | Rationale: throughput")
	seed(t, mem, existing)

	_, err := e.Store(context.Background(), []*pattern.Pattern{
		decision("Decision: Use Kafka | Rationale: throughput"),
		workflow("first insert"),
		workflow("a very different second insert that fails"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	all := listAll(t, mem)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].Frequency)
	assert.Equal(t, 1, all[0].Version)
}

func TestEngine_Store_AtomicSQLite(t *testing.T) {
	db, err := store.OpenSQLite(t.TempDir()+"/patterns.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := newTestEngine(t, &failingStore{Store: db, failOnInsert: 2})
	_, err = e.Store(context.Background(), []*pattern.Pattern{
		workflow("first insert"),
		workflow("a very different second insert that fails"),
	})
	require.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, listAll(t, db))
}

func TestEngine_Store_InvalidCandidate(t *testing.T) {
	st := store.NewMemoryStore()
	e := newTestEngine(t, st)

	bad := workflow("valid template")
	bad.Template = ""

	_, err := e.Store(context.Background(), []*pattern.Pattern{workflow("ok"), bad})
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, pattern.ErrEmptyTemplate)
	assert.Empty(t, listAll(t, st))

	_, err = e.Store(context.Background(), []*pattern.Pattern{nil})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestEngine_Store_Empty(t *testing.T) {
	e := newTestEngine(t, nil)
	n, err := e.Store(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
