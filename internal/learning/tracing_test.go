package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/patternd/internal/extraction"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
	"github.com/fyrsmithlabs/patternd/internal/store"
	"github.com/fyrsmithlabs/patternd/internal/telemetry"
)

func TestEngine_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	pipeline, err := extraction.NewPipeline(extraction.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	st := store.NewMemoryStore()
	e := newTestEngine(t, st, WithPipeline(pipeline), WithTracer(tt.Tracer(instrumentationName)))
	ctx := context.Background()

	res, err := e.Learn(ctx, &session.Record{
		SessionID: "sess-trace",
		Decisions: []session.Decision{{Decision: "Use PostgreSQL", Rationale: "JSON support"}},
	})
	require.NoError(t, err)
	tt.AssertSpanExists(t, "learning.Learn")
	tt.AssertSpanAttribute(t, "learning.Learn", "session.id", "sess-trace")
	tt.AssertSpanAttribute(t, "learning.Learn", "patterns.inserted", int64(res.Inserted))

	recs, err := e.Recommend(ctx, Request{Context: "postgres", MinQuality: QualityAtLeast(0.01)})
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	tt.AssertSpanAttribute(t, "learning.Recommend", "recommend.results", int64(len(recs)))

	_, err = e.RecordUsage(ctx, "missing", true)
	require.ErrorIs(t, err, pattern.ErrNotFound)
	span := tt.SpanByName("learning.RecordUsage")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	tt.AssertSpanAttribute(t, "learning.RecordUsage", "pattern.id", "missing")
}
