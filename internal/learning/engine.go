// Package learning merges extracted candidates into the pattern store,
// tracks pattern performance and recommends patterns for new work.
package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/extraction"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Errors returned by the Engine.
var (
	// ErrStorage wraps any store failure; the batch it occurred in is rolled back.
	ErrStorage = errors.New("pattern storage failed")

	// ErrNoPipeline is returned by Learn when the engine has no extraction pipeline.
	ErrNoPipeline = errors.New("no extraction pipeline configured")
)

// Engine is the learning facade over a pattern store.
type Engine struct {
	store    store.Store
	pipeline *extraction.Pipeline
	cfg      Config
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPipeline sets the extraction pipeline used by Learn.
func WithPipeline(p *extraction.Pipeline) EngineOption {
	return func(e *Engine) {
		e.pipeline = p
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer used for Learn, Recommend and RecordUsage spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine over st.
func NewEngine(st store.Store, cfg Config, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("pattern store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid learning config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(logger)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(instrumentationName)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// LearnResult summarizes one Learn call.
type LearnResult struct {
	SessionID  string
	Candidates int
	Inserted   int
	Merged     int
	Redactions int
	Failures   []extraction.Failure
}

// Learn extracts candidates from rec and stores them as one batch.
// When every extractor fails the error wraps extraction.ErrAllExtractorsFailed
// and nothing is stored.
func (e *Engine) Learn(ctx context.Context, rec *session.Record) (_ *LearnResult, err error) {
	ctx, span := e.tracer.Start(ctx, "learning.Learn")
	defer func() { endSpan(span, err) }()

	if e.pipeline == nil {
		return nil, ErrNoPipeline
	}

	res, err := e.pipeline.Extract(ctx, rec)
	if res != nil {
		for _, f := range res.Failures {
			e.metrics.RecordExtractionFailure(ctx, f.Extractor)
		}
	}
	if err != nil {
		return nil, err
	}

	out := &LearnResult{
		SessionID:  res.SessionID,
		Candidates: len(res.Candidates),
		Redactions: res.Redactions,
		Failures:   res.Failures,
	}
	out.Inserted, out.Merged, err = e.storeBatch(ctx, res.Candidates)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("session.id", out.SessionID),
		attribute.Int("patterns.candidates", out.Candidates),
		attribute.Int("patterns.inserted", out.Inserted),
		attribute.Int("patterns.merged", out.Merged),
	)
	e.logger.Info("learned from session",
		zap.String("session_id", out.SessionID),
		zap.Int("candidates", out.Candidates),
		zap.Int("inserted", out.Inserted),
		zap.Int("merged", out.Merged),
		zap.Int("extractor_failures", len(out.Failures)))
	return out, nil
}

// Get returns the pattern with id.
func (e *Engine) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return p, nil
}

// History returns the version history of a pattern, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]pattern.HistoryEntry, error) {
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.History.Entries(), nil
}

// Stats returns per-type aggregates.
func (e *Engine) Stats(ctx context.Context) ([]store.TypeStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return stats, nil
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// storageErr wraps store failures in ErrStorage. Not-found errors pass
// through unchanged.
func storageErr(err error) error {
	if err == nil || errors.Is(err, pattern.ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
