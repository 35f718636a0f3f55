package learning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/patternd/internal/learning"

// Metrics holds the learning engine instruments.
type Metrics struct {
	meter  metric.Meter
	logger *zap.Logger

	stored             metric.Int64Counter
	usage              metric.Int64Counter
	extractionFailures metric.Int64Counter
	recommendDuration  metric.Float64Histogram
	recommendResults   metric.Int64Histogram
}

// NewMetrics creates Metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.stored, err = m.meter.Int64Counter(
		"patternd.learning.patterns_stored_total",
		metric.WithDescription("Candidates stored, labeled by pattern type and outcome (inserted, merged)"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		m.logger.Warn("failed to create stored counter", zap.Error(err))
	}

	m.usage, err = m.meter.Int64Counter(
		"patternd.learning.usage_events_total",
		metric.WithDescription("Usage outcomes recorded against patterns"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create usage counter", zap.Error(err))
	}

	m.extractionFailures, err = m.meter.Int64Counter(
		"patternd.learning.extraction_failures_total",
		metric.WithDescription("Extractors that failed while learning from a session"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		m.logger.Warn("failed to create extraction failures counter", zap.Error(err))
	}

	m.recommendDuration, err = m.meter.Float64Histogram(
		"patternd.learning.recommend_duration_seconds",
		metric.WithDescription("Duration of recommendation requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn("failed to create recommend duration histogram", zap.Error(err))
	}

	m.recommendResults, err = m.meter.Int64Histogram(
		"patternd.learning.recommend_results",
		metric.WithDescription("Number of recommendations returned per request"),
		metric.WithUnit("{pattern}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50),
	)
	if err != nil {
		m.logger.Warn("failed to create recommend results histogram", zap.Error(err))
	}
}

// RecordStored counts one stored candidate. merged selects the outcome label.
func (m *Metrics) RecordStored(ctx context.Context, t pattern.Type, merged bool) {
	if m == nil || m.stored == nil {
		return
	}
	outcome := "inserted"
	if merged {
		outcome = "merged"
	}
	m.stored.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pattern_type", string(t)),
		attribute.String("outcome", outcome),
	))
}

// RecordUsage counts one usage outcome.
func (m *Metrics) RecordUsage(ctx context.Context, t pattern.Type, success bool) {
	if m == nil || m.usage == nil {
		return
	}
	m.usage.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pattern_type", string(t)),
		attribute.Bool("success", success),
	))
}

// RecordExtractionFailure counts one failed extractor.
func (m *Metrics) RecordExtractionFailure(ctx context.Context, extractor string) {
	if m == nil || m.extractionFailures == nil {
		return
	}
	m.extractionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("extractor", extractor)))
}

// RecordRecommend records the latency and result count of one request.
func (m *Metrics) RecordRecommend(ctx context.Context, duration time.Duration, results int) {
	if m == nil {
		return
	}
	if m.recommendDuration != nil {
		m.recommendDuration.Record(ctx, duration.Seconds())
	}
	if m.recommendResults != nil {
		m.recommendResults.Record(ctx, int64(results))
	}
}
