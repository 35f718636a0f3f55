package learning

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Quality weights applied by RecordUsage.
const (
	qualitySuccessWeight   = 0.40
	qualityFrequencyWeight = 0.30
	qualityReuseWeight     = 0.30

	frequencySaturation = 20
	reuseSaturation     = 10

	confidenceStep = 0.05
)

// RecordUsage records one use of a pattern and its outcome, then recomputes
// the success rate, quality score and confidence. An unknown id returns an
// error wrapping pattern.ErrNotFound and changes nothing.
func (e *Engine) RecordUsage(ctx context.Context, id string, success bool) (_ *pattern.Pattern, err error) {
	ctx, span := e.tracer.Start(ctx, "learning.RecordUsage", trace.WithAttributes(
		attribute.String("pattern.id", id),
		attribute.Bool("usage.success", success),
	))
	defer func() { endSpan(span, err) }()

	var updated *pattern.Pattern
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		applyUsage(p, success, e.now())
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		e.logger.Warn("usage update failed",
			zap.String("pattern_id", id),
			zap.Bool("success", success),
			zap.Error(err))
		return nil, storageErr(err)
	}

	e.metrics.RecordUsage(ctx, updated.Type, success)
	e.logger.Info("pattern usage recorded",
		zap.String("pattern_id", id),
		zap.Bool("success", success),
		zap.Float64("success_rate", updated.SuccessRate),
		zap.Float64("quality_score", updated.QualityScore),
		zap.Float64("confidence", updated.Confidence))
	return updated, nil
}

func applyUsage(p *pattern.Pattern, success bool, now time.Time) {
	p.Frequency++
	p.ReuseCount++
	used := now
	p.LastUsed = &used
	if success {
		p.Usage.Successes++
	} else {
		p.Usage.Failures++
	}

	total := p.Usage.Successes + p.Usage.Failures
	p.SuccessRate = float64(p.Usage.Successes) / float64(total)
	p.QualityScore = QualityScore(p.SuccessRate, p.Frequency, p.ReuseCount)
	p.Confidence = adjustConfidence(p.Confidence, p.SuccessRate)
	p.UpdatedAt = now
	p.ClampScores()
}

// QualityScore combines success rate, frequency and reuse into [0, 1].
func QualityScore(successRate float64, frequency, reuse int) float64 {
	q := qualitySuccessWeight*successRate +
		qualityFrequencyWeight*math.Min(float64(frequency)/frequencySaturation, 1) +
		qualityReuseWeight*math.Min(float64(reuse)/reuseSaturation, 1)
	return pattern.Clamp01(q)
}

// adjustConfidence nudges confidence up for success rates above 0.7 and down
// for rates below 0.5.
func adjustConfidence(confidence, successRate float64) float64 {
	switch {
	case successRate > 0.7:
		confidence += confidenceStep * (successRate - 0.7)
	case successRate < 0.5:
		confidence -= confidenceStep * (0.5 - successRate)
	}
	return pattern.Clamp01(confidence)
}

// Deprecate retires a pattern. The pattern is kept with its reason and
// timestamp but no longer takes part in merging or recommendation.
// Deprecating an already deprecated pattern is a no-op.
func (e *Engine) Deprecate(ctx context.Context, id, reason string) (*pattern.Pattern, error) {
	var updated *pattern.Pattern
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.Deprecated {
			updated = p
			return nil
		}

		now := e.now()
		p.Deprecated = true
		p.Usage.DeprecationReason = reason
		p.Usage.DeprecatedAt = &now
		p.History.Append(pattern.HistoryEntry{
			At:     now,
			Event:  pattern.EventDeprecated,
			Reason: reason,
		})
		p.UpdatedAt = now
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	e.logger.Info("pattern deprecated",
		zap.String("pattern_id", id),
		zap.String("reason", reason))
	return updated, nil
}
