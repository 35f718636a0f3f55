package learning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Store merges or inserts each candidate, in input order, inside one
// transaction and returns the number of newly inserted patterns; merged
// candidates do not count. Existing patterns
// are listed once per type before any write of the batch, so candidates of
// the same call never merge into each other. Any failure rolls back the whole
// batch and returns an error wrapping ErrStorage.
func (e *Engine) Store(ctx context.Context, candidates []*pattern.Pattern) (int, error) {
	inserted, _, err := e.storeBatch(ctx, candidates)
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

type outcome struct {
	typ    pattern.Type
	merged bool
}

func (e *Engine) storeBatch(ctx context.Context, candidates []*pattern.Pattern) (inserted, merged int, err error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}
	for i, c := range candidates {
		if c == nil {
			return 0, 0, fmt.Errorf("%w: candidate %d is nil", ErrStorage, i)
		}
		if err := c.Validate(); err != nil {
			return 0, 0, fmt.Errorf("%w: candidate %d: %w", ErrStorage, i, err)
		}
	}

	var outcomes []outcome
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		outcomes = outcomes[:0]
		snapshot, err := e.snapshot(ctx, tx, candidates)
		if err != nil {
			return err
		}

		now := e.now()
		for _, c := range candidates {
			target, sim := e.bestMatch(c, snapshot[c.Type])
			if target != nil {
				mergeInto(target, c, sim, now)
				if err := tx.Update(ctx, target); err != nil {
					return fmt.Errorf("updating pattern %s: %w", target.ID, err)
				}
				e.logger.Debug("merged candidate",
					zap.String("pattern_id", target.ID),
					zap.String("candidate_id", c.ID),
					zap.Float64("similarity", sim),
					zap.Int("frequency", target.Frequency))
				outcomes = append(outcomes, outcome{typ: c.Type, merged: true})
				continue
			}

			p := newStored(c, now)
			if err := tx.Insert(ctx, p); err != nil {
				return fmt.Errorf("inserting pattern %s: %w", p.ID, err)
			}
			e.logger.Debug("inserted pattern",
				zap.String("pattern_id", p.ID),
				zap.String("pattern_type", string(p.Type)))
			outcomes = append(outcomes, outcome{typ: c.Type})
		}
		return nil
	})
	if err != nil {
		e.logger.Error("pattern batch rolled back",
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
		return 0, 0, storageErr(err)
	}

	for _, o := range outcomes {
		if o.merged {
			merged++
		} else {
			inserted++
		}
		e.metrics.RecordStored(ctx, o.typ, o.merged)
	}
	return inserted, merged, nil
}

// snapshot lists the merge targets for every candidate type before the batch
// writes anything.
func (e *Engine) snapshot(ctx context.Context, tx store.Tx, candidates []*pattern.Pattern) (map[pattern.Type][]*pattern.Pattern, error) {
	out := make(map[pattern.Type][]*pattern.Pattern)
	for _, c := range candidates {
		if _, ok := out[c.Type]; ok {
			continue
		}
		existing, err := tx.List(ctx, store.Query{
			Type:  c.Type,
			Limit: e.cfg.MergeCandidateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s patterns: %w", c.Type, err)
		}
		if existing == nil {
			existing = []*pattern.Pattern{}
		}
		out[c.Type] = existing
	}
	return out, nil
}

// bestMatch returns the most similar existing pattern at or above the merge
// threshold. Ties prefer higher quality, then the lower pattern id.
func (e *Engine) bestMatch(c *pattern.Pattern, existing []*pattern.Pattern) (*pattern.Pattern, float64) {
	var best *pattern.Pattern
	bestSim := 0.0
	for _, p := range existing {
		sim := similarity.Score(c.Template, p.Template)
		if sim < e.cfg.MinSimilarityThreshold {
			continue
		}
		if best == nil || better(sim, p, bestSim, best) {
			best, bestSim = p, sim
		}
	}
	return best, bestSim
}

func better(sim float64, p *pattern.Pattern, bestSim float64, best *pattern.Pattern) bool {
	if sim != bestSim {
		return sim > bestSim
	}
	if p.QualityScore != best.QualityScore {
		return p.QualityScore > best.QualityScore
	}
	return p.ID < best.ID
}

func mergeInto(target, c *pattern.Pattern, sim float64, now time.Time) {
	target.Frequency++
	target.Version++
	target.History.Append(pattern.HistoryEntry{
		At:         now,
		Event:      pattern.EventMerged,
		MergedFrom: c.ID,
		Template:   pattern.Truncate(c.Template, pattern.MaxHistoryTemplateLength),
		Confidence: c.Confidence,
		Similarity: sim,
		SessionID:  c.SourceSessionID,
	})
	target.UpdatedAt = now
}

// newStored prepares a candidate for insertion with fresh usage metadata.
func newStored(c *pattern.Pattern, now time.Time) *pattern.Pattern {
	p := c.Clone()
	p.ReuseCount = 0
	p.SuccessRate = 0
	p.LastUsed = nil
	p.Usage = pattern.Usage{}
	p.Deprecated = false
	p.Version = 1
	p.History = pattern.History{}
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ClampScores()
	return p
}
