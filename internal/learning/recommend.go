package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
	"github.com/fyrsmithlabs/patternd/internal/store"
)

// Relevance weights.
const (
	contextWeight = 0.40
	qualityWeight = 0.25
	successWeight = 0.20
	recencyWeight = 0.15
)

// DefaultJustification is used when no scoring threshold is reached.
const DefaultJustification = "matches criteria"

// Request describes the work a recommendation is for.
type Request struct {
	// Context is the free-text task description.
	Context string

	// Type restricts recommendations to one pattern type; empty means all.
	Type pattern.Type

	// MinQuality excludes lower quality patterns; nil uses the configured
	// default. An explicit 0 admits every pattern.
	MinQuality *float64

	// Limit caps the results; 0 uses the configured default.
	Limit int
}

// QualityAtLeast returns a MinQuality value for Request.
func QualityAtLeast(q float64) *float64 {
	return &q
}

// Recommendation is a scored pattern.
type Recommendation struct {
	Pattern           *pattern.Pattern `json:"pattern"`
	Relevance         float64          `json:"relevance_score"`
	ContextSimilarity float64          `json:"context_similarity"`
	Recency           float64          `json:"recency_score"`
	Justification     string           `json:"justification"`
}

// Recommend ranks non-deprecated patterns against req. The candidate pool is
// the best patterns by quality and frequency; each is scored by context
// similarity, quality, success rate and recency.
func (e *Engine) Recommend(ctx context.Context, req Request) (_ []Recommendation, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "learning.Recommend")
	defer func() { endSpan(span, err) }()

	if req.Type != "" && !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidType, req.Type)
	}
	minQuality := e.cfg.DefaultMinQuality
	if req.MinQuality != nil {
		minQuality = pattern.Clamp01(*req.MinQuality)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	pool, err := e.store.List(ctx, store.Query{
		Type:       req.Type,
		MinQuality: minQuality,
		Limit:      e.cfg.RecommendPoolLimit,
	})
	if err != nil {
		return nil, storageErr(err)
	}

	now := e.now()
	recs := make([]Recommendation, 0, len(pool))
	for _, p := range pool {
		recs = append(recs, e.score(p, req.Context, now))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Relevance != recs[j].Relevance {
			return recs[i].Relevance > recs[j].Relevance
		}
		return recs[i].Pattern.ID < recs[j].Pattern.ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}

	span.SetAttributes(
		attribute.String("pattern.type", string(req.Type)),
		attribute.Int("recommend.pool", len(pool)),
		attribute.Int("recommend.results", len(recs)),
	)
	e.metrics.RecordRecommend(ctx, time.Since(start), len(recs))
	e.logger.Debug("recommendations computed",
		zap.String("pattern_type", string(req.Type)),
		zap.Float64("min_quality", minQuality),
		zap.Int("pool", len(pool)),
		zap.Int("results", len(recs)))
	return recs, nil
}

func (e *Engine) score(p *pattern.Pattern, query string, now time.Time) Recommendation {
	ctxSim := similarity.Score(query, p.Name+" "+p.Description+" "+p.Template)
	recency := e.recency(p, now)
	relevance := contextWeight*ctxSim +
		qualityWeight*p.QualityScore +
		successWeight*p.SuccessRate +
		recencyWeight*recency

	return Recommendation{
		Pattern:           p,
		Relevance:         relevance,
		ContextSimilarity: ctxSim,
		Recency:           recency,
		Justification:     Justify(ctxSim, p.QualityScore, p.SuccessRate, recency),
	}
}

// recency decays linearly from 1 at last use to 0 after the recency window.
func (e *Engine) recency(p *pattern.Pattern, now time.Time) float64 {
	if p.LastUsed == nil {
		return 0
	}
	age := now.Sub(*p.LastUsed)
	if age < 0 {
		age = 0
	}
	r := 1 - float64(age)/float64(e.cfg.RecencyWindow)
	if r < 0 {
		return 0
	}
	return r
}

// Justify explains a recommendation from its component scores.
func Justify(contextSimilarity, quality, successRate, recency float64) string {
	var parts []string
	switch {
	case contextSimilarity > 0.7:
		parts = append(parts, "highly relevant to the current context")
	case contextSimilarity > 0.5:
		parts = append(parts, "relevant to the current context")
	}
	switch {
	case quality > 0.8:
		parts = append(parts, "high quality")
	case quality > 0.6:
		parts = append(parts, "proven")
	}
	switch {
	case successRate > 0.8:
		parts = append(parts, fmt.Sprintf("highly reliable (%.0f%% success rate)", successRate*100))
	case successRate > 0.6:
		parts = append(parts, fmt.Sprintf("reliable (%.0f%% success rate)", successRate*100))
	}
	if recency > 0.7 {
		parts = append(parts, "recently used")
	}
	if len(parts) == 0 {
		return DefaultJustification
	}
	return strings.Join(parts, ", ")
}

// Match is a similarity search hit.
type Match struct {
	Pattern    *pattern.Pattern `json:"pattern"`
	Similarity float64          `json:"similarity"`
}

// FindSimilar returns non-deprecated patterns whose templates resemble text,
// most similar first. An empty t searches every type; a limit of 0 uses the
// configured default.
func (e *Engine) FindSimilar(ctx context.Context, text string, t pattern.Type, limit int) ([]Match, error) {
	if t != "" && !t.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidType, t)
	}
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	all, err := e.store.List(ctx, store.Query{Type: t})
	if err != nil {
		return nil, storageErr(err)
	}

	matches := make([]Match, 0, len(all))
	for _, p := range all {
		sim := similarity.Score(text, p.Template)
		if sim <= 0 {
			continue
		}
		matches = append(matches, Match{Pattern: p, Similarity: sim})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Pattern.ID < matches[j].Pattern.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
