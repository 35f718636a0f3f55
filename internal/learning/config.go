package learning

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the thresholds and limits of the merge, usage and
// recommendation stages.
type Config struct {
	// MinSimilarityThreshold is the template similarity at or above which a
	// candidate merges into an existing pattern.
	MinSimilarityThreshold float64 `koanf:"min_similarity_threshold" yaml:"min_similarity_threshold"`

	// MergeCandidateLimit caps the existing patterns compared per candidate.
	MergeCandidateLimit int `koanf:"merge_candidate_limit" yaml:"merge_candidate_limit"`

	// RecommendPoolLimit caps the patterns scored per recommendation.
	RecommendPoolLimit int `koanf:"recommend_pool_limit" yaml:"recommend_pool_limit"`

	DefaultMinQuality float64 `koanf:"default_min_quality" yaml:"default_min_quality"`
	DefaultLimit      int     `koanf:"default_limit" yaml:"default_limit"`

	// RecencyWindow is the age at which a pattern's recency score reaches 0.
	RecencyWindow time.Duration `koanf:"recency_window" yaml:"recency_window"`
}

// DefaultConfig returns the stock learning configuration.
func DefaultConfig() Config {
	return Config{
		MinSimilarityThreshold: 0.7,
		MergeCandidateLimit:    10,
		RecommendPoolLimit:     50,
		DefaultMinQuality:      0.5,
		DefaultLimit:           5,
		RecencyWindow:          30 * 24 * time.Hour,
	}
}

// Validate checks that thresholds are in [0, 1] and limits are positive.
func (c Config) Validate() error {
	var errs []error
	if c.MinSimilarityThreshold < 0 || c.MinSimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("min_similarity_threshold must be in [0, 1], got %v", c.MinSimilarityThreshold))
	}
	if c.DefaultMinQuality < 0 || c.DefaultMinQuality > 1 {
		errs = append(errs, fmt.Errorf("default_min_quality must be in [0, 1], got %v", c.DefaultMinQuality))
	}
	if c.MergeCandidateLimit <= 0 {
		errs = append(errs, errors.New("merge_candidate_limit must be positive"))
	}
	if c.RecommendPoolLimit <= 0 {
		errs = append(errs, errors.New("recommend_pool_limit must be positive"))
	}
	if c.DefaultLimit <= 0 {
		errs = append(errs, errors.New("default_limit must be positive"))
	}
	if c.RecencyWindow <= 0 {
		errs = append(errs, errors.New("recency_window must be positive"))
	}
	return errors.Join(errs...)
}
