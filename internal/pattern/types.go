package pattern

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors for pattern operations.
var (
	ErrNotFound          = errors.New("pattern not found")
	ErrInvalidPattern    = errors.New("invalid pattern")
	ErrInvalidType       = errors.New("invalid pattern type")
	ErrEmptyTemplate     = errors.New("pattern template cannot be empty")
	ErrDetailsMismatch   = errors.New("pattern details do not match pattern type")
	ErrInvalidScore      = errors.New("score must be between 0.0 and 1.0")
	ErrInvalidFrequency  = errors.New("frequency must be at least 1")
	ErrInvalidReuseCount = errors.New("reuse count cannot be negative")
)

// Type identifies the kind of experience a pattern captures.
type Type string

const (
	TypeWorkflow      Type = "workflow"
	TypeDecision      Type = "decision"
	TypeCode          Type = "code"
	TypeError         Type = "error"
	TypeArchitecture  Type = "architecture"
	TypeConfiguration Type = "configuration"
)

// Types lists every pattern type in a stable order.
func Types() []Type {
	return []Type{
		TypeWorkflow,
		TypeDecision,
		TypeCode,
		TypeError,
		TypeArchitecture,
		TypeConfiguration,
	}
}

// Valid reports whether t is one of the known pattern types.
func (t Type) Valid() bool {
	switch t {
	case TypeWorkflow, TypeDecision, TypeCode, TypeError, TypeArchitecture, TypeConfiguration:
		return true
	}
	return false
}

// ParseType parses a case-insensitive pattern type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Default scores for freshly extracted candidates.
const (
	DefaultConfidence   = 0.5
	DefaultQualityScore = 0.4
)

// Usage holds the outcome counters and lifecycle metadata of a pattern.
type Usage struct {
	Successes         int        `json:"successes"`
	Failures          int        `json:"failures"`
	DeprecationReason string     `json:"deprecation_reason,omitempty"`
	DeprecatedAt      *time.Time `json:"deprecated_at,omitempty"`
}

// Pattern is a persisted or candidate unit of reusable experience.
type Pattern struct {
	// ID is assigned once by New and never reused.
	ID   string `json:"pattern_id"`
	Type Type   `json:"pattern_type"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Template is the canonical text used for similarity comparison and reuse.
	Template string   `json:"template"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	Confidence   float64    `json:"confidence"`
	QualityScore float64    `json:"quality_score"`
	Frequency    int        `json:"frequency"`
	ReuseCount   int        `json:"reuse_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastUsed     *time.Time `json:"last_used,omitempty"`

	SourceSessionID string   `json:"source_session_id,omitempty"`
	RelatedPatterns []string `json:"related_patterns,omitempty"`
	Version         int      `json:"version"`
	Deprecated      bool     `json:"deprecated"`

	Usage   Usage   `json:"usage"`
	History History `json:"version_history"`
	Details Details `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a candidate pattern with a fresh UUID and default scores.
// The pattern type is taken from the details payload.
func New(details Details, name, description, template string) *Pattern {
	now := time.Now().UTC()
	return &Pattern{
		ID:           uuid.New().String(),
		Type:         details.Kind(),
		Name:         name,
		Description:  description,
		Template:     template,
		Confidence:   DefaultConfidence,
		QualityScore: DefaultQualityScore,
		Frequency:    1,
		Version:      1,
		Details:      details,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the pattern's invariants.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidPattern)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	if p.Template == "" {
		return ErrEmptyTemplate
	}
	if p.Details == nil || p.Details.Kind() != p.Type {
		return ErrDetailsMismatch
	}
	for _, s := range []float64{p.Confidence, p.QualityScore, p.SuccessRate} {
		if s < 0.0 || s > 1.0 {
			return ErrInvalidScore
		}
	}
	if p.Frequency < 1 {
		return ErrInvalidFrequency
	}
	if p.ReuseCount < 0 {
		return ErrInvalidReuseCount
	}
	return nil
}

// ClampScores forces Confidence, QualityScore and SuccessRate into [0, 1]
// and Frequency to at least 1.
func (p *Pattern) ClampScores() {
	p.Confidence = Clamp01(p.Confidence)
	p.QualityScore = Clamp01(p.QualityScore)
	p.SuccessRate = Clamp01(p.SuccessRate)
	if p.Frequency < 1 {
		p.Frequency = 1
	}
	if p.ReuseCount < 0 {
		p.ReuseCount = 0
	}
}

// SetTags replaces the tag set, normalizing it.
func (p *Pattern) SetTags(tags ...string) {
	p.Tags = NormalizeTags(tags)
}

// AddTags merges tags into the existing set.
func (p *Pattern) AddTags(tags ...string) {
	p.Tags = NormalizeTags(append(append([]string{}, p.Tags...), tags...))
}

// Clone returns a deep copy of the pattern.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = cloneStrings(p.Tags)
	c.RelatedPatterns = cloneStrings(p.RelatedPatterns)
	c.LastUsed = cloneTime(p.LastUsed)
	c.Usage.DeprecatedAt = cloneTime(p.Usage.DeprecatedAt)
	if p.Details != nil {
		c.Details = p.Details.clone()
	}
	return &c
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeTags lower-cases, trims, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
