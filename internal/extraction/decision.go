package extraction

import (
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// decisionQuality is the initial quality of a recorded decision.
const decisionQuality = 0.45

// DecisionExtractor maps each decision log entry to a decision pattern.
type DecisionExtractor struct {
	separator string
}

// NewDecisionExtractor creates a DecisionExtractor.
func NewDecisionExtractor(cfg DecisionConfig) *DecisionExtractor {
	if cfg.Separator == "" {
		cfg.Separator = DefaultConfig().Decision.Separator
	}
	return &DecisionExtractor{separator: cfg.Separator}
}

// Name implements Extractor.
func (e *DecisionExtractor) Name() string { return "decision" }

// Extract implements Extractor.
func (e *DecisionExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	var out []*pattern.Pattern
	for _, d := range rec.Decisions {
		choice := strings.TrimSpace(d.Decision)
		if choice == "" {
			continue
		}

		parts := []string{"Decision: " + choice}
		if len(d.Alternatives) > 0 {
			parts = append(parts, "Alternatives: "+strings.Join(d.Alternatives, ", "))
		}
		if d.Rationale != "" {
			parts = append(parts, "Rationale: "+d.Rationale)
		}
		if d.Outcome != "" {
			parts = append(parts, "Outcome: "+d.Outcome)
		}

		description := choice
		if d.Rationale != "" {
			description += " because " + d.Rationale
		}

		details := &pattern.DecisionDetails{
			Options:                append([]string{choice}, d.Alternatives...),
			ChosenOption:           choice,
			Rationale:              d.Rationale,
			AlternativesConsidered: append([]string(nil), d.Alternatives...),
			Outcome:                d.Outcome,
			Context:                map[string]string{"session_id": rec.SessionID},
		}

		p := pattern.New(details, pattern.Truncate(choice, 80), pattern.Truncate(description, 200), strings.Join(parts, e.separator))
		p.Category = "decision"
		p.QualityScore = decisionQuality
		p.Confidence = 0.6
		if d.Rationale != "" {
			p.Confidence += 0.1
		}
		if len(d.Alternatives) > 0 {
			p.Confidence += 0.1
		}
		out = append(out, p)
	}
	return out, nil
}
