package extraction

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

const workflowStepSeparator = " -> "

var conditionLeads = newPhraseMatcher([]string{"if", "when", "unless", "once"})

// WorkflowExtractor collects action sentences from the conversation as the
// ordered steps of a workflow.
type WorkflowExtractor struct {
	minSteps      int
	maxSteps      int
	maxStepLength int
	verbs         *phraseMatcher
}

// NewWorkflowExtractor creates a WorkflowExtractor. Zero values fall back to
// the defaults.
func NewWorkflowExtractor(cfg WorkflowConfig) *WorkflowExtractor {
	def := DefaultConfig().Workflow
	if cfg.MinSteps <= 0 {
		cfg.MinSteps = def.MinSteps
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MaxSteps < cfg.MinSteps {
		cfg.MaxSteps = cfg.MinSteps
	}
	if cfg.MaxStepLength <= 0 {
		cfg.MaxStepLength = def.MaxStepLength
	}
	if len(cfg.ActionVerbs) == 0 {
		cfg.ActionVerbs = def.ActionVerbs
	}
	return &WorkflowExtractor{
		minSteps:      cfg.MinSteps,
		maxSteps:      cfg.MaxSteps,
		maxStepLength: cfg.MaxStepLength,
		verbs:         verbMatcher(cfg.ActionVerbs),
	}
}

// Name implements Extractor.
func (e *WorkflowExtractor) Name() string { return "workflow" }

// Extract implements Extractor.
func (e *WorkflowExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	var steps []string
	var conditions map[string]string
	seen := make(map[string]struct{})

collect:
	for _, turn := range rec.Conversation {
		for _, sentence := range splitSentences(turn.Content) {
			if !e.verbs.Match(sentence) {
				continue
			}
			step := pattern.Truncate(sentence, e.maxStepLength)
			key := strings.ToLower(step)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			steps = append(steps, step)

			if conditionLeads.Index(sentence) == 0 {
				if conditions == nil {
					conditions = make(map[string]string)
				}
				conditions[fmt.Sprintf("step_%d", len(steps))] = step
			}
			if len(steps) == e.maxSteps {
				break collect
			}
		}
	}

	if len(steps) < e.minSteps {
		return nil, nil
	}

	first, last := steps[0], steps[len(steps)-1]
	p := pattern.New(
		&pattern.WorkflowDetails{Steps: steps, Conditions: conditions},
		fmt.Sprintf("Workflow: %s ... %s", pattern.Truncate(first, 40), pattern.Truncate(last, 40)),
		fmt.Sprintf("%d-step workflow starting with %q", len(steps), pattern.Truncate(first, 60)),
		strings.Join(steps, workflowStepSeparator),
	)
	p.Category = "process"
	p.Confidence = pattern.Clamp01(0.5 + 0.05*float64(len(steps)-e.minSteps))
	if p.Confidence > 0.8 {
		p.Confidence = 0.8
	}
	return []*pattern.Pattern{p}, nil
}
