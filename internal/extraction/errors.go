package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

// Initial scores of error patterns. Unresolved failures stay discoverable
// but rank below fixes.
const (
	resolvedErrorQuality      = 0.45
	unresolvedErrorQuality    = 0.25
	resolvedErrorConfidence   = 0.6
	unresolvedErrorConfidence = 0.3
	maxStackTraceLines        = 10
	defaultErrorType          = "general"
)

var (
	namedErrorType = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*(?:Error|Exception))\b`)
	stackFrame     = regexp.MustCompile(`^\s*(?:at \S|File "|goroutine \d+|Traceback \(|\S+\.(?:go|py|js|ts|java|rb|rs|cs|php):\d+)`)
)

// ErrorExtractor pairs error turns with the turn that resolves them.
type ErrorExtractor struct {
	errorMarkers      *phraseMatcher
	solutionMarkers   *phraseMatcher
	rootCauseMarkers  *phraseMatcher
	preventionMarkers *phraseMatcher
	types             *ruleSet
	maxMessageLength  int
	maxSolutionLength int
}

// NewErrorExtractor creates an ErrorExtractor. Empty sections fall back to
// the defaults.
func NewErrorExtractor(cfg ErrorConfig) *ErrorExtractor {
	def := DefaultConfig().Error
	if len(cfg.ErrorMarkers) == 0 {
		cfg.ErrorMarkers = def.ErrorMarkers
	}
	if len(cfg.SolutionMarkers) == 0 {
		cfg.SolutionMarkers = def.SolutionMarkers
	}
	if len(cfg.RootCauseMarkers) == 0 {
		cfg.RootCauseMarkers = def.RootCauseMarkers
	}
	if len(cfg.PreventionMarkers) == 0 {
		cfg.PreventionMarkers = def.PreventionMarkers
	}
	if len(cfg.TypeKeywords) == 0 {
		cfg.TypeKeywords = def.TypeKeywords
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = def.MaxMessageLength
	}
	if cfg.MaxSolutionLength <= 0 {
		cfg.MaxSolutionLength = def.MaxSolutionLength
	}
	return &ErrorExtractor{
		errorMarkers:      newPhraseMatcher(cfg.ErrorMarkers),
		solutionMarkers:   newPhraseMatcher(cfg.SolutionMarkers),
		rootCauseMarkers:  newPhraseMatcher(cfg.RootCauseMarkers),
		preventionMarkers: newPhraseMatcher(cfg.PreventionMarkers),
		types:             newRuleSet(cfg.TypeKeywords),
		maxMessageLength:  cfg.MaxMessageLength,
		maxSolutionLength: cfg.MaxSolutionLength,
	}
}

// Name implements Extractor.
func (e *ErrorExtractor) Name() string { return "error" }

// Extract implements Extractor. Each error context is opened by the first
// turn carrying an error marker and closed by the next turn carrying a
// solution marker; a context still open at the end is emitted unresolved.
func (e *ErrorExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	var out []*pattern.Pattern
	var open *session.Turn

	for i := range rec.Conversation {
		turn := &rec.Conversation[i]
		if open == nil {
			if e.errorMarkers.Match(turn.Content) {
				open = turn
			}
			continue
		}
		if e.solutionMarkers.Match(turn.Content) {
			out = append(out, e.build(open, turn))
			open = nil
		}
	}
	if open != nil {
		out = append(out, e.build(open, nil))
	}
	return out, nil
}

func (e *ErrorExtractor) build(errTurn, fixTurn *session.Turn) *pattern.Pattern {
	text := errTurn.Content
	message := sentenceWith(text, e.errorMarkers)
	if message == "" {
		message = text
	}
	message = pattern.Truncate(message, e.maxMessageLength)

	details := &pattern.ErrorDetails{
		ErrorType:    e.errorType(text),
		ErrorMessage: message,
		StackTrace:   stackTrace(text),
		RootCause:    textAfter(text, e.rootCauseMarkers),
	}

	if fixTurn != nil {
		details.Resolved = true
		details.Solution = pattern.Truncate(strings.TrimSpace(fixTurn.Content), e.maxSolutionLength)
		if details.RootCause == "" {
			details.RootCause = textAfter(fixTurn.Content, e.rootCauseMarkers)
		}
		details.Prevention = sentenceWith(fixTurn.Content, e.preventionMarkers)
	}
	details.RootCause = pattern.Truncate(details.RootCause, e.maxMessageLength)
	details.Prevention = pattern.Truncate(details.Prevention, e.maxMessageLength)

	template := fmt.Sprintf("Error: %s: %s", details.ErrorType, details.ErrorMessage)
	var p *pattern.Pattern
	if details.Resolved {
		template += " | Solution: " + pattern.Truncate(details.Solution, e.maxMessageLength)
		p = pattern.New(details, "Fix for "+details.ErrorType+" error", pattern.Truncate(message, 200), template)
		p.QualityScore = resolvedErrorQuality
		p.Confidence = resolvedErrorConfidence
	} else {
		template += " | Unresolved"
		p = pattern.New(details, "Unresolved "+details.ErrorType+" error", pattern.Truncate(message, 200), template)
		p.QualityScore = unresolvedErrorQuality
		p.Confidence = unresolvedErrorConfidence
	}
	p.Category = details.ErrorType
	return p
}

// errorType prefers an explicit exception class name, then keyword rules.
func (e *ErrorExtractor) errorType(text string) string {
	if m := namedErrorType.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if t := e.types.Classify(text); t != "" {
		return t
	}
	return defaultErrorType
}

func stackTrace(text string) string {
	var frames []string
	for _, line := range strings.Split(text, "\n") {
		if stackFrame.MatchString(line) {
			frames = append(frames, strings.TrimSpace(line))
			if len(frames) == maxStackTraceLines {
				break
			}
		}
	}
	return strings.Join(frames, "\n")
}
