package extraction

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

const defaultArchitectureType = "general"

// ArchitectureExtractor turns architecture decisions into patterns,
// inferring the style and the components touched by the session.
type ArchitectureExtractor struct {
	markers          *phraseMatcher
	types            *ruleSet
	pathHints        fragmentRules
	componentMarkers map[string]struct{}
	integrations     *phraseMatcher
	constraints      *phraseMatcher
}

// NewArchitectureExtractor creates an ArchitectureExtractor. Empty sections
// fall back to the defaults.
func NewArchitectureExtractor(cfg ArchitectureConfig) *ArchitectureExtractor {
	def := DefaultConfig().Architecture
	if len(cfg.Markers) == 0 {
		cfg.Markers = def.Markers
	}
	if len(cfg.TypeKeywords) == 0 {
		cfg.TypeKeywords = def.TypeKeywords
	}
	if cfg.PathHints == nil {
		cfg.PathHints = def.PathHints
	}
	if len(cfg.ComponentMarkers) == 0 {
		cfg.ComponentMarkers = def.ComponentMarkers
	}
	if cfg.IntegrationKeywords == nil {
		cfg.IntegrationKeywords = def.IntegrationKeywords
	}
	if cfg.ConstraintMarkers == nil {
		cfg.ConstraintMarkers = def.ConstraintMarkers
	}

	componentMarkers := make(map[string]struct{}, len(cfg.ComponentMarkers))
	for _, m := range uniqueLower(cfg.ComponentMarkers) {
		componentMarkers[m] = struct{}{}
	}

	return &ArchitectureExtractor{
		markers:          newPhraseMatcher(cfg.Markers),
		types:            newRuleSet(cfg.TypeKeywords),
		pathHints:        fragmentRules(cfg.PathHints),
		componentMarkers: componentMarkers,
		integrations:     newPhraseMatcher(cfg.IntegrationKeywords),
		constraints:      newPhraseMatcher(cfg.ConstraintMarkers),
	}
}

// Name implements Extractor.
func (e *ArchitectureExtractor) Name() string { return "architecture" }

// Extract implements Extractor.
func (e *ArchitectureExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	var out []*pattern.Pattern
	var components []string
	componentsDone := false

	for _, d := range rec.Decisions {
		text := d.Text()
		if !e.markers.Match(text) {
			continue
		}
		if !componentsDone {
			components = e.Components(rec.FileChanges)
			componentsDone = true
		}

		archType := e.types.Classify(text)
		if archType == "" {
			archType = e.typeFromPaths(rec.FileChanges)
		}

		details := &pattern.ArchitectureDetails{
			ArchitectureType: archType,
			Components:       append([]string(nil), components...),
			Integrations:     e.integrations.FindAll(text),
			Constraints:      e.constraintSentences(d.Decision, d.Rationale, d.Outcome),
		}
		for _, alt := range d.Alternatives {
			details.TradeOffs = append(details.TradeOffs, fmt.Sprintf("chosen over %s", alt))
		}

		var tb strings.Builder
		fmt.Fprintf(&tb, "Architecture: %s", archType)
		if len(details.Components) > 0 {
			fmt.Fprintf(&tb, " | Components: %s", strings.Join(details.Components, ", "))
		}
		if len(details.Integrations) > 0 {
			fmt.Fprintf(&tb, " | Integrations: %s", strings.Join(details.Integrations, ", "))
		}
		fmt.Fprintf(&tb, " | Decision: %s", d.Decision)

		description := d.Decision
		if d.Rationale != "" {
			description += " because " + d.Rationale
		}

		p := pattern.New(details,
			fmt.Sprintf("%s architecture: %s", archType, pattern.Truncate(d.Decision, 60)),
			pattern.Truncate(description, 200),
			tb.String())
		p.Category = archType
		p.Confidence = 0.6
		if len(details.Components) > 0 {
			p.Confidence += 0.1
		}
		out = append(out, p)
	}
	return out, nil
}

// Components returns, in order of first appearance, the path segment that
// immediately follows a component marker directory.
func (e *ArchitectureExtractor) Components(changes []session.FileChange) []string {
	var components []string
	for _, fc := range changes {
		segments := strings.Split(filepath.ToSlash(fc.File), "/")
		// The final segment is the file itself and never a component.
		for i := 0; i < len(segments)-2; i++ {
			if _, ok := e.componentMarkers[strings.ToLower(segments[i])]; !ok {
				continue
			}
			if next := segments[i+1]; next != "" {
				components = appendUnique(components, next)
			}
			break
		}
	}
	return components
}

func (e *ArchitectureExtractor) typeFromPaths(changes []session.FileChange) string {
	for _, fc := range changes {
		if t := e.pathHints.Classify(fc.File); t != "" {
			return t
		}
	}
	return defaultArchitectureType
}

func (e *ArchitectureExtractor) constraintSentences(texts ...string) []string {
	var out []string
	for _, text := range texts {
		for _, s := range splitSentences(text) {
			if e.constraints.Match(s) {
				out = append(out, pattern.Truncate(s, 200))
			}
		}
	}
	return out
}
