package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/fyrsmithlabs/patternd/internal/session"
)

// Finding is one detected secret. The matched value is never kept.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

// Report summarizes the redactions applied to one session record.
type Report struct {
	Findings int
	ByRule   map[string]int
}

func (r *Report) add(findings []Finding) {
	for _, f := range findings {
		r.Findings++
		r.ByRule[f.RuleID]++
	}
}

// Scrubber redacts secret values from text. It is safe for concurrent use.
type Scrubber struct {
	enabled   bool
	redaction string
	rules     []compiledRule
	allow     []*regexp.Regexp

	// detector is nil unless Config.Gitleaks is set.
	mu       sync.Mutex
	detector *detect.Detector
}

type span struct {
	start, end int
}

// New compiles the configured rules.
func New(cfg Config) (*Scrubber, error) {
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	redaction := cfg.RedactionString
	if redaction == "" {
		redaction = DefaultRedaction
	}
	s := &Scrubber{
		enabled:   cfg.Enabled,
		redaction: redaction,
		rules:     rules,
		allow:     allow,
	}
	if cfg.Enabled && cfg.Gitleaks {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("loading gitleaks rules: %w", err)
		}
		s.detector = d
	}
	return s, nil
}

// Enabled reports whether the scrubber redacts anything.
func (s *Scrubber) Enabled() bool {
	return s != nil && s.enabled
}

// Scrub returns content with every detected value replaced.
func (s *Scrubber) Scrub(content string) (string, []Finding) {
	if !s.Enabled() || content == "" {
		return content, nil
	}

	lower := strings.ToLower(content)
	var findings []Finding
	var spans []span

	for _, rule := range s.rules {
		if !hasKeyword(lower, rule.keywords) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(content, -1) {
			start, end := m[0], m[1]
			if rule.grouped {
				if m[2] < 0 {
					continue
				}
				start, end = m[2], m[3]
			}
			if start >= end || s.allowed(content[start:end]) {
				continue
			}
			findings = append(findings, Finding{RuleID: rule.id, Start: start, End: end})
			spans = append(spans, span{start, end})
		}
	}

	for _, f := range s.detectGitleaks(content) {
		findings = append(findings, f)
		spans = append(spans, span{f.Start, f.End})
	}

	if len(spans) == 0 {
		return content, nil
	}
	return s.redact(content, mergeSpans(spans)), findings
}

// detectGitleaks runs the gitleaks rule set. Gitleaks reports line and
// column positions, so every occurrence of the reported secret is located
// by byte offset instead.
func (s *Scrubber) detectGitleaks(content string) []Finding {
	if s.detector == nil {
		return nil
	}
	s.mu.Lock()
	results := s.detector.DetectString(content)
	s.mu.Unlock()

	var findings []Finding
	for _, r := range results {
		if r.Secret == "" || s.allowed(r.Secret) {
			continue
		}
		for off := 0; off < len(content); {
			i := strings.Index(content[off:], r.Secret)
			if i < 0 {
				break
			}
			start := off + i
			end := start + len(r.Secret)
			findings = append(findings, Finding{RuleID: r.RuleID, Start: start, End: end})
			off = end
		}
	}
	return findings
}

// ScrubRecord returns a scrubbed deep copy of rec. The input is not modified.
func (s *Scrubber) ScrubRecord(rec *session.Record) (*session.Record, Report) {
	report := Report{ByRule: make(map[string]int)}
	out := rec.Clone()
	if !s.Enabled() {
		return out, report
	}

	scrub := func(text string) string {
		clean, findings := s.Scrub(text)
		report.add(findings)
		return clean
	}

	for i := range out.Conversation {
		out.Conversation[i].Content = scrub(out.Conversation[i].Content)
	}
	for i := range out.Decisions {
		d := &out.Decisions[i]
		d.Decision = scrub(d.Decision)
		d.Rationale = scrub(d.Rationale)
		d.Outcome = scrub(d.Outcome)
		for j := range d.Alternatives {
			d.Alternatives[j] = scrub(d.Alternatives[j])
		}
	}
	for k, v := range out.Metadata {
		if str, ok := v.(string); ok {
			out.Metadata[k] = scrub(str)
		}
	}
	return out, report
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func (s *Scrubber) redact(content string, spans []span) string {
	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, sp := range spans {
		b.WriteString(content[prev:sp.start])
		b.WriteString(s.redaction)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

func hasKeyword(lower string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// mergeSpans sorts spans and merges overlapping or adjacent ones.
func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}
