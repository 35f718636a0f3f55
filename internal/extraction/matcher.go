package extraction

import (
	"regexp"
	"sort"
	"strings"
)

// phraseMatcher finds configured words or phrases case-insensitively. Word
// characters at either end of a phrase must sit on a word boundary, so "rest"
// does not match "restore".
type phraseMatcher struct {
	re *regexp.Regexp
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	cleaned := uniqueLower(phrases)
	if len(cleaned) == 0 {
		return &phraseMatcher{}
	}
	// Longer phrases first: alternation is leftmost-first.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})

	alts := make([]string, len(cleaned))
	for i, p := range cleaned {
		alt := regexp.QuoteMeta(p)
		if isWordByte(p[0]) {
			alt = `\b` + alt
		}
		if isWordByte(p[len(p)-1]) {
			alt += `\b`
		}
		alts[i] = alt
	}
	return &phraseMatcher{re: regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)}
}

// Match reports whether text contains any phrase.
func (m *phraseMatcher) Match(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

// FindAll returns the distinct matched phrases, lower-cased, in order of
// first appearance.
func (m *phraseMatcher) FindAll(text string) []string {
	if m.re == nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, match := range m.re.FindAllString(text, -1) {
		match = strings.ToLower(match)
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		out = append(out, match)
	}
	return out
}

// Index returns the byte offset of the first match, or -1.
func (m *phraseMatcher) Index(text string) int {
	if m.re == nil {
		return -1
	}
	loc := m.re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// ruleSet classifies text with ordered rules.
type ruleSet struct {
	names    []string
	matchers []*phraseMatcher
}

func newRuleSet(rules []Rule) *ruleSet {
	rs := &ruleSet{}
	for _, r := range rules {
		rs.names = append(rs.names, r.Name)
		rs.matchers = append(rs.matchers, newPhraseMatcher(r.Keywords))
	}
	return rs
}

// Classify returns the name of the first rule matching text, or "".
func (rs *ruleSet) Classify(text string) string {
	for i, m := range rs.matchers {
		if m.Match(text) {
			return rs.names[i]
		}
	}
	return ""
}

// fragmentRules classify file paths by substring, first rule wins.
type fragmentRules []Rule

func (fr fragmentRules) Classify(path string) string {
	lower := strings.ToLower(path)
	for _, r := range fr {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return r.Name
			}
		}
	}
	return ""
}

// verbMatcher matches action verbs with their common inflections.
func verbMatcher(verbs []string) *phraseMatcher {
	var forms []string
	for _, v := range uniqueLower(verbs) {
		forms = append(forms, v, v+"s", v+"es", v+"ed", v+"ing")
		if strings.HasSuffix(v, "e") {
			stem := strings.TrimSuffix(v, "e")
			forms = append(forms, v+"d", stem+"ing")
		}
	}
	return newPhraseMatcher(forms)
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

// splitSentences splits text on sentence punctuation followed by whitespace
// and on newlines. Dots inside tokens such as file names do not split.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBoundary.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sentenceWith returns the first sentence of text matched by m.
func sentenceWith(text string, m *phraseMatcher) string {
	for _, s := range splitSentences(text) {
		if m.Match(s) {
			return s
		}
	}
	return ""
}

// textAfter returns the part of the first sentence matched by m that
// follows the match.
func textAfter(text string, m *phraseMatcher) string {
	if m.re == nil {
		return ""
	}
	for _, s := range splitSentences(text) {
		loc := m.re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		rest := strings.TrimSpace(strings.TrimLeft(s[loc[1]:], " :,-"))
		if rest != "" {
			return rest
		}
	}
	return ""
}

func uniqueLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// appendUnique appends v to list unless already present (case-insensitive).
func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}

func isWordByte(b byte) bool {
	return b == '_' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || '0' <= b && b <= '9'
}
