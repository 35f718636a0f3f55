package secrets

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRedaction replaces every detected secret value.
const DefaultRedaction = "[REDACTED]"

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active (default: true).
	Enabled bool `koanf:"enabled" yaml:"enabled"`

	// RedactionString replaces detected values (default: "[REDACTED]").
	RedactionString string `koanf:"redaction_string" yaml:"redaction_string"`

	// AllowList holds patterns whose matches are never redacted.
	AllowList []string `koanf:"allow_list" yaml:"allow_list,omitempty"`

	// AllowListFiles are gitleaks-style TOML allowlists whose regexes join
	// AllowList. Missing files are skipped.
	AllowListFiles []string `koanf:"allow_list_files" yaml:"allow_list_files,omitempty"`

	// ExtraRules are appended to the built-in rules.
	ExtraRules []Rule `koanf:"extra_rules" yaml:"extra_rules,omitempty"`

	// Gitleaks adds the gitleaks default rule set (800+ detectors) on top
	// of the built-in rules. Loading it costs noticeable startup time.
	Gitleaks bool `koanf:"gitleaks" yaml:"gitleaks"`
}

// Rule defines one secret detection rule. When Pattern has a capture group,
// only the first group is redacted.
type Rule struct {
	ID          string   `koanf:"id" yaml:"id"`
	Description string   `koanf:"description" yaml:"description,omitempty"`
	Pattern     string   `koanf:"pattern" yaml:"pattern"`
	Keywords    []string `koanf:"keywords" yaml:"keywords,omitempty"`
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
	grouped  bool
}

// DefaultConfig returns a configuration with the built-in rules enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RedactionString: DefaultRedaction,
	}
}

// Validate checks that every rule and allow-list entry compiles.
func (c Config) Validate() error {
	_, _, err := c.compile()
	return err
}

func (c Config) compile() ([]compiledRule, []*regexp.Regexp, error) {
	rules := append(DefaultRules(), c.ExtraRules...)
	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))

	for i, rule := range rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: id is required", i)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, nil, fmt.Errorf("rule %s: duplicate id", rule.ID)
		}
		seen[rule.ID] = struct{}{}
		if rule.Pattern == "" {
			return nil, nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}

		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}

		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			keywords = append(keywords, strings.ToLower(kw))
		}

		compiled = append(compiled, compiledRule{
			id:       rule.ID,
			pattern:  re,
			keywords: keywords,
			grouped:  re.NumSubexp() > 0,
		})
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, p := range c.AllowList {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	for _, path := range c.AllowListFiles {
		patterns, err := LoadAllowlist(path)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range patterns {
			allow = append(allow, regexp.MustCompile(p))
		}
	}

	return compiled, allow, nil
}
