package extraction

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

const (
	defaultConfigType = "general"
	maxSettings       = 20
)

var (
	// secretName matches credential-like identifiers. Only names are ever
	// recorded.
	secretName = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*(?:KEY|SECRET|TOKEN|PASSWORD|PASSWD|CREDENTIALS?)\b`)
	// settingAssignment matches KEY=value lines in the conversation.
	settingAssignment = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\s*=\s*([^\s'"]+)`)
	pathTokenizer     = regexp.MustCompile(`[/\\._-]+`)
)

// ConfigurationExtractor groups configuration files by type and target
// environment.
type ConfigurationExtractor struct {
	fileNames     []string
	extensions    map[string]struct{}
	types         fragmentRules
	environments  []Rule
	prerequisites map[string][]string
	defaultEnv    string
}

// NewConfigurationExtractor creates a ConfigurationExtractor. Empty sections
// fall back to the defaults.
func NewConfigurationExtractor(cfg ConfigurationConfig) *ConfigurationExtractor {
	def := DefaultConfig().Configuration
	if len(cfg.FileNames) == 0 {
		cfg.FileNames = def.FileNames
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = def.Extensions
	}
	if len(cfg.TypeFragments) == 0 {
		cfg.TypeFragments = def.TypeFragments
	}
	if len(cfg.EnvironmentMarkers) == 0 {
		cfg.EnvironmentMarkers = def.EnvironmentMarkers
	}
	if cfg.Prerequisites == nil {
		cfg.Prerequisites = def.Prerequisites
	}
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = def.DefaultEnvironment
	}

	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, ext := range uniqueLower(cfg.Extensions) {
		exts[ext] = struct{}{}
	}

	return &ConfigurationExtractor{
		fileNames:     uniqueLower(cfg.FileNames),
		extensions:    exts,
		types:         fragmentRules(cfg.TypeFragments),
		environments:  cfg.EnvironmentMarkers,
		prerequisites: cfg.Prerequisites,
		defaultEnv:    cfg.DefaultEnvironment,
	}
}

// Name implements Extractor.
func (e *ConfigurationExtractor) Name() string { return "configuration" }

type configGroup struct {
	configType  string
	environment string
	files       []string
}

// Extract implements Extractor.
func (e *ConfigurationExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	groups := make(map[string]*configGroup)
	var order []string

	for _, fc := range rec.FileChanges {
		if !e.IsConfigFile(fc.File) {
			continue
		}
		configType := e.ConfigType(fc.File)
		env := e.Environment(fc.File)
		key := configType + "/" + env
		g, ok := groups[key]
		if !ok {
			g = &configGroup{configType: configType, environment: env}
			groups[key] = g
			order = append(order, key)
		}
		g.files = appendUnique(g.files, fc.File)
	}
	if len(order) == 0 {
		return nil, nil
	}

	text := recordText(rec)
	secrets := secretNames(text)
	settings := settingsFrom(text, secrets)

	out := make([]*pattern.Pattern, 0, len(order))
	for _, key := range order {
		g := groups[key]
		details := &pattern.ConfigurationDetails{
			ConfigType:    g.configType,
			Environment:   g.environment,
			Settings:      cloneSettings(settings),
			Secrets:       append([]string(nil), secrets...),
			Prerequisites: append([]string(nil), e.prerequisites[g.configType]...),
			Files:         limitSorted(g.files, maxCodeFiles),
		}

		bases := make([]string, 0, len(details.Files))
		for _, f := range details.Files {
			bases = appendUnique(bases, filepath.Base(f))
		}

		var tb strings.Builder
		fmt.Fprintf(&tb, "Configuration: %s (%s) | Files: %s", g.configType, g.environment, strings.Join(bases, ", "))
		if len(secrets) > 0 {
			fmt.Fprintf(&tb, " | Secrets: %s", strings.Join(secrets, ", "))
		}

		p := pattern.New(details,
			fmt.Sprintf("%s configuration (%s)", g.configType, g.environment),
			fmt.Sprintf("%d %s configuration file(s) for the %s environment", len(details.Files), g.configType, g.environment),
			tb.String())
		p.Category = g.configType
		p.Confidence = 0.55
		out = append(out, p)
	}
	return out, nil
}

// IsConfigFile reports whether path names a known configuration file.
func (e *ConfigurationExtractor) IsConfigFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, name := range e.fileNames {
		if base == name || strings.HasPrefix(base, name+".") {
			return true
		}
	}
	_, ok := e.extensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// ConfigType infers the configuration type from path fragments.
func (e *ConfigurationExtractor) ConfigType(path string) string {
	if t := e.types.Classify(filepath.ToSlash(path)); t != "" {
		return t
	}
	return defaultConfigType
}

// Environment returns the first environment whose marker appears as a
// whole token of path.
func (e *ConfigurationExtractor) Environment(path string) string {
	tokens := make(map[string]struct{})
	for _, tok := range pathTokenizer.Split(strings.ToLower(path), -1) {
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	for _, rule := range e.environments {
		for _, kw := range rule.Keywords {
			if _, ok := tokens[strings.ToLower(kw)]; ok {
				return rule.Name
			}
		}
	}
	return e.defaultEnv
}

func recordText(rec *session.Record) string {
	var b strings.Builder
	for _, t := range rec.Conversation {
		b.WriteString(t.Content)
		b.WriteByte('\n')
	}
	for _, d := range rec.Decisions {
		b.WriteString(d.Text())
		b.WriteByte('\n')
	}
	return b.String()
}

func secretNames(text string) []string {
	names := uniqueStrings(secretName.FindAllString(text, -1))
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	return names
}

// settingsFrom collects KEY=value assignments, skipping secret names and
// values that were redacted upstream.
func settingsFrom(text string, secrets []string) map[string]string {
	skip := make(map[string]struct{}, len(secrets))
	for _, s := range secrets {
		skip[s] = struct{}{}
	}
	var settings map[string]string
	for _, m := range settingAssignment.FindAllStringSubmatch(text, -1) {
		key, value := m[1], m[2]
		if _, secret := skip[key]; secret || strings.Contains(value, "REDACTED") {
			continue
		}
		if settings == nil {
			settings = make(map[string]string)
		}
		if _, exists := settings[key]; exists {
			continue
		}
		if len(settings) == maxSettings {
			break
		}
		settings[key] = value
	}
	return settings
}

func cloneSettings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
