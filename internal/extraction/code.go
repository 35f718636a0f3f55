package extraction

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/session"
)

const (
	defaultStructure = "module"
	maxCodeFiles     = 20
)

// CodeExtractor groups file changes by language and describes each group's
// framework and structural role.
type CodeExtractor struct {
	byExtension    map[string]string
	frameworks     map[string]map[string][]string
	structures     fragmentRules
	manifests      map[string][]string
	designPatterns []string
}

// NewCodeExtractor creates a CodeExtractor. Empty sections fall back to the
// defaults.
func NewCodeExtractor(cfg CodeConfig) *CodeExtractor {
	def := DefaultConfig().Code
	if len(cfg.LanguageExtensions) == 0 {
		cfg.LanguageExtensions = def.LanguageExtensions
	}
	if cfg.FrameworkKeywords == nil {
		cfg.FrameworkKeywords = def.FrameworkKeywords
	}
	if len(cfg.StructureMarkers) == 0 {
		cfg.StructureMarkers = def.StructureMarkers
	}
	if cfg.DependencyManifests == nil {
		cfg.DependencyManifests = def.DependencyManifests
	}
	if cfg.DesignPatterns == nil {
		cfg.DesignPatterns = def.DesignPatterns
	}

	byExt := make(map[string]string)
	// Sorted so that an extension claimed by two languages resolves the same
	// way on every run.
	langs := make([]string, 0, len(cfg.LanguageExtensions))
	for lang := range cfg.LanguageExtensions {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		for _, ext := range cfg.LanguageExtensions[lang] {
			ext = strings.ToLower(ext)
			if _, taken := byExt[ext]; !taken {
				byExt[ext] = lang
			}
		}
	}

	return &CodeExtractor{
		byExtension:    byExt,
		frameworks:     cfg.FrameworkKeywords,
		structures:     fragmentRules(cfg.StructureMarkers),
		manifests:      cfg.DependencyManifests,
		designPatterns: uniqueLower(cfg.DesignPatterns),
	}
}

// Name implements Extractor.
func (e *CodeExtractor) Name() string { return "code" }

type codeGroup struct {
	language string
	changes  []session.FileChange
}

// Extract implements Extractor.
func (e *CodeExtractor) Extract(rec *session.Record) ([]*pattern.Pattern, error) {
	groups := make(map[string]*codeGroup)
	var order []string
	for _, fc := range rec.FileChanges {
		lang := e.Language(fc.File)
		if lang == "" {
			continue
		}
		g, ok := groups[lang]
		if !ok {
			g = &codeGroup{language: lang}
			groups[lang] = g
			order = append(order, lang)
		}
		g.changes = append(g.changes, fc)
	}

	out := make([]*pattern.Pattern, 0, len(order))
	for _, lang := range order {
		out = append(out, e.build(groups[lang], rec.FileChanges))
	}
	return out, nil
}

// Language returns the language of path by extension, or "".
func (e *CodeExtractor) Language(path string) string {
	return e.byExtension[strings.ToLower(filepath.Ext(path))]
}

func (e *CodeExtractor) build(g *codeGroup, all []session.FileChange) *pattern.Pattern {
	paths := make([]string, 0, len(g.changes))
	actions := map[session.Action]int{}
	for _, fc := range g.changes {
		paths = append(paths, fc.File)
		action := fc.Action
		if action == "" {
			action = session.ActionModified
		}
		actions[action]++
	}

	framework := e.framework(g.language, paths)
	structure := e.structure(paths)

	details := &pattern.CodeDetails{
		Language:       g.language,
		Framework:      framework,
		StructureType:  structure,
		Dependencies:   e.dependencies(g.language, all),
		DesignPatterns: e.detectDesignPatterns(paths),
		Files:          limitSorted(paths, maxCodeFiles),
	}

	label := g.language
	if framework != "" {
		label = framework
	}
	name := fmt.Sprintf("%s %s code", label, structure)

	var tb strings.Builder
	fmt.Fprintf(&tb, "Code: %s", g.language)
	if framework != "" {
		fmt.Fprintf(&tb, " | Framework: %s", framework)
	}
	fmt.Fprintf(&tb, " | Structure: %s", structure)
	fmt.Fprintf(&tb, " | Changes: created=%d modified=%d deleted=%d",
		actions[session.ActionCreated], actions[session.ActionModified], actions[session.ActionDeleted])
	if len(details.DesignPatterns) > 0 {
		fmt.Fprintf(&tb, " | Patterns: %s", strings.Join(details.DesignPatterns, ", "))
	}

	p := pattern.New(details, name,
		fmt.Sprintf("%d %s file(s) changed, mostly %s code", len(paths), g.language, structure),
		tb.String())
	p.Category = g.language
	p.Confidence = pattern.Clamp01(0.5 + 0.05*float64(len(paths)))
	if p.Confidence > 0.8 {
		p.Confidence = 0.8
	}
	return p
}

// framework scores each known framework by keyword hits across paths.
// Ties resolve alphabetically.
func (e *CodeExtractor) framework(lang string, paths []string) string {
	candidates := e.frameworks[lang]
	if len(candidates) == 0 {
		return ""
	}
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestHits := "", 0
	for _, name := range names {
		hits := 0
		for _, path := range paths {
			lower := strings.ToLower(path)
			for _, kw := range candidates[name] {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					hits++
					break
				}
			}
		}
		if hits > bestHits {
			best, bestHits = name, hits
		}
	}
	return best
}

// structure returns the most common structural role of paths. Ties go to
// the role listed first in the configuration.
func (e *CodeExtractor) structure(paths []string) string {
	counts := make(map[string]int)
	for _, path := range paths {
		role := e.structures.Classify(path)
		if role == "" {
			role = defaultStructure
		}
		counts[role]++
	}

	best, bestCount := defaultStructure, 0
	for _, r := range e.structures {
		if counts[r.Name] > bestCount {
			best, bestCount = r.Name, counts[r.Name]
		}
	}
	if counts[defaultStructure] > bestCount {
		best = defaultStructure
	}
	return best
}

func (e *CodeExtractor) dependencies(lang string, all []session.FileChange) []string {
	manifests := e.manifests[lang]
	if len(manifests) == 0 {
		return nil
	}
	var deps []string
	for _, fc := range all {
		base := strings.ToLower(filepath.Base(fc.File))
		for _, m := range manifests {
			if base == strings.ToLower(m) {
				deps = appendUnique(deps, fc.File)
			}
		}
	}
	return deps
}

func (e *CodeExtractor) detectDesignPatterns(paths []string) []string {
	var found []string
	for _, path := range paths {
		lower := strings.ToLower(path)
		for _, dp := range e.designPatterns {
			if strings.Contains(lower, dp) {
				found = appendUnique(found, dp)
			}
		}
	}
	sort.Strings(found)
	return found
}

func limitSorted(values []string, n int) []string {
	out := uniqueStrings(values)
	sort.Strings(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
