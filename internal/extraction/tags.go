package extraction

import (
	"path/filepath"
	"sort"
)

// DefaultTagRules maps tags to the keywords that indicate them.
func DefaultTagRules() map[string][]string {
	return map[string][]string{
		// Languages
		"golang":     {".go", "go.mod", "go test", "golang"},
		"python":     {".py", "pip", "pytest", "python", "django", "flask"},
		"typescript": {".ts", ".tsx", "typescript"},
		"javascript": {".js", ".jsx", "npm", "node", "javascript"},
		"rust":       {".rs", "cargo", "rust"},
		"java":       {".java", "maven", "gradle", "java"},

		// Infrastructure
		"kubernetes": {"kubectl", "k8s", "helm", "kubernetes"},
		"terraform":  {".tf", "terraform", "tfvars"},
		"docker":     {"dockerfile", "docker-compose", "container", "docker"},
		"aws":        {"aws", "s3", "ec2", "lambda", "cloudformation"},
		"gcp":        {"gcloud", "gcp", "pubsub", "bigquery", "gke"},

		// Activities
		"debugging":     {"fix", "bug", "error", "broken", "failing", "debug"},
		"documentation": {"docs", "readme", "document", "documentation"},
		"testing":       {"test", "tests", "coverage", "mock", "unittest"},
		"refactoring":   {"refactor", "cleanup", "rename", "simplify", "restructure"},
		"security":      {"auth", "authentication", "secret", "credential", "permission", "encrypt", "security"},
		"performance":   {"optimize", "slow", "cache", "latency", "performance"},

		// Architecture
		"api":           {"api", "endpoint", "rest", "grpc", "graphql"},
		"database":      {"database", "sql", "postgres", "postgresql", "mysql", "sqlite", "mongodb", "redis"},
		"frontend":      {"frontend", "ui", "react", "vue", "angular", "css"},
		"backend":       {"backend", "server", "service", "handler"},
		"microservices": {"microservice", "microservices", "service mesh", "istio"},
	}
}

// Tagger derives tags from pattern text and file paths by keyword matching.
type Tagger struct {
	tags     []string
	matchers map[string]*phraseMatcher
}

// NewTagger creates a Tagger with the given rules, or the defaults when
// rules is empty.
func NewTagger(rules map[string][]string) *Tagger {
	if len(rules) == 0 {
		rules = DefaultTagRules()
	}
	t := &Tagger{
		matchers: make(map[string]*phraseMatcher, len(rules)),
	}
	for tag, keywords := range rules {
		t.tags = append(t.tags, tag)
		t.matchers[tag] = newPhraseMatcher(keywords)
	}
	sort.Strings(t.tags)
	return t
}

// Tags returns the sorted tags whose keywords appear in content as words.
func (t *Tagger) Tags(content string) []string {
	var out []string
	for _, tag := range t.tags {
		if t.matchers[tag].Match(content) {
			out = append(out, tag)
		}
	}
	return out
}

// FileTags returns the sorted tags indicated by file paths.
func (t *Tagger) FileTags(paths []string) []string {
	found := make(map[string]struct{})
	for _, path := range paths {
		for _, tag := range t.Tags(filepath.ToSlash(path)) {
			found[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for tag := range found {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Domain picks the most specific area from tags, falling back to the first
// tag.
func Domain(tags []string) string {
	priority := []string{
		"kubernetes", "terraform", "docker", "aws", "gcp",
		"frontend", "backend", "api", "database",
		"testing", "debugging", "security", "performance",
	}

	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, d := range priority {
		if _, ok := set[d]; ok {
			return d
		}
	}
	if len(tags) > 0 {
		return tags[0]
	}
	return ""
}
