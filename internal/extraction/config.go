package extraction

import (
	"errors"
	"fmt"
)

// Rule is an ordered classification rule: the first rule with a matching
// keyword decides the label.
type Rule struct {
	Name     string   `koanf:"name" yaml:"name"`
	Keywords []string `koanf:"keywords" yaml:"keywords"`
}

// Config holds the per-extractor settings.
type Config struct {
	Workflow      WorkflowConfig      `koanf:"workflow" yaml:"workflow"`
	Decision      DecisionConfig      `koanf:"decision" yaml:"decision"`
	Code          CodeConfig          `koanf:"code" yaml:"code"`
	Error         ErrorConfig         `koanf:"error" yaml:"error"`
	Architecture  ArchitectureConfig  `koanf:"architecture" yaml:"architecture"`
	Configuration ConfigurationConfig `koanf:"configuration" yaml:"configuration"`

	// Tags maps a tag to the keywords that indicate it.
	Tags map[string][]string `koanf:"tags" yaml:"tags"`
}

// WorkflowConfig configures the WorkflowExtractor.
type WorkflowConfig struct {
	MinSteps      int      `koanf:"min_steps" yaml:"min_steps"`
	MaxSteps      int      `koanf:"max_steps" yaml:"max_steps"`
	MaxStepLength int      `koanf:"max_step_length" yaml:"max_step_length"`
	ActionVerbs   []string `koanf:"action_verbs" yaml:"action_verbs"`
}

// DecisionConfig configures the DecisionExtractor.
type DecisionConfig struct {
	Separator string `koanf:"separator" yaml:"separator"`
}

// CodeConfig configures the CodeExtractor.
type CodeConfig struct {
	LanguageExtensions  map[string][]string            `koanf:"language_extensions" yaml:"language_extensions"`
	FrameworkKeywords   map[string]map[string][]string `koanf:"framework_keywords" yaml:"framework_keywords"`
	StructureMarkers    []Rule                         `koanf:"structure_markers" yaml:"structure_markers"`
	DependencyManifests map[string][]string            `koanf:"dependency_manifests" yaml:"dependency_manifests"`
	DesignPatterns      []string                       `koanf:"design_patterns" yaml:"design_patterns"`
}

// ErrorConfig configures the ErrorExtractor.
type ErrorConfig struct {
	ErrorMarkers      []string `koanf:"error_markers" yaml:"error_markers"`
	SolutionMarkers   []string `koanf:"solution_markers" yaml:"solution_markers"`
	RootCauseMarkers  []string `koanf:"root_cause_markers" yaml:"root_cause_markers"`
	PreventionMarkers []string `koanf:"prevention_markers" yaml:"prevention_markers"`
	TypeKeywords      []Rule   `koanf:"type_keywords" yaml:"type_keywords"`
	MaxMessageLength  int      `koanf:"max_message_length" yaml:"max_message_length"`
	MaxSolutionLength int      `koanf:"max_solution_length" yaml:"max_solution_length"`
}

// ArchitectureConfig configures the ArchitectureExtractor.
type ArchitectureConfig struct {
	Markers             []string `koanf:"markers" yaml:"markers"`
	TypeKeywords        []Rule   `koanf:"type_keywords" yaml:"type_keywords"`
	PathHints           []Rule   `koanf:"path_hints" yaml:"path_hints"`
	ComponentMarkers    []string `koanf:"component_markers" yaml:"component_markers"`
	IntegrationKeywords []string `koanf:"integration_keywords" yaml:"integration_keywords"`
	ConstraintMarkers   []string `koanf:"constraint_markers" yaml:"constraint_markers"`
}

// ConfigurationConfig configures the ConfigurationExtractor.
type ConfigurationConfig struct {
	FileNames          []string            `koanf:"file_names" yaml:"file_names"`
	Extensions         []string            `koanf:"extensions" yaml:"extensions"`
	TypeFragments      []Rule              `koanf:"type_fragments" yaml:"type_fragments"`
	EnvironmentMarkers []Rule              `koanf:"environment_markers" yaml:"environment_markers"`
	Prerequisites      map[string][]string `koanf:"prerequisites" yaml:"prerequisites"`
	DefaultEnvironment string              `koanf:"default_environment" yaml:"default_environment"`
}

// DefaultConfig returns the built-in extractor settings.
func DefaultConfig() Config {
	return Config{
		Workflow: WorkflowConfig{
			MinSteps:      2,
			MaxSteps:      10,
			MaxStepLength: 100,
			ActionVerbs: []string{
				"create", "add", "write", "implement", "update", "fix", "refactor",
				"test", "deploy", "build", "run", "install", "configure", "remove",
				"delete", "migrate", "setup", "review", "merge", "document", "release",
			},
		},
		Decision: DecisionConfig{
			Separator: " | ",
		},
		Code: CodeConfig{
			LanguageExtensions: map[string][]string{
				"go":         {".go"},
				"python":     {".py"},
				"javascript": {".js", ".jsx", ".mjs", ".cjs"},
				"typescript": {".ts", ".tsx"},
				"java":       {".java"},
				"kotlin":     {".kt", ".kts"},
				"rust":       {".rs"},
				"ruby":       {".rb"},
				"csharp":     {".cs"},
				"php":        {".php"},
				"swift":      {".swift"},
				"vue":        {".vue"},
				"sql":        {".sql"},
				"shell":      {".sh", ".bash"},
			},
			FrameworkKeywords: map[string]map[string][]string{
				"go": {
					"gin":   {"gin"},
					"echo":  {"echo"},
					"cobra": {"cmd/"},
				},
				"python": {
					"django":  {"django", "manage.py", "settings.py", "views.py"},
					"flask":   {"flask", "app.py"},
					"fastapi": {"fastapi", "routers/"},
					"pytest":  {"conftest.py"},
				},
				"javascript": {
					"react":   {".jsx", "components/"},
					"express": {"express", "routes/", "server.js"},
					"next":    {"pages/", "next.config"},
				},
				"typescript": {
					"react":   {".tsx"},
					"angular": {".component.ts", ".module.ts"},
					"nestjs":  {".controller.ts", ".service.ts"},
				},
				"java": {
					"spring": {"controller", "application.java", "springboot"},
				},
				"ruby": {
					"rails": {"app/models", "app/controllers", "config/routes.rb"},
				},
				"rust": {
					"actix": {"actix"},
					"axum":  {"axum"},
				},
			},
			StructureMarkers: []Rule{
				{Name: "test", Keywords: []string{"test", "spec", "__tests__"}},
				{Name: "API", Keywords: []string{"api", "routes", "handler", "controller", "endpoint"}},
				{Name: "component", Keywords: []string{"component", "views", "widgets", "ui/"}},
				{Name: "model", Keywords: []string{"model", "schema", "entity", "migration"}},
				{Name: "service", Keywords: []string{"service"}},
				{Name: "utility", Keywords: []string{"util", "helper", "lib/", "common"}},
				{Name: "configuration", Keywords: []string{"config", "settings"}},
			},
			DependencyManifests: map[string][]string{
				"go":         {"go.mod"},
				"python":     {"requirements.txt", "pyproject.toml", "pipfile", "setup.py"},
				"javascript": {"package.json"},
				"typescript": {"package.json"},
				"java":       {"pom.xml", "build.gradle"},
				"kotlin":     {"build.gradle.kts"},
				"rust":       {"cargo.toml"},
				"ruby":       {"gemfile"},
				"php":        {"composer.json"},
			},
			DesignPatterns: []string{
				"factory", "adapter", "repository", "middleware", "observer",
				"singleton", "strategy", "builder", "decorator", "facade",
			},
		},
		Error: ErrorConfig{
			ErrorMarkers: []string{
				"error", "exception", "failed", "failure", "traceback", "panic",
				"crash", "crashed", "bug", "broken", "stack trace", "segfault",
			},
			SolutionMarkers: []string{
				"fixed", "resolved", "solved", "solution", "the fix", "workaround",
				"works now", "working now", "fix was",
			},
			RootCauseMarkers:  []string{"because", "caused by", "due to", "root cause"},
			PreventionMarkers: []string{"to prevent", "to avoid", "always", "make sure", "in the future"},
			TypeKeywords: []Rule{
				{Name: "timeout", Keywords: []string{"timeout", "timed out", "deadline exceeded"}},
				{Name: "permission", Keywords: []string{"permission denied", "forbidden", "unauthorized", "access denied"}},
				{Name: "connection", Keywords: []string{"connection refused", "connection reset", "econnrefused"}},
				{Name: "not_found", Keywords: []string{"not found", "no such file", "404", "enoent"}},
				{Name: "null_reference", Keywords: []string{"nil pointer", "null pointer", "undefined is not", "nonetype"}},
				{Name: "syntax", Keywords: []string{"syntax error", "syntaxerror", "unexpected token"}},
				{Name: "dependency", Keywords: []string{"module not found", "modulenotfounderror", "cannot find module", "importerror"}},
				{Name: "panic", Keywords: []string{"panic"}},
				{Name: "test_failure", Keywords: []string{"test failed", "tests failed", "assertion"}},
				{Name: "build", Keywords: []string{"build failed", "compilation", "compile error"}},
			},
			MaxMessageLength:  200,
			MaxSolutionLength: 500,
		},
		Architecture: ArchitectureConfig{
			Markers: []string{
				"architecture", "architectural", "adr", "system design",
				"microservice", "microservices", "monolith", "serverless", "event-driven",
			},
			TypeKeywords: []Rule{
				{Name: "microservices", Keywords: []string{"microservices", "microservice", "micro-service", "micro-services"}},
				{Name: "monolith", Keywords: []string{"monolith", "monolithic"}},
				{Name: "serverless", Keywords: []string{"serverless", "faas", "lambda functions"}},
				{Name: "event-driven", Keywords: []string{"event-driven", "event driven", "event sourcing", "pub/sub", "message queue"}},
				{Name: "layered", Keywords: []string{"layered", "n-tier", "three-tier", "hexagonal", "clean architecture"}},
				{Name: "mvc", Keywords: []string{"mvc", "model-view-controller"}},
				{Name: "restful", Keywords: []string{"restful", "rest api", "rest"}},
				{Name: "service-oriented", Keywords: []string{"service-oriented", "soa"}},
			},
			PathHints: []Rule{
				{Name: "microservices", Keywords: []string{"services/", "microservices/"}},
				{Name: "serverless", Keywords: []string{"functions/", "lambda/", "serverless.yml"}},
				{Name: "event-driven", Keywords: []string{"events/", "consumers/", "subscribers/"}},
				{Name: "mvc", Keywords: []string{"controllers/", "views/"}},
				{Name: "layered", Keywords: []string{"layers/", "domain/", "infrastructure/"}},
			},
			ComponentMarkers: []string{"services", "service", "modules", "module", "layers", "layer", "packages", "apps", "components"},
			IntegrationKeywords: []string{
				"postgres", "postgresql", "mysql", "sqlite", "mongodb", "redis", "kafka",
				"rabbitmq", "nats", "elasticsearch", "s3", "sqs", "grpc", "graphql",
				"stripe", "auth0", "oauth", "qdrant",
			},
			ConstraintMarkers: []string{"must", "cannot", "can't", "should not", "limit", "requirement", "compliance"},
		},
		Configuration: ConfigurationConfig{
			FileNames: []string{
				".env", "dockerfile", "docker-compose.yml", "docker-compose.yaml",
				"makefile", "package.json", "tsconfig.json", "pyproject.toml",
				"setup.cfg", "requirements.txt", "go.mod", "cargo.toml",
				"settings.py", "nginx.conf", "jenkinsfile", ".gitlab-ci.yml",
				".eslintrc", ".prettierrc", "webpack.config.js", "vite.config.ts",
				"kustomization.yaml", "values.yaml", "terraform.tfvars",
			},
			Extensions: []string{".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".properties", ".tf", ".tfvars", ".env"},
			TypeFragments: []Rule{
				{Name: "docker", Keywords: []string{"dockerfile", "docker-compose", ".dockerignore"}},
				{Name: "kubernetes", Keywords: []string{"k8s", "kubernetes", "helm", "kustomization", "values.yaml", "deployment.yaml"}},
				{Name: "terraform", Keywords: []string{".tf", "terraform"}},
				{Name: "ci", Keywords: []string{".github/workflows", ".gitlab-ci", "jenkinsfile", ".circleci"}},
				{Name: "environment", Keywords: []string{".env"}},
				{Name: "package", Keywords: []string{"package.json", "pyproject.toml", "go.mod", "cargo.toml", "requirements.txt"}},
				{Name: "build", Keywords: []string{"makefile", "webpack", "tsconfig", "vite.config"}},
				{Name: "lint", Keywords: []string{"eslint", "prettier", "golangci", "setup.cfg"}},
				{Name: "web-server", Keywords: []string{"nginx", "apache", "caddy"}},
				{Name: "application", Keywords: []string{"config", "settings"}},
			},
			EnvironmentMarkers: []Rule{
				{Name: "production", Keywords: []string{"prod", "production"}},
				{Name: "staging", Keywords: []string{"staging", "stage", "stg"}},
				{Name: "development", Keywords: []string{"dev", "development", "local"}},
				{Name: "test", Keywords: []string{"test", "testing", "ci"}},
			},
			Prerequisites: map[string][]string{
				"docker":      {"docker"},
				"kubernetes":  {"kubectl"},
				"terraform":   {"terraform"},
				"package":     {"package manager"},
				"web-server":  {"nginx"},
				"environment": {"environment variables"},
			},
			DefaultEnvironment: "default",
		},
		Tags: DefaultTagRules(),
	}
}

// Validate checks numeric thresholds and rule shapes.
func (c Config) Validate() error {
	var errs []error
	w := c.Workflow
	if w.MinSteps < 1 {
		errs = append(errs, fmt.Errorf("workflow.min_steps must be at least 1, got %d", w.MinSteps))
	}
	if w.MaxSteps < w.MinSteps {
		errs = append(errs, fmt.Errorf("workflow.max_steps (%d) must be >= workflow.min_steps (%d)", w.MaxSteps, w.MinSteps))
	}
	if w.MaxStepLength < 10 {
		errs = append(errs, fmt.Errorf("workflow.max_step_length must be at least 10, got %d", w.MaxStepLength))
	}
	if c.Error.MaxMessageLength < 10 {
		errs = append(errs, fmt.Errorf("error.max_message_length must be at least 10, got %d", c.Error.MaxMessageLength))
	}
	if c.Error.MaxSolutionLength < 10 {
		errs = append(errs, fmt.Errorf("error.max_solution_length must be at least 10, got %d", c.Error.MaxSolutionLength))
	}
	for section, rules := range map[string][]Rule{
		"code.structure_markers":            c.Code.StructureMarkers,
		"error.type_keywords":               c.Error.TypeKeywords,
		"architecture.type_keywords":        c.Architecture.TypeKeywords,
		"architecture.path_hints":           c.Architecture.PathHints,
		"configuration.type_fragments":      c.Configuration.TypeFragments,
		"configuration.environment_markers": c.Configuration.EnvironmentMarkers,
	} {
		for i, r := range rules {
			if r.Name == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: name is required", section, i))
			}
		}
	}
	return errors.Join(errs...)
}
