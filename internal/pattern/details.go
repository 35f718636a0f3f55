package pattern

import (
	"encoding/json"
	"fmt"
	"time"
)

// Details is the variant payload of a pattern. The set of implementations is
// closed: one struct per Type.
type Details interface {
	// Kind returns the pattern type this payload belongs to.
	Kind() Type

	clone() Details
}

// WorkflowDetails describes an ordered sequence of steps.
type WorkflowDetails struct {
	Steps             []string          `json:"steps"`
	Conditions        map[string]string `json:"conditions,omitempty"`
	EstimatedDuration time.Duration     `json:"estimated_duration,omitempty"`
}

// DecisionDetails describes a choice between options.
type DecisionDetails struct {
	Options                []string          `json:"options,omitempty"`
	ChosenOption           string            `json:"chosen_option"`
	Rationale              string            `json:"rationale,omitempty"`
	AlternativesConsidered []string          `json:"alternatives_considered,omitempty"`
	Outcome                string            `json:"outcome,omitempty"`
	Context                map[string]string `json:"context,omitempty"`
}

// CodeDetails describes a code structure observed in file changes.
type CodeDetails struct {
	Language       string   `json:"language"`
	Framework      string   `json:"framework,omitempty"`
	StructureType  string   `json:"structure_type"`
	Imports        []string `json:"imports,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	AntiPatterns   []string `json:"anti_patterns,omitempty"`
	DesignPatterns []string `json:"design_patterns,omitempty"`
	Files          []string `json:"files,omitempty"`
}

// ErrorDetails describes a failure and, when resolved, its fix.
type ErrorDetails struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	StackTrace   string `json:"stack_trace,omitempty"`
	Solution     string `json:"solution,omitempty"`
	RootCause    string `json:"root_cause,omitempty"`
	Prevention   string `json:"prevention,omitempty"`
	Resolved     bool   `json:"resolved"`
}

// ArchitectureDetails describes a system-level design choice.
type ArchitectureDetails struct {
	ArchitectureType string   `json:"architecture_type"`
	Components       []string `json:"components,omitempty"`
	Integrations     []string `json:"integrations,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	TradeOffs        []string `json:"trade_offs,omitempty"`
}

// ConfigurationDetails describes a configuration recipe.
// Secrets holds names only, never values.
type ConfigurationDetails struct {
	ConfigType    string            `json:"config_type"`
	Environment   string            `json:"environment"`
	Settings      map[string]string `json:"settings,omitempty"`
	Secrets       []string          `json:"secrets,omitempty"`
	Prerequisites []string          `json:"prerequisites,omitempty"`
	Files         []string          `json:"files,omitempty"`
}

func (*WorkflowDetails) Kind() Type      { return TypeWorkflow }
func (*DecisionDetails) Kind() Type      { return TypeDecision }
func (*CodeDetails) Kind() Type          { return TypeCode }
func (*ErrorDetails) Kind() Type         { return TypeError }
func (*ArchitectureDetails) Kind() Type  { return TypeArchitecture }
func (*ConfigurationDetails) Kind() Type { return TypeConfiguration }

func (d *WorkflowDetails) clone() Details {
	c := *d
	c.Steps = cloneStrings(d.Steps)
	c.Conditions = cloneMap(d.Conditions)
	return &c
}

func (d *DecisionDetails) clone() Details {
	c := *d
	c.Options = cloneStrings(d.Options)
	c.AlternativesConsidered = cloneStrings(d.AlternativesConsidered)
	c.Context = cloneMap(d.Context)
	return &c
}

func (d *CodeDetails) clone() Details {
	c := *d
	c.Imports = cloneStrings(d.Imports)
	c.Dependencies = cloneStrings(d.Dependencies)
	c.AntiPatterns = cloneStrings(d.AntiPatterns)
	c.DesignPatterns = cloneStrings(d.DesignPatterns)
	c.Files = cloneStrings(d.Files)
	return &c
}

func (d *ErrorDetails) clone() Details {
	c := *d
	return &c
}

func (d *ArchitectureDetails) clone() Details {
	c := *d
	c.Components = cloneStrings(d.Components)
	c.Integrations = cloneStrings(d.Integrations)
	c.Constraints = cloneStrings(d.Constraints)
	c.TradeOffs = cloneStrings(d.TradeOffs)
	return &c
}

func (d *ConfigurationDetails) clone() Details {
	c := *d
	c.Settings = cloneMap(d.Settings)
	c.Secrets = cloneStrings(d.Secrets)
	c.Prerequisites = cloneStrings(d.Prerequisites)
	c.Files = cloneStrings(d.Files)
	return &c
}

// NewDetails returns an empty payload for the given type.
func NewDetails(t Type) (Details, error) {
	switch t {
	case TypeWorkflow:
		return &WorkflowDetails{}, nil
	case TypeDecision:
		return &DecisionDetails{}, nil
	case TypeCode:
		return &CodeDetails{}, nil
	case TypeError:
		return &ErrorDetails{}, nil
	case TypeArchitecture:
		return &ArchitectureDetails{}, nil
	case TypeConfiguration:
		return &ConfigurationDetails{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
}

// DecodeDetails decodes a JSON payload into the Details variant for t.
// An empty payload yields an empty variant.
func DecodeDetails(t Type, raw []byte) (Details, error) {
	d, err := NewDetails(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decoding %s details: %w", t, err)
	}
	return d, nil
}

// patternJSON is the wire form of Pattern; Details is carried as a raw
// payload discriminated by pattern_type.
type patternJSON struct {
	alias
	Details json.RawMessage `json:"details,omitempty"`
}

type alias Pattern

// MarshalJSON encodes the pattern together with its details payload.
func (p Pattern) MarshalJSON() ([]byte, error) {
	out := patternJSON{alias: alias(p)}
	if p.Details != nil {
		raw, err := json.Marshal(p.Details)
		if err != nil {
			return nil, err
		}
		out.Details = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a pattern, selecting the details variant by type.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var in patternJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Pattern(in.alias)
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	d, err := DecodeDetails(p.Type, in.Details)
	if err != nil {
		return err
	}
	p.Details = d
	return nil
}
