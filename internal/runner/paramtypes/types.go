package paramtypes

import "regexp"

// ParamType is the declared type tag of a Parameter Definition.
type ParamType string

// The six parameter type tags a template author may declare.
const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypePath   ParamType = "path"
	TypeEnum   ParamType = "enum"
)

// ParameterDef describes one formal parameter's contract: type, presence
// requirement, default, and type-specific constraints. Constructed by the
// loader from the YAML document; every field below maps directly to a key
// under `templates.<name>.parameters.<pname>`.
type ParameterDef struct {
	Name     string    `yaml:"-" json:"name"`
	Type     ParamType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Default  *string   `yaml:"default" json:"default,omitempty"`

	MinLength *int `yaml:"min_length" json:"min_length,omitempty"`
	MaxLength *int `yaml:"max_length" json:"max_length,omitempty"`

	MinValue *float64 `yaml:"min_value" json:"min_value,omitempty"`
	MaxValue *float64 `yaml:"max_value" json:"max_value,omitempty"`

	Pattern        string         `yaml:"pattern" json:"pattern,omitempty"`
	compiledRegexp *regexp.Regexp // compiled once at load time

	AllowedValues  []string `yaml:"allowed_values" json:"allowed_values,omitempty"`
	AllowedPaths   []string `yaml:"allowed_paths" json:"allowed_paths,omitempty"`
	ForbiddenPaths []string `yaml:"forbidden_paths" json:"forbidden_paths,omitempty"`
}

// CompiledPattern returns the pattern compiled at load time, or nil if no
// pattern was declared. The loader is the only place that calls SetCompiledPattern;
// the validator only ever reads it.
func (p *ParameterDef) CompiledPattern() *regexp.Regexp {
	return p.compiledRegexp
}

// SetCompiledPattern stores the regexp compiled from Pattern. Called once by
// the loader; never mutated afterwards, so concurrent reads from Resolve are safe.
func (p *ParameterDef) SetCompiledPattern(re *regexp.Regexp) {
	p.compiledRegexp = re
}

// Policy bundles a template's forwarded execution constraints. It is an
// opaque record from the core's point of view: the core neither interprets
// Permissions nor enforces the limits, only carries them to the sandbox runtime.
type Policy struct {
	Timeout        int            `json:"timeout"`
	MemoryLimit    string         `json:"memory_limit,omitempty"`
	CPULimit       int            `json:"cpu_limit"`
	AllowNetwork   bool           `json:"allow_network"`
	AllowFileWrite bool           `json:"allow_file_write"`
	SandboxImage   string         `json:"sandbox_image,omitempty"`
	Permissions    map[string]any `json:"permissions,omitempty"`
}

// TemplateDef bundles a command pattern, its named parameters, and its
// execution policy. Constructed and structurally validated by the loader;
// immutable once inserted into a Registry.
type TemplateDef struct {
	Name        string                   `yaml:"-" json:"name"`
	Command     string                   `yaml:"command" json:"command"`
	Description string                   `yaml:"description" json:"description,omitempty"`
	Category    string                   `yaml:"category" json:"category"`
	Parameters  map[string]*ParameterDef `yaml:"parameters" json:"parameters,omitempty"`

	Permissions    map[string]any `yaml:"permissions" json:"permissions,omitempty"`
	Timeout        int            `yaml:"timeout" json:"timeout"`
	MemoryLimit    string         `yaml:"memory_limit" json:"memory_limit,omitempty"`
	CPULimit       int            `yaml:"cpu_limit" json:"cpu_limit"`
	AllowNetwork   bool           `yaml:"allow_network" json:"allow_network"`
	AllowFileWrite bool           `yaml:"allow_file_write" json:"allow_file_write"`
	SandboxImage   string         `yaml:"sandbox_image" json:"sandbox_image,omitempty"`
}

// Policy extracts the template's forwarded execution constraints as an
// opaque bundle for the runtime.
func (t *TemplateDef) Policy() Policy {
	return Policy{
		Timeout:        t.Timeout,
		MemoryLimit:    t.MemoryLimit,
		CPULimit:       t.CPULimit,
		AllowNetwork:   t.AllowNetwork,
		AllowFileWrite: t.AllowFileWrite,
		SandboxImage:   t.SandboxImage,
		Permissions:    t.Permissions,
	}
}
