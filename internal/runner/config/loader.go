// Package config implements the Template Loader: parsing the YAML template
// configuration document into Template Definitions and building them into an
// immutable Registry, failing all-or-nothing on any structural invariant
// violation. Adapted from the teacher's internal/runner/config/loader.go and
// internal/runner/template/template.go, split the way the teacher splits its
// own Loader from its template.Engine.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/luiscnext/secure-terminal-execution-server/internal/common"
	"github.com/luiscnext/secure-terminal-execution-server/internal/logging"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/cmdpattern"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/paramtypes"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/registry"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
	"github.com/luiscnext/secure-terminal-execution-server/internal/safefileio"
	"gopkg.in/yaml.v3"
)

// securityLogger is package-level rather than threaded through Build's
// signature: logging a risky template policy is a side effect analogous to
// slog.Default() itself being package-level, not a dependency Build's
// callers need to supply.
var securityLogger = logging.NewSecurityLogger()

// RawTemplate is a Template Definition as decoded straight from YAML, before
// any structural invariant has been checked. It is an alias rather than a
// distinct type since the wire shape and the validated shape share every
// field; Build is what turns a slice of these into a Registry.
type RawTemplate = paramtypes.TemplateDef

// document mirrors the top-level shape of the template configuration file:
// a single `templates:` map from name to Template Definition.
type document struct {
	Templates map[string]*RawTemplate `yaml:"templates"`
}

// sentinelToken stands in for a placeholder's substituted value when running
// the unconditional danger-set check against a command pattern. It must
// itself be free of every danger-set character.
const sentinelToken = "SENTINEL"

// leadingSudoOrSu matches a leading "sudo" or "su" token, word-boundary only,
// resolving spec's documented Open Question about the unbounded "sudo|su "
// regex flagging words like "pseudoscience".
var leadingSudoOrSu = regexp.MustCompile(`^\s*(sudo|su)\b`)

// Parse decodes the raw bytes of a template configuration document into a
// slice of RawTemplate, filling each one's Name from its map key. It performs
// no structural validation beyond what the YAML decoder itself enforces;
// Build does the rest. Exported separately from Load so tests can exercise
// Build's invariants without a filesystem.
func Parse(data []byte) ([]*RawTemplate, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, runerrors.Configuration("", "failed to parse template document", err)
	}

	out := make([]*RawTemplate, 0, len(doc.Templates))
	for name, tmpl := range doc.Templates {
		if tmpl == nil {
			tmpl = &RawTemplate{}
		}
		tmpl.Name = name
		for pname, def := range tmpl.Parameters {
			if def == nil {
				def = &paramtypes.ParameterDef{}
			}
			def.Name = pname
			tmpl.Parameters[pname] = def
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// Build runs every structural invariant over raw and, if all templates pass,
// constructs a Registry. It is all-or-nothing: the first invariant violation
// aborts the whole build, and no partially-populated Registry is ever returned.
func Build(raw []*RawTemplate) (*registry.Registry, error) {
	templates := make(map[string]*paramtypes.TemplateDef, len(raw))
	for _, tmpl := range raw {
		if _, exists := templates[tmpl.Name]; exists {
			return nil, runerrors.Configuration(tmpl.Name, "duplicate template name", nil)
		}
		if err := buildTemplate(tmpl); err != nil {
			return nil, err
		}
		templates[tmpl.Name] = tmpl
	}
	return registry.New(templates), nil
}

// Load reads the template configuration document from path via
// safefileio.SafeReadFile, then runs Parse and Build in sequence. This is
// the entry point used both at startup and by the admin reload endpoint.
// defaultSandboxImage is substituted onto any template that declares no
// sandbox_image override of its own, per the process configuration's
// templates.default_sandbox_image.
func Load(path, defaultSandboxImage string) (*registry.Registry, error) {
	data, err := safefileio.SafeReadFile(path)
	if err != nil {
		return nil, runerrors.Configuration("", fmt.Sprintf("failed to read template document %q", path), err)
	}
	raw, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyDefaultSandboxImage(raw, defaultSandboxImage)
	return Build(raw)
}

// applyDefaultSandboxImage fills in defaultImage on any template whose
// sandbox_image is empty. Applied between Parse and Build so the registry
// Build produces already holds the final value callers will receive back
// from Policy().
func applyDefaultSandboxImage(raw []*RawTemplate, defaultImage string) {
	if defaultImage == "" {
		return
	}
	for _, tmpl := range raw {
		if tmpl.SandboxImage == "" {
			tmpl.SandboxImage = defaultImage
		}
	}
}

func buildTemplate(tmpl *paramtypes.TemplateDef) error {
	if strings.TrimSpace(tmpl.Command) == "" {
		return runerrors.Configuration(tmpl.Name, "command must not be empty", nil)
	}
	if tmpl.Category == "" {
		tmpl.Category = "general"
	}
	if tmpl.Timeout <= 0 {
		return runerrors.Configuration(tmpl.Name, "timeout must be a positive integer", nil)
	}
	if tmpl.CPULimit <= 0 {
		return runerrors.Configuration(tmpl.Name, "cpu_limit must be positive", nil)
	}
	if tmpl.MemoryLimit != "" && !isSizeLiteral(tmpl.MemoryLimit) {
		return runerrors.Configuration(tmpl.Name, fmt.Sprintf("memory_limit %q is not a valid size literal", tmpl.MemoryLimit), nil)
	}

	if tmpl.AllowNetwork {
		securityLogger.LogNetworkAccessGranted(tmpl.Name)
	}
	if tmpl.AllowFileWrite {
		securityLogger.LogFileWriteGranted(tmpl.Name)
	}
	securityLogger.LogTimeoutConfiguration(tmpl.Name, tmpl.Timeout, "template")

	for name, def := range tmpl.Parameters {
		if err := buildParameterDef(tmpl.Name, name, def); err != nil {
			return err
		}
		if def.Type == paramtypes.TypePath && len(def.AllowedPaths) == 0 && len(def.ForbiddenPaths) == 0 {
			securityLogger.LogUnboundedPathParameter(tmpl.Name, name)
		}
	}

	pattern, err := cmdpattern.Parse(tmpl.Command)
	if err != nil {
		return runerrors.Configuration(tmpl.Name, "command pattern is malformed", err)
	}
	if err := checkPlaceholderCorrespondence(tmpl.Name, pattern, tmpl.Parameters); err != nil {
		return err
	}
	if err := checkUnconditionalDangerSet(tmpl.Name, tmpl.Command, pattern); err != nil {
		return err
	}

	return nil
}

func buildParameterDef(templateName, paramName string, def *paramtypes.ParameterDef) error {
	switch def.Type {
	case paramtypes.TypeString, paramtypes.TypeInt, paramtypes.TypeFloat, paramtypes.TypeBool, paramtypes.TypePath, paramtypes.TypeEnum:
	default:
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has unknown type %q", paramName, def.Type), nil)
	}

	if def.Type == paramtypes.TypeEnum && len(def.AllowedValues) == 0 {
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q is enum but allowed_values is empty", paramName), nil)
	}

	if def.MinValue != nil && def.MaxValue != nil && *def.MinValue > *def.MaxValue {
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has min_value > max_value", paramName), nil)
	}

	if def.MinLength != nil && *def.MinLength < 0 {
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has a negative min_length", paramName), nil)
	}
	if def.MaxLength != nil && *def.MaxLength < 0 {
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has a negative max_length", paramName), nil)
	}
	if def.MinLength != nil && def.MaxLength != nil && *def.MinLength > *def.MaxLength {
		return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has min_length > max_length", paramName), nil)
	}

	if def.Pattern != "" {
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has an invalid pattern: %s", paramName, err), err)
		}
		def.SetCompiledPattern(re)
	}

	return nil
}

// checkPlaceholderCorrespondence enforces the one-to-one relationship spec'd
// between a template's declared parameters and the placeholders in its
// command: every placeholder must have a matching parameter, and every
// parameter must be referenced exactly once (a parameter with no matching
// placeholder is dead and masks intent).
func checkPlaceholderCorrespondence(templateName string, pattern *cmdpattern.Pattern, parameters map[string]*paramtypes.ParameterDef) error {
	referenced := common.SliceToSet(pattern.ParameterNames())
	for name := range referenced {
		if _, declared := parameters[name]; !declared {
			return runerrors.Configuration(templateName, fmt.Sprintf("command references undeclared parameter %q", name), nil)
		}
	}
	for name := range parameters {
		if _, ok := referenced[name]; !ok {
			return runerrors.Configuration(templateName, fmt.Sprintf("parameter %q is never referenced in command", name), nil)
		}
	}
	return nil
}

// checkUnconditionalDangerSet implements the structural check from the
// unconditional danger set: every character in the set, the literal
// substring "../", and a leading sudo/su token are fatal regardless of any
// parameter declaration. Placeholders are expanded to a neutral sentinel
// before scanning so that the check runs over what the command actually
// looks like once assembled, without ever touching untrusted parameter
// values (those are validated separately, per call, by the resolver).
func checkUnconditionalDangerSet(templateName, rawCommand string, pattern *cmdpattern.Pattern) error {
	if leadingSudoOrSu.MatchString(rawCommand) {
		return runerrors.Configuration(templateName, "command begins with a sudo or su token", nil)
	}

	rendered := pattern.SentinelText(sentinelToken)
	const dangerChars = "`$;&|<>\n\r\\"
	if strings.ContainsAny(rendered, dangerChars) {
		return runerrors.Configuration(templateName, "command contains a character from the unconditional danger set", nil)
	}
	if strings.Contains(rendered, "../") {
		return runerrors.Configuration(templateName, `command contains the literal substring "../"`, nil)
	}
	return nil
}

// isSizeLiteral reports whether s looks like a memory size literal: a
// non-negative number optionally followed by a b/k/m/g unit (case-insensitive,
// with or without a trailing 'b'). Parsing is delegated to the sandbox
// runtime at dispatch time; the loader only checks the shape is plausible.
var sizeLiteralPattern = regexp.MustCompile(`(?i)^[0-9]+(\.[0-9]+)?(b|k|kb|m|mb|g|gb)?$`)

func isSizeLiteral(s string) bool {
	return sizeLiteralPattern.MatchString(s)
}
