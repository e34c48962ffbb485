// Package resolver implements the Resolver: the operation that turns a
// template name and an untrusted parameter map into a concrete, injection-free
// command string plus the template's forwarded execution policy.
package resolver

import (
	"fmt"
	"sort"

	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/cmdpattern"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/paramtypes"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/registry"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/validator"
)

// postSubstitutionDangerSet is swept over the fully-assembled command after
// substitution, as a last line of defense: every value has already passed
// per-parameter validation, but the sweep catches any interaction between
// adjacent parameters that individual checks can't see (e.g. two otherwise
// valid strings concatenating into a dangerous sequence).
const postSubstitutionDangerSet = "`$;&|"

// Resolve looks up templateName, validates params against its declared
// parameters, substitutes them into the command pattern, and runs a final
// structural sweep over the assembled command. The returned policy carries
// the template's forwarded execution constraints verbatim; Resolve neither
// interprets nor enforces them.
func Resolve(reg *registry.Registry, templateName string, params map[string]any) (string, paramtypes.Policy, error) {
	tmpl, err := reg.Get(templateName)
	if err != nil {
		return "", paramtypes.Policy{}, err
	}

	if err := rejectUnknownParameters(templateName, tmpl, params); err != nil {
		return "", paramtypes.Policy{}, err
	}

	values, err := validateAll(templateName, tmpl, params)
	if err != nil {
		return "", paramtypes.Policy{}, err
	}

	pattern, err := cmdpattern.Parse(tmpl.Command)
	if err != nil {
		return "", paramtypes.Policy{}, runerrors.Configuration(templateName, "command pattern is malformed", err)
	}

	rendered := make(map[string]string, len(values))
	for name, val := range values {
		rendered[name] = val.String()
	}
	command, err := cmdpattern.Substitute(pattern, rendered)
	if err != nil {
		return "", paramtypes.Policy{}, runerrors.Validation(templateName, "", err.Error())
	}

	if err := sweepAssembledCommand(templateName, command); err != nil {
		return "", paramtypes.Policy{}, err
	}

	return command, tmpl.Policy(), nil
}

func rejectUnknownParameters(templateName string, tmpl *paramtypes.TemplateDef, params map[string]any) error {
	var unknown []string
	for name := range params {
		if _, declared := tmpl.Parameters[name]; !declared {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return runerrors.Validation(templateName, "", fmt.Sprintf("unknown parameters: %v", unknown))
}

// validateAll validates every declared parameter in lexicographic order, so
// that which parameter's error surfaces first is deterministic across calls.
func validateAll(templateName string, tmpl *paramtypes.TemplateDef, params map[string]any) (map[string]paramtypes.Value, error) {
	names := make([]string, 0, len(tmpl.Parameters))
	for name := range tmpl.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]paramtypes.Value, len(names))
	for _, name := range names {
		def := tmpl.Parameters[name]
		raw, present := params[name]
		val, ok, err := validator.Validate(templateName, name, def, raw, present)
		if err != nil {
			return nil, err
		}
		if ok {
			values[name] = val
		}
	}
	return values, nil
}

func sweepAssembledCommand(templateName, command string) error {
	for _, c := range command {
		if containsRune(postSubstitutionDangerSet, c) {
			return runerrors.SecurityViolation(templateName, "", "assembled command contains a disallowed character after substitution")
		}
	}
	return nil
}

func containsRune(set string, c rune) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}
