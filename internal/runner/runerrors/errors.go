// Package runerrors defines the resolver's error taxonomy: four kinds a caller
// can branch on, each a typed value wrapping a sentinel so errors.Is still works
// across the package boundary.
package runerrors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is comparisons. Callers outside this package should
// compare against these, not against the concrete *Error type.
var (
	// ErrCommandNotFound means the requested template name has no entry in the registry.
	ErrCommandNotFound = errors.New("command not found")
	// ErrValidation means a parameter failed presence, type, or constraint checks.
	ErrValidation = errors.New("parameter validation failed")
	// ErrSecurityViolation means a parameter or the resolved command tripped a
	// path-safety or unconditional-danger check.
	ErrSecurityViolation = errors.New("security violation")
	// ErrConfiguration means the template document itself is structurally invalid
	// (only possible at load/reload time, never during Resolve).
	ErrConfiguration = errors.New("configuration error")
)

// Kind distinguishes the four error categories for HTTP status mapping and
// audit-record classification.
type Kind int

const (
	// KindCommandNotFound corresponds to ErrCommandNotFound.
	KindCommandNotFound Kind = iota
	// KindValidation corresponds to ErrValidation.
	KindValidation
	// KindSecurityViolation corresponds to ErrSecurityViolation.
	KindSecurityViolation
	// KindConfiguration corresponds to ErrConfiguration.
	KindConfiguration
)

// String renders the kind as a lowercase label suitable for log fields and
// JSON error envelopes.
func (k Kind) String() string {
	switch k {
	case KindCommandNotFound:
		return "command_not_found"
	case KindValidation:
		return "validation"
	case KindSecurityViolation:
		return "security_violation"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindCommandNotFound:
		return ErrCommandNotFound
	case KindValidation:
		return ErrValidation
	case KindSecurityViolation:
		return ErrSecurityViolation
	case KindConfiguration:
		return ErrConfiguration
	default:
		return nil
	}
}

// Error is the concrete typed error value returned by the validator, loader,
// and resolver. It carries enough context for an audit record without
// leaking the offending parameter value into a client-facing message.
type Error struct {
	Kind         Kind
	TemplateName string
	Parameter    string // empty when the error isn't parameter-specific
	Message      string
	Cause        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s: template %q, parameter %q: %s", e.Kind, e.TemplateName, e.Parameter, e.Message)
	}
	if e.TemplateName != "" {
		return fmt.Sprintf("%s: template %q: %s", e.Kind, e.TemplateName, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ClientMessage renders a parameter-free summary safe to return in an HTTP
// response body. Unlike Error(), it never includes Parameter or Message —
// either could echo back an offending value — so the audit log, not the
// client, is the only place the full detail is ever written.
func (e *Error) ClientMessage() string {
	if e.TemplateName == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: template %q", e.Kind, e.TemplateName)
}

// Is enables errors.Is(err, runerrors.ErrValidation) and similar comparisons
// against the kind's sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind.sentinel(), target)
}

// Unwrap exposes the underlying cause, if any, for errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFound builds a CommandNotFound error for the named template.
func NotFound(templateName string) *Error {
	return &Error{
		Kind:         KindCommandNotFound,
		TemplateName: templateName,
		Message:      "no template registered with this name",
	}
}

// Validation builds a Validation error for the named parameter.
func Validation(templateName, parameter, message string) *Error {
	return &Error{
		Kind:         KindValidation,
		TemplateName: templateName,
		Parameter:    parameter,
		Message:      message,
	}
}

// SecurityViolation builds a SecurityViolation error for the named parameter.
// Parameter is retained on the value for audit logging; HTTP handlers must
// omit it from any response body per the audit-emission contract.
func SecurityViolation(templateName, parameter, message string) *Error {
	return &Error{
		Kind:         KindSecurityViolation,
		TemplateName: templateName,
		Parameter:    parameter,
		Message:      message,
	}
}

// Configuration builds a Configuration error, optionally wrapping a cause
// from the underlying YAML decoder or a structural-invariant check.
func Configuration(templateName, message string, cause error) *Error {
	return &Error{
		Kind:         KindConfiguration,
		TemplateName: templateName,
		Message:      message,
		Cause:        cause,
	}
}
