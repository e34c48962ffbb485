// Package validator implements the Parameter Validator: a pure function
// taking a raw value and a Parameter Definition and producing either a
// coerced, constraint-checked Value or a typed error.
package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/paramtypes"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
)

// stringDangerSet is the set of characters that make a coerced string
// parameter value unsafe to substitute into a command, per the metacharacter
// check in the validator's constraint-checking step. Distinct from the
// template-level unconditional danger set, which also covers backslash,
// the "../" substring and the sudo/su leading token.
const stringDangerSet = "`$;&|><\n\r"

// truthyStrings are the case-insensitive string forms that coerce to true
// for a bool parameter; anything else coerces to false.
var truthyStrings = map[string]bool{"true": true, "1": true, "yes": true, "on": true}

// Validate runs the full pipeline for one parameter: presence, type
// coercion, then type-specific constraint checks. templateName is carried
// only for error context.
func Validate(templateName, paramName string, def *paramtypes.ParameterDef, raw any, present bool) (paramtypes.Value, bool, error) {
	if !present || raw == nil {
		if def.Default != nil {
			return coerceAndCheck(templateName, paramName, def, *def.Default)
		}
		if def.Required {
			return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "parameter is required")
		}
		return paramtypes.Value{}, false, nil
	}
	return coerceAndCheck(templateName, paramName, def, raw)
}

func coerceAndCheck(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	switch def.Type {
	case paramtypes.TypeString:
		return validateString(templateName, paramName, def, raw)
	case paramtypes.TypeInt:
		return validateInt(templateName, paramName, def, raw)
	case paramtypes.TypeFloat:
		return validateFloat(templateName, paramName, def, raw)
	case paramtypes.TypeBool:
		return validateBool(templateName, paramName, raw)
	case paramtypes.TypePath:
		return validatePathParam(templateName, paramName, def, raw)
	case paramtypes.TypeEnum:
		return validateEnum(templateName, paramName, def, raw)
	default:
		return paramtypes.Value{}, false, runerrors.Configuration(templateName, fmt.Sprintf("parameter %q has unknown type %q", paramName, def.Type), nil)
	}
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func validateString(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	s := stringify(raw)

	if def.MinLength != nil && len(s) < *def.MinLength {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("length %d is below min_length %d", len(s), *def.MinLength))
	}
	if def.MaxLength != nil && len(s) > *def.MaxLength {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("length %d exceeds max_length %d", len(s), *def.MaxLength))
	}

	if re := def.CompiledPattern(); re != nil {
		if !re.MatchString(s) {
			return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value does not match pattern")
		}
	}

	if strings.ContainsAny(s, stringDangerSet) {
		return paramtypes.Value{}, false, runerrors.SecurityViolation(templateName, paramName, "value contains a disallowed metacharacter")
	}

	return paramtypes.StringValue(s), true, nil
}

func validateInt(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	var n int64
	switch v := raw.(type) {
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		if v != float64(int64(v)) {
			return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value has a fractional part, int required")
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value is not a valid integer")
		}
		n = parsed
	default:
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value is not a valid integer")
	}

	if def.MinValue != nil && float64(n) < *def.MinValue {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("value %d is below min_value %g", n, *def.MinValue))
	}
	if def.MaxValue != nil && float64(n) > *def.MaxValue {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("value %d exceeds max_value %g", n, *def.MaxValue))
	}

	return paramtypes.IntValue(n), true, nil
}

func validateFloat(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value is not a valid number")
		}
		f = parsed
	default:
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value is not a valid number")
	}

	if def.MinValue != nil && f < *def.MinValue {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("value %g is below min_value %g", f, *def.MinValue))
	}
	if def.MaxValue != nil && f > *def.MaxValue {
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
			fmt.Sprintf("value %g exceeds max_value %g", f, *def.MaxValue))
	}

	return paramtypes.FloatValue(f), true, nil
}

func validateBool(templateName, paramName string, raw any) (paramtypes.Value, bool, error) {
	switch v := raw.(type) {
	case bool:
		return paramtypes.BoolValue(v), true, nil
	case string:
		return paramtypes.BoolValue(truthyStrings[strings.ToLower(v)]), true, nil
	case float64:
		return paramtypes.BoolValue(v != 0), true, nil
	case int64:
		return paramtypes.BoolValue(v != 0), true, nil
	case int:
		return paramtypes.BoolValue(v != 0), true, nil
	default:
		return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName, "value is not a valid boolean")
	}
}

func validatePathParam(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	s := stringify(raw)
	canonical, err := validatePath(templateName, paramName, s, def.AllowedPaths, def.ForbiddenPaths)
	if err != nil {
		return paramtypes.Value{}, false, err
	}
	return paramtypes.PathValue(canonical), true, nil
}

func validateEnum(templateName, paramName string, def *paramtypes.ParameterDef, raw any) (paramtypes.Value, bool, error) {
	s := stringify(raw)
	for _, allowed := range def.AllowedValues {
		if allowed == s {
			return paramtypes.StringValue(s), true, nil
		}
	}
	return paramtypes.Value{}, false, runerrors.Validation(templateName, paramName,
		fmt.Sprintf("value %q is not one of allowed_values", s))
}
