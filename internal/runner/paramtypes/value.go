// Package paramtypes defines the data model for parameter and template
// definitions: the Value tagged sum, ParamType enum, ParameterDef, and
// TemplateDef structs that the loader builds and the validator/resolver consume.
package paramtypes

import "fmt"

// Kind identifies which field of a Value is populated.
type Kind int

// The five value kinds a resolved parameter can carry. KindPath is stored
// identically to KindString (a validated, canonicalized filesystem path);
// it exists as a distinct Kind so callers can tell a path apart from an
// ordinary string without re-deriving that fact from the parameter's type.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Value is a tagged union holding exactly one concrete representation of a
// resolved parameter, selected by Kind. Only the field matching Kind is
// meaningful; the others are zero.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Flt  float64
	Bln  bool
}

// String renders the value in the form it is substituted into a command:
// the literal text, independent of Kind.
func (v Value) String() string {
	switch v.Kind {
	case KindString, KindPath:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Flt)
	case KindBool:
		if v.Bln {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// StringValue wraps a string as a Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// PathValue wraps an already-canonicalized path as a Value.
func PathValue(s string) Value { return Value{Kind: KindPath, Str: s} }

// IntValue wraps an int64 as a Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue wraps a float64 as a Value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Flt: f} }

// BoolValue wraps a bool as a Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bln: b} }
