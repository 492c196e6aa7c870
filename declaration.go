package chanconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/chanconfig/script"
)

// Parser converts a raw configured value into its final typed form.
// Parsers receive whatever the winning source produced: usually a string
// (environment variables, interpolated values) but possibly any value a
// config file returned.
type Parser func(any) (any, error)

// Kind selects the resolution semantics of a declaration. The kind is
// fixed when the declaration is constructed, so dispatch at resolve time
// is exhaustive.
type Kind uint8

const (
	// KindScalar resolves a single value through interpolation and the
	// declared parser.
	KindScalar Kind = iota
	// KindList concatenates the configured list onto the default.
	KindList
	// KindDict folds every raw value under the key's prefix into a nested
	// map on top of the default.
	KindDict
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Verbatim is a string exempt from interpolation.
type Verbatim = script.Verbatim

// Map declares a group of parameters. Values must be Decl or nested Map;
// anything else is a malformed declaration, reported at registration time.
type Map map[string]any

// Decl declares a single parameter: a default, a parser, and a docstring.
// Construct with Param, Required, ListParam, RequiredList, or DictParam.
type Decl struct {
	// Default is the value used when no source configures the parameter.
	Default any

	// Parse converts the resolved raw value to its typed form. Only scalar
	// declarations carry a parser.
	Parse Parser

	// Doc briefly explains the parameter.
	Doc string

	kind     Kind
	required bool
	allowNil bool
}

// Param declares a scalar parameter with a default.
func Param(def any, parse Parser, doc string) Decl {
	return Decl{Default: def, Parse: parse, Doc: doc, kind: KindScalar}
}

// Required declares a scalar parameter with no usable default; a value
// must appear in some source or resolution fails.
func Required(parse Parser, doc string) Decl {
	return Decl{Parse: parse, Doc: doc, kind: KindScalar, required: true}
}

// ListParam declares a list parameter. Configured lists are prepended to
// the default.
func ListParam(def []any, doc string) Decl {
	return Decl{Default: def, Doc: doc, kind: KindList}
}

// RequiredList declares a list parameter that must be configured.
func RequiredList(doc string) Decl {
	return Decl{Doc: doc, kind: KindList, required: true}
}

// DictParam declares a nested-map parameter. Raw values under the key's
// prefix are folded onto a deep copy of the default.
func DictParam(def map[string]any, doc string) Decl {
	return Decl{Default: def, Doc: doc, kind: KindDict}
}

// Kind returns the declaration's resolution semantics.
func (d Decl) Kind() Kind { return d.kind }

// IsRequired reports whether the parameter must be configured by a source.
func (d Decl) IsRequired() bool { return d.required }

// AllowNil marks the declaration's parser as able to parse nil. Without
// it, a nil value short-circuits to nil and the parser is never invoked.
func (d Decl) AllowNil() Decl {
	d.allowNil = true
	return d
}

// validate reports declaration shape errors at registration time.
func (d Decl) validate(dotted string) error {
	if d.kind == KindScalar && d.Parse == nil {
		return fmt.Errorf("%w: %s has no parser", ErrMalformedDeclaration, dotted)
	}
	if d.kind == KindList {
		if _, ok := d.Default.([]any); d.Default != nil && !ok {
			return fmt.Errorf("%w: %s default (%v) must be a list", ErrMalformedDeclaration, dotted, d.Default)
		}
	}
	if d.kind == KindDict {
		if _, ok := d.Default.(map[string]any); d.Default != nil && !ok {
			return fmt.Errorf("%w: %s default (%v) must be a map", ErrMalformedDeclaration, dotted, d.Default)
		}
	}
	return nil
}

// Built-in scalar parsers.

// String accepts any value and renders it as a string.
func String(v any) (any, error) {
	switch t := v.(type) {
	case Verbatim:
		return string(t), nil
	case string:
		return t, nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// Int parses integers from strings and accepts integral numeric values.
func Int(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		if t == float64(int64(t)) {
			return int64(t), nil
		}
		return nil, fmt.Errorf("not an integer: %v", t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	case Verbatim:
		return Int(string(t))
	default:
		return nil, fmt.Errorf("not an integer: %v (%T)", v, v)
	}
}

// Float parses floating point values from strings and numbers.
func Float(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	case Verbatim:
		return Float(string(t))
	default:
		return nil, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

// Bool parses booleans, accepting the usual spellings (true/false, yes/no,
// on/off, 1/0).
func Bool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0", "":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %q", t)
	case int64:
		return t != 0, nil
	case Verbatim:
		return Bool(string(t))
	default:
		return nil, fmt.Errorf("not a boolean: %v (%T)", v, v)
	}
}

// Duration parses time durations from strings ("1h30m") or passes through
// time.Duration values.
func Duration(v any) (any, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("not a duration: %q", t)
		}
		return d, nil
	case int64:
		return time.Duration(t), nil
	case Verbatim:
		return Duration(string(t))
	default:
		return nil, fmt.Errorf("not a duration: %v (%T)", v, v)
	}
}
