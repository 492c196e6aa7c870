// Package key provides the canonical flat key form for configuration
// parameters.
//
// A parameter is addressed by an ordered list of path segments (package,
// submodule, parameter name, and any nesting in between). The flat form is
// the segments joined with underscores and uppercased, which makes every
// key usable verbatim as an environment variable name. The original
// segments are retained so nested result structures can be rebuilt, and a
// dotted form is kept for error messages.
package key

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid indicates a key that fails the naming pattern.
var ErrInvalid = fmt.Errorf("invalid key")

// Pattern is the naming rule for flat keys: must begin with a letter,
// contain only letters, digits, and underscores, and not end with an
// underscore. Applied case-insensitively to the joined flat form.
var Pattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*[a-zA-Z0-9]$`)

// Key is the canonical address of a configuration parameter.
//
// Equality and ordering are defined by the flat form. The zero Key is
// invalid; construct keys with Make.
type Key struct {
	flat  string
	parts []string
}

// Make joins the given segments into a flat key and validates it.
// Segments may themselves contain dots, which split into further segments.
func Make(parts []string) (Key, error) {
	var split []string
	for _, p := range parts {
		split = append(split, strings.Split(p, ".")...)
	}
	flat := strings.ToUpper(strings.Join(split, "_"))
	if !Pattern.MatchString(flat) {
		return Key{}, fmt.Errorf("%w: %q must match %s", ErrInvalid, strings.Join(split, "."), Pattern)
	}
	return Key{flat: flat, parts: split}, nil
}

// String returns the flat form (uppercase, underscore-joined).
func (k Key) String() string { return k.flat }

// Dotted returns the original segments joined with dots, for messages.
func (k Key) Dotted() string { return strings.Join(k.parts, ".") }

// Parts returns the original ordered segments. The returned slice must not
// be modified.
func (k Key) Parts() []string { return k.parts }

// Prefix returns the flat form plus a trailing underscore, used to match
// keys nested under this one.
func (k Key) Prefix() string { return k.flat + "_" }

// HasPrefix reports whether other is nested under k.
func (k Key) HasPrefix(other Key) bool {
	return strings.HasPrefix(k.flat, other.Prefix())
}

// Less orders keys lexicographically on the flat form.
func (k Key) Less(other Key) bool { return k.flat < other.flat }

// Equal reports whether two keys have the same flat form.
func (k Key) Equal(other Key) bool { return k.flat == other.flat }
