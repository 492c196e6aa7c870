package chanconfig

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/chanconfig/key"
	"github.com/dshills/chanconfig/source"
)

// unknownRefError reports an interpolation placeholder naming a value that
// is not in the parsed value space. The flat name is retained so the
// resolver can defer leaves that reference keys still pending in the same
// registration pass.
type unknownRefError struct {
	param string
	name  string
}

func (e *unknownRefError) Error() string {
	return fmt.Sprintf("unknown interpolation reference: %s references {%s}, which is not resolved", e.param, e.name)
}

func (e *unknownRefError) Unwrap() error { return ErrUnknownReference }

// declEntry is one flattened declaration: a fully-qualified key plus its
// declaration, or a group placeholder.
type declEntry struct {
	key   key.Key
	decl  Decl
	group bool
}

// flattenDecls walks a declaration tree, validating shape and building a
// fully-qualified key for every leaf. Group nodes are recorded so empty
// groups still materialize in the result.
func flattenDecls(prefix []string, m Map, out *[]declEntry) error {
	for _, name := range sortedDeclNames(m) {
		parts := make([]string, 0, len(prefix)+1)
		parts = append(parts, prefix...)
		parts = append(parts, name)
		k, err := key.Make(parts)
		if err != nil {
			return err
		}
		switch v := m[name].(type) {
		case Map:
			*out = append(*out, declEntry{key: k, group: true})
			if err := flattenDecls(k.Parts(), v, out); err != nil {
				return err
			}
		case Decl:
			if err := v.validate(k.Dotted()); err != nil {
				return err
			}
			*out = append(*out, declEntry{key: k, decl: v})
		default:
			return fmt.Errorf("%w: %s must be a Decl or a nested Map, got %T",
				ErrMalformedDeclaration, k.Dotted(), m[name])
		}
	}
	return nil
}

func sortedDeclNames(m Map) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// resolver walks sorted declarations against the raw value space,
// recording every resolved leaf into the running parsed value space so
// later parameters can interpolate against it.
type resolver struct {
	raw    *source.Space
	parsed map[string]any
}

// resolveAll visits entries in key order, building the nested result.
// A leaf whose interpolation references another leaf still pending in the
// same registration pass is deferred and retried once the referenced leaf
// resolves; anything else unresolved is fatal. Entries are key-sorted
// first, which makes dict folding, result ordering, and error reporting
// deterministic.
func (r *resolver) resolveAll(entries []declEntry, res *Params) error {
	slices.SortFunc(entries, func(a, b declEntry) int {
		return strings.Compare(a.key.String(), b.key.String())
	})

	// Materialize groups and leaf slots up front so the result keeps
	// key-sorted order even when leaves resolve out of order.
	pending := make(map[string]bool)
	slots := make(map[string]*Params, len(entries))
	for _, e := range entries {
		parts := e.key.Parts()
		cur := res
		for _, p := range parts[:len(parts)-1] {
			cur = cur.group(p)
		}
		last := parts[len(parts)-1]
		if e.group {
			cur.group(last)
			continue
		}
		cur.set(last, nil)
		slots[e.key.String()] = cur
		pending[e.key.String()] = true
	}

	queue := entries
	for len(queue) > 0 {
		var deferred []declEntry
		var blocked error
		progress := false
		for _, e := range queue {
			if e.group {
				continue
			}
			v, err := r.resolveDecl(e.key, e.decl)
			if err != nil {
				var ref *unknownRefError
				if errors.As(err, &ref) && pending[ref.name] {
					deferred = append(deferred, e)
					if blocked == nil {
						blocked = err
					}
					continue
				}
				return err
			}
			parts := e.key.Parts()
			slots[e.key.String()].set(parts[len(parts)-1], v)
			r.parsed[e.key.String()] = v
			delete(pending, e.key.String())
			progress = true
		}
		if len(deferred) > 0 && !progress {
			// Mutual references among pending leaves cannot resolve.
			return blocked
		}
		queue = deferred
	}
	return nil
}

func (r *resolver) resolveDecl(k key.Key, d Decl) (any, error) {
	switch d.Kind() {
	case KindList:
		return r.resolveList(k, d)
	case KindDict:
		return r.resolveDict(k, d)
	default:
		return r.resolveScalar(k, d)
	}
}

// resolveScalar takes the raw value (or the default), interpolates string
// values to a fixpoint, and invokes the parser. A nil value with a parser
// not marked AllowNil short-circuits to nil.
func (r *resolver) resolveScalar(k key.Key, d Decl) (any, error) {
	v, ok := r.raw.Get(k)
	if !ok {
		if d.required {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, k.Dotted())
		}
		v = d.Default
	}
	v, err := r.interpolate(k, v)
	if err != nil {
		return nil, err
	}
	if v == nil && !d.allowNil {
		return nil, nil
	}
	res, err := d.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k.Dotted(), err)
	}
	return res, nil
}

// interpolate repeatedly substitutes {KEY} placeholders from the parsed
// value space until the value stops changing. Tracking every intermediate
// string guarantees termination even when values reference each other in a
// cycle; the last stable string before a repeat wins. Verbatim strings are
// never touched.
func (r *resolver) interpolate(k key.Key, v any) (any, error) {
	seen := make(map[string]bool)
	for {
		s, ok := v.(string)
		if !ok || seen[s] {
			return v, nil
		}
		seen[s] = true
		next, replaced, err := r.substitute(k, s)
		if err != nil {
			return nil, err
		}
		if !replaced {
			// A pass that only unescaped braces must not be re-scanned.
			return next, nil
		}
		v = next
	}
}

// substitute performs a single pass of {KEY} substitution. {{ and }}
// escape literal braces. The second result reports whether any
// placeholder was actually replaced.
func (r *resolver) substitute(k key.Key, s string) (string, bool, error) {
	var b strings.Builder
	replaced := false
	for i := 0; i < len(s); {
		switch s[i] {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", false, fmt.Errorf("%s: unclosed placeholder in %q", k.Dotted(), s)
			}
			// References are case-insensitive; the parsed space is keyed
			// by the flat uppercase form.
			name := strings.ToUpper(s[i+1 : i+end])
			val, ok := r.parsed[name]
			if !ok {
				return "", false, &unknownRefError{param: k.Dotted(), name: name}
			}
			if _, verbatim := val.(Verbatim); verbatim {
				return "", false, fmt.Errorf("%s: cannot reference verbatim value {%s}", k.Dotted(), name)
			}
			fmt.Fprintf(&b, "%v", val)
			replaced = true
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", false, fmt.Errorf("%s: single '}' in %q", k.Dotted(), s)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), replaced, nil
}

// resolveList concatenates the configured list onto a copy of the default.
// An explicit nil raw value clears the list, unless the parameter is
// required, in which case a cleared required list is as fatal as a missing
// one.
func (r *resolver) resolveList(k key.Key, d Decl) (any, error) {
	var def []any
	if d.Default != nil {
		def = slices.Clone(d.Default.([]any))
	} else {
		def = []any{}
	}
	v, ok := r.raw.Get(k)
	if !ok {
		if d.required {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, k.Dotted())
		}
		return def, nil
	}
	lst, isList := v.([]any)
	if !isList {
		if v == nil {
			if d.required {
				return nil, fmt.Errorf("%w: %s explicitly cleared", ErrMissingRequired, k.Dotted())
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s value (%v) must be a list or nil", ErrTypeCollision, k.Dotted(), v)
	}
	return append(slices.Clone(lst), def...), nil
}

// resolveDict starts from a deep copy of the default and folds in every
// raw value whose key equals or is nested under the leaf key. Keys are
// visited in descending order so shallower raw values win over deeper
// ones, matching merge priority.
func (r *resolver) resolveDict(k key.Key, d Decl) (any, error) {
	res := make(map[string]any)
	if d.Default != nil {
		res = cloneStringMap(d.Default.(map[string]any))
	}
	prefix := k.Prefix()
	keys := r.raw.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		rk := keys[i]
		exact := rk.Equal(k)
		if !exact && !strings.HasPrefix(rk.String(), prefix) {
			continue
		}
		v, _ := r.raw.Get(rk)
		if exact {
			// A value at the dict's own key is the whole dict: fold a map's
			// entries, honor nil as an explicit clear, reject scalars.
			switch t := v.(type) {
			case nil:
				return nil, nil
			case map[string]any:
				for _, name := range sortedDeclNames(Map(t)) {
					res[name] = t[name]
				}
			default:
				return nil, fmt.Errorf("%w: %s value (%v) must be a map or nil",
					ErrTypeCollision, k.Dotted(), v)
			}
			continue
		}
		target := res
		var leaf string
		if len(rk.Parts()) == 1 {
			// Environment variables arrive as a single segment; the
			// relative path is the flat suffix after the dict's prefix,
			// lowercased to merge with file-provided entries.
			leaf = strings.ToLower(rk.String()[len(prefix):])
		} else {
			mid := rk.Parts()[len(k.Parts()) : len(rk.Parts())-1]
			for _, p := range mid {
				next, ok := target[p]
				if !ok {
					m := make(map[string]any)
					target[p] = m
					target = m
					continue
				}
				m, ok := next.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s collides with existing non-map (%s=%v)",
						ErrTypeCollision, rk.Dotted(), p, next)
				}
				target = m
			}
			leaf = rk.Parts()[len(rk.Parts())-1]
		}
		target[leaf] = v
	}
	return res, nil
}

// cloneStringMap deep-copies a nested map so resolution never aliases a
// declaration's default.
func cloneStringMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case map[string]any:
			dst[k] = cloneStringMap(t)
		case []any:
			dst[k] = slices.Clone(t)
		default:
			dst[k] = v
		}
	}
	return dst
}
