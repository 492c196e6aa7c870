package source

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dshills/chanconfig/key"
)

// Errors raised while flattening and merging sources.
var (
	// ErrDuplicateKey indicates two distinct nested paths collapse to the
	// same flat key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTypeCollision indicates incompatible types at the same key, such
	// as a list merged with a scalar or a scalar overriding a nested map.
	ErrTypeCollision = errors.New("type collision")
)

// Flatten converts a nested mapping into the flat key space. Map keys may
// contain dots, which split into further path segments. Nested maps become
// prefixed sub-keys; only leaves are stored.
func Flatten(nested map[string]any) (*Space, error) {
	s := NewSpace()
	seen := make(map[string]string)
	if err := flattenInto(nil, nested, s, seen); err != nil {
		return nil, err
	}
	return s, nil
}

func flattenInto(prefix []string, values map[string]any, s *Space, seen map[string]string) error {
	for _, name := range sortedNames(values) {
		parts := make([]string, 0, len(prefix)+1)
		parts = append(parts, prefix...)
		parts = append(parts, name)
		k, err := key.Make(parts)
		if err != nil {
			return err
		}
		if prev, dup := seen[k.String()]; dup {
			return fmt.Errorf("%w: %s collides with %s", ErrDuplicateKey, k.Dotted(), prev)
		}
		seen[k.String()] = k.Dotted()
		if sub, ok := values[name].(map[string]any); ok {
			if err := flattenInto(k.Parts(), sub, s, seen); err != nil {
				return err
			}
			continue
		}
		s.Set(k, values[name])
	}
	return nil
}

// MergeInto folds incoming into base, key by key. Later sources are higher
// priority: scalars and maps from incoming overwrite, lists concatenate with
// the incoming list first, and nil on either side propagates the incoming
// value (an explicit clear). A list meeting a non-nil non-list is fatal.
func MergeInto(base, incoming *Space) error {
	for _, k := range incoming.Keys() {
		n, _ := incoming.Get(k)
		if b, ok := base.Get(k); ok {
			_, bList := b.([]any)
			nl, nList := n.([]any)
			if bList || nList {
				switch {
				case b == nil || n == nil:
					// incoming wins; nil means cleared
				case bList && nList:
					n = append(slices.Clone(nl), b.([]any)...)
				default:
					return fmt.Errorf("%w: %s mixes list (%v) and non-list (%v)",
						ErrTypeCollision, k.Dotted(), n, b)
				}
			}
		}
		base.Set(k, n)
	}
	return nil
}

// Unflatten rebuilds the nested form of a space from the retained key
// segments. Inverse of Flatten for well-formed input.
func Unflatten(s *Space) (map[string]any, error) {
	res := make(map[string]any)
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		parts := k.Parts()
		cur := res
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p]
			if !ok {
				m := make(map[string]any)
				cur[p] = m
				cur = m
				continue
			}
			m, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s nests under non-map value %v",
					ErrTypeCollision, k.Dotted(), next)
			}
			cur = m
		}
		cur[parts[len(parts)-1]] = v
	}
	return res, nil
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
