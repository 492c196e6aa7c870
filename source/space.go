package source

import (
	"sort"

	"github.com/dshills/chanconfig/key"
)

// Space is a flat mapping from Key to value. It is the shape of both the
// raw value space (merged, untyped source values) and the per-source
// flattened mappings that feed it. Key iteration is deterministic (sorted
// on the flat form) so merge and dict-fold order never depends on map
// iteration order.
type Space struct {
	values map[string]any
	keys   map[string]key.Key
}

// NewSpace returns an empty Space.
func NewSpace() *Space {
	return &Space{
		values: make(map[string]any),
		keys:   make(map[string]key.Key),
	}
}

// Set stores a value under k, overwriting any previous value.
func (s *Space) Set(k key.Key, v any) {
	s.values[k.String()] = v
	s.keys[k.String()] = k
}

// Get returns the value stored under k.
func (s *Space) Get(k key.Key) (any, bool) {
	v, ok := s.values[k.String()]
	return v, ok
}

// Has reports whether k is present.
func (s *Space) Has(k key.Key) bool {
	_, ok := s.values[k.String()]
	return ok
}

// Lookup finds an entry by its flat form.
func (s *Space) Lookup(flat string) (key.Key, any, bool) {
	v, ok := s.values[flat]
	if !ok {
		return key.Key{}, nil, false
	}
	return s.keys[flat], v, true
}

// Len returns the number of entries.
func (s *Space) Len() int { return len(s.values) }

// Keys returns all keys sorted ascending on the flat form.
func (s *Space) Keys() []key.Key {
	flats := make([]string, 0, len(s.keys))
	for f := range s.keys {
		flats = append(flats, f)
	}
	sort.Strings(flats)
	res := make([]key.Key, len(flats))
	for i, f := range flats {
		res[i] = s.keys[f]
	}
	return res
}

// Flat returns a copy of the space keyed by flat form.
func (s *Space) Flat() map[string]any {
	res := make(map[string]any, len(s.values))
	for f, v := range s.values {
		res[f] = v
	}
	return res
}
