package chanconfig

import (
	"fmt"
	"time"
)

// Params is the read-only, insertion-ordered mapping of resolved
// parameters returned to a module. Nested declaration groups appear as
// nested *Params values.
type Params struct {
	names []string
	vals  map[string]any
}

func newParams() *Params {
	return &Params{vals: make(map[string]any)}
}

func (p *Params) set(name string, v any) {
	if _, ok := p.vals[name]; !ok {
		p.names = append(p.names, name)
	}
	p.vals[name] = v
}

// group returns the nested Params under name, creating it if absent.
func (p *Params) group(name string) *Params {
	if g, ok := p.vals[name].(*Params); ok {
		return g
	}
	g := newParams()
	p.set(name, g)
	return g
}

// Has reports whether name was declared.
func (p *Params) Has(name string) bool {
	_, ok := p.vals[name]
	return ok
}

// Get returns the resolved value for name, or nil if not declared.
func (p *Params) Get(name string) any { return p.vals[name] }

// Names returns the parameter names in declaration (key-sorted) order.
func (p *Params) Names() []string {
	res := make([]string, len(p.names))
	copy(res, p.names)
	return res
}

// Len returns the number of entries, including nested groups.
func (p *Params) Len() int { return len(p.names) }

// Group returns the nested Params under name, or nil if name is not a
// group.
func (p *Params) Group(name string) *Params {
	g, _ := p.vals[name].(*Params)
	return g
}

// String returns the value of name as a string, or "" if absent or not a
// string.
func (p *Params) String(name string) string {
	s, _ := p.vals[name].(string)
	return s
}

// Int returns the value of name as an int64, or 0.
func (p *Params) Int(name string) int64 {
	n, _ := p.vals[name].(int64)
	return n
}

// Float returns the value of name as a float64, or 0.
func (p *Params) Float(name string) float64 {
	f, _ := p.vals[name].(float64)
	return f
}

// Bool returns the value of name as a bool, or false.
func (p *Params) Bool(name string) bool {
	b, _ := p.vals[name].(bool)
	return b
}

// Duration returns the value of name as a time.Duration, or 0.
func (p *Params) Duration(name string) time.Duration {
	d, _ := p.vals[name].(time.Duration)
	return d
}

// List returns the value of name as a []any, or nil.
func (p *Params) List(name string) []any {
	l, _ := p.vals[name].([]any)
	return l
}

// Dict returns the value of name as a map[string]any, or nil.
func (p *Params) Dict(name string) map[string]any {
	m, _ := p.vals[name].(map[string]any)
	return m
}

// ToMap converts the mapping (and nested groups) to plain nested maps.
// Insertion order is lost; intended for serialization and debugging.
func (p *Params) ToMap() map[string]any {
	res := make(map[string]any, len(p.names))
	for _, n := range p.names {
		if g, ok := p.vals[n].(*Params); ok {
			res[n] = g.ToMap()
			continue
		}
		res[n] = p.vals[n]
	}
	return res
}

// GoString implements fmt.GoStringer for debug output.
func (p *Params) GoString() string {
	return fmt.Sprintf("chanconfig.Params%#v", p.ToMap())
}
