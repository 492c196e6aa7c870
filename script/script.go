// Package script executes a configuration file as a standalone module.
//
// A module is a Lua file that defines zero-argument global functions, one
// per deployment channel, each returning a nested table of configuration
// values. The runtime is sandboxed: only the base, table, string, and math
// libraries are opened, so config files cannot touch the file system or
// spawn processes.
//
// The file may call the preinstalled verbatim() helper to produce string
// values that the resolution engine will never interpolate.
package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ErrNotFunction is returned when the requested global exists but is not a
// callable function.
var ErrNotFunction = errors.New("not a function")

// Verbatim is a string exempt from interpolation. It behaves as an
// ordinary string everywhere else.
type Verbatim string

// Module is a loaded configuration file exposing named zero-argument
// functions.
type Module struct {
	path string
	l    *lua.LState
}

// Load compiles and runs the Lua file at path in a fresh sandboxed state.
// The caller must Close the returned module.
func Load(path string) (*Module, error) {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(l)
	l.SetGlobal("verbatim", l.NewFunction(luaVerbatim))

	if err := doFileRecovered(l, path); err != nil {
		l.Close()
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &Module{path: path, l: l}, nil
}

// openSafeLibraries opens only Lua standard libraries that cannot reach
// outside the interpreter. io, os, debug, and package stay closed.
func openSafeLibraries(l *lua.LState) {
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
}

// luaVerbatim wraps a Lua string so it converts to a Verbatim Go value.
func luaVerbatim(l *lua.LState) int {
	s := l.CheckString(1)
	ud := l.NewUserData()
	ud.Value = Verbatim(s)
	l.Push(ud)
	return 1
}

// doFileRecovered runs a file with panic recovery, since gopher-lua can
// panic on malformed input.
func doFileRecovered(l *lua.LState, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return l.DoFile(path)
}

// Path returns the file this module was loaded from.
func (m *Module) Path() string { return m.path }

// Has reports whether the module defines a global function with the given
// name.
func (m *Module) Has(name string) bool {
	return m.l.GetGlobal(name).Type() == lua.LTFunction
}

// Call invokes the named zero-argument global function and converts its
// returned table to a nested Go map. A function returning nothing (or nil)
// yields an empty map.
func (m *Module) Call(name string) (map[string]any, error) {
	fn := m.l.GetGlobal(name)
	if fn == lua.LNil {
		return nil, fmt.Errorf("%w: %s has no function %q", ErrNotFunction, m.path, name)
	}
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s global %q is a %s", ErrNotFunction, m.path, name, fn.Type())
	}

	top := m.l.GetTop()
	m.l.Push(fn)
	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = m.l.PCall(0, lua.MultRet, nil)
	}()
	if callErr != nil {
		return nil, fmt.Errorf("calling %s in %s: %w", name, m.path, callErr)
	}

	nret := m.l.GetTop() - top
	if nret <= 0 {
		return map[string]any{}, nil
	}
	ret := m.l.Get(top + 1)
	m.l.Pop(nret)

	switch v := toGoValue(ret).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("%s.%s: returned %T, want a table of values", m.path, name, v)
	}
}

// Close releases the underlying Lua state.
func (m *Module) Close() {
	m.l.Close()
}
