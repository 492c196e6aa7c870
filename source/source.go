// Package source discovers and merges configuration sources.
//
// Sources are consulted in priority order, lowest first: the base config
// file of each package on the load path, then each package's home override
// file, then environment variables. Each source yields a nested mapping
// for the active channel; the mappings are flattened into the key space
// and merged into a single raw value space.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/chanconfig/key"
	"github.com/dshills/chanconfig/script"
)

// Environment variables controlling source discovery.
const (
	// EnvChannel selects the deployment channel.
	EnvChannel = "CHANCONFIG_CHANNEL"

	// EnvLoadPath appends colon-separated package roots to the load path.
	EnvLoadPath = "CHANCONFIG_LOAD_PATH"

	// LoadPathSep separates packages in EnvLoadPath.
	LoadPathSep = ":"
)

// SelfPackage is the implicit first entry of every load path; the engine
// resolves its own parameters through the same mechanism as everyone else.
const SelfPackage = "chanconfig"

// File naming conventions for configuration sources.
const (
	baseLuaName  = "base_config.lua"
	baseTOMLName = "base_config.toml"
	homeLuaFmt   = ".%s_config.lua"
	homeTOMLFmt  = ".%s_config.toml"
)

// Channels lists the deployment channels from least to most stable.
var Channels = []string{"dev", "alpha", "beta", "prod"}

// DefaultChannel is used when EnvChannel is not set.
const DefaultChannel = "dev"

// InternalTestChannels are the channels that permit test-only behavior.
var InternalTestChannels = Channels[:2]

// Errors raised during source discovery.
var (
	// ErrChannelMissing indicates a config file exists but does not define
	// the function (or table) for the active channel.
	ErrChannelMissing = errors.New("channel function missing")

	// ErrInvalidChannel indicates a channel name outside Channels.
	ErrInvalidChannel = errors.New("invalid channel")
)

// ValidChannel reports whether name is one of the deployment channels.
func ValidChannel(name string) bool {
	return slices.Contains(Channels, name)
}

// SplitLoadPath parses a colon-separated load path value.
func SplitLoadPath(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, LoadPathSep)
}

// Loader discovers configuration sources. The zero value is not usable;
// construct with NewLoader. Dirs, Home, and Environ exist so tests and
// embedders can run the loader hermetically; left alone, the loader reads
// the working directory, the user's home, and the process environment.
type Loader struct {
	// Dirs are the roots searched for per-package base config files.
	Dirs []string

	// Home overrides the user home directory for override files.
	Home string

	// Environ overrides the process environment.
	Environ []string

	// Log receives debug events for each source consulted.
	Log zerolog.Logger
}

// NewLoader returns a Loader with default discovery locations.
func NewLoader() *Loader {
	return &Loader{
		Dirs: []string{"."},
		Log:  zerolog.Nop(),
	}
}

// Result is the outcome of coalescing all sources once.
type Result struct {
	// Channel is the resolved deployment channel.
	Channel string

	// LoadPath is the final load path, including environment appends.
	LoadPath []string

	// Values is the raw value space: every source flattened and merged.
	Values *Space

	// Env is the captured environment, used to seed interpolation.
	Env *Space
}

// Coalesce resolves the channel, extends the load path from the
// environment, loads every source in priority order, and merges them into
// a single raw value space. It is intended to run exactly once per
// process, at start-up, on the initializing goroutine.
func (l *Loader) Coalesce(loadPath []string) (*Result, error) {
	channel, err := l.Channel()
	if err != nil {
		return nil, err
	}
	path := slices.Clone(loadPath)
	if extra, ok := l.getenv(EnvLoadPath); ok {
		for _, p := range SplitLoadPath(extra) {
			if p != "" && !slices.Contains(path, p) {
				path = append(path, p)
			}
		}
	}

	values := NewSpace()
	for _, pkg := range path {
		nested, from, err := l.baseValues(pkg, channel)
		if err != nil {
			return nil, err
		}
		if nested == nil {
			continue
		}
		l.Log.Debug().Str("package", pkg).Str("file", from).Str("channel", channel).Msg("loaded base config")
		if err := mergeNested(values, nested); err != nil {
			return nil, err
		}
	}
	for _, pkg := range path {
		nested, from, err := l.homeValues(pkg, channel)
		if err != nil {
			return nil, err
		}
		if nested == nil {
			continue
		}
		l.Log.Debug().Str("package", pkg).Str("file", from).Str("channel", channel).Msg("loaded home override")
		if err := mergeNested(values, nested); err != nil {
			return nil, err
		}
	}

	env := Environ(l.environ())
	if err := MergeInto(values, env); err != nil {
		return nil, err
	}

	// Implicit bindings: the engine resolves its own channel and load path
	// parameters from these.
	ck, err := key.Make([]string{EnvChannel})
	if err != nil {
		return nil, err
	}
	values.Set(ck, channel)
	lk, err := key.Make([]string{EnvLoadPath})
	if err != nil {
		return nil, err
	}
	lp := make([]any, len(path))
	for i, p := range path {
		lp[i] = p
	}
	values.Set(lk, lp)

	return &Result{Channel: channel, LoadPath: path, Values: values, Env: env}, nil
}

// Channel resolves the active channel from the environment.
func (l *Loader) Channel() (string, error) {
	name, ok := l.getenv(EnvChannel)
	if !ok || name == "" {
		return DefaultChannel, nil
	}
	if !ValidChannel(name) {
		return "", fmt.Errorf("%w: %q from $%s; must be one of %v", ErrInvalidChannel, name, EnvChannel, Channels)
	}
	return name, nil
}

// baseValues locates and evaluates a package's base config file. A missing
// file is not an error; a file lacking the channel is.
func (l *Loader) baseValues(pkg, channel string) (map[string]any, string, error) {
	for _, dir := range l.Dirs {
		luaPath := filepath.Join(dir, pkg, baseLuaName)
		if fileExists(luaPath) {
			m, err := callScript(luaPath, channel)
			return m, luaPath, err
		}
		tomlPath := filepath.Join(dir, pkg, baseTOMLName)
		if fileExists(tomlPath) {
			m, err := loadTOMLChannel(tomlPath, channel)
			return m, tomlPath, err
		}
	}
	return nil, "", nil
}

// homeValues locates and evaluates a per-user override file for a package.
func (l *Loader) homeValues(pkg, channel string) (map[string]any, string, error) {
	home := l.Home
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, "", nil
		}
	}
	luaPath := filepath.Join(home, fmt.Sprintf(homeLuaFmt, pkg))
	if fileExists(luaPath) {
		m, err := callScript(luaPath, channel)
		return m, luaPath, err
	}
	tomlPath := filepath.Join(home, fmt.Sprintf(homeTOMLFmt, pkg))
	if fileExists(tomlPath) {
		m, err := loadTOMLChannel(tomlPath, channel)
		return m, tomlPath, err
	}
	return nil, "", nil
}

// callScript runs a config file as a module and invokes its channel
// function.
func callScript(path, channel string) (map[string]any, error) {
	m, err := script.Load(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	if !m.Has(channel) {
		return nil, fmt.Errorf("%w: %s must define %s()", ErrChannelMissing, path, channel)
	}
	return m.Call(channel)
}

// mergeNested flattens one source and merges it into the accumulating
// value space.
func mergeNested(values *Space, nested map[string]any) error {
	flat, err := Flatten(nested)
	if err != nil {
		return err
	}
	return MergeInto(values, flat)
}

func (l *Loader) environ() []string {
	if l.Environ != nil {
		return l.Environ
	}
	return os.Environ()
}

func (l *Loader) getenv(name string) (string, bool) {
	if l.Environ == nil {
		return os.LookupEnv(name)
	}
	prefix := name + "="
	for i := len(l.Environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(l.Environ[i], prefix) {
			return l.Environ[i][len(prefix):], true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
