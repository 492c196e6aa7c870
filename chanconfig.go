package chanconfig

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/chanconfig/source"
)

// Channel names, from least to most stable deployment stage.
var Channels = source.Channels

// DefaultChannel is the channel used when $CHANCONFIG_CHANNEL is unset.
const DefaultChannel = source.DefaultChannel

// SelfModule is the module name under which the engine declares its own
// channel and load_path parameters.
const SelfModule = source.SelfPackage

// Registry holds the configuration state for one process: the load path,
// the coalesced raw value space, and the running parsed value space. One
// Registry is constructed at process start and shared by every module's
// Init call; constructing a fresh Registry is the reset mechanism for
// tests.
//
// The Registry is not safe for concurrent use. Resolution is expected to
// happen on the initializing goroutine, before workers are spawned.
type Registry struct {
	loader   *source.Loader
	loadPath []string
	channel  string
	raw      *source.Space
	parsed   map[string]any
	self     *Params
	log      zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDirs sets the roots searched for per-package base config files.
func WithDirs(dirs ...string) Option {
	return func(r *Registry) { r.loader.Dirs = slices.Clone(dirs) }
}

// WithHome overrides the home directory searched for override files.
func WithHome(dir string) Option {
	return func(r *Registry) { r.loader.Home = dir }
}

// WithEnviron overrides the process environment, in "KEY=value" form.
func WithEnviron(environ []string) Option {
	return func(r *Registry) { r.loader.Environ = slices.Clone(environ) }
}

// WithLoadPath appends package roots to the default load path.
func WithLoadPath(pkgs ...string) Option {
	return func(r *Registry) {
		for _, p := range pkgs {
			if p != "" && !slices.Contains(r.loadPath, p) {
				r.loadPath = append(r.loadPath, p)
			}
		}
	}
}

// WithLogger replaces the registry's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
		r.loader.Log = log
	}
}

// New constructs a Registry. The load path starts with the engine's own
// package; entry points extend it with WithLoadPath or AppendLoadPath
// before the first Init.
func New(opts ...Option) *Registry {
	r := &Registry{
		loader:   source.NewLoader(),
		loadPath: []string{source.SelfPackage},
		log:      zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel),
	}
	r.loader.Log = r.log
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AppendLoadPath adds package roots to the load path. Called by entry
// point modules before any parameters resolve; once the raw value space
// has been coalesced the load path is frozen and further appends fail.
func (r *Registry) AppendLoadPath(pkgs ...string) error {
	if r.raw != nil {
		return fmt.Errorf("%w: cannot append %v", ErrLoadPathFrozen, pkgs)
	}
	for _, p := range pkgs {
		if p != "" && !slices.Contains(r.loadPath, p) {
			r.loadPath = append(r.loadPath, p)
		}
	}
	return nil
}

// Init declares and resolves configuration parameters for a module.
//
// The module name is its dotted import-style path (e.g. "mypkg.server");
// its first segment must be a package on the load path. Declarations are
// namespaced under the module's segments automatically, resolved against
// the raw value space, and the module's own slice of the nested result is
// returned.
//
// The first Init in the process triggers source coalescing; after that the
// load path is frozen. An empty module name means Init was reached from a
// top-level entry context with no module identity; a warning is logged and
// nil is returned.
func (r *Registry) Init(module string, decls Map) (*Params, error) {
	if module == "" {
		r.log.Warn().Msg("Init called without a module identity; cannot configure, ignoring")
		return nil, nil
	}
	if err := r.coalesce(); err != nil {
		return nil, err
	}
	segs := strings.Split(module, ".")
	if !slices.Contains(r.loadPath, segs[0]) {
		return nil, fmt.Errorf("%s: module root %q not in load path %v", module, segs[0], r.loadPath)
	}

	wrapped := decls
	for i := len(segs) - 1; i >= 0; i-- {
		wrapped = Map{segs[i]: wrapped}
	}
	var entries []declEntry
	if err := flattenDecls(nil, wrapped, &entries); err != nil {
		return nil, err
	}

	res := newParams()
	rv := &resolver{raw: r.raw, parsed: r.parsed}
	if err := rv.resolveAll(entries, res); err != nil {
		return nil, err
	}

	for _, s := range segs {
		res = res.Group(s)
		if res == nil {
			return nil, fmt.Errorf("%s: no parameters resolved", module)
		}
	}
	return res, nil
}

// coalesce computes the raw value space exactly once, then resolves the
// engine's own parameters through the ordinary Init path.
func (r *Registry) coalesce() error {
	if r.raw != nil {
		return nil
	}
	result, err := r.loader.Coalesce(r.loadPath)
	if err != nil {
		return err
	}
	r.raw = result.Values
	r.loadPath = result.LoadPath
	r.channel = result.Channel
	r.parsed = result.Env.Flat()

	self, err := r.Init(SelfModule, Map{
		"channel":   Required(String, "which (stage) function returns config"),
		"load_path": RequiredList("list of packages to configure"),
	})
	if err != nil {
		return err
	}
	r.self = self
	return nil
}

// Channel returns the active deployment channel, coalescing sources if
// needed.
func (r *Registry) Channel() (string, error) {
	if err := r.coalesce(); err != nil {
		return "", err
	}
	return r.channel, nil
}

// LoadPath returns the final load path.
func (r *Registry) LoadPath() ([]string, error) {
	if err := r.coalesce(); err != nil {
		return nil, err
	}
	return slices.Clone(r.loadPath), nil
}

// ChannelIn reports whether the active channel is one of names. Every
// name must be a valid channel.
func (r *Registry) ChannelIn(names ...string) (bool, error) {
	if err := r.coalesce(); err != nil {
		return false, err
	}
	res := false
	for _, n := range names {
		if !source.ValidChannel(n) {
			return false, fmt.Errorf("%w: %q", ErrInvalidChannel, n)
		}
		if n == r.channel {
			res = true
		}
	}
	return res, nil
}

// ChannelInInternalTest reports whether the active channel permits
// test-only behavior (dev or alpha).
func (r *Registry) ChannelInInternalTest() (bool, error) {
	return r.ChannelIn(source.InternalTestChannels...)
}
