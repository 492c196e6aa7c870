package chanconfig

import (
	"errors"

	"github.com/dshills/chanconfig/key"
	"github.com/dshills/chanconfig/source"
)

// Errors returned by configuration resolution. Every failure is fatal and
// synchronous: resolution happens once at process start-up, and a
// misconfiguration should stop the process at the point of detection. Each
// error message carries the dotted form of the offending key.
var (
	// ErrInvalidKey indicates a parameter path or environment variable name
	// that fails the key-naming pattern.
	ErrInvalidKey = key.ErrInvalid

	// ErrDuplicateKey indicates two distinct nested paths that collide
	// after flattening.
	ErrDuplicateKey = source.ErrDuplicateKey

	// ErrTypeCollision indicates incompatible types at the same path during
	// merge or dict resolution.
	ErrTypeCollision = source.ErrTypeCollision

	// ErrMissingRequired indicates a Required declaration with no value
	// from any source.
	ErrMissingRequired = errors.New("required value missing")

	// ErrMalformedDeclaration indicates a declaration that is neither a
	// group nor a well-formed parameter, or whose parser is not set.
	ErrMalformedDeclaration = errors.New("malformed declaration")

	// ErrChannelMissing indicates a config file that exists but lacks the
	// function (or table) for the active channel.
	ErrChannelMissing = source.ErrChannelMissing

	// ErrInvalidChannel indicates a channel name outside the valid set.
	ErrInvalidChannel = source.ErrInvalidChannel

	// ErrLoadPathFrozen indicates a load path mutation after the raw value
	// space has been coalesced.
	ErrLoadPathFrozen = errors.New("load path frozen after values coalesced")

	// ErrUnknownReference indicates an interpolation placeholder that does
	// not name any resolved value.
	ErrUnknownReference = errors.New("unknown interpolation reference")
)
