package rir

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every error leaving this package (and the
// components built on it) wraps exactly one of these, so callers match
// with errors.Is and never see raw transport errors.
var (
	// ErrTimeout: connect or read exceeded its configured bound. Never
	// retried; a single timeout is reported immediately so registry
	// outages stay visible to the caller.
	ErrTimeout = errors.New("registry unreachable (timeout)")

	// ErrRegistryDisabled: an explicitly requested registry is not enabled.
	ErrRegistryDisabled = errors.New("registry disabled")

	// ErrUnsupported: structured query against a registry/tool combination
	// lacking that capability. Callers should fall back to raw WHOIS
	// themselves; the engine never substitutes a different registry.
	ErrUnsupported = errors.New("structured query unsupported for this registry; use raw whois_query instead")

	// ErrNotFound: well-formed query, no matching object.
	ErrNotFound = errors.New("object not found")

	// ErrMaxDepth / ErrMaxNodes: AS-SET expansion safety ceilings tripped.
	// These indicate a bound, not a data error.
	ErrMaxDepth = errors.New("as-set expansion exceeded maximum depth")
	ErrMaxNodes = errors.New("as-set expansion exceeded maximum node count")

	// ErrBackend: malformed response, unexpected status code, or any other
	// failure the taxonomy doesn't name more precisely.
	ErrBackend = errors.New("backend error")

	// ErrBadRequest: caller-supplied input that cannot be interpreted
	// (malformed prefix, unparseable target). No network call is made.
	ErrBadRequest = errors.New("bad request")
)

// Error attaches the originating registry and diagnostic detail to one of
// the sentinel kinds. Unwrap exposes both the kind and the underlying
// cause, so errors.Is(err, ErrTimeout) works alongside cause inspection.
type Error struct {
	Kind     error
	Registry Code
	Detail   string
	cause    error
}

// Errorf builds an *Error with a formatted detail string.
func Errorf(kind error, registry Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Registry: registry, Detail: fmt.Sprintf(format, args...)}
}

// WrapErr builds an *Error carrying an underlying cause.
func WrapErr(kind error, registry Code, cause error, detail string) *Error {
	return &Error{Kind: kind, Registry: registry, Detail: detail, cause: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Registry != CodeNone {
		msg = e.Registry.String() + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// KindName returns the short machine-readable name for the error kind,
// used in tool responses ("timeout", "not_found", ...). Unrecognized
// errors map to "backend_error".
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRegistryDisabled):
		return "registry_disabled"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMaxDepth):
		return "max_depth_exceeded"
	case errors.Is(err, ErrMaxNodes):
		return "max_nodes_exceeded"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "backend_error"
	}
}
