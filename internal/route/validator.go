// Package route checks IRR route/route6 object coverage for a
// prefix-origin pair. "Object exists but origin differs" and "object
// absent" are distinct outcomes callers must be able to tell apart, so
// the result carries existence and origin-match separately rather than
// one collapsed boolean.
package route

import (
	"context"
	"errors"
	"net/netip"
	"strings"

	"github.com/rirtools/whois-mcp/internal/rir"
	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// ObjectSource searches the IRR for objects of the given classes.
type ObjectSource interface {
	Search(ctx context.Context, registry rir.Code, query string, classes ...string) ([]rpsl.Object, error)
}

// Result is the outcome of one validation. OriginMatches is nil when no
// object exists.
type Result struct {
	Exists        bool
	OriginMatches *bool
	// Raw holds the matched (or first found) object in RPSL form.
	Raw string
}

// Validator issues a single backend query per validation.
type Validator struct {
	Source ObjectSource
}

// NewValidator returns a Validator over the given source.
func NewValidator(src ObjectSource) *Validator {
	return &Validator{Source: src}
}

// Validate queries for the exact prefix+class object and compares its
// declared origin against originASN (exact match, no AS-path semantics).
// The class must be "route" or "route6" and must agree with the prefix
// address family.
func (v *Validator) Validate(ctx context.Context, prefix string, originASN int, class string, registry rir.Code) (Result, error) {
	pfx, err := netip.ParsePrefix(strings.TrimSpace(prefix))
	if err != nil {
		return Result{}, rir.WrapErr(rir.ErrBadRequest, registry, err, "invalid prefix")
	}
	switch class {
	case "route":
		if !pfx.Addr().Is4() {
			return Result{}, rir.Errorf(rir.ErrBadRequest, registry, "route objects cover IPv4, got %s", prefix)
		}
	case "route6":
		if !pfx.Addr().Is6() {
			return Result{}, rir.Errorf(rir.ErrBadRequest, registry, "route6 objects cover IPv6, got %s", prefix)
		}
	default:
		return Result{}, rir.Errorf(rir.ErrBadRequest, registry, "object type must be route or route6, got %q", class)
	}

	objs, err := v.Source.Search(ctx, registry, pfx.String(), class)
	if err != nil {
		if isNotFound(err) {
			return Result{Exists: false}, nil
		}
		return Result{}, err
	}

	var firstRaw string
	for _, o := range objs {
		declared, ok := o.First(class)
		if !ok || !samePrefix(declared, pfx) {
			continue
		}
		if firstRaw == "" {
			firstRaw = o.String()
		}
		origin, ok := o.First("origin")
		if !ok {
			continue
		}
		n, ok := rpsl.ParseASN(origin)
		if !ok {
			continue
		}
		if n == originASN {
			matches := true
			return Result{Exists: true, OriginMatches: &matches, Raw: o.String()}, nil
		}
	}

	if firstRaw != "" {
		matches := false
		return Result{Exists: true, OriginMatches: &matches, Raw: firstRaw}, nil
	}
	return Result{Exists: false}, nil
}

// samePrefix compares a declared route value against the queried prefix,
// tolerating formatting differences (e.g. zero-padded octets).
func samePrefix(declared string, want netip.Prefix) bool {
	got, err := netip.ParsePrefix(strings.TrimSpace(declared))
	if err != nil {
		return false
	}
	return got == want
}

func isNotFound(err error) bool {
	return errors.Is(err, rir.ErrNotFound)
}
