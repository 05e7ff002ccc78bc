package rir

import "github.com/rirtools/whois-mcp/internal/config"

// Router owns the backend table and selects which backend(s) serve a
// query. The table is built once from config and never mutated, so the
// Router is safe for concurrent use without locking.
type Router struct {
	backends map[Code]*Backend
}

// NewRouter builds the backend table from hardcoded endpoint defaults
// plus the config's per-registry enablement.
func NewRouter(cfg config.Config) *Router {
	m := make(map[Code]*Backend, len(Priority))
	for _, b := range defaultBackends(cfg) {
		m[b.Code] = b
	}
	return &Router{backends: m}
}

// Backend returns the backend for a code regardless of enablement, or nil
// for CodeNone/unknown codes.
func (r *Router) Backend(code Code) *Backend {
	return r.backends[code]
}

// BackendsFor selects the backends to consult for a query, in order.
//
// With an explicit code it returns exactly that backend, or
// ErrRegistryDisabled when it is not enabled — without touching the
// network. With CodeNone it returns every enabled backend capable of the
// kind, in fixed Priority order.
func (r *Router) BackendsFor(code Code, kind Kind) ([]*Backend, error) {
	if code != CodeNone {
		b, ok := r.backends[code]
		if !ok {
			return nil, Errorf(ErrBadRequest, code, "unknown registry")
		}
		if !b.Enabled {
			return nil, Errorf(ErrRegistryDisabled, code, "enable with SUPPORT_%s=true", code)
		}
		return []*Backend{b}, nil
	}

	var out []*Backend
	for _, c := range Priority {
		b := r.backends[c]
		if b.Enabled && b.supports(kind) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Supports exposes the capability matrix: whether a registry serves a
// tool kind via its structured API. Disabled registries support nothing.
func (r *Router) Supports(code Code, kind Kind) bool {
	b, ok := r.backends[code]
	return ok && b.Enabled && b.supports(kind)
}

// Enabled returns the enabled registry codes in Priority order.
func (r *Router) Enabled() []Code {
	var out []Code
	for _, c := range Priority {
		if r.backends[c].Enabled {
			out = append(out, c)
		}
	}
	return out
}
