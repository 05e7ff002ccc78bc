// Package asset resolves AS-SET objects into flat, deduplicated ASN
// lists. AS-SET membership graphs in real registry data are arbitrary
// and legitimately cyclic, so traversal carries a cycle guard plus depth
// and node ceilings that bound worst-case cost against pathological or
// malicious input.
package asset

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/rirtools/whois-mcp/internal/rir"
	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// Default traversal ceilings.
const (
	DefaultMaxDepth = 10
	DefaultMaxNodes = 2000
)

// MemberSource fetches the parsed membership list of one as-set. The
// production implementation consults the response cache before querying
// the router-selected backend, so popular shared sub-sets referenced
// from many parents cost one network call.
type MemberSource interface {
	Members(ctx context.Context, set string, registry rir.Code) ([]rpsl.Member, error)
}

// Expander performs depth-first expansion over the membership graph.
// Sub-queries within one expansion run sequentially; concurrency exists
// only across independent top-level calls.
type Expander struct {
	Source   MemberSource
	MaxDepth int
	MaxNodes int
	Logger   *slog.Logger
}

// NewExpander returns an Expander with the default ceilings.
func NewExpander(src MemberSource, logger *slog.Logger) *Expander {
	return &Expander{
		Source:   src,
		MaxDepth: DefaultMaxDepth,
		MaxNodes: DefaultMaxNodes,
		Logger:   logger,
	}
}

// state lives for the duration of one top-level Expand call.
type state struct {
	visiting map[string]bool
	asns     map[int]bool
	nodes    int
}

// Expand resolves root into the deduplicated set of member ASNs, sorted
// ascending. An empty result with no error is a valid outcome (an empty
// as-set). Cycles stop descent silently; exceeding a ceiling fails with
// ErrMaxDepth/ErrMaxNodes carrying partial-progress context.
func (e *Expander) Expand(ctx context.Context, root string, registry rir.Code) ([]int, error) {
	st := &state{
		visiting: make(map[string]bool),
		asns:     make(map[int]bool),
	}
	if err := e.visit(ctx, st, strings.ToUpper(strings.TrimSpace(root)), registry, 0); err != nil {
		return nil, err
	}

	out := make([]int, 0, len(st.asns))
	for asn := range st.asns {
		out = append(out, asn)
	}
	sort.Ints(out)
	return out, nil
}

func (e *Expander) visit(ctx context.Context, st *state, name string, registry rir.Code, depth int) error {
	if err := ctx.Err(); err != nil {
		return rir.WrapErr(rir.ErrTimeout, registry, err, "expansion aborted")
	}
	// Cycle: the set is already on the active recursion path. Stop
	// descending this path without error; cycles are legitimate data.
	if st.visiting[name] {
		e.Logger.Debug("as-set cycle detected", "set", name)
		return nil
	}
	if depth > e.MaxDepth {
		return rir.Errorf(rir.ErrMaxDepth, registry,
			"at %s: depth %d, %d sets visited, %d asns collected so far",
			name, depth, st.nodes, len(st.asns))
	}
	st.nodes++
	if st.nodes > e.MaxNodes {
		return rir.Errorf(rir.ErrMaxNodes, registry,
			"at %s: %d sets visited, %d asns collected so far",
			name, st.nodes, len(st.asns))
	}

	st.visiting[name] = true
	defer delete(st.visiting, name)

	members, err := e.Source.Members(ctx, name, registry)
	if err != nil {
		return err
	}

	// Process members in backend order; first occurrence wins for any
	// ordering-sensitive diagnostics, the final set is unordered anyway.
	for _, m := range members {
		switch m.Kind {
		case rpsl.MemberASN:
			st.asns[m.ASN] = true
		case rpsl.MemberSet:
			if err := e.visit(ctx, st, m.Set, registry, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
