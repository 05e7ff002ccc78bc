// Package engine wires the router, cache, transports, and resolvers into
// the tool operations the MCP layer exposes. Each operation applies the
// shared response cache at every distinct lookup and translates every
// failure into the registry error taxonomy before it reaches a caller.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rirtools/whois-mcp/internal/asset"
	"github.com/rirtools/whois-mcp/internal/cache"
	"github.com/rirtools/whois-mcp/internal/config"
	"github.com/rirtools/whois-mcp/internal/contact"
	"github.com/rirtools/whois-mcp/internal/cymru"
	"github.com/rirtools/whois-mcp/internal/rir"
	"github.com/rirtools/whois-mcp/internal/route"
	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// defaultCallTimeout is the overall wall-clock bound on one tool call,
// covering every backend round-trip the call fans out into. Individual
// connect/read timeouts still apply underneath it.
const defaultCallTimeout = 60 * time.Second

// Engine owns the shared components. The router's backend table is
// read-only after construction and the cache is internally synchronized,
// so one Engine serves any number of concurrent tool calls.
type Engine struct {
	router *rir.Router
	cache  *cache.Cache
	whois  rir.RawQuerier
	rest   rir.StructuredQuerier
	rdap   rir.RDAPClient
	cymru  cymru.Client

	expander  *asset.Expander
	validator *route.Validator
	resolver  *contact.Resolver

	log         *slog.Logger
	ttl         time.Duration
	callTimeout time.Duration
}

// New builds a production Engine from config.
func New(cfg config.Config, logger *slog.Logger) *Engine {
	e := &Engine{
		router:      rir.NewRouter(cfg),
		cache:       cache.New(cfg.CacheMaxItems),
		whois:       rir.NewWhoisClient(cfg.WhoisConnectTimeout, cfg.WhoisReadTimeout),
		rest:        rir.NewRESTClient(cfg.HTTPTimeout, cfg.UserAgent),
		rdap:        rir.NewRDAPClient(cfg.HTTPTimeout, cfg.UserAgent),
		cymru:       cymru.New(),
		log:         logger,
		ttl:         cfg.CacheTTL,
		callTimeout: defaultCallTimeout,
	}
	e.expander = asset.NewExpander(&memberSource{e: e}, logger)
	e.validator = route.NewValidator(&searchSource{e: e})
	e.resolver = contact.NewResolver(e.rest, e.whois, e.rdap, logger)
	return e
}

// Router exposes the backend table (capability matrix, enabled set).
func (e *Engine) Router() *rir.Router {
	return e.router
}

// --- whois_query ---

// WhoisResult is the outcome of one raw WHOIS query.
type WhoisResult struct {
	Registry  string `json:"registry"`
	Server    string `json:"server"`
	RPSL      string `json:"rpsl"`
	LatencyMS int64  `json:"latency_ms"`
}

// WhoisQuery issues a raw WHOIS query. With an explicit registry it
// consults exactly that backend; otherwise it walks enabled backends in
// priority order and returns the first non-empty answer, keeping raw
// socket load on the registries predictable.
func (e *Engine) WhoisQuery(ctx context.Context, target, registry string, flags []string) (*WhoisResult, error) {
	code, err := rir.ParseCode(registry)
	if err != nil {
		return nil, rir.WrapErr(rir.ErrBadRequest, rir.CodeNone, err, "registry")
	}
	backends, err := e.router.BackendsFor(code, rir.KindWhois)
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, rir.Errorf(rir.ErrRegistryDisabled, rir.CodeNone, "no registries enabled")
	}

	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	query := strings.TrimSpace(strings.Join(append(append([]string{}, flags...), target), " "))

	var lastErr error
	for _, b := range backends {
		key := cache.Key(string(rir.KindWhois), b.Code.String(), query)
		if v, ok := e.cache.Get(key); ok {
			return v.(*WhoisResult), nil
		}

		start := time.Now()
		raw, err := e.whois.QueryRaw(ctx, b, query)
		if err != nil {
			e.log.Warn("whois query failed", "registry", b.Code.String(), "err", err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(raw) == "" && code == rir.CodeNone {
			continue
		}
		res := &WhoisResult{
			Registry:  b.Code.String(),
			Server:    b.WhoisHost,
			RPSL:      raw,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		e.cache.Put(key, res, e.ttl)
		return res, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, rir.Errorf(rir.ErrNotFound, code, "%s", target)
}

// --- expand_as_set ---

// ExpandResult is the outcome of one AS-SET expansion.
type ExpandResult struct {
	ASSet    string `json:"as_set"`
	Registry string `json:"registry"`
	ASNs     []int  `json:"asns"`
	Count    int    `json:"count"`
}

// ExpandASSet recursively expands an as-set into its member ASNs, sorted
// ascending.
func (e *Engine) ExpandASSet(ctx context.Context, name, registry string) (*ExpandResult, error) {
	m, err := rpsl.ParseMember(name)
	if err != nil || m.Kind != rpsl.MemberSet {
		return nil, rir.Errorf(rir.ErrBadRequest, rir.CodeNone, "%q is not an as-set name", name)
	}

	b, err := e.pickStructured(rir.KindASSetExpand, registry)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	asns, err := e.expander.Expand(ctx, m.Set, b.Code)
	if err != nil {
		return nil, err
	}
	return &ExpandResult{
		ASSet:    m.Set,
		Registry: b.Code.String(),
		ASNs:     asns,
		Count:    len(asns),
	}, nil
}

// memberSource feeds the expander: cached, parsed membership lists. The
// cache holds membership lists rather than final expansions, so shared
// sub-sets are fetched once per TTL without any cross-expansion
// invalidation concerns.
type memberSource struct {
	e *Engine
}

func (s *memberSource) Members(ctx context.Context, set string, registry rir.Code) ([]rpsl.Member, error) {
	key := cache.Key(string(rir.KindASSetExpand), registry.String(), set)
	if v, ok := s.e.cache.Get(key); ok {
		return v.([]rpsl.Member), nil
	}

	b := s.e.router.Backend(registry)
	obj, err := s.e.rest.GetObject(ctx, b, "as-set", set)
	if err != nil {
		return nil, err
	}

	var members []rpsl.Member
	for _, value := range obj.All("members") {
		for _, tok := range rpsl.SplitMembers(value) {
			m, err := rpsl.ParseMember(tok)
			if err != nil {
				// Conservative parse-failure policy: surface, never skip.
				return nil, rir.WrapErr(rir.ErrBackend, registry, err, "members of "+set)
			}
			members = append(members, m)
		}
	}
	s.e.cache.Put(key, members, s.e.ttl)
	return members, nil
}

// --- validate_route_object ---

// RouteResult is the outcome of one route object validation.
type RouteResult struct {
	Prefix        string `json:"prefix"`
	OriginASN     int    `json:"origin_asn"`
	ObjectType    string `json:"object_type"`
	Registry      string `json:"registry"`
	Exists        bool   `json:"exists"`
	OriginMatches *bool  `json:"origin_matches,omitempty"`
	Raw           string `json:"raw,omitempty"`
}

// ValidateRoute checks IRR route/route6 coverage for a prefix-ASN pair.
func (e *Engine) ValidateRoute(ctx context.Context, prefix string, originASN int, objectType, registry string) (*RouteResult, error) {
	b, err := e.pickStructured(rir.KindRoute, registry)
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("%s|AS%d|%s", prefix, originASN, objectType)
	key := cache.Key(string(rir.KindRoute), b.Code.String(), target)
	if v, ok := e.cache.Get(key); ok {
		return v.(*RouteResult), nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	res, err := e.validator.Validate(ctx, prefix, originASN, objectType, b.Code)
	if err != nil {
		return nil, err
	}
	out := &RouteResult{
		Prefix:        prefix,
		OriginASN:     originASN,
		ObjectType:    objectType,
		Registry:      b.Code.String(),
		Exists:        res.Exists,
		OriginMatches: res.OriginMatches,
		Raw:           res.Raw,
	}
	e.cache.Put(key, out, e.ttl)
	return out, nil
}

// searchSource adapts the REST client to the validator's view (registry
// code in, backend resolved here).
type searchSource struct {
	e *Engine
}

func (s *searchSource) Search(ctx context.Context, registry rir.Code, query string, classes ...string) ([]rpsl.Object, error) {
	return s.e.rest.Search(ctx, s.e.router.Backend(registry), query, classes...)
}

// --- contact_card ---

// ContactCard resolves abuse/admin/technical contacts for a domain, IP
// address, or ASN. IP targets first map to their origin ASN via Team
// Cymru; when no registry is requested, the RIR Cymru reports as
// authoritative for the address is consulted.
func (e *Engine) ContactCard(ctx context.Context, target, registry string) (*contact.Card, error) {
	code, err := rir.ParseCode(registry)
	if err != nil {
		return nil, rir.WrapErr(rir.ErrBadRequest, rir.CodeNone, err, "registry")
	}

	// An explicitly requested registry is checked before classification:
	// classifying an IP target costs a Cymru lookup, and a disabled
	// registry must fail without any network call.
	var b *rir.Backend
	if code != rir.CodeNone {
		backends, err := e.router.BackendsFor(code, rir.KindContact)
		if err != nil {
			return nil, err
		}
		b = backends[0]
	}

	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	t, hintCode, err := e.classifyTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if b == nil {
		backends, err := e.router.BackendsFor(hintCode, rir.KindContact)
		if err != nil {
			return nil, err
		}
		if len(backends) == 0 {
			return nil, rir.Errorf(rir.ErrRegistryDisabled, rir.CodeNone, "no registries enabled")
		}
		b = backends[0]
	}

	key := cache.Key(string(rir.KindContact), b.Code.String(), target)
	if v, ok := e.cache.Get(key); ok {
		return v.(*contact.Card), nil
	}

	card, err := e.resolver.Resolve(ctx, b, t)
	if err != nil {
		return nil, err
	}
	e.cache.Put(key, &card, e.ttl)
	return &card, nil
}

// classifyTarget decides whether target is an IP, an ASN, or a domain.
// IP targets resolve to their origin ASN plus an authoritative-registry
// hint; anything without dots that isn't AS-shaped is rejected.
func (e *Engine) classifyTarget(ctx context.Context, target string) (contact.Target, rir.Code, error) {
	trimmed := strings.TrimSpace(target)
	if ip := net.ParseIP(trimmed); ip != nil {
		info, err := e.ipToASNCached(ctx, trimmed)
		if err != nil {
			return contact.Target{}, rir.CodeNone, err
		}
		if info.ASN == 0 {
			return contact.Target{}, rir.CodeNone,
				rir.Errorf(rir.ErrNotFound, rir.CodeNone, "no origin ASN announced for %s", trimmed)
		}
		return contact.Target{Kind: contact.TargetASN, Name: trimmed, ASN: info.ASN}, info.Registry, nil
	}
	if n, ok := rpsl.ParseASN(trimmed); ok {
		return contact.Target{Kind: contact.TargetASN, Name: trimmed, ASN: n}, rir.CodeNone, nil
	}
	if strings.Contains(trimmed, ".") {
		return contact.Target{Kind: contact.TargetDomain, Name: trimmed}, rir.CodeNone, nil
	}
	return contact.Target{}, rir.CodeNone,
		rir.Errorf(rir.ErrBadRequest, rir.CodeNone, "target %q is not a domain, IP, or ASN", target)
}

// --- ip_to_asn ---

// IPToASN maps an address to its origin ASN via Team Cymru.
func (e *Engine) IPToASN(ctx context.Context, ip string) (*cymru.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.ipToASNCached(ctx, ip)
}

func (e *Engine) ipToASNCached(ctx context.Context, ip string) (*cymru.Info, error) {
	key := cache.Key("ip_to_asn", "", ip)
	if v, ok := e.cache.Get(key); ok {
		return v.(*cymru.Info), nil
	}
	info, err := cymru.Lookup(ctx, e.cymru, ip)
	if err != nil {
		return nil, err
	}
	e.cache.Put(key, info, e.ttl)
	return info, nil
}

// pickStructured selects the backend for a structured-only tool kind:
// the explicit registry (verifying enablement, then capability) or the
// highest-priority enabled capable backend.
func (e *Engine) pickStructured(kind rir.Kind, registry string) (*rir.Backend, error) {
	code, err := rir.ParseCode(registry)
	if err != nil {
		return nil, rir.WrapErr(rir.ErrBadRequest, rir.CodeNone, err, "registry")
	}
	backends, err := e.router.BackendsFor(code, kind)
	if err != nil {
		return nil, err
	}
	if code != rir.CodeNone {
		if !e.router.Supports(code, kind) {
			return nil, rir.Errorf(rir.ErrUnsupported, code, "%s requires a structured API this registry lacks", kind)
		}
		return backends[0], nil
	}
	if len(backends) == 0 {
		return nil, rir.Errorf(rir.ErrUnsupported, rir.CodeNone, "no enabled registry supports %s", kind)
	}
	return backends[0], nil
}
