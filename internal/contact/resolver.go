// Package contact fetches and normalizes abuse/admin/technical contact
// records. Registry data rarely carries contacts inline: objects
// reference role/person handles (and organisations referencing further
// handles), so resolution follows a short referral chain with a fixed
// fan-out bound.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openrdap/rdap"
	"golang.org/x/sync/errgroup"

	"github.com/rirtools/whois-mcp/internal/rir"
	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// Role categorizes a contact record.
type Role string

const (
	RoleAbuse Role = "abuse"
	RoleAdmin Role = "admin"
	RoleTech  Role = "tech"
)

// Record is one normalized contact.
type Record struct {
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Source string `json:"source"`
}

// Card is the ordered, deduplicated sequence of records for one target.
type Card struct {
	Target  string   `json:"target"`
	Records []Record `json:"records"`
}

// TargetKind classifies the lookup target.
type TargetKind int

const (
	TargetASN TargetKind = iota
	TargetDomain
)

// Target is the resolved lookup subject. IP targets are mapped to their
// origin ASN before reaching the resolver.
type Target struct {
	Kind TargetKind
	Name string // display form; also the domain name for TargetDomain
	ASN  int    // set for TargetASN
}

// MaxHandles bounds follow-up role/person dereferences per resolution,
// preventing unbounded fan-out on densely cross-referenced objects.
const MaxHandles = 5

// derefConcurrency bounds parallel handle dereferences.
const derefConcurrency = 4

// ObjectGetter fetches a single structured object.
type ObjectGetter interface {
	GetObject(ctx context.Context, b *rir.Backend, class, key string) (*rpsl.Object, error)
}

// Resolver looks up the primary object for a target and walks its
// contact referrals. Registries with a whois-resources REST API use it;
// ARIN goes through RDAP entity walking; the rest fall back to raw WHOIS
// output parsed into the same attribute model.
type Resolver struct {
	Objects ObjectGetter
	Raw     rir.RawQuerier
	RDAP    rir.RDAPClient
	Logger  *slog.Logger
}

// NewResolver wires the three lookup paths.
func NewResolver(objects ObjectGetter, raw rir.RawQuerier, rdapc rir.RDAPClient, logger *slog.Logger) *Resolver {
	return &Resolver{Objects: objects, Raw: raw, RDAP: rdapc, Logger: logger}
}

// Resolve produces the contact card for target against one backend.
func (r *Resolver) Resolve(ctx context.Context, b *rir.Backend, target Target) (Card, error) {
	switch {
	case b.Code == rir.ARIN:
		return r.resolveRDAP(ctx, b, target)
	case b.RESTBase != "":
		return r.resolveStructured(ctx, b, target)
	default:
		return r.resolveRaw(ctx, b, target)
	}
}

// --- whois-resources path ---

func (r *Resolver) resolveStructured(ctx context.Context, b *rir.Backend, target Target) (Card, error) {
	var primary *rpsl.Object
	var err error
	switch target.Kind {
	case TargetASN:
		primary, err = r.Objects.GetObject(ctx, b, "aut-num", fmt.Sprintf("AS%d", target.ASN))
	case TargetDomain:
		primary, err = r.Objects.GetObject(ctx, b, "domain", target.Name)
	default:
		return Card{}, rir.Errorf(rir.ErrBadRequest, b.Code, "unsupported target kind")
	}
	if err != nil {
		return Card{}, err
	}

	fetch := func(ctx context.Context, handle string) (*rpsl.Object, error) {
		obj, err := r.Objects.GetObject(ctx, b, "role", handle)
		if errors.Is(err, rir.ErrNotFound) {
			obj, err = r.Objects.GetObject(ctx, b, "person", handle)
		}
		return obj, err
	}
	orgFetch := func(ctx context.Context, key string) (*rpsl.Object, error) {
		return r.Objects.GetObject(ctx, b, "organisation", key)
	}
	return r.assemble(ctx, b, target, primary, fetch, orgFetch)
}

// --- raw WHOIS path ---

func (r *Resolver) resolveRaw(ctx context.Context, b *rir.Backend, target Target) (Card, error) {
	query := target.Name
	if target.Kind == TargetASN {
		query = fmt.Sprintf("AS%d", target.ASN)
	}
	raw, err := r.Raw.QueryRaw(ctx, b, query)
	if err != nil {
		return Card{}, err
	}
	objs := rpsl.Parse(raw)
	if len(objs) == 0 {
		return Card{}, rir.Errorf(rir.ErrNotFound, b.Code, "%s", query)
	}
	primary := &objs[0]

	fetch := func(ctx context.Context, handle string) (*rpsl.Object, error) {
		out, err := r.Raw.QueryRaw(ctx, b, handle)
		if err != nil {
			return nil, err
		}
		for _, o := range rpsl.Parse(out) {
			if c := o.Class(); c == "role" || c == "person" || c == "organisation" {
				o := o
				return &o, nil
			}
		}
		return nil, rir.Errorf(rir.ErrNotFound, b.Code, "handle %s", handle)
	}
	return r.assemble(ctx, b, target, primary, fetch, fetch)
}

// handleRef is one pending dereference.
type handleRef struct {
	role   Role
	handle string
}

// assemble extracts direct contact attributes from the primary object,
// dereferences referenced handles (including the organisation hop), and
// returns the deduplicated card. Handle lookups run in parallel but
// results keep first-seen handle order so output is deterministic.
func (r *Resolver) assemble(
	ctx context.Context,
	b *rir.Backend,
	target Target,
	primary *rpsl.Object,
	fetch func(ctx context.Context, handle string) (*rpsl.Object, error),
	orgFetch func(ctx context.Context, key string) (*rpsl.Object, error),
) (Card, error) {
	var records []Record

	// Direct attributes on the primary object.
	for _, mb := range primary.All("abuse-mailbox") {
		records = append(records, Record{Role: RoleAbuse, Email: mb, Source: b.Code.String()})
	}

	refs := collectHandles(primary, nil)

	// Organisation hop: one follow-up, contributing its own handles and
	// abuse mailbox.
	if orgKey, ok := primary.First("org"); ok {
		org, err := orgFetch(ctx, orgKey)
		if err == nil {
			for _, mb := range org.All("abuse-mailbox") {
				records = append(records, Record{Role: RoleAbuse, Email: mb, Source: b.Code.String()})
			}
			refs = collectHandles(org, refs)
		} else if !errors.Is(err, rir.ErrNotFound) {
			r.Logger.Debug("organisation dereference failed", "org", orgKey, "err", err)
		}
	}

	if len(refs) > MaxHandles {
		refs = refs[:MaxHandles]
	}

	// Bounded-parallel dereference; slot per handle keeps ordering.
	deref := make([]*rpsl.Object, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(derefConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			obj, err := fetch(gctx, ref.handle)
			if err != nil {
				if errors.Is(err, rir.ErrNotFound) {
					return nil
				}
				return err
			}
			deref[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Card{}, err
	}

	for i, obj := range deref {
		if obj == nil {
			continue
		}
		records = append(records, recordFromObject(refs[i].role, obj, b.Code))
	}

	return Card{Target: target.Name, Records: Dedupe(records)}, nil
}

// collectHandles gathers referral handles from an object in attribute
// order, skipping duplicates already queued.
func collectHandles(obj *rpsl.Object, refs []handleRef) []handleRef {
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[r.handle] = true
	}
	add := func(role Role, attr string) {
		for _, h := range obj.All(attr) {
			if !seen[h] {
				seen[h] = true
				refs = append(refs, handleRef{role: role, handle: h})
			}
		}
	}
	add(RoleAbuse, "abuse-c")
	add(RoleAdmin, "admin-c")
	add(RoleTech, "tech-c")
	return refs
}

// recordFromObject normalizes one dereferenced role/person object.
func recordFromObject(role Role, obj *rpsl.Object, code rir.Code) Record {
	rec := Record{Role: role, Source: code.String()}
	if name, ok := obj.First("role"); ok {
		rec.Name = name
	} else if name, ok := obj.First("person"); ok {
		rec.Name = name
	} else if name, ok := obj.First("org-name"); ok {
		rec.Name = name
	}
	if role == RoleAbuse {
		if mb, ok := obj.First("abuse-mailbox"); ok {
			rec.Email = mb
		}
	}
	if rec.Email == "" {
		if em, ok := obj.First("e-mail"); ok {
			rec.Email = em
		}
	}
	if phone, ok := obj.First("phone"); ok {
		rec.Phone = phone
	}
	return rec
}

// --- RDAP path (ARIN) ---

func (r *Resolver) resolveRDAP(ctx context.Context, b *rir.Backend, target Target) (Card, error) {
	var entities []rdap.Entity
	switch target.Kind {
	case TargetASN:
		an, err := r.RDAP.LookupAutnum(ctx, b, target.ASN)
		if err != nil {
			return Card{}, err
		}
		entities = an.Entities
	case TargetDomain:
		d, err := r.RDAP.LookupDomain(ctx, b, target.Name)
		if err != nil {
			return Card{}, err
		}
		entities = d.Entities
	default:
		return Card{}, rir.Errorf(rir.ErrBadRequest, b.Code, "unsupported target kind")
	}

	records := walkEntities(entities, b.Code, 0)
	return Card{Target: target.Name, Records: Dedupe(records)}, nil
}

// walkEntities collects contact records from the RDAP entity tree.
// Entities nest, so recurse; depth is bounded because RDAP responses are
// finite documents, but cap it anyway against degenerate payloads.
func walkEntities(entities []rdap.Entity, code rir.Code, depth int) []Record {
	if depth > 4 {
		return nil
	}
	var out []Record
	for _, e := range entities {
		for _, roleName := range e.Roles {
			role, ok := rdapRole(roleName)
			if !ok {
				continue
			}
			rec := Record{Role: role, Source: code.String()}
			if e.VCard != nil {
				rec.Name = e.VCard.Name()
				rec.Email = e.VCard.Email()
				rec.Phone = e.VCard.Tel()
			}
			out = append(out, rec)
		}
		out = append(out, walkEntities(e.Entities, code, depth+1)...)
	}
	return out
}

func rdapRole(roleName string) (Role, bool) {
	switch strings.ToLower(roleName) {
	case "abuse":
		return RoleAbuse, true
	case "administrative":
		return RoleAdmin, true
	case "technical":
		return RoleTech, true
	}
	return "", false
}

// Dedupe removes records sharing (role, email), preserving first-seen
// order. Email comparison is case-insensitive.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		key := string(rec.Role) + "|" + strings.ToLower(rec.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}
