package contact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/openrdap/rdap"

	"github.com/rirtools/whois-mcp/internal/rir"
	"github.com/rirtools/whois-mcp/internal/rpsl"
)

// mockObjects serves structured objects keyed by "class/key".
type mockObjects struct {
	objs  map[string]*rpsl.Object
	calls atomic.Int32
}

func (m *mockObjects) GetObject(_ context.Context, b *rir.Backend, class, key string) (*rpsl.Object, error) {
	m.calls.Add(1)
	if o, ok := m.objs[class+"/"+key]; ok {
		return o, nil
	}
	return nil, rir.Errorf(rir.ErrNotFound, b.Code, "%s %s", class, key)
}

// mockRaw serves canned WHOIS text keyed by query.
type mockRaw struct {
	responses map[string]string
}

func (m *mockRaw) QueryRaw(_ context.Context, b *rir.Backend, query string) (string, error) {
	if raw, ok := m.responses[query]; ok {
		return raw, nil
	}
	return "", rir.Errorf(rir.ErrNotFound, b.Code, "%s", query)
}

// mockRDAP serves canned autnum responses.
type mockRDAP struct {
	autnums map[int]*rdap.Autnum
}

func (m *mockRDAP) LookupAutnum(_ context.Context, b *rir.Backend, asn int) (*rdap.Autnum, error) {
	if a, ok := m.autnums[asn]; ok {
		return a, nil
	}
	return nil, rir.Errorf(rir.ErrNotFound, b.Code, "AS%d", asn)
}

func (m *mockRDAP) LookupIP(_ context.Context, b *rir.Backend, _ string) (*rdap.IPNetwork, error) {
	return nil, rir.Errorf(rir.ErrNotFound, b.Code, "ip")
}

func (m *mockRDAP) LookupDomain(_ context.Context, b *rir.Backend, _ string) (*rdap.Domain, error) {
	return nil, rir.Errorf(rir.ErrNotFound, b.Code, "domain")
}

func obj(pairs ...string) *rpsl.Object {
	o := &rpsl.Object{}
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Attributes = append(o.Attributes, rpsl.Attribute{Name: pairs[i], Value: pairs[i+1]})
	}
	return o
}

func ripeBackend() *rir.Backend {
	return &rir.Backend{Code: rir.RIPE, RESTBase: "https://rest.invalid", RESTSource: "ripe", Enabled: true}
}

func newTestResolver(objects ObjectGetter, raw rir.RawQuerier, rdapc rir.RDAPClient) *Resolver {
	return NewResolver(objects, raw, rdapc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveStructuredFollowsReferrals(t *testing.T) {
	objects := &mockObjects{objs: map[string]*rpsl.Object{
		"aut-num/AS64496": obj(
			"aut-num", "AS64496",
			"org", "ORG-EX1",
			"admin-c", "EA1-RIPE",
			"tech-c", "ET1-RIPE",
		),
		"organisation/ORG-EX1": obj(
			"organisation", "ORG-EX1",
			"org-name", "Example Networks",
			"abuse-c", "AB1-RIPE",
		),
		"role/AB1-RIPE": obj(
			"role", "Example Abuse Desk",
			"abuse-mailbox", "abuse@example.net",
			"e-mail", "desk@example.net",
		),
		"role/EA1-RIPE": obj(
			"role", "Example Admins",
			"e-mail", "admins@example.net",
			"phone", "+31 20 000 0000",
		),
		"person/ET1-RIPE": obj(
			"person", "Eve Techer",
			"e-mail", "eve@example.net",
		),
	}}

	r := newTestResolver(objects, &mockRaw{}, &mockRDAP{})
	card, err := r.Resolve(context.Background(), ripeBackend(), Target{Kind: TargetASN, Name: "AS64496", ASN: 64496})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(card.Records) != 3 {
		t.Fatalf("got %d records: %+v", len(card.Records), card.Records)
	}
	// Handle order: the primary object's admin-c and tech-c, then the
	// organisation's abuse-c.
	admin := card.Records[0]
	if admin.Role != RoleAdmin || admin.Email != "admins@example.net" || admin.Phone != "+31 20 000 0000" {
		t.Fatalf("admin record = %+v", admin)
	}
	tech := card.Records[1]
	if tech.Role != RoleTech || tech.Name != "Eve Techer" {
		t.Fatalf("tech record = %+v", tech)
	}
	abuse := card.Records[2]
	if abuse.Role != RoleAbuse || abuse.Email != "abuse@example.net" || abuse.Name != "Example Abuse Desk" {
		t.Fatalf("abuse record = %+v", abuse)
	}
}

func TestResolveDeduplicatesAcrossReferralPaths(t *testing.T) {
	// The same abuse mailbox arrives twice: inline on the aut-num and via
	// the organisation's abuse-c role object.
	objects := &mockObjects{objs: map[string]*rpsl.Object{
		"aut-num/AS64496": obj(
			"aut-num", "AS64496",
			"abuse-mailbox", "abuse@example.net",
			"org", "ORG-EX1",
		),
		"organisation/ORG-EX1": obj(
			"organisation", "ORG-EX1",
			"abuse-c", "AB1-RIPE",
		),
		"role/AB1-RIPE": obj(
			"role", "Example Abuse Desk",
			"abuse-mailbox", "ABUSE@example.net",
		),
	}}

	r := newTestResolver(objects, &mockRaw{}, &mockRDAP{})
	card, err := r.Resolve(context.Background(), ripeBackend(), Target{Kind: TargetASN, Name: "AS64496", ASN: 64496})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(card.Records) != 1 {
		t.Fatalf("got %d records, want 1 after dedup: %+v", len(card.Records), card.Records)
	}
	if card.Records[0].Email != "abuse@example.net" {
		t.Fatalf("first-seen record should win: %+v", card.Records[0])
	}
}

func TestResolveBoundsHandleFanOut(t *testing.T) {
	primary := obj("aut-num", "AS64496")
	for i := 0; i < 10; i++ {
		primary.Attributes = append(primary.Attributes,
			rpsl.Attribute{Name: "admin-c", Value: fmt.Sprintf("H%d-RIPE", i)})
	}
	objects := &mockObjects{objs: map[string]*rpsl.Object{"aut-num/AS64496": primary}}
	for i := 0; i < 10; i++ {
		objects.objs[fmt.Sprintf("role/H%d-RIPE", i)] = obj(
			"role", fmt.Sprintf("Role %d", i),
			"e-mail", fmt.Sprintf("h%d@example.net", i),
		)
	}

	r := newTestResolver(objects, &mockRaw{}, &mockRDAP{})
	card, err := r.Resolve(context.Background(), ripeBackend(), Target{Kind: TargetASN, Name: "AS64496", ASN: 64496})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(card.Records) != MaxHandles {
		t.Fatalf("got %d records; fan-out bound is %d", len(card.Records), MaxHandles)
	}
	// 1 primary + MaxHandles dereferences; no lookups beyond the bound.
	if got := objects.calls.Load(); got != int32(1+MaxHandles) {
		t.Fatalf("%d object lookups; want %d", got, 1+MaxHandles)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := newTestResolver(&mockObjects{}, &mockRaw{}, &mockRDAP{})
	_, err := r.Resolve(context.Background(), ripeBackend(), Target{Kind: TargetASN, Name: "AS1", ASN: 1})
	if !errors.Is(err, rir.ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestResolveRawWhoisPath(t *testing.T) {
	raw := &mockRaw{responses: map[string]string{
		"AS64496": "aut-num: AS64496\n" +
			"admin-c: LA1-LACNIC\n" +
			"abuse-mailbox: abuso@example.net\n",
		"LA1-LACNIC": "% LACNIC resource\n" +
			"person: Lacnic Admin\n" +
			"e-mail: admin@example.net\n" +
			"phone: +55 11 0000 0000\n",
	}}
	b := &rir.Backend{Code: rir.LACNIC, WhoisHost: "whois.invalid", WhoisPort: 43, Enabled: true}

	r := newTestResolver(&mockObjects{}, raw, &mockRDAP{})
	card, err := r.Resolve(context.Background(), b, Target{Kind: TargetASN, Name: "AS64496", ASN: 64496})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(card.Records) != 2 {
		t.Fatalf("got %d records: %+v", len(card.Records), card.Records)
	}
	if card.Records[0].Role != RoleAbuse || card.Records[0].Email != "abuso@example.net" {
		t.Fatalf("abuse record = %+v", card.Records[0])
	}
	if card.Records[1].Role != RoleAdmin || card.Records[1].Name != "Lacnic Admin" {
		t.Fatalf("admin record = %+v", card.Records[1])
	}
	if card.Records[1].Source != "LACNIC" {
		t.Fatalf("source = %q; want LACNIC", card.Records[1].Source)
	}
}

func TestResolveRDAPPath(t *testing.T) {
	rdapc := &mockRDAP{autnums: map[int]*rdap.Autnum{
		64496: {
			Handle: "AS64496",
			Entities: []rdap.Entity{
				{
					Roles: []string{"registrant"},
					Entities: []rdap.Entity{
						{Roles: []string{"abuse"}},
						{Roles: []string{"technical"}},
					},
				},
				{Roles: []string{"administrative"}},
			},
		},
	}}
	b := &rir.Backend{Code: rir.ARIN, RDAPBase: "https://rdap.invalid", Enabled: true}

	r := newTestResolver(&mockObjects{}, &mockRaw{}, rdapc)
	card, err := r.Resolve(context.Background(), b, Target{Kind: TargetASN, Name: "AS64496", ASN: 64496})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	roles := make(map[Role]bool)
	for _, rec := range card.Records {
		roles[rec.Role] = true
		if rec.Source != "ARIN" {
			t.Fatalf("source = %q; want ARIN", rec.Source)
		}
	}
	for _, want := range []Role{RoleAbuse, RoleAdmin, RoleTech} {
		if !roles[want] {
			t.Fatalf("missing %s role in %+v", want, card.Records)
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []Record{
		{Role: RoleAbuse, Email: "abuse@example.net", Name: "first"},
		{Role: RoleAbuse, Email: "ABUSE@EXAMPLE.NET", Name: "second"},
		{Role: RoleAdmin, Email: "abuse@example.net"},
		{Role: RoleAbuse, Email: "other@example.net"},
	}
	out := Dedupe(in)
	if len(out) != 3 {
		t.Fatalf("Dedupe kept %d records; want 3", len(out))
	}
	if out[0].Name != "first" {
		t.Fatalf("first-seen record must win: %+v", out[0])
	}
}
