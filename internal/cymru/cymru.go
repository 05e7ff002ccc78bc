// Package cymru maps IP addresses to their origin ASN via Team Cymru's
// DNS-based IP-to-ASN service. The contact resolver uses it to turn IP
// targets into aut-num lookups, and the mapping is exposed directly as
// the ip_to_asn tool.
package cymru

import (
	"context"
	"net"
	"strings"

	"github.com/ammario/ipisp/v2"

	"github.com/rirtools/whois-mcp/internal/rir"
)

// Client abstracts the lookup for testing.
type Client interface {
	LookupIP(ctx context.Context, ip net.IP) (*ipisp.Response, error)
}

type cymruClient struct{}

func (c *cymruClient) LookupIP(ctx context.Context, ip net.IP) (*ipisp.Response, error) {
	return ipisp.LookupIP(ctx, ip)
}

// New returns a Client backed by Team Cymru DNS.
func New() Client {
	return &cymruClient{}
}

// Info holds the result of one IP-to-ASN lookup.
type Info struct {
	IP        string   `json:"ip"`
	ASN       int      `json:"asn"`
	ASNName   string   `json:"asn_name,omitempty"`
	BGPPrefix string   `json:"bgp_prefix,omitempty"`
	Country   string   `json:"country,omitempty"`
	Registry  rir.Code `json:"-"`
}

// Lookup resolves the origin ASN for an IP. The returned Registry is the
// RIR Team Cymru reports as authoritative for the address, or CodeNone
// when unrecognized.
func Lookup(ctx context.Context, client Client, ip string) (*Info, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, rir.Errorf(rir.ErrBadRequest, rir.CodeNone, "invalid IP address %q", ip)
	}

	resp, err := client.LookupIP(ctx, parsed)
	if err != nil {
		if ctx.Err() != nil {
			return nil, rir.WrapErr(rir.ErrTimeout, rir.CodeNone, err, "cymru lookup "+ip)
		}
		return nil, rir.WrapErr(rir.ErrBackend, rir.CodeNone, err, "cymru lookup "+ip)
	}

	info := &Info{
		IP:       parsed.String(),
		ASN:      int(resp.ASN),
		ASNName:  resp.ISPName,
		Country:  resp.Country,
		Registry: registryCode(resp.Registry),
	}
	if resp.Range != nil {
		info.BGPPrefix = resp.Range.String()
	}
	return info, nil
}

// registryCode maps Team Cymru registry names onto RIR codes.
func registryCode(name string) rir.Code {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ripencc", "ripe":
		return rir.RIPE
	case "arin":
		return rir.ARIN
	case "apnic":
		return rir.APNIC
	case "afrinic":
		return rir.AFRINIC
	case "lacnic":
		return rir.LACNIC
	}
	return rir.CodeNone
}
