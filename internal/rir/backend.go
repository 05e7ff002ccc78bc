package rir

import "github.com/rirtools/whois-mcp/internal/config"

// Backend describes one registry's endpoints and capabilities. Instances
// are built once at startup and read-only afterwards, so concurrent tool
// calls share them without locking.
type Backend struct {
	Code      Code
	WhoisHost string
	WhoisPort int

	// RESTBase is the whois-resources style REST API root ("" when the
	// registry has none). RESTSource is the database source name used in
	// REST paths (e.g. "ripe" in /ripe/as-set/{key}.json).
	RESTBase   string
	RESTSource string

	// RDAPBase is the registry's RDAP service root.
	RDAPBase string

	// Structured-capability flags. A false flag means structured calls of
	// that category are rejected with ErrUnsupported rather than silently
	// falling back to raw WHOIS; fallback is the caller's decision.
	SupportsStructuredASSet bool
	SupportsStructuredRoute bool

	Enabled bool
}

// Registry endpoints are fixed defaults rather than configuration, to
// guarantee reachability; only enablement comes from the environment.
func defaultBackends(cfg config.Config) []*Backend {
	return []*Backend{
		{
			Code:                    RIPE,
			WhoisHost:               "whois.ripe.net",
			WhoisPort:               43,
			RESTBase:                "https://rest.db.ripe.net",
			RESTSource:              "ripe",
			RDAPBase:                "https://rdap.db.ripe.net",
			SupportsStructuredASSet: true,
			SupportsStructuredRoute: true,
			Enabled:                 cfg.SupportRIPE,
		},
		{
			Code:                    ARIN,
			WhoisHost:               "whois.arin.net",
			WhoisPort:               43,
			RESTBase:                "https://whois.arin.net/rest",
			RESTSource:              "arin",
			RDAPBase:                "https://rdap.arin.net/registry",
			SupportsStructuredASSet: true,
			SupportsStructuredRoute: true,
			Enabled:                 cfg.SupportARIN,
		},
		{
			Code:       APNIC,
			WhoisHost:  "whois.apnic.net",
			WhoisPort:  43,
			RESTBase:   "https://registry-api.apnic.net/v1",
			RESTSource: "apnic",
			RDAPBase:   "https://rdap.apnic.net",
			Enabled:    cfg.SupportAPNIC,
		},
		{
			Code:      AFRINIC,
			WhoisHost: "whois.afrinic.net",
			WhoisPort: 43,
			RDAPBase:  "https://rdap.afrinic.net/rdap",
			Enabled:   cfg.SupportAFRINIC,
		},
		{
			Code:      LACNIC,
			WhoisHost: "whois.lacnic.net",
			WhoisPort: 43,
			RDAPBase:  "https://rdap.lacnic.net/rdap",
			Enabled:   cfg.SupportLACNIC,
		},
	}
}

// supports reports whether this backend can serve the given tool kind.
// Raw WHOIS and contact lookups work everywhere; AS-SET expansion and
// route validation need a structured API.
func (b *Backend) supports(kind Kind) bool {
	switch kind {
	case KindWhois, KindContact:
		return true
	case KindASSetExpand:
		return b.SupportsStructuredASSet
	case KindRoute:
		return b.SupportsStructuredRoute
	}
	return false
}
