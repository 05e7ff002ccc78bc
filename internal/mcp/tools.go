package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rirtools/whois-mcp/internal/rir"
)

// toolHandler executes one tool call, returning the data payload for the
// ok-envelope or an error from the registry taxonomy.
type toolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool descriptions are the LLM's only guidance on when to reach for
// which tool, so they spell out intent and counter-cases explicitly.
const (
	whoisDescription = "Perform raw WHOIS queries to get complete object information in RPSL format. " +
		"Use ONLY when you need full object details, contact information, or administrative data. " +
		"DO NOT use for route validation - use validate_route_object for checking if route objects exist. " +
		"DO NOT use for AS-SET expansion - use expand_as_set for getting ASN lists. " +
		"This returns raw database records with all attributes for detailed analysis."

	expandDescription = "Efficiently expand AS-SET objects into complete lists of concrete ASNs. " +
		"Use this instead of whois_query when you need ALL ASNs from an AS-SET, as it automatically " +
		"handles recursive expansion, deduplication, and cycle detection. A single AS-SET may contain " +
		"hundreds of nested AS-SETs and ASNs - this tool flattens the entire hierarchy in one call, " +
		"returning a sorted list with count metadata. Perfect for network analysis, route filtering, " +
		"and policy generation."

	validateDescription = "PREFERRED TOOL for validating route object registration. Use this when you " +
		"need to CHECK, VERIFY, or VALIDATE if a route or route6 object exists for a prefix-ASN pair. " +
		"Returns existence and origin-match separately, so 'registered to a different ASN' and 'not " +
		"registered at all' stay distinguishable. Much faster and more accurate than parsing raw WHOIS " +
		"data for route validation."

	contactDescription = "Retrieve abuse, admin, and technical contact information for domains, IP " +
		"addresses, or ASNs. Automatically follows registry referral chains (organisation, role, and " +
		"person objects) and deduplicates the results. Perfect for incident response, network " +
		"troubleshooting, and compliance reporting."

	ipToASNDescription = "Map an IP address to its origin ASN, announcing prefix, and authoritative " +
		"registry via Team Cymru's IP-to-ASN service. Use this before contact_card or whois_query when " +
		"you only have an address and need to know which network and registry it belongs to."
)

func registryProperty(enabled []rir.Code) Property {
	names := make([]string, len(enabled))
	for i, c := range enabled {
		names[i] = c.String()
	}
	return Property{
		Type: "string",
		Description: "Registry to query (" + strings.Join(names, ", ") + "). " +
			"Omit to let the router pick enabled registries in priority order.",
		Enum: names,
	}
}

// registerTools declares the tool surface. Canonical tools take an
// optional registry argument; when more than one registry is enabled,
// registry-prefixed variants (e.g. ripe_whois_query) are also exposed
// for hosts that route by tool name, limited to each registry's
// capabilities.
func (s *Server) registerTools() {
	enabled := s.engine.Router().Enabled()
	regProp := registryProperty(enabled)

	s.addWhoisTool("", regProp)
	s.addExpandTool("", regProp)
	s.addValidateTool("", regProp)
	s.addContactTool("", regProp)
	s.addIPToASNTool()

	if len(enabled) < 2 {
		return
	}
	for _, code := range enabled {
		prefix := strings.ToLower(code.String()) + "_"
		s.addWhoisTool(prefix, regProp)
		s.addContactTool(prefix, regProp)
		if s.engine.Router().Supports(code, rir.KindASSetExpand) {
			s.addExpandTool(prefix, regProp)
		}
		if s.engine.Router().Supports(code, rir.KindRoute) {
			s.addValidateTool(prefix, regProp)
		}
	}
}

// boundRegistry returns the registry a prefixed tool variant is pinned
// to ("" for the canonical tools).
func boundRegistry(prefix string) string {
	return strings.ToUpper(strings.TrimSuffix(prefix, "_"))
}

func (s *Server) addWhoisTool(prefix string, regProp Property) {
	type params struct {
		Target   string   `json:"target"`
		Registry string   `json:"registry"`
		Flags    []string `json:"flags"`
	}
	bound := boundRegistry(prefix)

	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"target": {
				Type: "string",
				Description: "Domain name, IP address, ASN, or other identifier to query via WHOIS. " +
					"Examples: 'example.com', '192.0.2.1', 'AS64496', 'RIPE-NCC-HM-MNT'.",
			},
			"flags": {
				Type: "array",
				Description: "Optional WHOIS flags to modify query behavior, e.g. ['-B'] for brief " +
					"output or ['-T', 'person'] to limit object types.",
				Items: &Property{Type: "string"},
			},
		},
		Required: []string{"target"},
	}
	if bound == "" {
		schema.Properties["registry"] = regProp
	}

	s.addTool(Tool{
		Name:        prefix + "whois_query",
		Description: describeBound(whoisDescription, bound),
		InputSchema: schema,
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p params
		if err := unmarshalArgs(args, &p); err != nil {
			return nil, err
		}
		if bound != "" {
			p.Registry = bound
		}
		return s.engine.WhoisQuery(ctx, p.Target, p.Registry, p.Flags)
	})
}

func (s *Server) addExpandTool(prefix string, regProp Property) {
	type params struct {
		Name     string `json:"name"`
		Registry string `json:"registry"`
	}
	bound := boundRegistry(prefix)

	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"name": {
				Type:        "string",
				Description: "AS-SET name to expand (e.g. 'AS-CLOUDFLARE', 'AS-RETN').",
			},
		},
		Required: []string{"name"},
	}
	if bound == "" {
		schema.Properties["registry"] = regProp
	}

	s.addTool(Tool{
		Name:        prefix + "expand_as_set",
		Description: describeBound(expandDescription, bound),
		InputSchema: schema,
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p params
		if err := unmarshalArgs(args, &p); err != nil {
			return nil, err
		}
		if bound != "" {
			p.Registry = bound
		}
		return s.engine.ExpandASSet(ctx, p.Name, p.Registry)
	})
}

func (s *Server) addValidateTool(prefix string, regProp Property) {
	type params struct {
		Prefix     string `json:"prefix"`
		OriginASN  int    `json:"origin_asn"`
		ObjectType string `json:"object_type"`
		Registry   string `json:"registry"`
	}
	bound := boundRegistry(prefix)

	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"prefix": {
				Type:        "string",
				Description: "IP prefix in CIDR notation, e.g. '192.0.2.0/24' or '2001:db8::/32'.",
			},
			"origin_asn": {
				Type:        "integer",
				Description: "Origin ASN to validate, without the 'AS' prefix (e.g. 64496).",
			},
			"object_type": {
				Type:        "string",
				Description: "IRR object class to check; route for IPv4, route6 for IPv6.",
				Enum:        []string{"route", "route6"},
			},
		},
		Required: []string{"prefix", "origin_asn", "object_type"},
	}
	if bound == "" {
		schema.Properties["registry"] = regProp
	}

	s.addTool(Tool{
		Name:        prefix + "validate_route_object",
		Description: describeBound(validateDescription, bound),
		InputSchema: schema,
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p params
		if err := unmarshalArgs(args, &p); err != nil {
			return nil, err
		}
		if bound != "" {
			p.Registry = bound
		}
		return s.engine.ValidateRoute(ctx, p.Prefix, p.OriginASN, p.ObjectType, p.Registry)
	})
}

func (s *Server) addContactTool(prefix string, regProp Property) {
	type params struct {
		Target   string `json:"target"`
		Registry string `json:"registry"`
	}
	bound := boundRegistry(prefix)

	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"target": {
				Type:        "string",
				Description: "Domain name, IP address, or ASN (e.g. 'example.com', '192.0.2.1', 'AS64496').",
			},
		},
		Required: []string{"target"},
	}
	if bound == "" {
		schema.Properties["registry"] = regProp
	}

	s.addTool(Tool{
		Name:        prefix + "contact_card",
		Description: describeBound(contactDescription, bound),
		InputSchema: schema,
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p params
		if err := unmarshalArgs(args, &p); err != nil {
			return nil, err
		}
		if bound != "" {
			p.Registry = bound
		}
		return s.engine.ContactCard(ctx, p.Target, p.Registry)
	})
}

func (s *Server) addIPToASNTool() {
	type params struct {
		IP string `json:"ip"`
	}
	s.addTool(Tool{
		Name:        "ip_to_asn",
		Description: ipToASNDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"ip": {Type: "string", Description: "IPv4 or IPv6 address."},
			},
			Required: []string{"ip"},
		},
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p params
		if err := unmarshalArgs(args, &p); err != nil {
			return nil, err
		}
		return s.engine.IPToASN(ctx, p.IP)
	})
}

func describeBound(desc, bound string) string {
	if bound == "" {
		return desc
	}
	return "[" + bound + " only] " + desc
}

func unmarshalArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return rir.WrapErr(rir.ErrBadRequest, rir.CodeNone, err, "tool arguments")
	}
	return nil
}
