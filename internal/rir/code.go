// Package rir models the five Regional Internet Registries and the two
// query protocols they speak: legacy line-based WHOIS over TCP port 43 and
// structured REST/RDAP over HTTPS. The Router selects which backends serve
// a given query; the transports do the wire work. All errors crossing out
// of this package belong to the taxonomy in errors.go.
package rir

import (
	"fmt"
	"strings"
)

// Code identifies one Regional Internet Registry.
type Code int

const (
	// CodeNone means "no explicit registry requested".
	CodeNone Code = iota
	RIPE
	ARIN
	APNIC
	AFRINIC
	LACNIC
)

// Priority is the fixed order backends are consulted in when no registry
// is explicitly requested, chosen to keep results deterministic across runs.
var Priority = []Code{RIPE, ARIN, APNIC, AFRINIC, LACNIC}

func (c Code) String() string {
	switch c {
	case RIPE:
		return "RIPE"
	case ARIN:
		return "ARIN"
	case APNIC:
		return "APNIC"
	case AFRINIC:
		return "AFRINIC"
	case LACNIC:
		return "LACNIC"
	}
	return "NONE"
}

// ParseCode parses a registry name, case-insensitively. The empty string
// parses to CodeNone (meaning "let the router choose").
func ParseCode(s string) (Code, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return CodeNone, nil
	case "RIPE":
		return RIPE, nil
	case "ARIN":
		return ARIN, nil
	case "APNIC":
		return APNIC, nil
	case "AFRINIC":
		return AFRINIC, nil
	case "LACNIC":
		return LACNIC, nil
	}
	return CodeNone, fmt.Errorf("unknown registry %q", s)
}

// Kind is the category of tool operation a query belongs to. It drives
// both capability routing and cache-key derivation.
type Kind string

const (
	KindWhois       Kind = "whois"
	KindASSetExpand Kind = "as_set_expand"
	KindRoute       Kind = "route_validate"
	KindContact     Kind = "contact_card"
)
