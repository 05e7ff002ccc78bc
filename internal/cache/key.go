package cache

import (
	"strings"

	"golang.org/x/net/idna"
)

// Key derives the normalized request fingerprint for (kind, registry,
// target). Targets are case-folded and whitespace-trimmed so equivalent
// queries collide; domain-shaped targets additionally normalize through
// IDNA ToASCII so unicode and punycode spellings share an entry.
func Key(kind, registry, target string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	if looksLikeDomain(t) {
		if ascii, err := idna.Lookup.ToASCII(t); err == nil {
			t = ascii
		}
	}
	return kind + "|" + strings.ToLower(registry) + "|" + t
}

// looksLikeDomain filters out IPs, prefixes, ASNs, and RPSL handles
// before attempting IDNA conversion.
func looksLikeDomain(t string) bool {
	if t == "" || !strings.Contains(t, ".") {
		return false
	}
	if strings.ContainsAny(t, ":/ ") {
		return false
	}
	// All-numeric labels mean an IPv4 address, not a domain.
	for _, r := range t {
		if r != '.' && (r < '0' || r > '9') {
			return true
		}
	}
	return false
}
