package rpsl

import (
	"fmt"
	"strconv"
	"strings"
)

// MemberKind classifies one token of an as-set "members:" attribute.
type MemberKind int

const (
	// MemberASN is a literal autonomous system number ("AS64496").
	MemberASN MemberKind = iota
	// MemberSet is a reference to another as-set ("AS-EXAMPLE",
	// "AS64496:AS-CUSTOMERS").
	MemberSet
)

// Member is a parsed membership token.
type Member struct {
	Kind MemberKind
	ASN  int    // set for MemberASN
	Set  string // set for MemberSet
}

// ParseASN parses "AS<digits>" (case-insensitive) into its number.
func ParseASN(tok string) (int, bool) {
	up := strings.ToUpper(strings.TrimSpace(tok))
	if !strings.HasPrefix(up, "AS") {
		return 0, false
	}
	n, err := strconv.Atoi(up[2:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseMember classifies a membership token. A token is an ASN only when
// it is exactly "AS<digits>"; it is a set reference when any
// colon-delimited component starts with "AS-" (RPSL hierarchical set
// names). Anything else is a parse failure — ambiguous tokens are
// surfaced, never silently skipped.
func ParseMember(tok string) (Member, error) {
	tok = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tok), ","))
	if tok == "" {
		return Member{}, fmt.Errorf("empty member token")
	}
	if n, ok := ParseASN(tok); ok {
		return Member{Kind: MemberASN, ASN: n}, nil
	}
	up := strings.ToUpper(tok)
	for _, part := range strings.Split(up, ":") {
		if strings.HasPrefix(part, "AS-") {
			return Member{Kind: MemberSet, Set: up}, nil
		}
	}
	return Member{}, fmt.Errorf("unparseable member token %q", tok)
}

// SplitMembers tokenizes a "members:" attribute value, which separates
// entries with commas and/or whitespace.
func SplitMembers(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
