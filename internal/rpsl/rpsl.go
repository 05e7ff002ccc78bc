// Package rpsl models registry objects as ordered attribute lists, the
// shape shared by raw WHOIS output (RPSL text) and whois-resources JSON.
// Components above the transports work on these objects regardless of
// which protocol produced them.
package rpsl

import (
	"strings"
)

// Attribute is one "name: value" pair of a registry object.
type Attribute struct {
	Name  string
	Value string
}

// Object is an ordered sequence of attributes. The first attribute names
// the object class and primary key.
type Object struct {
	Attributes []Attribute
}

// Class returns the object class (name of the first attribute), or "".
func (o Object) Class() string {
	if len(o.Attributes) == 0 {
		return ""
	}
	return o.Attributes[0].Name
}

// Key returns the object's primary key (value of the first attribute).
func (o Object) Key() string {
	if len(o.Attributes) == 0 {
		return ""
	}
	return o.Attributes[0].Value
}

// All returns every non-empty value of the named attribute, in order.
func (o Object) All(name string) []string {
	var out []string
	for _, a := range o.Attributes {
		if a.Name == name {
			if v := strings.TrimSpace(a.Value); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// First returns the first non-empty value of the named attribute.
func (o Object) First(name string) (string, bool) {
	for _, a := range o.Attributes {
		if a.Name == name {
			if v := strings.TrimSpace(a.Value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// String renders the object back into RPSL text.
func (o Object) String() string {
	var sb strings.Builder
	for _, a := range o.Attributes {
		sb.WriteString(a.Name)
		sb.WriteString(": ")
		sb.WriteString(a.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Parse splits raw WHOIS text into objects. Objects are separated by
// blank lines; "%" and "#" lines are server comments and are skipped;
// lines starting with whitespace or "+" continue the previous attribute.
func Parse(raw string) []Object {
	var objects []Object
	var cur Object

	flush := func() {
		if len(cur.Attributes) > 0 {
			objects = append(objects, cur)
			cur = Object{}
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Continuation line: append to the previous attribute value.
		if line[0] == ' ' || line[0] == '\t' || line[0] == '+' {
			if n := len(cur.Attributes); n > 0 {
				cont := strings.TrimSpace(strings.TrimPrefix(trimmed, "+"))
				cur.Attributes[n-1].Value += " " + cont
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cur.Attributes = append(cur.Attributes, Attribute{
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}
	flush()
	return objects
}
