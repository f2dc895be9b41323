package keyspace

import (
	"regexp"
	"strings"
)

// Segment is one resolved key segment.
type Segment struct {
	// Component is the variable name, empty for template literals.
	Component string
	Literal   string
	Wildcard  bool
}

// Pattern is a resolved key pattern. The zero value matches nothing.
type Pattern struct {
	segments []Segment
}

// Segments returns a copy of the resolved segments.
func (p Pattern) Segments() []Segment {
	out := make([]Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// IsZero reports whether the pattern was never resolved.
func (p Pattern) IsZero() bool {
	return len(p.segments) == 0
}

// String renders the store glob, e.g. "account_id:*:org_id:42:bigorg".
func (p Pattern) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		if s.Wildcard {
			parts[i] = Wildcard
		} else {
			parts[i] = s.Literal
		}
	}
	return strings.Join(parts, Separator)
}

// Regexp renders an anchored regular expression in which wildcards never span
// the separator.
func (p Pattern) Regexp() string {
	var b strings.Builder
	b.WriteString("^")
	for i, s := range p.segments {
		if i > 0 {
			b.WriteString(regexp.QuoteMeta(Separator))
		}
		if s.Wildcard {
			b.WriteString("[^" + regexp.QuoteMeta(Separator) + "]*")
		} else {
			b.WriteString(regexp.QuoteMeta(s.Literal))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Match reports whether key belongs to the pattern, segment by segment.
func (p Pattern) Match(key string) bool {
	if p.IsZero() {
		return false
	}
	parts := strings.Split(key, Separator)
	if len(parts) != len(p.segments) {
		return false
	}
	for i, s := range p.segments {
		if !s.Wildcard && parts[i] != s.Literal {
			return false
		}
	}
	return true
}

// Equal reports whether two patterns render identically.
func (p Pattern) Equal(other Pattern) bool {
	return p.String() == other.String() && len(p.segments) == len(other.segments)
}
