// Package keyspace models the naming convention of a document collection.
//
// A namespace is a sequence of key segments joined by ":". Segments are either
// literals or variables. The usual layout alternates component names and values:
//
//	account_id:{account_id}:org_id:{org_id}:bigorg
//
// Resolving a namespace with partial bindings yields a Pattern in which every
// unbound variable is a single-level wildcard.
package keyspace

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/syntrixbase/pager/pkg/model"
)

const (
	// Separator joins key segments.
	Separator = ":"
	// Wildcard is the store glob token for one unbound segment.
	Wildcard = "*"
)

// globMeta are characters with a meaning in store glob patterns.
const globMeta = `*?[]\`

var varPattern = regexp.MustCompile(`^\{([A-Za-z0-9_\-]+)\}$`)

// Errors
var (
	ErrEmptyTemplate     = errors.New("namespace template cannot be empty")
	ErrEmptySegment      = errors.New("namespace template contains empty segment")
	ErrInvalidLiteral    = errors.New("namespace literal contains glob characters")
	ErrDuplicateVariable = errors.New("duplicate variable in namespace template")
)

type segment struct {
	literal  string
	variable string
}

func (s segment) isVariable() bool { return s.variable != "" }

// Namespace describes how keys of one collection are built.
type Namespace struct {
	segments   []segment
	components []string
}

// New builds the conventional "<prefix>:<c1>:<v1>:...:<suffix>" namespace.
// prefix and suffix may be empty.
func New(prefix string, components []string, suffix string) (*Namespace, error) {
	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	for _, c := range components {
		parts = append(parts, c, "{"+c+"}")
	}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return ParseTemplate(strings.Join(parts, Separator))
}

// ParseTemplate parses a template such as "account_id:{account_id}:org_id:{org_id}:bigorg".
func ParseTemplate(tmpl string) (*Namespace, error) {
	if tmpl == "" {
		return nil, ErrEmptyTemplate
	}

	ns := &Namespace{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(tmpl, Separator) {
		if part == "" {
			return nil, ErrEmptySegment
		}
		if m := varPattern.FindStringSubmatch(part); m != nil {
			name := m[1]
			if seen[name] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateVariable, name)
			}
			seen[name] = true
			ns.segments = append(ns.segments, segment{variable: name})
			ns.components = append(ns.components, name)
			continue
		}
		if strings.ContainsAny(part, globMeta+"{}") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLiteral, part)
		}
		ns.segments = append(ns.segments, segment{literal: part})
	}
	return ns, nil
}

// Components returns the variable names in key order.
func (n *Namespace) Components() []string {
	out := make([]string, len(n.components))
	copy(out, n.components)
	return out
}

// String returns the template form of the namespace.
func (n *Namespace) String() string {
	parts := make([]string, len(n.segments))
	for i, s := range n.segments {
		if s.isVariable() {
			parts[i] = "{" + s.variable + "}"
		} else {
			parts[i] = s.literal
		}
	}
	return strings.Join(parts, Separator)
}

// Resolve renders a pattern from partial bindings. Unbound components, and
// components bound to "*", become wildcards.
func (n *Namespace) Resolve(bindings map[string]string) (Pattern, error) {
	if err := n.checkBindings(bindings); err != nil {
		return Pattern{}, err
	}

	segs := make([]Segment, len(n.segments))
	for i, s := range n.segments {
		if !s.isVariable() {
			segs[i] = Segment{Literal: s.literal}
			continue
		}
		v, ok := bindings[s.variable]
		if !ok || v == Wildcard {
			segs[i] = Segment{Component: s.variable, Wildcard: true}
			continue
		}
		segs[i] = Segment{Component: s.variable, Literal: v}
	}
	return Pattern{segments: segs}, nil
}

// Key renders the concrete key for fully bound components.
func (n *Namespace) Key(bindings map[string]string) (string, error) {
	p, err := n.Resolve(bindings)
	if err != nil {
		return "", err
	}
	for _, s := range p.segments {
		if s.Wildcard {
			return "", &model.BindingError{Component: s.Component, Reason: "component must be bound to build a key"}
		}
	}
	return p.String(), nil
}

// Parse extracts the component values from a concrete key.
func (n *Namespace) Parse(key string) (map[string]string, error) {
	parts := strings.Split(key, Separator)
	if len(parts) != len(n.segments) {
		return nil, fmt.Errorf("key %q does not belong to namespace %s", key, n)
	}
	out := make(map[string]string, len(n.components))
	for i, s := range n.segments {
		if s.isVariable() {
			out[s.variable] = parts[i]
			continue
		}
		if parts[i] != s.literal {
			return nil, fmt.Errorf("key %q does not belong to namespace %s", key, n)
		}
	}
	return out, nil
}

func (n *Namespace) checkBindings(bindings map[string]string) error {
	known := make(map[string]bool, len(n.components))
	for _, c := range n.components {
		known[c] = true
	}
	for name, v := range bindings {
		if !known[name] {
			return &model.BindingError{Component: name, Value: v, Reason: "unknown component"}
		}
		if err := ValidateValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateValue checks that v can be used as one key segment (or is the wildcard).
func ValidateValue(component, v string) error {
	if v == Wildcard {
		return nil
	}
	switch {
	case v == "":
		return &model.BindingError{Component: component, Value: v, Reason: "value cannot be empty"}
	case strings.Contains(v, Separator):
		return &model.BindingError{Component: component, Value: v, Reason: "value contains the key separator"}
	case strings.ContainsAny(v, globMeta):
		return &model.BindingError{Component: component, Value: v, Reason: "value contains glob characters"}
	}
	return nil
}
