package model

import "strings"

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpContains FilterOp = "contains" // Field value contains substring
	OpPrefix   FilterOp = "prefix"   // Field value starts with prefix
)

// ValidOps returns all valid filter operators.
func ValidOps() []FilterOp {
	return []FilterOp{OpContains, OpPrefix}
}

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpContains, OpPrefix:
		return true
	}
	return false
}

// Filter is a predicate over one named field.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value string   `json:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// MatchText applies the operator to a field's text.
func (f Filter) MatchText(text string) bool {
	switch f.Op {
	case OpContains:
		return strings.Contains(text, f.Value)
	case OpPrefix:
		return strings.HasPrefix(text, f.Value)
	}
	return false
}

// Match evaluates the filter against a decoded document.
// Only string values can match; a missing field or any other type is a non-match.
func (f Filter) Match(doc Document) bool {
	s, ok := doc.StringField(f.Field)
	if !ok {
		return false
	}
	return f.MatchText(s)
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order represents a sort order on one field.
type Order struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Validate checks if the order is valid. An empty direction means ascending.
func (o Order) Validate() bool {
	if o.Field == "" {
		return false
	}
	switch o.Direction {
	case "", Asc, Desc:
		return true
	}
	return false
}

// Descending reports whether the order is descending.
func (o Order) Descending() bool {
	return o.Direction == Desc
}
