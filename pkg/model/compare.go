package model

import (
	"encoding/json"
	"strings"
)

// Type ranks of the sort order: missing and null first, then numbers, strings
// and booleans. Values of any other type rank with null.
const (
	RankNull = iota
	RankNumber
	RankString
	RankBool
)

// NormalizeValue maps a decoded field value onto the comparable domain:
// float64, string, bool or nil.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, bool, float64:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return f
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return nil
}

// TypeRank returns the rank of a normalized value.
func TypeRank(v interface{}) int {
	switch v.(type) {
	case float64:
		return RankNumber
	case string:
		return RankString
	case bool:
		return RankBool
	}
	return RankNull
}

// CompareValues orders two field values. Numbers compare numerically, strings
// bytewise and false sorts before true.
func CompareValues(a, b interface{}) int {
	a, b = NormalizeValue(a), NormalizeValue(b)
	ra, rb := TypeRank(a), TypeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case RankNumber:
		x, y := a.(float64), b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case RankString:
		return strings.Compare(a.(string), b.(string))
	case RankBool:
		x, y := a.(bool), b.(bool)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	}
	return 0
}
