package model

import (
	"encoding/json"
)

// Document is a stored record together with the key it lives under.
//
//	Key is the full store key, e.g. "account_id:7:org_id:1:bigorg".
//	Data holds the decoded fields (string, json.Number, bool or nil values).
//	Raw is the encoded form exactly as read from the store.
type Document struct {
	Key  string                 `json:"key"`
	Data map[string]interface{} `json:"data"`
	Raw  []byte                 `json:"-"`
}

// Field returns the value of a top-level field.
func (d Document) Field(name string) (interface{}, bool) {
	if d.Data == nil {
		return nil, false
	}
	v, ok := d.Data[name]
	return v, ok
}

// StringField returns the field value if it is a string.
func (d Document) StringField(name string) (string, bool) {
	v, ok := d.Field(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsScalar reports whether v is a value documents are allowed to carry in a field.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool, float64, json.Number, int, int64:
		return true
	}
	return false
}
