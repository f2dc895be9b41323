// Package codec encodes documents as flat JSON objects.
//
// Field names are written in sorted order and numbers are decoded as json.Number,
// so Encode(Decode(b)) reproduces canonical input byte for byte and integers never
// lose precision.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/syntrixbase/pager/pkg/model"
)

var errNotObject = errors.New("document is not a JSON object")

// Encode renders fields as a compact JSON object with sorted field names.
func Encode(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	for k, v := range data {
		if !model.IsScalar(v) {
			return nil, fmt.Errorf("field %q: unsupported value type %T", k, v)
		}
	}
	return json.Marshal(data)
}

// Decode parses an encoded document into its fields.
func Decode(raw []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after document")
	}
	if err := checkNumbers(data); err != nil {
		return nil, err
	}
	return data, nil
}

// checkNumbers rejects numbers that do not fit a float64, such as 1e400.
func checkNumbers(v interface{}) error {
	switch val := v.(type) {
	case json.Number:
		if _, err := val.Float64(); err != nil {
			return fmt.Errorf("number %s out of range", val.String())
		}
	case map[string]interface{}:
		for _, item := range val {
			if err := checkNumbers(item); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range val {
			if err := checkNumbers(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeDocument decodes the value stored under key. Failures are *model.DecodeError.
func DecodeDocument(key string, raw []byte) (model.Document, error) {
	data, err := Decode(raw)
	if err != nil {
		return model.Document{}, &model.DecodeError{Key: key, Err: err}
	}
	return model.Document{Key: key, Data: data, Raw: raw}, nil
}
