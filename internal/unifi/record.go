package unifi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is one raw object returned by the controller API.
type Record map[string]any

// FieldError reports a field with an unexpected type or value.
type FieldError struct {
	Field string
	Value any
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %T", e.Field, e.Want, e.Value)
}

// String returns a string field; missing and null are "".
func (r Record) String(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	default:
		return "", &FieldError{Field: key, Value: v, Want: "string"}
	}
}

// Int returns an integer field; missing and null are nil. Numeric strings are accepted.
func (r Record) Int(key string) (*int, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n int
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return nil, &FieldError{Field: key, Value: v, Want: "integer"}
		}
		n = int(x)
	case int:
		n = x
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Want: "integer"}
		}
		n = int(i)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Want: "integer"}
		}
		n = i
	default:
		return nil, &FieldError{Field: key, Value: v, Want: "integer"}
	}
	return &n, nil
}

// Float returns a float field; missing and null are nil. Numeric strings are accepted.
func (r Record) Float(key string) (*float64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Want: "number"}
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Want: "number"}
		}
		f = parsed
	default:
		return nil, &FieldError{Field: key, Value: v, Want: "number"}
	}
	return &f, nil
}

// Bool returns a boolean field; missing and null are nil.
func (r Record) Bool(key string) (*bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case bool:
		return &x, nil
	case float64:
		b := x != 0
		return &b, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Want: "boolean"}
		}
		return &b, nil
	default:
		return nil, &FieldError{Field: key, Value: v, Want: "boolean"}
	}
}

// Flag returns a boolean field defaulting to false.
func (r Record) Flag(key string) (bool, error) {
	b, err := r.Bool(key)
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

// Map returns a nested object; missing and null are nil.
func (r Record) Map(key string) (Record, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		if rec, ok := v.(Record); ok {
			return rec, nil
		}
		return nil, &FieldError{Field: key, Value: v, Want: "object"}
	}
	return Record(m), nil
}

// List returns a nested list of objects; missing and null are nil.
func (r Record) List(key string) ([]Record, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &FieldError{Field: key, Value: v, Want: "list"}
	}
	out := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &FieldError{Field: fmt.Sprintf("%s[%d]", key, i), Value: item, Want: "object"}
		}
		out = append(out, Record(m))
	}
	return out, nil
}
