package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBackend wraps every I/O or encoding failure raised by a backend.
var ErrBackend = errors.New("storage backend failure")

// Backend is a key/value store for setting values. Implementations must be
// safe for concurrent use.
type Backend interface {
	Exists(key string) (bool, error)
	// Read returns the stored value and whether the key was present.
	Read(key string) (any, bool, error)
	Write(key string, value any) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// ListKeys returns all stored keys in ascending order.
	ListKeys() ([]string, error)
}

func backendError(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", ErrBackend, op, err)
	}
	return fmt.Errorf("%w: %s %q: %v", ErrBackend, op, key, err)
}

func encodeValue(value any) ([]byte, error) {
	return json.Marshal(value)
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return normalizeNumbers(value), nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for key, value := range doc {
		doc[key] = normalizeNumbers(value)
	}
	return doc, nil
}

// normalizeNumbers replaces json.Number values with int64 when integral and
// float64 otherwise.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		for key, inner := range v {
			v[key] = normalizeNumbers(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = normalizeNumbers(inner)
		}
		return v
	default:
		return value
	}
}
