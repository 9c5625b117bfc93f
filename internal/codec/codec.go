// Package codec serializes records for byte-oriented storage backends.
//
// Every codec stores the fields of a record; the record key is the storage
// key and is not repeated in the payload. References are kept distinct
// from objects: JSON and protobuf wrap them as {"$reference": key}, CBOR
// as tag 39999 around the key string. JSON and protobuf prefix object keys
// starting with "$" with another "$", so stored objects never read back as
// references.
package codec

import (
	"fmt"
	"strings"

	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/value"
)

// Codec encodes and decodes record fields.
type Codec interface {
	Name() string
	Encode(r *record.Record) ([]byte, error)
	Decode(key string, data []byte) (*record.Record, error)
}

// ReferenceKey is the object key JSON and protobuf encode references with.
const ReferenceKey = "$reference"

// ByName returns the codec registered as name.
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "cbor", "":
		return NewCBOR(), nil
	case "proto", "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// replaceReferences returns v with every Reference replaced by fn's result.
func replaceReferences(v any, fn func(value.Reference) any) any {
	switch x := v.(type) {
	case value.Reference:
		return fn(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = replaceReferences(e, fn)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = replaceReferences(e, fn)
		}
		return out
	default:
		return v
	}
}

// restoreReferences returns v with every value fn recognizes replaced by a
// Reference.
func restoreReferences(v any, fn func(any) (value.Reference, bool)) any {
	if ref, ok := fn(v); ok {
		return ref
	}
	switch x := v.(type) {
	case []any:
		for i, e := range x {
			x[i] = restoreReferences(e, fn)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = restoreReferences(e, fn)
		}
		return x
	default:
		return v
	}
}

// toWire replaces references with reference objects and escapes object
// keys for the JSON and protobuf codecs.
func toWire(v any) any {
	switch x := v.(type) {
	case value.Reference:
		return map[string]any{ReferenceKey: x.Key}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toWire(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			if strings.HasPrefix(k, "$") {
				k = "$" + k
			}
			out[k] = toWire(e)
		}
		return out
	default:
		return v
	}
}

// fromWire reverses toWire.
func fromWire(v any) any {
	if ref, ok := fromReferenceObject(v); ok {
		return ref
	}
	switch x := v.(type) {
	case []any:
		for i, e := range x {
			x[i] = fromWire(e)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			if strings.HasPrefix(k, "$$") {
				k = k[1:]
			}
			out[k] = fromWire(e)
		}
		return out
	default:
		return v
	}
}

func fromReferenceObject(v any) (value.Reference, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return value.Reference{}, false
	}
	key, ok := m[ReferenceKey].(string)
	if !ok {
		return value.Reference{}, false
	}
	return value.Reference{Key: key}, true
}

func toRecord(key string, decoded any, codec string) (*record.Record, error) {
	normalized, err := value.Normalize(decoded)
	if err != nil {
		return nil, fmt.Errorf("codec: %s: decode %s: %w", codec, key, err)
	}
	fields, ok := normalized.(value.Object)
	if !ok {
		return nil, fmt.Errorf("codec: %s: decode %s: payload is %s, not an object", codec, key, value.TypeName(normalized))
	}
	return &record.Record{Key: key, Fields: fields}, nil
}
