// Package value holds the dynamic JSON value model shared by the executor,
// the normalizer and the record store.
//
// A JSON value is a Go any restricted to the closed set
//
//	nil | bool | int64 | float64 | string | []any | Object
//
// Values that live in the store may additionally be a Reference, or a list
// containing References. Normalize converts the output of JSON/CBOR/protobuf
// decoders into this set.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Object is a JSON object.
type Object = map[string]any

// Reference is a by-name link from a record field to another record.
type Reference struct {
	Key string
}

func (r Reference) String() string { return "->" + r.Key }

// Normalize converts decoder output into the closed value set. Maps with
// non-string keys and unsupported Go types are reported as errors.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64, Reference:
		return x, nil
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil, fmt.Errorf("value: invalid number %q: %w", string(x), err)
		}
		return f, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return float64(x), nil
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return float64(x), nil
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(x))
		for k, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(Object, len(x))
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("value: object key %v (%T) is not a string", k, k)
			}
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value: unsupported type %T", v)
	}
}

// Equal reports deep equality of two values. Numbers compare by magnitude
// so that an int64 read from one backend equals the float64 another
// backend produced for it.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Reference:
		y, ok := b.(Reference)
		return ok && x == y
	case int64, float64:
		fx, okx := AsFloat(a)
		fy, oky := AsFloat(b)
		return okx && oky && fx == fy
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsFloat returns the numeric value of an int64 or float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// AsInt returns the integral value of an int64 or an integral float64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// TypeName describes a value for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "Boolean"
	case int64, float64:
		return "Number"
	case string:
		return "String"
	case []any:
		return "Array"
	case Object:
		return "Object"
	case Reference:
		return "Reference"
	default:
		return fmt.Sprintf("%T", v)
	}
}
