package value

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidScalar is wrapped by every decoder failure.
var ErrInvalidScalar = errors.New("invalid scalar value")

// ScalarDecoder converts a raw JSON leaf into its typed Go representation.
// Enums and custom scalars implement the same interface.
type ScalarDecoder interface {
	Name() string
	Decode(raw any) (any, error)
}

type scalarFunc struct {
	name   string
	decode func(raw any) (any, error)
}

func (s scalarFunc) Name() string                { return s.name }
func (s scalarFunc) Decode(raw any) (any, error) { return s.decode(raw) }

// NewScalar builds a ScalarDecoder from a function.
func NewScalar(name string, decode func(raw any) (any, error)) ScalarDecoder {
	return scalarFunc{name: name, decode: decode}
}

func mismatch(name string, raw any) error {
	return fmt.Errorf("%w: cannot decode %s as %s", ErrInvalidScalar, TypeName(raw), name)
}

var (
	String ScalarDecoder = NewScalar("String", func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch("String", raw)
		}
		return s, nil
	})

	// ID accepts strings and integers, always producing a string.
	ID ScalarDecoder = NewScalar("ID", func(raw any) (any, error) {
		switch v := raw.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if i, ok := AsInt(v); ok {
				return strconv.FormatInt(i, 10), nil
			}
		}
		return nil, mismatch("ID", raw)
	})

	Int ScalarDecoder = NewScalar("Int", func(raw any) (any, error) {
		i, ok := AsInt(raw)
		if !ok {
			return nil, mismatch("Int", raw)
		}
		return i, nil
	})

	Float ScalarDecoder = NewScalar("Float", func(raw any) (any, error) {
		f, ok := AsFloat(raw)
		if !ok {
			return nil, mismatch("Float", raw)
		}
		return f, nil
	})

	Boolean ScalarDecoder = NewScalar("Boolean", func(raw any) (any, error) {
		b, ok := raw.(bool)
		if !ok {
			return nil, mismatch("Boolean", raw)
		}
		return b, nil
	})
)

// Enum decodes a string restricted to the given values. An empty value list
// accepts any string.
func Enum(name string, values ...string) ScalarDecoder {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return NewScalar(name, func(raw any) (any, error) {
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(name, raw)
		}
		if len(allowed) > 0 {
			if _, ok := allowed[s]; !ok {
				return nil, fmt.Errorf("%w: %q is not a value of enum %s", ErrInvalidScalar, s, name)
			}
		}
		return s, nil
	})
}

// Custom passes any JSON value through unchanged.
func Custom(name string) ScalarDecoder {
	return NewScalar(name, func(raw any) (any, error) { return raw, nil })
}

// BuiltinScalar returns the decoder for a built-in GraphQL scalar name.
func BuiltinScalar(name string) (ScalarDecoder, bool) {
	switch name {
	case "String":
		return String, true
	case "ID":
		return ID, true
	case "Int":
		return Int, true
	case "Float":
		return Float, true
	case "Boolean":
		return Boolean, true
	}
	return nil, false
}
