package selection

import (
	"fmt"

	"github.com/hanpama/graphcache/internal/value"
)

// Map is a SelectionSet that builds response-shaped objects: each field
// result is stored under its response key and satisfied fragments are merged
// into the enclosing object. It stands in for generated types when the
// operation is compiled at runtime.
type Map struct {
	TypeName string
	Set      []Selection
}

func (m *Map) Selections() []Selection { return m.Set }

// ObjectTypeName is the type fragments are matched against when an object
// has no __typename.
func (m *Map) ObjectTypeName() string { return m.TypeName }

func (m *Map) New(results []any) (any, error) {
	if len(results) != len(m.Set) {
		return nil, fmt.Errorf("selection: %s expects %d results, got %d", m.TypeName, len(m.Set), len(results))
	}
	out := value.Object{}
	for i, sel := range m.Set {
		switch s := sel.(type) {
		case *Field:
			key := s.ResponseKey()
			if prev, ok := out[key]; ok {
				out[key] = mergeShape(prev, results[i])
			} else {
				out[key] = results[i]
			}
		case *FragmentSpread, *InlineFragment:
			frag, ok := results[i].(value.Object)
			if !ok {
				// unsatisfied type condition or skipped
				continue
			}
			for k, v := range frag {
				if prev, ok := out[k]; ok {
					out[k] = mergeShape(prev, v)
				} else {
					out[k] = v
				}
			}
		}
	}
	return out, nil
}

// mergeShape merges two results for the same response key. Objects are
// merged key by key and lists element-wise; leaves keep the later value.
func mergeShape(a, b any) any {
	switch x := a.(type) {
	case value.Object:
		y, ok := b.(value.Object)
		if !ok {
			return b
		}
		out := make(value.Object, len(x)+len(y))
		for k, v := range x {
			out[k] = v
		}
		for k, v := range y {
			if prev, ok := out[k]; ok {
				out[k] = mergeShape(prev, v)
			} else {
				out[k] = v
			}
		}
		return out
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return b
		}
		out := make([]any, len(x))
		for i := range x {
			out[i] = mergeShape(x[i], y[i])
		}
		return out
	default:
		return b
	}
}
