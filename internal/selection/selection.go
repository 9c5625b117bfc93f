// Package selection models the selection sets a generated operation exposes
// to the executor: fields with cache keys, fragment spreads, inline fragments
// and the output types fields complete into.
package selection

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Selection is one of *Field, *FragmentSpread or *InlineFragment.
type Selection interface {
	isSelection()
	conditions() []Condition
}

// SelectionSet is the contract generated types fulfil: a static list of
// selections and a constructor taking one execution result per selection.
type SelectionSet interface {
	Selections() []Selection
	New(results []any) (any, error)
}

// Condition is a @skip/@include guard. An empty Variable means the literal
// Value is used.
type Condition struct {
	Variable string
	Value    bool
	Inverted bool
}

// Include reports whether a selection guarded by conds runs with vars.
func Include(conds []Condition, vars map[string]any) bool {
	for _, c := range conds {
		v := c.Value
		if c.Variable != "" {
			b, _ := vars[c.Variable].(bool)
			v = b
		}
		if v == c.Inverted {
			return false
		}
	}
	return true
}

// Conditions returns the guards of a selection.
func Conditions(s Selection) []Condition { return s.conditions() }

// Variable is an argument value taken from the operation variables.
type Variable struct {
	Name string
}

// Field selects a single field.
type Field struct {
	Alias     string
	Name      string
	Arguments map[string]any
	Type      *OutputType
	If        []Condition
}

func (*Field) isSelection()              {}
func (f *Field) conditions() []Condition { return f.If }

// ResponseKey is the alias when present, otherwise the field name.
func (f *Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// CacheKey is the field name followed, when arguments exist, by an
// order-independent serialization of the arguments with variables
// substituted.
func (f *Field) CacheKey(vars map[string]any) (string, error) {
	if len(f.Arguments) == 0 {
		return f.Name, nil
	}
	args, err := f.ArgumentValues(vars)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("selection: serialize arguments of %s: %w", f.Name, err)
	}
	return f.Name + "(" + string(b) + ")", nil
}

// ArgumentValues returns the arguments with variables resolved. Variables
// absent from vars resolve to null.
func (f *Field) ArgumentValues(vars map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(f.Arguments))
	for k, v := range f.Arguments {
		r, err := resolveInput(v, vars)
		if err != nil {
			return nil, fmt.Errorf("selection: argument %s of %s: %w", k, f.Name, err)
		}
		out[k] = r
	}
	return out, nil
}

func resolveInput(v any, vars map[string]any) (any, error) {
	switch x := v.(type) {
	case Variable:
		return vars[x.Name], nil
	case *Variable:
		return vars[x.Name], nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := resolveInput(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := resolveInput(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case nil, bool, string, int, int32, int64, float32, float64:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported input value %T", v)
	}
}

// Selections returns the sub-selections of an object-typed field, nil for
// leaves.
func (f *Field) Selections() []Selection {
	if f.Type == nil {
		return nil
	}
	if obj := f.Type.Named().Object; obj != nil {
		return obj.Selections()
	}
	return nil
}

// FragmentDefinition is a named fragment. PossibleTypes lists the concrete
// type names satisfying TypeCondition; when empty, only TypeCondition itself
// matches.
type FragmentDefinition struct {
	Name          string
	TypeCondition string
	PossibleTypes []string
	Type          SelectionSet
}

// Satisfied reports whether an object of the given runtime type matches.
func (d *FragmentDefinition) Satisfied(typename string) bool {
	return satisfied(d.TypeCondition, d.PossibleTypes, typename)
}

// FragmentSpread spreads a named fragment.
type FragmentSpread struct {
	Fragment *FragmentDefinition
	If       []Condition
}

func (*FragmentSpread) isSelection()              {}
func (s *FragmentSpread) conditions() []Condition { return s.If }

// InlineFragment is a type-conditioned group of selections.
type InlineFragment struct {
	TypeCondition string
	PossibleTypes []string
	Type          SelectionSet
	If            []Condition
}

func (*InlineFragment) isSelection()              {}
func (f *InlineFragment) conditions() []Condition { return f.If }

// Satisfied reports whether an object of the given runtime type matches.
func (f *InlineFragment) Satisfied(typename string) bool {
	return satisfied(f.TypeCondition, f.PossibleTypes, typename)
}

func satisfied(condition string, possible []string, typename string) bool {
	if condition == "" {
		return true
	}
	if typename == "" {
		return false
	}
	if condition == typename {
		return true
	}
	for _, p := range possible {
		if p == typename {
			return true
		}
	}
	return false
}
