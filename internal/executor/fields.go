package executor

import (
	"github.com/elliotchance/orderedmap/v3"

	"github.com/hanpama/graphcache/internal/selection"
)

// fieldGroup holds the fields sharing one response key and, once executed,
// one completed value per field.
type fieldGroup struct {
	fields  []*selection.Field
	results []any
}

// groupedFieldSet preserves the first-seen order of response keys.
type groupedFieldSet struct {
	groups *orderedmap.OrderedMap[string, *fieldGroup]
}

func newGroupedFieldSet() *groupedFieldSet {
	return &groupedFieldSet{groups: orderedmap.NewOrderedMap[string, *fieldGroup]()}
}

// add appends field to its response key group and returns the group and the
// field's position in it.
func (g *groupedFieldSet) add(field *selection.Field) (*fieldGroup, int) {
	key := field.ResponseKey()
	group, ok := g.groups.Get(key)
	if !ok {
		group = &fieldGroup{}
		g.groups.Set(key, group)
	}
	group.fields = append(group.fields, field)
	return group, len(group.fields) - 1
}

// extractor rebuilds the result of one original selection after all groups
// have executed.
type extractor func() (any, error)

func nilExtractor() (any, error) { return nil, nil }

// collectFields walks selections, adding satisfied fields to groups, and
// returns one extractor per selection.
func collectFields(selections []selection.Selection, typename string, vars map[string]any, groups *groupedFieldSet) []extractor {
	extractors := make([]extractor, len(selections))

	for i, sel := range selections {
		if !selection.Include(selection.Conditions(sel), vars) {
			extractors[i] = nilExtractor
			continue
		}

		switch s := sel.(type) {
		case *selection.Field:
			group, idx := groups.add(s)
			extractors[i] = func() (any, error) { return group.results[idx], nil }

		case *selection.InlineFragment:
			if !s.Satisfied(typename) {
				extractors[i] = nilExtractor
				continue
			}
			extractors[i] = fragmentExtractor(s.Type, collectFields(s.Type.Selections(), typename, vars, groups))

		case *selection.FragmentSpread:
			def := s.Fragment
			if def == nil || !def.Satisfied(typename) {
				extractors[i] = nilExtractor
				continue
			}
			extractors[i] = fragmentExtractor(def.Type, collectFields(def.Type.Selections(), typename, vars, groups))

		default:
			extractors[i] = nilExtractor
		}
	}
	return extractors
}

func fragmentExtractor(typ selection.SelectionSet, nested []extractor) extractor {
	return func() (any, error) {
		results, err := runExtractors(nested)
		if err != nil {
			return nil, err
		}
		return typ.New(results)
	}
}

func runExtractors(extractors []extractor) ([]any, error) {
	results := make([]any, len(extractors))
	for i, x := range extractors {
		v, err := x()
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// mergeSelectionSets concatenates the sub-selections of every field in a
// group; deduplication happens when the merged set is grouped.
func mergeSelectionSets(types []*selection.OutputType) []selection.Selection {
	var merged []selection.Selection
	for _, t := range types {
		merged = append(merged, t.Object.Selections()...)
	}
	return merged
}
