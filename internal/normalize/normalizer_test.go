package normalize_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/normalize"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

func field(name string, typ *selection.OutputType) *selection.Field {
	return &selection.Field{Name: name, Type: typ}
}

func object(typename string, sels ...selection.Selection) *selection.OutputType {
	return selection.ObjectType(&selection.Map{TypeName: typename, Set: sels})
}

func str() *selection.OutputType { return selection.ScalarType(value.String) }

func byID(o value.Object) string {
	if id, ok := o["id"].(string); ok {
		return id
	}
	return ""
}

func normalizeResponse(t *testing.T, set selection.SelectionSet, root value.Object, opts []executor.Option, nopts ...normalize.Option) *normalize.Normalizer {
	t.Helper()
	n := normalize.New(nopts...)
	exec := executor.New(executor.ResponseResolver, n, opts...)
	_, err := exec.Execute(set, root, executor.NewResolveInfo(n.RootKey(), nil))
	require.NoError(t, err)
	return n
}

func TestNormalizePathKeys(t *testing.T) {
	set := &selection.Map{TypeName: "Query", Set: []selection.Selection{
		field("hero", object("Character",
			field("__typename", str()),
			field("name", str()),
			field("friends", selection.ListOf(object("Character", field("name", str())))),
		)),
	}}
	root := value.Object{"hero": value.Object{
		"__typename": "Human",
		"name":       "Luke",
		"friends":    []any{value.Object{"name": "Han"}, nil},
	}}

	// hero has no id, so the key function falls back to the path.
	n := normalizeResponse(t, set, root, []executor.Option{executor.WithCacheKeyFunc(byID)})

	want := record.Set{
		"QUERY_ROOT": {Key: "QUERY_ROOT", Fields: record.Fields{
			"hero": value.Reference{Key: "QUERY_ROOT.hero"},
		}},
		"QUERY_ROOT.hero": {Key: "QUERY_ROOT.hero", Fields: record.Fields{
			"__typename": "Human",
			"name":       "Luke",
			"friends":    []any{value.Reference{Key: "QUERY_ROOT.hero.friends.0"}, nil},
		}},
		"QUERY_ROOT.hero.friends.0": {Key: "QUERY_ROOT.hero.friends.0", Fields: record.Fields{
			"name": "Han",
		}},
	}
	if diff := cmp.Diff(want, n.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	wantKeys := []string{
		"QUERY_ROOT.hero",
		"QUERY_ROOT.hero.__typename",
		"QUERY_ROOT.hero.friends",
		"QUERY_ROOT.hero.friends.0.name",
		"QUERY_ROOT.hero.name",
	}
	if diff := cmp.Diff(wantKeys, n.DependentKeys().Sorted()); diff != "" {
		t.Fatalf("dependent keys mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeReferenceCollapse(t *testing.T) {
	set := &selection.Map{TypeName: "Query", Set: []selection.Selection{
		field("hero", object("Character",
			field("id", str()),
			field("name", str()),
			field("friends", selection.ListOf(object("Character", field("id", str()), field("appearsIn", selection.ListOf(str()))))),
		)),
		&selection.Field{Alias: "r2", Name: "character", Arguments: map[string]any{"id": "2001"}, Type: object("Character",
			field("id", str()),
			field("name", str()),
		)},
	}}
	root := value.Object{
		"hero": value.Object{
			"id":   "2001",
			"name": "R2-D2",
			"friends": []any{
				value.Object{"id": "1000", "appearsIn": []any{"NEWHOPE"}},
			},
		},
		"r2": value.Object{"id": "2001", "name": "R2-D2"},
	}

	n := normalizeResponse(t, set, root, []executor.Option{executor.WithCacheKeyFunc(byID)})

	want := record.Set{
		"QUERY_ROOT": {Key: "QUERY_ROOT", Fields: record.Fields{
			"hero":                     value.Reference{Key: "2001"},
			`character({"id":"2001"})`: value.Reference{Key: "2001"},
		}},
		"2001": {Key: "2001", Fields: record.Fields{
			"id":      "2001",
			"name":    "R2-D2",
			"friends": []any{value.Reference{Key: "1000"}},
		}},
		"1000": {Key: "1000", Fields: record.Fields{
			"id":        "1000",
			"appearsIn": []any{"NEWHOPE"},
		}},
	}
	if diff := cmp.Diff(want, n.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	require.True(t, n.DependentKeys().Has("2001.friends"))
	require.True(t, n.DependentKeys().Has("1000.appearsIn"))
}

func TestNormalizeMutationRoot(t *testing.T) {
	set := &selection.Map{TypeName: "Mutation", Set: []selection.Selection{
		&selection.Field{Name: "createReview", Arguments: map[string]any{"stars": selection.Variable{Name: "stars"}}, Type: object("Review",
			field("stars", selection.ScalarType(value.Int)),
		)},
	}}
	n := normalize.New(normalize.WithRootKey(selection.MutationRootKey))
	exec := executor.New(executor.ResponseResolver, n)
	_, err := exec.Execute(set, value.Object{"createReview": value.Object{"stars": int64(5)}},
		executor.NewResolveInfo(n.RootKey(), map[string]any{"stars": 5}))
	require.NoError(t, err)

	want := record.Set{
		"MUTATION_ROOT": {Key: "MUTATION_ROOT", Fields: record.Fields{
			`createReview({"stars":5})`: value.Reference{Key: `MUTATION_ROOT.createReview({"stars":5})`},
		}},
		`MUTATION_ROOT.createReview({"stars":5})`: {Key: `MUTATION_ROOT.createReview({"stars":5})`, Fields: record.Fields{
			"stars": int64(5),
		}},
	}
	if diff := cmp.Diff(want, n.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeNestedLists(t *testing.T) {
	set := &selection.Map{TypeName: "Query", Set: []selection.Selection{
		field("grid", selection.ListOf(selection.ListOf(object("Cell", field("v", selection.ScalarType(value.Int)))))),
	}}
	root := value.Object{"grid": []any{
		[]any{value.Object{"v": int64(1)}},
		[]any{},
	}}
	n := normalizeResponse(t, set, root, nil)

	want := record.Set{
		"QUERY_ROOT": {Key: "QUERY_ROOT", Fields: record.Fields{
			"grid": []any{[]any{value.Reference{Key: "QUERY_ROOT.grid.0.0"}}, []any{}},
		}},
		"QUERY_ROOT.grid.0.0": {Key: "QUERY_ROOT.grid.0.0", Fields: record.Fields{"v": int64(1)}},
	}
	if diff := cmp.Diff(want, n.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}
