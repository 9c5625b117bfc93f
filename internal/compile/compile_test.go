package compile_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/compile"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
	"github.com/hanpama/graphcache/internal/value"
)

const sdl = `
scalar DateTime

enum Episode { NEWHOPE EMPIRE JEDI }

interface Character {
	id: ID!
	name: String!
	friends: [Character]
	appearsIn: [Episode]!
}

type Human implements Character {
	id: ID!
	name: String!
	friends: [Character]
	appearsIn: [Episode]!
	height(unit: String = "METER"): Float
}

type Droid implements Character {
	id: ID!
	name: String!
	friends: [Character]
	appearsIn: [Episode]!
	primaryFunction: String
	builtAt: DateTime
}

union SearchResult = Human | Droid

type Query {
	hero(episode: Episode): Character
	droid(id: ID!): Droid
	search(text: String, filter: SearchFilter): [SearchResult!]!
}

input SearchFilter { limit: Int, tags: [String] }

type Mutation {
	rename(id: ID!, name: String!): Character
}
`

func newCompiler(t *testing.T, opts ...compile.Option) *compile.Compiler {
	t.Helper()
	c, err := compile.FromSDL("starwars.graphql", sdl, opts...)
	require.NoError(t, err)
	return c
}

func TestCompileFields(t *testing.T) {
	c := newCompiler(t)
	op, err := c.Compile(`query Hero($ep: Episode = JEDI) {
		hero(episode: $ep) { __typename id name appearsIn }
	}`, "")
	require.NoError(t, err)
	require.Equal(t, selection.Query, op.Kind)
	require.Equal(t, "Hero", op.Name)
	require.Equal(t, map[string]any{"ep": "JEDI"}, op.Variables)

	root := op.Data.(*selection.Map)
	require.Equal(t, "Query", root.TypeName)
	require.Len(t, root.Set, 1)

	hero := root.Set[0].(*selection.Field)
	require.Equal(t, map[string]any{"episode": selection.Variable{Name: "ep"}}, hero.Arguments)
	key, err := hero.CacheKey(op.Variables)
	require.NoError(t, err)
	require.Equal(t, `hero({"episode":"JEDI"})`, key)

	require.Equal(t, selection.KindObject, hero.Type.Kind)
	character := hero.Type.Object.(*selection.Map)
	require.Equal(t, "Character", character.TypeName)

	var types []string
	for _, sel := range character.Set {
		types = append(types, sel.(*selection.Field).Type.String())
	}
	if diff := cmp.Diff([]string{"String!", "ID!", "String!", "[Episode]!"}, types); diff != "" {
		t.Errorf("field types mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileLiterals(t *testing.T) {
	c := newCompiler(t)
	op, err := c.Compile(`{
		search(text: "r2", filter: {limit: 3, tags: ["droid", $tag]}) { __typename }
	}`, "")
	require.NoError(t, err)
	search := op.Data.Selections()[0].(*selection.Field)
	want := map[string]any{
		"text":   "r2",
		"filter": map[string]any{"limit": int64(3), "tags": []any{"droid", selection.Variable{Name: "tag"}}},
	}
	if diff := cmp.Diff(want, search.Arguments); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "[SearchResult!]!", search.Type.String())
}

func TestCompileFragments(t *testing.T) {
	c := newCompiler(t)
	op, err := c.Compile(`
		query A { hero { ...CharacterName } }
		query B {
			hero {
				... on Droid { primaryFunction }
				...CharacterName @include(if: $withName)
				friends @skip(if: true) { id }
			}
		}
		fragment CharacterName on Character { name friends { ...CharacterName } }
	`, "B")
	require.NoError(t, err)

	hero := op.Data.Selections()[0].(*selection.Field)
	sels := hero.Type.Object.Selections()
	require.Len(t, sels, 3)

	inline := sels[0].(*selection.InlineFragment)
	require.Equal(t, "Droid", inline.TypeCondition)
	require.Equal(t, []string{"Droid"}, inline.PossibleTypes)

	spread := sels[1].(*selection.FragmentSpread)
	require.Equal(t, []selection.Condition{{Variable: "withName"}}, spread.If)
	require.ElementsMatch(t, []string{"Human", "Droid"}, spread.Fragment.PossibleTypes)
	require.True(t, spread.Fragment.Satisfied("Human"))
	require.False(t, spread.Fragment.Satisfied("Query"))

	// the recursive spread resolves to the same definition
	friends := spread.Fragment.Type.Selections()[1].(*selection.Field)
	nested := friends.Type.Named().Object.Selections()[0].(*selection.FragmentSpread)
	require.Same(t, spread.Fragment, nested.Fragment)

	skipped := sels[2].(*selection.Field)
	require.Equal(t, []selection.Condition{{Value: true, Inverted: true}}, skipped.If)
}

func TestCompileScalars(t *testing.T) {
	dateTime := value.NewScalar("DateTime", func(raw any) (any, error) { return "parsed:" + raw.(string), nil })
	c := newCompiler(t, compile.WithScalar(dateTime))
	op, err := c.Compile(`{ droid(id: 1) { builtAt appearsIn } }`, "")
	require.NoError(t, err)

	droid := op.Data.Selections()[0].(*selection.Field)
	require.Equal(t, map[string]any{"id": int64(1)}, droid.Arguments)
	fields := droid.Type.Object.Selections()

	builtAt := fields[0].(*selection.Field).Type.Scalar
	v, err := builtAt.Decode("1977")
	require.NoError(t, err)
	require.Equal(t, "parsed:1977", v)

	episode := fields[1].(*selection.Field).Type.Named().Scalar
	_, err = episode.Decode("JEDI")
	require.NoError(t, err)
	_, err = episode.Decode("PHANTOM")
	require.ErrorIs(t, err, value.ErrInvalidScalar)
}

func TestCompileErrors(t *testing.T) {
	c := newCompiler(t)
	tests := []struct {
		name, query, operation string
		want                   error
	}{
		{name: "unknown field", query: `{ hero { mass } }`, want: compile.ErrUnknownField},
		{name: "unknown fragment", query: `{ hero { ...Missing } }`, want: compile.ErrUnknownFragment},
		{name: "unknown type condition", query: `{ hero { ... on Ewok { id } } }`, want: compile.ErrUnknownType},
		{name: "ambiguous operation", query: `query A { hero { id } } query B { hero { id } }`, want: compile.ErrUnknownOperation},
		{name: "missing operation", query: `query A { hero { id } }`, operation: "C", want: compile.ErrUnknownOperation},
		{name: "no subscription root", query: `subscription { hero { id } }`, want: compile.ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.query, tt.operation)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := c.Compile(`{ hero {`, "")
	require.Error(t, err)
}

func TestCompileCache(t *testing.T) {
	c := newCompiler(t, compile.WithCacheSize(1))
	q1 := `{ hero { id } }`
	q2 := `{ droid(id: "1") { id } }`

	a, err := c.Compile(q1, "")
	require.NoError(t, err)
	b, err := c.Compile(q1, "")
	require.NoError(t, err)
	require.Same(t, a, b)

	_, err = c.Compile(q2, "")
	require.NoError(t, err)
	b, err = c.Compile(q1, "")
	require.NoError(t, err)
	require.NotSame(t, a, b)
}

func TestCompiledOperationRoundTrip(t *testing.T) {
	c := newCompiler(t)
	op, err := c.Compile(`query Hero($ep: Episode) {
		hero(episode: $ep) {
			__typename
			name
			... on Droid { primaryFunction }
			friends { __typename name }
		}
	}`, "Hero")
	require.NoError(t, err)
	op = op.WithVariables(map[string]any{"ep": "EMPIRE"})

	data := value.Object{"hero": value.Object{
		"__typename":      "Droid",
		"name":            "R2-D2",
		"primaryFunction": "Astromech",
		"friends": []any{
			value.Object{"__typename": "Human", "name": "Luke Skywalker"},
		},
	}}

	s := store.New(store.WithCacheKeyFunc(func(obj value.Object) string {
		if tn, _ := obj["__typename"].(string); tn != "" {
			if name, _ := obj["name"].(string); name != "" {
				return tn + ":" + name
			}
		}
		return ""
	}))
	ctx := context.Background()
	n, err := s.Normalize(op, data)
	require.NoError(t, err)
	_, err = s.Publish(ctx, n.Records, "")
	require.NoError(t, err)

	res, err := s.Load(ctx, op)
	require.NoError(t, err)
	if diff := cmp.Diff(data, res.Data); diff != "" {
		t.Errorf("loaded data mismatch (-want +got):\n%s", diff)
	}
	require.True(t, res.DependentKeys.Has(`QUERY_ROOT.hero({"episode":"EMPIRE"})`))
	require.True(t, res.DependentKeys.Has("Droid:R2-D2.primaryFunction"))
}

func TestCompiledAbstractFragmentWithoutTypename(t *testing.T) {
	c := newCompiler(t)
	op, err := c.Compile(`{ hero { ...Details } } fragment Details on Character { name }`, "")
	require.NoError(t, err)

	data := value.Object{"hero": value.Object{"name": "R2-D2"}}
	s := store.New()
	ctx := context.Background()
	n, err := s.Normalize(op, data)
	require.NoError(t, err)
	if diff := cmp.Diff(data, n.Data); diff != "" {
		t.Fatalf("normalized data mismatch (-want +got):\n%s", diff)
	}
	_, err = s.Publish(ctx, n.Records, "")
	require.NoError(t, err)

	res, err := s.Load(ctx, op)
	require.NoError(t, err)
	if diff := cmp.Diff(data, res.Data); diff != "" {
		t.Errorf("loaded data mismatch (-want +got):\n%s", diff)
	}
}
