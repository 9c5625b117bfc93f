package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/value"
)

func TestCacheKey_NoArguments(t *testing.T) {
	f := &Field{Name: "hero", Alias: "r2"}
	key, err := f.CacheKey(nil)
	require.NoError(t, err)
	require.Equal(t, "hero", key)
	require.Equal(t, "r2", f.ResponseKey())
}

func TestCacheKey_OrderIndependent(t *testing.T) {
	a := &Field{Name: "search", Arguments: map[string]any{
		"text":   "r2",
		"filter": map[string]any{"first": int64(10), "after": "c1", "nested": map[string]any{"z": true, "a": false}},
		"limit":  int64(5),
	}}
	b := &Field{Name: "search", Arguments: map[string]any{
		"limit":  int64(5),
		"filter": map[string]any{"nested": map[string]any{"a": false, "z": true}, "after": "c1", "first": int64(10)},
		"text":   "r2",
	}}
	ka, err := a.CacheKey(nil)
	require.NoError(t, err)
	kb, err := b.CacheKey(nil)
	require.NoError(t, err)
	require.Equal(t, ka, kb)
	require.Equal(t, `search({"filter":{"after":"c1","first":10,"nested":{"a":false,"z":true}},"limit":5,"text":"r2"})`, ka)
}

func TestCacheKey_Variables(t *testing.T) {
	f := &Field{Name: "hero", Arguments: map[string]any{"episode": Variable{Name: "ep"}}}
	key, err := f.CacheKey(map[string]any{"ep": "JEDI"})
	require.NoError(t, err)
	require.Equal(t, `hero({"episode":"JEDI"})`, key)

	lit := &Field{Name: "hero", Arguments: map[string]any{"episode": "JEDI"}}
	litKey, err := lit.CacheKey(nil)
	require.NoError(t, err)
	require.Equal(t, key, litKey)

	key, err = f.CacheKey(nil)
	require.NoError(t, err)
	require.Equal(t, `hero({"episode":null})`, key)
}

func TestInclude(t *testing.T) {
	vars := map[string]any{"yes": true, "no": false}
	require.True(t, Include(nil, vars))
	require.True(t, Include([]Condition{{Variable: "yes"}}, vars))
	require.False(t, Include([]Condition{{Variable: "no"}}, vars))
	require.False(t, Include([]Condition{{Variable: "yes", Inverted: true}}, vars))
	require.True(t, Include([]Condition{{Value: true}}, vars))
	require.False(t, Include([]Condition{{Variable: "missing"}}, vars))
}

func TestSatisfied(t *testing.T) {
	frag := &InlineFragment{TypeCondition: "Character", PossibleTypes: []string{"Human", "Droid"}}
	require.True(t, frag.Satisfied("Droid"))
	require.False(t, frag.Satisfied("Starship"))
	require.False(t, frag.Satisfied(""))
	// An object only known by its abstract declared type matches a
	// fragment on that type.
	require.True(t, frag.Satisfied("Character"))

	def := &FragmentDefinition{Name: "DroidDetails", TypeCondition: "Droid"}
	require.True(t, def.Satisfied("Droid"))
	require.False(t, def.Satisfied("Human"))

	require.True(t, (&InlineFragment{}).Satisfied(""))
}

func TestMapNew(t *testing.T) {
	name := &Field{Name: "name", Type: ScalarType(value.String)}
	friends := &Field{Name: "friends"}
	asDroid := &InlineFragment{TypeCondition: "Droid", Type: &Map{Set: []Selection{&Field{Name: "primaryFunction"}}}}
	asHuman := &InlineFragment{TypeCondition: "Human", Type: &Map{}}
	m := &Map{TypeName: "Droid", Set: []Selection{name, friends, asDroid, asHuman, friends}}

	got, err := m.New([]any{
		"R2-D2",
		[]any{value.Object{"name": "Luke"}},
		value.Object{"primaryFunction": "Astromech", "friends": []any{value.Object{"id": "1000"}}},
		nil,
		[]any{value.Object{"name": "Luke"}},
	})
	require.NoError(t, err)
	want := value.Object{
		"name":            "R2-D2",
		"friends":         []any{value.Object{"name": "Luke", "id": "1000"}},
		"primaryFunction": "Astromech",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Map.New mismatch (-want +got):\n%s", diff)
	}

	_, err = m.New([]any{"x"})
	require.Error(t, err)
}

func TestOutputType(t *testing.T) {
	typ := NonNull(ListOf(NonNull(ScalarType(value.String))))
	require.Equal(t, "[String!]!", typ.String())
	require.Equal(t, KindScalar, typ.Named().Kind)
	require.True(t, typ.IsNonNull())

	obj := &Map{TypeName: "Droid", Set: []Selection{&Field{Name: "name"}}}
	f := &Field{Name: "hero", Type: ObjectType(obj)}
	require.Len(t, f.Selections(), 1)
	require.Equal(t, "Droid", f.Type.String())
}

func TestOperationRootKey(t *testing.T) {
	require.Equal(t, QueryRootKey, (&Operation{Kind: Query}).RootKey())
	require.Equal(t, MutationRootKey, (&Operation{Kind: Mutation}).RootKey())
	op := &Operation{Kind: Query, Variables: map[string]any{"a": 1}}
	cp := op.WithVariables(map[string]any{"a": 2})
	require.Equal(t, 1, op.Variables["a"])
	require.Equal(t, 2, cp.Variables["a"])
}
