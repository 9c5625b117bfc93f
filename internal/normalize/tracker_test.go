package normalize_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/normalize"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

func TestDependencyTracker(t *testing.T) {
	set := &selection.Map{TypeName: "Query", Set: []selection.Selection{
		field("hero", object("Character",
			field("id", str()),
			field("friends", selection.ListOf(object("Character", field("name", str())))),
		)),
	}}
	root := value.Object{"hero": value.Object{
		"id":      "2001",
		"friends": []any{value.Object{"name": "Luke"}},
	}}

	tracker := normalize.NewDependencyTracker()
	exec := executor.New(executor.ResponseResolver, tracker, executor.WithCacheKeyFunc(byID))
	_, err := exec.Execute(set, root, executor.NewResolveInfo(selection.QueryRootKey, nil))
	require.NoError(t, err)

	want := []string{
		"2001.friends",
		"2001.friends.0.name",
		"2001.id",
		"QUERY_ROOT.hero",
	}
	if diff := cmp.Diff(want, tracker.DependentKeys().Sorted()); diff != "" {
		t.Fatalf("dependent keys mismatch (-want +got):\n%s", diff)
	}
}
