package normalize

import (
	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
)

// DependencyTracker is an executor observer collecting the field keys an
// execution resolves. Used on the read path, the keys tell watchers which
// published changes affect a result.
type DependencyTracker struct {
	executor.NopObserver
	keys record.KeySet
}

var _ executor.Observer = (*DependencyTracker)(nil)

func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{keys: record.KeySet{}}
}

func (t *DependencyTracker) DidResolveField(field *selection.Field, info *executor.ResolveInfo) {
	t.keys.Add(record.FieldKey(info.ParentCacheKey(), info.FieldCacheKey()))
}

// DependentKeys returns the collected field keys.
func (t *DependencyTracker) DependentKeys() record.KeySet { return t.keys }
