package cache

import (
	"context"
	"sync"

	"github.com/hanpama/graphcache/internal/future"
	"github.com/hanpama/graphcache/internal/record"
)

// InMemory keeps records in a record.Set.
type InMemory struct {
	mu      sync.RWMutex
	records record.Set
}

var _ NormalizedCache = (*InMemory)(nil)

func NewInMemory(initial ...*record.Record) *InMemory {
	return &InMemory{records: record.NewSet(initial...)}
}

func (c *InMemory) LoadRecords(ctx context.Context, keys []string) *future.Future[[]*record.Record] {
	if err := ctx.Err(); err != nil {
		return future.Rejected[[]*record.Record](err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*record.Record, len(keys))
	for i, k := range keys {
		if r, ok := c.records[k]; ok {
			out[i] = r.Clone()
		}
	}
	return future.Resolved(out)
}

func (c *InMemory) Merge(ctx context.Context, set record.Set) *future.Future[record.KeySet] {
	if err := ctx.Err(); err != nil {
		return future.Rejected[record.KeySet](err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return future.Resolved(c.records.MergeSet(set))
}

func (c *InMemory) Records(ctx context.Context) *future.Future[record.Set] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return future.Resolved(c.records.Clone())
}

func (c *InMemory) Clear(ctx context.Context) *future.Future[struct{}] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = record.Set{}
	return future.Resolved(struct{}{})
}
