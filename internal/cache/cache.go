// Package cache defines the storage backends of the normalized store and
// implements them in memory and over a kvstore.
package cache

import (
	"context"

	"github.com/hanpama/graphcache/internal/future"
	"github.com/hanpama/graphcache/internal/record"
)

// NormalizedCache stores records. Implementations apply the field-level
// merge of record.Set and never hand out records they keep.
type NormalizedCache interface {
	// LoadRecords resolves with one entry per key, nil for a missing
	// record.
	LoadRecords(ctx context.Context, keys []string) *future.Future[[]*record.Record]
	// Merge resolves with the field keys the merge added or changed.
	Merge(ctx context.Context, set record.Set) *future.Future[record.KeySet]
	// Records resolves with a copy of every stored record.
	Records(ctx context.Context) *future.Future[record.Set]
	Clear(ctx context.Context) *future.Future[struct{}]
}
