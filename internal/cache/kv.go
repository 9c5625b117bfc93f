package cache

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/hanpama/graphcache/internal/codec"
	"github.com/hanpama/graphcache/internal/future"
	"github.com/hanpama/graphcache/internal/kvstore"
	"github.com/hanpama/graphcache/internal/record"
)

type KVOptions struct {
	// KeyPrefix is prepended to record keys in the kvstore.
	KeyPrefix string
	Logger    logr.Logger
}

type KVOption func(*KVOptions)

func WithKeyPrefix(prefix string) KVOption { return func(o *KVOptions) { o.KeyPrefix = prefix } }

func WithLogger(l logr.Logger) KVOption { return func(o *KVOptions) { o.Logger = l } }

func defaultKVOptions() KVOptions {
	return KVOptions{KeyPrefix: "record:", Logger: logr.Discard()}
}

// KV persists records in a kvstore, one encoded record per key. A merge
// reads the stored versions of the incoming records, merges field by field
// and writes back exactly the records that changed, in one transaction.
type KV struct {
	store kvstore.Store
	codec codec.Codec
	opt   KVOptions
}

var _ NormalizedCache = (*KV)(nil)

func NewKV(store kvstore.Store, c codec.Codec, opts ...KVOption) *KV {
	opt := defaultKVOptions()
	for _, f := range opts {
		f(&opt)
	}
	return &KV{store: store, codec: c, opt: opt}
}

func (c *KV) storageKey(key string) []byte { return []byte(c.opt.KeyPrefix + key) }

func (c *KV) LoadRecords(ctx context.Context, keys []string) *future.Future[[]*record.Record] {
	return future.Go(func() ([]*record.Record, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make([]*record.Record, len(keys))
		err := c.store.View(func(r kvstore.Reader) error {
			for i, k := range keys {
				rec, err := c.read(r, k)
				if err != nil {
					return err
				}
				out[i] = rec
			}
			return nil
		})
		if err != nil {
			c.opt.Logger.Error(err, "load records failed", "keys", len(keys))
			return nil, err
		}
		return out, nil
	})
}

func (c *KV) read(r kvstore.Reader, key string) (*record.Record, error) {
	b, err := r.Get(c.storageKey(key))
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}
	if b == nil {
		return nil, nil
	}
	return c.codec.Decode(key, b)
}

func (c *KV) Merge(ctx context.Context, set record.Set) *future.Future[record.KeySet] {
	return future.Go(func() (record.KeySet, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := record.KeySet{}
		err := c.store.Update(func(tx kvstore.Txn) error {
			for _, key := range set.Keys() {
				existing, err := c.read(tx, key)
				if err != nil {
					return err
				}
				inserted := existing == nil
				if inserted {
					existing = record.New(key)
				}
				delta := existing.Merge(set[key])
				if len(delta) == 0 && !inserted {
					continue
				}
				b, err := c.codec.Encode(existing)
				if err != nil {
					return err
				}
				if err := tx.Put(c.storageKey(key), b); err != nil {
					return fmt.Errorf("cache: write %s: %w", key, err)
				}
				changed.Union(delta)
			}
			return nil
		})
		if err != nil {
			c.opt.Logger.Error(err, "merge failed", "records", len(set))
			return nil, err
		}
		c.opt.Logger.V(1).Info("merged records", "records", len(set), "changed", len(changed))
		return changed, nil
	})
}

func (c *KV) Records(ctx context.Context) *future.Future[record.Set] {
	return future.Go(func() (record.Set, error) {
		out := record.Set{}
		prefix := []byte(c.opt.KeyPrefix)
		err := c.store.View(func(r kvstore.Reader) error {
			return r.Scan(prefix, func(k, v []byte) error {
				key := string(bytes.TrimPrefix(k, prefix))
				rec, err := c.codec.Decode(key, v)
				if err != nil {
					return err
				}
				out[key] = rec
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *KV) Clear(ctx context.Context) *future.Future[struct{}] {
	return future.Go(func() (struct{}, error) {
		if err := c.store.Clear(); err != nil {
			c.opt.Logger.Error(err, "clear failed")
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
}
