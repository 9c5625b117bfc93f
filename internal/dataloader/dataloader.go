// Package dataloader batches individual key loads into one call.
package dataloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hanpama/graphcache/internal/future"
)

var ErrBatchLength = errors.New("dataloader: batch returned wrong number of values")

// BatchFunc loads values for keys, returning exactly one value per key in
// the same order.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// Loader collects keys requested with Load until Dispatch runs them as one
// batch. Futures are memoized per key until cleared; failed loads are
// forgotten so the key can be retried.
type Loader[K comparable, V any] struct {
	batch BatchFunc[K, V]

	mu      sync.Mutex
	pending []K
	memo    map[K]*future.Future[V]
}

func New[K comparable, V any](batch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{batch: batch, memo: make(map[K]*future.Future[V])}
}

// Load returns the future of key's value, queueing key for the next
// Dispatch unless it was already requested.
func (l *Loader[K, V]) Load(key K) *future.Future[V] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.memo[key]; ok {
		return f
	}
	f := future.New[V]()
	l.memo[key] = f
	l.pending = append(l.pending, key)
	return f
}

// LoadMany loads every key and resolves with the values in key order.
func (l *Loader[K, V]) LoadMany(keys []K) *future.Future[[]V] {
	fs := make([]*future.Future[V], len(keys))
	for i, k := range keys {
		fs[i] = l.Load(k)
	}
	return future.All(fs...)
}

// Pending returns the number of keys waiting for Dispatch.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Dispatch runs the batch function over the pending keys in request order
// and settles their futures. It does nothing when no keys are pending.
func (l *Loader[K, V]) Dispatch(ctx context.Context) {
	l.mu.Lock()
	keys := l.pending
	l.pending = nil
	fs := make([]*future.Future[V], len(keys))
	for i, k := range keys {
		fs[i] = l.memo[k]
	}
	l.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	values, err := l.batch(ctx, keys)
	if err == nil && len(values) != len(keys) {
		err = fmt.Errorf("%w: %d keys, %d values", ErrBatchLength, len(keys), len(values))
	}
	if err != nil {
		l.forget(keys, fs)
		for _, f := range fs {
			f.Reject(err)
		}
		return
	}
	for i, f := range fs {
		f.Resolve(values[i])
	}
}

func (l *Loader[K, V]) forget(keys []K, fs []*future.Future[V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, k := range keys {
		if l.memo[k] == fs[i] {
			delete(l.memo, k)
		}
	}
}

// Clear forgets the memoized value of key.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.memo, key)
}

// ClearAll forgets every memoized value. Pending keys stay queued.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.memo {
		if !l.isPending(k) {
			delete(l.memo, k)
		}
	}
}

func (l *Loader[K, V]) isPending(key K) bool {
	for _, k := range l.pending {
		if k == key {
			return true
		}
	}
	return false
}
