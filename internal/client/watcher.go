package client

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
)

var watcherIDs atomic.Uint64

// Watcher keeps an operation's result current: whenever a publish changes
// a field key its last result depended on, it refetches from the cache and
// calls its handler again.
type Watcher struct {
	client  *Client
	op      *selection.Operation
	policy  CachePolicy
	handler Handler
	id      string

	mu          sync.Mutex
	dependent   record.KeySet
	current     *FetchOperation
	cancelled   bool
	unsubscribe func()
}

// Watch fetches op with ReturnCacheDataElseFetch and keeps watching the
// store for changes.
func (c *Client) Watch(ctx context.Context, op *selection.Operation, handler Handler) *Watcher {
	return c.WatchWithPolicy(ctx, op, ReturnCacheDataElseFetch, handler)
}

// WatchWithPolicy is Watch with the policy of the initial fetch.
func (c *Client) WatchWithPolicy(ctx context.Context, op *selection.Operation, policy CachePolicy, handler Handler) *Watcher {
	w := &Watcher{
		client:  c,
		op:      op,
		policy:  policy,
		handler: handler,
		id:      "watcher-" + strconv.FormatUint(watcherIDs.Add(1), 10),
	}
	w.unsubscribe = c.store.Subscribe(w.storeChanged)
	w.fetch(ctx, policy)
	return w
}

// DependentKeys returns the field keys of the last delivered result. A
// watcher that never received a result has none.
func (w *Watcher) DependentKeys() record.KeySet {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := record.KeySet{}
	out.Union(w.dependent)
	return out
}

// Refetch fetches the operation again from the network.
func (w *Watcher) Refetch(ctx context.Context) *FetchOperation {
	return w.fetch(ctx, FetchIgnoringCacheData)
}

// Current returns the latest fetch the watcher started.
func (w *Watcher) Current() *FetchOperation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Cancel stops watching and cancels the fetch in flight.
func (w *Watcher) Cancel() {
	w.mu.Lock()
	w.cancelled = true
	current := w.current
	w.mu.Unlock()
	w.unsubscribe()
	if current != nil {
		current.Cancel()
	}
}

func (w *Watcher) storeChanged(ctx context.Context, changed record.KeySet, contextID string) {
	if contextID == w.id {
		return
	}
	w.mu.Lock()
	hit := w.dependent.Intersects(changed)
	w.mu.Unlock()
	if !hit {
		return
	}
	eventbus.Emit(ctx, w.client.opt.Bus, events.WatcherRefresh{OperationName: w.op.Name, Changed: len(changed)})
	w.fetch(context.WithoutCancel(ctx), ReturnCacheDataElseFetch)
}

func (w *Watcher) fetch(ctx context.Context, policy CachePolicy) *FetchOperation {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelled {
		return nil
	}
	if w.current != nil {
		w.current.Cancel()
	}
	f := w.client.fetch(ctx, w.op, policy, w.id, w.deliver)
	w.current = f
	return f
}

func (w *Watcher) deliver(res *store.Result, err error) {
	w.mu.Lock()
	if w.cancelled {
		w.mu.Unlock()
		return
	}
	if err == nil && res != nil && res.DependentKeys != nil {
		w.dependent = res.DependentKeys
	}
	w.mu.Unlock()
	if w.handler != nil {
		w.handler(res, err)
	}
}
