// Package store is the normalized cache facade: it writes operation
// results as records, reads operations back from records and notifies
// subscribers of the field keys a write changed.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcache/internal/cache"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/normalize"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

// Source tells where a result came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceServer Source = "server"
)

// Result is an operation result.
type Result struct {
	Data any
	// Errors are the errors the server reported alongside Data.
	Errors gqlerror.List
	// DependentKeys are the field keys the result was read from or written
	// to.
	DependentKeys record.KeySet
	Source        Source
}

// Subscriber is notified after a publish changed at least one field key.
// contextID is the identifier the publisher passed, empty when none.
type Subscriber func(ctx context.Context, changed record.KeySet, contextID string)

// Store serializes writes to its cache: publishes are linearized and every
// Load sees the cache either before or after a publish, never during.
type Store struct {
	mu    sync.RWMutex
	cache cache.NormalizedCache
	opt   Options

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]Subscriber
}

func New(opts ...Option) *Store {
	opt := defaultOptions()
	for _, f := range opts {
		f(&opt)
	}
	if opt.Cache == nil {
		opt.Cache = cache.NewInMemory()
	}
	return &Store{cache: opt.Cache, opt: opt, subs: map[uint64]Subscriber{}}
}

func (s *Store) executorOptions() []executor.Option {
	if s.opt.CacheKeyFunc == nil {
		return nil
	}
	return []executor.Option{executor.WithCacheKeyFunc(s.opt.CacheKeyFunc)}
}

// Normalized is the outcome of executing an operation over a response.
type Normalized struct {
	Data          any
	Records       record.Set
	DependentKeys record.KeySet
}

// Normalize decodes data against op and converts it into records. Nothing
// is written to the store.
func (s *Store) Normalize(op *selection.Operation, data value.Object) (*Normalized, error) {
	n := normalize.New(normalize.WithRootKey(op.RootKey()))
	exec := executor.New(executor.ResponseResolver, n, s.executorOptions()...)
	out, err := exec.Execute(op.Data, data, executor.NewResolveInfo(op.RootKey(), op.Variables))
	if err != nil {
		return nil, err
	}
	return &Normalized{Data: out, Records: n.Records(), DependentKeys: n.DependentKeys()}, nil
}

// Publish merges set into the cache and notifies subscribers when a field
// changed. It returns the changed field keys.
func (s *Store) Publish(ctx context.Context, set record.Set, contextID string) (record.KeySet, error) {
	start := time.Now()
	s.mu.Lock()
	changed, err := s.cache.Merge(ctx, set).Wait(ctx)
	s.mu.Unlock()

	eventbus.Emit(ctx, s.opt.Bus, events.StorePublish{
		Records:   len(set),
		Changed:   len(changed),
		ContextID: contextID,
		Err:       err,
		Duration:  time.Since(start),
	})
	if err != nil {
		s.opt.Logger.Error(err, "publish failed", "records", len(set))
		return nil, err
	}
	s.opt.Logger.V(1).Info("published", "records", len(set), "changed", len(changed), "contextID", contextID)

	if len(changed) > 0 {
		for _, sub := range s.subscribers() {
			sub(ctx, changed, contextID)
		}
	}
	return changed, nil
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) subscribers() []Subscriber {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ids := lo.Keys(s.subs)
	slices.Sort(ids)
	return lo.Map(ids, func(id uint64, _ int) Subscriber { return s.subs[id] })
}

// Clear drops every record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	_, err := s.cache.Clear(ctx).Wait(ctx)
	s.mu.Unlock()
	eventbus.Emit(ctx, s.opt.Bus, events.StoreClear{Err: err})
	return err
}

// Records returns a copy of every stored record.
func (s *Store) Records(ctx context.Context) (record.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Records(ctx).Wait(ctx)
}
