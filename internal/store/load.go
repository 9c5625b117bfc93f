package store

import (
	"context"
	"time"

	"github.com/hanpama/graphcache/internal/dataloader"
	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/normalize"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

// Load reads op from the cache. A field or referenced record missing from
// the cache fails the read with an error matching executor.ErrMissingValue.
func (s *Store) Load(ctx context.Context, op *selection.Operation) (*Result, error) {
	start := time.Now()
	s.mu.RLock()
	res, err := s.load(ctx, op)
	s.mu.RUnlock()

	ev := events.StoreLoad{OperationName: op.Name, Err: err, Duration: time.Since(start)}
	if res != nil {
		ev.DependentKeys = len(res.DependentKeys)
	}
	eventbus.Emit(ctx, s.opt.Bus, ev)
	if err != nil {
		s.opt.Logger.V(1).Info("cache read failed", "operation", op.Name, "error", err.Error())
	}
	return res, err
}

func (s *Store) load(ctx context.Context, op *selection.Operation) (*Result, error) {
	r := newReader(ctx, s)
	root, err := r.record(op.RootKey())
	if err != nil {
		return nil, err
	}
	var fields value.Object
	if root != nil {
		fields = root.Fields
	} else {
		fields = value.Object{}
	}

	tracker := normalize.NewDependencyTracker()
	exec := executor.New(r.resolve, tracker, s.executorOptions()...)
	data, err := exec.Execute(op.Data, fields, executor.NewResolveInfo(op.RootKey(), op.Variables))
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, DependentKeys: tracker.DependentKeys(), Source: SourceCache}, nil
}

// reader resolves fields from records, loading referenced records through
// a data loader so that the references of a list are fetched in one batch.
type reader struct {
	ctx    context.Context
	loader *dataloader.Loader[string, *record.Record]
}

func newReader(ctx context.Context, s *Store) *reader {
	return &reader{
		ctx: ctx,
		loader: dataloader.New(func(ctx context.Context, keys []string) ([]*record.Record, error) {
			return s.cache.LoadRecords(ctx, keys).Wait(ctx)
		}),
	}
}

func (r *reader) record(key string) (*record.Record, error) {
	f := r.loader.Load(key)
	r.loader.Dispatch(r.ctx)
	return f.Wait(r.ctx)
}

// resolve reads the field under its cache key and replaces References in
// the value with the fields of the referenced records.
func (r *reader) resolve(field *selection.Field, object value.Object, info *executor.ResolveInfo) (any, error) {
	key := info.FieldCacheKey()
	v, ok := object[key]
	if !ok {
		return nil, &executor.MissingValueError{Key: key}
	}

	refs := collectReferences(v, nil)
	switch len(refs) {
	case 0:
		return v, nil
	case 1:
		if ref, ok := v.(value.Reference); ok {
			rec, err := r.record(ref.Key)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, &executor.MissingValueError{Key: ref.Key}
			}
			return rec.Fields, nil
		}
	}

	loaded := r.loader.LoadMany(refs)
	r.loader.Dispatch(r.ctx)
	records, err := loaded.Wait(r.ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*record.Record, len(records))
	for i, rec := range records {
		if rec == nil {
			return nil, &executor.MissingValueError{Key: refs[i]}
		}
		byKey[refs[i]] = rec
	}
	return dereference(v, byKey), nil
}

func collectReferences(v any, acc []string) []string {
	switch x := v.(type) {
	case value.Reference:
		return append(acc, x.Key)
	case []any:
		for _, e := range x {
			acc = collectReferences(e, acc)
		}
	}
	return acc
}

func dereference(v any, records map[string]*record.Record) any {
	switch x := v.(type) {
	case value.Reference:
		return records[x.Key].Fields
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = dereference(e, records)
		}
		return out
	default:
		return v
	}
}
