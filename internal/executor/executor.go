package executor

import (
	"fmt"

	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

type Options struct {
	// CacheKeyForObject identifies objects. When it returns a key, the cache
	// path restarts at that key for the object's descendants.
	CacheKeyForObject CacheKeyFunc
}

type Option func(*Options)

func WithCacheKeyFunc(f CacheKeyFunc) Option { return func(o *Options) { o.CacheKeyForObject = f } }

// Executor executes selection sets through a Resolver, reporting progress to
// an observer of type O.
type Executor[O Observer] struct {
	resolver Resolver
	observer O
	opt      Options
}

func New[O Observer](resolver Resolver, observer O, opts ...Option) *Executor[O] {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	return &Executor[O]{resolver: resolver, observer: observer, opt: op}
}

// Observer returns the executor's observer.
func (e *Executor[O]) Observer() O { return e.observer }

// Execute completes typ against root and instantiates it from the
// per-selection results.
func (e *Executor[O]) Execute(typ selection.SelectionSet, root value.Object, info *ResolveInfo) (any, error) {
	results, err := e.executeSelections(typ.Selections(), root, declaredTypeName(typ), info)
	if err != nil {
		return nil, err
	}
	return typ.New(results)
}

// ExecuteSelections returns one result per selection: the completed value
// of a field, the instantiated fragment type of a satisfied fragment, or nil.
func (e *Executor[O]) ExecuteSelections(selections []selection.Selection, object value.Object, info *ResolveInfo) ([]any, error) {
	return e.executeSelections(selections, object, "", info)
}

func (e *Executor[O]) executeSelections(selections []selection.Selection, object value.Object, declared string, info *ResolveInfo) ([]any, error) {
	typename, _ := object["__typename"].(string)
	if typename == "" {
		typename = declared
	}
	groups := newGroupedFieldSet()
	extractors := collectFields(selections, typename, info.Variables, groups)

	for el := groups.groups.Front(); el != nil; el = el.Next() {
		group := el.Value
		results, err := e.executeFieldGroup(group.fields, object, info)
		if err != nil {
			return nil, err
		}
		group.results = results
	}
	return runExtractors(extractors)
}

// executeFieldGroup resolves the first field of the group and completes the
// value once per field.
func (e *Executor[O]) executeFieldGroup(fields []*selection.Field, object value.Object, info *ResolveInfo) ([]any, error) {
	field := fields[0]
	cacheKey, err := field.CacheKey(info.Variables)
	if err != nil {
		return nil, err
	}

	info.pushField(field.ResponseKey(), cacheKey)
	defer info.pop()

	e.observer.WillResolveField(field, info)
	raw, err := e.resolver(field, object, info)
	if err != nil {
		return nil, wrapAt(info, err)
	}

	types := make([]*selection.OutputType, len(fields))
	for i, f := range fields {
		if f.Type == nil {
			return nil, wrapAt(info, fmt.Errorf("field %s has no output type", f.Name))
		}
		types[i] = f.Type
	}

	results, err := e.completeValue(types, raw, info)
	if err != nil {
		return nil, wrapAt(info, err)
	}
	e.observer.DidResolveField(field, info)
	return results, nil
}

// completeValue completes raw once per type. The types belong to fields
// sharing a response key, so they have the same wrapping structure; only
// their object constructors and scalar decoders may differ.
func (e *Executor[O]) completeValue(types []*selection.OutputType, raw any, info *ResolveInfo) ([]any, error) {
	t := types[0]
	if t.IsNonNull() {
		if raw == nil {
			return nil, &NullValueError{}
		}
		return e.completeValue(unwrapAll(types), raw, info)
	}

	if raw == nil {
		e.observer.DidCompleteNull(info)
		return make([]any, len(types)), nil
	}

	switch t.Kind {
	case selection.KindList:
		return e.completeListValue(types, raw, info)
	case selection.KindObject:
		return e.completeObjectValue(types, raw, info)
	case selection.KindScalar:
		return e.completeLeafValue(types, raw, info)
	default:
		return nil, fmt.Errorf("cannot complete value of unexpected type kind %q", t.Kind)
	}
}

func (e *Executor[O]) completeListValue(types []*selection.OutputType, raw any, info *ResolveInfo) ([]any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, &TypeMismatchError{Value: raw, Expected: types[0].String()}
	}

	inner := unwrapAll(types)
	lists := make([][]any, len(types))
	for i := range lists {
		lists[i] = make([]any, len(items))
	}

	e.observer.WillCompleteList(len(items), info)
	for idx, item := range items {
		info.pushIndex(idx)
		e.observer.WillCompleteElement(idx, info)
		completed, err := e.completeValue(inner, item, info)
		if err != nil {
			err = wrapAt(info, err)
			info.pop()
			return nil, err
		}
		e.observer.DidCompleteElement(idx, info)
		info.pop()
		for i := range lists {
			lists[i][idx] = completed[i]
		}
	}
	e.observer.DidCompleteList(info)

	results := make([]any, len(types))
	for i := range lists {
		results[i] = lists[i]
	}
	return results, nil
}

func (e *Executor[O]) completeObjectValue(types []*selection.OutputType, raw any, info *ResolveInfo) ([]any, error) {
	object, ok := raw.(value.Object)
	if !ok {
		return nil, &TypeMismatchError{Value: raw, Expected: types[0].String()}
	}

	restore := e.enterObject(object, info)
	defer restore()

	e.observer.WillCompleteObject(object, info)
	merged := mergeSelectionSets(types)
	flat, err := e.executeSelections(merged, object, declaredTypeName(types[0].Object), info)
	if err != nil {
		return nil, err
	}
	e.observer.DidCompleteObject(object, info)

	results := make([]any, len(types))
	offset := 0
	for i, t := range types {
		n := len(t.Object.Selections())
		v, err := t.Object.New(flat[offset : offset+n])
		if err != nil {
			return nil, err
		}
		results[i] = v
		offset += n
	}
	return results, nil
}

// enterObject restarts the cache path at the object's custom key, if any,
// and returns a function restoring the previous path.
func (e *Executor[O]) enterObject(object value.Object, info *ResolveInfo) func() {
	if e.opt.CacheKeyForObject == nil {
		return func() {}
	}
	key := e.opt.CacheKeyForObject(object)
	if key == "" {
		return func() {}
	}
	saved := info.CachePath
	info.CachePath = []string{key}
	return func() { info.CachePath = saved }
}

func (e *Executor[O]) completeLeafValue(types []*selection.OutputType, raw any, info *ResolveInfo) ([]any, error) {
	results := make([]any, len(types))
	for i, t := range types {
		if t.Scalar == nil {
			results[i] = raw
			continue
		}
		v, err := t.Scalar.Decode(raw)
		if err != nil {
			return nil, &TypeMismatchError{Value: raw, Expected: t.Scalar.Name(), Err: err}
		}
		results[i] = v
	}
	e.observer.DidCompleteScalar(raw, info)
	return results, nil
}

// declaredTypeName is the object type name a selection set was generated
// for, used when an object carries no __typename.
func declaredTypeName(set selection.SelectionSet) string {
	if named, ok := set.(interface{ ObjectTypeName() string }); ok {
		return named.ObjectTypeName()
	}
	return ""
}

func unwrapAll(types []*selection.OutputType) []*selection.OutputType {
	out := make([]*selection.OutputType, len(types))
	for i, t := range types {
		out[i] = t.OfType
	}
	return out
}
