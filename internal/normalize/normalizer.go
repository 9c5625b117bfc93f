// Package normalize turns execution events into normalized records and
// tracks the field keys an execution reads.
package normalize

import (
	"fmt"

	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/record"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

type Options struct {
	RootKey string
}

type Option func(*Options)

// WithRootKey sets the key of the record root fields are written to.
func WithRootKey(key string) Option { return func(o *Options) { o.RootKey = key } }

func defaultOptions() Options {
	return Options{RootKey: selection.QueryRootKey}
}

// Normalizer is an executor observer building a record set from the
// completed values of an execution. Nested objects are stored as records of
// their own and replaced by References in their parent.
//
// A Normalizer is used for a single execution. After a failed execution its
// records are incomplete and must be discarded.
type Normalizer struct {
	executor.NopObserver

	opt       Options
	records   record.Set
	dependent record.KeySet

	objects []*record.Record // records of the objects being completed
	values  []any            // completed, normalized values
	lists   [][]any          // lists being completed
}

var _ executor.Observer = (*Normalizer)(nil)

func New(opts ...Option) *Normalizer {
	opt := defaultOptions()
	for _, f := range opts {
		f(&opt)
	}
	return &Normalizer{opt: opt, records: record.Set{}, dependent: record.KeySet{}}
}

// RootKey is the key root fields are written to.
func (n *Normalizer) RootKey() string { return n.opt.RootKey }

// Records returns the normalized records.
func (n *Normalizer) Records() record.Set { return n.records }

// DependentKeys returns the field keys written during the execution.
func (n *Normalizer) DependentKeys() record.KeySet { return n.dependent }

func (n *Normalizer) current() *record.Record {
	if len(n.objects) > 0 {
		return n.objects[len(n.objects)-1]
	}
	root, ok := n.records[n.opt.RootKey]
	if !ok {
		root = record.New(n.opt.RootKey)
		n.records[n.opt.RootKey] = root
	}
	return root
}

func (n *Normalizer) push(v any) { n.values = append(n.values, v) }

func (n *Normalizer) pop() any {
	if len(n.values) == 0 {
		panic("normalize: value stack underflow")
	}
	v := n.values[len(n.values)-1]
	n.values = n.values[:len(n.values)-1]
	return v
}

func (n *Normalizer) DidResolveField(field *selection.Field, info *executor.ResolveInfo) {
	v := n.pop()
	rec := n.current()
	key := info.FieldCacheKey()
	rec.Fields[key] = v
	n.dependent.Add(record.FieldKey(rec.Key, key))
}

func (n *Normalizer) WillCompleteObject(object value.Object, info *executor.ResolveInfo) {
	n.objects = append(n.objects, record.New(info.CacheKey()))
}

func (n *Normalizer) DidCompleteObject(object value.Object, info *executor.ResolveInfo) {
	rec := n.objects[len(n.objects)-1]
	n.objects = n.objects[:len(n.objects)-1]
	n.records.Merge(rec)
	n.push(value.Reference{Key: rec.Key})
}

func (n *Normalizer) WillCompleteList(length int, info *executor.ResolveInfo) {
	n.lists = append(n.lists, make([]any, 0, length))
}

func (n *Normalizer) DidCompleteElement(index int, info *executor.ResolveInfo) {
	top := len(n.lists) - 1
	if index != len(n.lists[top]) {
		panic(fmt.Sprintf("normalize: element %d completed out of order", index))
	}
	n.lists[top] = append(n.lists[top], n.pop())
}

func (n *Normalizer) DidCompleteList(info *executor.ResolveInfo) {
	top := len(n.lists) - 1
	list := n.lists[top]
	n.lists = n.lists[:top]
	n.push(list)
}

func (n *Normalizer) DidCompleteScalar(raw any, info *executor.ResolveInfo) { n.push(raw) }

func (n *Normalizer) DidCompleteNull(info *executor.ResolveInfo) { n.push(nil) }
