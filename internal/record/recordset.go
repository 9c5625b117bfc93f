package record

import (
	"sort"

	"github.com/samber/lo"
)

// Set is a collection of records keyed by cache key.
type Set map[string]*Record

// NewSet builds a set from records, merging records that share a key.
func NewSet(records ...*Record) Set {
	s := Set{}
	for _, r := range records {
		s.Merge(r)
	}
	return s
}

// Get returns the record stored under key.
func (s Set) Get(key string) (*Record, bool) {
	r, ok := s[key]
	return r, ok
}

// Field returns a single field value of the record under key.
func (s Set) Field(key, field string) (any, bool) {
	r, ok := s[key]
	if !ok {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Merge merges one record and returns the changed field keys. A record seen
// for the first time is inserted as a copy and all its fields count as
// changed.
func (s Set) Merge(r *Record) KeySet {
	existing, ok := s[r.Key]
	if !ok {
		cp := r.Clone()
		s[r.Key] = cp
		changed := make(KeySet, len(cp.Fields))
		for field := range cp.Fields {
			changed.Add(FieldKey(cp.Key, field))
		}
		return changed
	}
	return existing.Merge(r)
}

// MergeSet merges every record of other and returns the union of changed
// keys.
func (s Set) MergeSet(other Set) KeySet {
	changed := KeySet{}
	for _, key := range other.Keys() {
		changed.Union(s.Merge(other[key]))
	}
	return changed
}

// Keys returns the record keys sorted.
func (s Set) Keys() []string {
	keys := lo.Keys(s)
	sort.Strings(keys)
	return keys
}

// Records returns the records ordered by key.
func (s Set) Records() []*Record {
	return lo.Map(s.Keys(), func(k string, _ int) *Record { return s[k] })
}

// Clone deep-copies the set's records.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, r := range s {
		out[k] = r.Clone()
	}
	return out
}
