// Package record implements the normalized record model: flat field maps
// stored under a cache key, with references between records by key.
package record

import (
	"sort"

	"github.com/hanpama/graphcache/internal/value"
)

// Fields maps field cache keys to JSON values, References, or lists of
// those.
type Fields = map[string]any

// Record is the flat field map stored under one cache key.
type Record struct {
	Key    string
	Fields Fields
}

// New returns an empty record for key.
func New(key string) *Record {
	return &Record{Key: key, Fields: Fields{}}
}

// Clone copies the record and its top-level field map. Field values are
// never mutated after a merge, so sharing them is safe.
func (r *Record) Clone() *Record {
	fields := make(Fields, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return &Record{Key: r.Key, Fields: fields}
}

// FieldKey joins a record key and a field cache key into the key used for
// changed and dependent key sets.
func FieldKey(recordKey, field string) string {
	return recordKey + "." + field
}

// Merge applies incoming's fields to r, last write wins per field, and
// returns the field keys whose value was added or changed.
func (r *Record) Merge(incoming *Record) KeySet {
	if incoming.Key != r.Key {
		panic("record: merging " + incoming.Key + " into " + r.Key)
	}
	changed := KeySet{}
	for field, v := range incoming.Fields {
		if old, ok := r.Fields[field]; ok && value.Equal(old, v) {
			continue
		}
		r.Fields[field] = v
		changed.Add(FieldKey(r.Key, field))
	}
	return changed
}

// FieldNames returns the record's field keys sorted.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
