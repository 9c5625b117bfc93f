package record

import (
	"sort"

	"github.com/samber/lo"
)

// KeySet is a set of record or field keys.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s KeySet) Add(key string) { s[key] = struct{}{} }

func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Union adds every key of other to s.
func (s KeySet) Union(other KeySet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Intersects reports whether s and other share at least one key.
func (s KeySet) Intersects(other KeySet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for k := range small {
		if large.Has(k) {
			return true
		}
	}
	return false
}

// Sorted returns the keys in lexical order.
func (s KeySet) Sorted() []string {
	keys := lo.Keys(s)
	sort.Strings(keys)
	return keys
}
