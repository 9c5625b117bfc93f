package executor

import (
	"strconv"
	"strings"

	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

// Resolver supplies the raw value of field on object. A field without a value
// must be reported with a *MissingValueError; (nil, nil) is a JSON null.
type Resolver func(field *selection.Field, object value.Object, info *ResolveInfo) (any, error)

// CacheKeyFunc computes the identity of an object. An empty string means the
// object has no custom identity and is keyed by its path.
type CacheKeyFunc func(object value.Object) string

// ResolveInfo is the execution position, pushed and popped around every
// field and list element.
type ResolveInfo struct {
	Variables map[string]any

	// ResponsePath holds response keys and list indices.
	ResponsePath Path

	// CachePath holds field cache keys and list indices. It starts at the
	// root record key and restarts at an object's key whenever the
	// CacheKeyFunc identifies the object.
	CachePath []string
}

// NewResolveInfo returns the root position for an operation stored under
// rootKey.
func NewResolveInfo(rootKey string, vars map[string]any) *ResolveInfo {
	return &ResolveInfo{Variables: vars, CachePath: []string{rootKey}}
}

// CacheKey is the dot-joined cache path.
func (i *ResolveInfo) CacheKey() string { return strings.Join(i.CachePath, ".") }

// FieldCacheKey is the cache key of the innermost field or index on the
// cache path.
func (i *ResolveInfo) FieldCacheKey() string {
	if len(i.CachePath) == 0 {
		return ""
	}
	return i.CachePath[len(i.CachePath)-1]
}

// ParentCacheKey is the cache path without its innermost element, which is
// the key of the record the current field is stored in.
func (i *ResolveInfo) ParentCacheKey() string {
	if len(i.CachePath) < 2 {
		return ""
	}
	return strings.Join(i.CachePath[:len(i.CachePath)-1], ".")
}

func (i *ResolveInfo) pushField(responseKey, cacheKey string) {
	i.ResponsePath = append(i.ResponsePath, responseKey)
	i.CachePath = append(i.CachePath, cacheKey)
}

func (i *ResolveInfo) pushIndex(index int) {
	i.ResponsePath = append(i.ResponsePath, index)
	i.CachePath = append(i.CachePath, strconv.Itoa(index))
}

func (i *ResolveInfo) pop() {
	i.ResponsePath = i.ResponsePath[:len(i.ResponsePath)-1]
	i.CachePath = i.CachePath[:len(i.CachePath)-1]
}

// ResponseResolver reads fields of a decoded response by response key.
func ResponseResolver(field *selection.Field, object value.Object, info *ResolveInfo) (any, error) {
	v, ok := object[field.ResponseKey()]
	if !ok {
		return nil, &MissingValueError{Key: field.ResponseKey()}
	}
	return v, nil
}
