// Package opid carries operation IDs in a context so that start and finish
// events of one operation can be correlated.
package opid

import (
	"context"
	"sync/atomic"
)

type key struct{}

var counter atomic.Uint64

// NewContext returns a copy of parent carrying a new operation ID, and the
// ID. IDs are unique within the process.
func NewContext(parent context.Context) (context.Context, uint64) {
	id := counter.Add(1)
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the operation ID from ctx.
func FromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(key{}).(uint64)
	return id, ok
}
