// Package client orchestrates fetches between a transport and the
// normalized store: cache policies, cancellation and query watchers.
package client

import (
	"context"
	"errors"

	"github.com/hanpama/graphcache/internal/queue"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
)

var (
	ErrCancelled = errors.New("client: operation cancelled")
	ErrCacheMiss = errors.New("client: cache miss")
)

// Handler receives the result of a fetch. It runs on the client's queue.
type Handler func(*store.Result, error)

type Client struct {
	store     *store.Store
	transport Transport
	opt       Options
	ownQueue  *queue.Serial
}

func New(s *store.Store, transport Transport, opts ...Option) *Client {
	opt := defaultOptions()
	for _, f := range opts {
		f(&opt)
	}
	c := &Client{store: s, transport: transport, opt: opt}
	if opt.Queue == nil {
		c.ownQueue = queue.NewSerial()
		c.opt.Queue = c.ownQueue
	}
	return c
}

// Store returns the client's store.
func (c *Client) Store() *store.Store { return c.store }

// Close stops the queue the client created, after pending handlers ran.
func (c *Client) Close() {
	if c.ownQueue != nil {
		c.ownQueue.Close()
	}
}

// Fetch runs op under policy on a new goroutine. handler is called once,
// or twice for ReturnCacheDataAndFetch when the cache has the data, unless
// the operation is cancelled first.
func (c *Client) Fetch(ctx context.Context, op *selection.Operation, policy CachePolicy, handler Handler) *FetchOperation {
	return c.fetch(ctx, op, policy, "", handler)
}

// Perform sends a mutation and writes its result under the mutation root.
func (c *Client) Perform(ctx context.Context, op *selection.Operation, handler Handler) *FetchOperation {
	return c.fetch(ctx, op, FetchIgnoringCacheData, "", handler)
}

func (c *Client) fetch(ctx context.Context, op *selection.Operation, policy CachePolicy, contextID string, handler Handler) *FetchOperation {
	f := newFetchOperation(c, op, policy, contextID, handler)
	go f.run(ctx)
	return f
}
