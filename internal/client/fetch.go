package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/graphcache/internal/eventbus"
	"github.com/hanpama/graphcache/internal/events"
	"github.com/hanpama/graphcache/internal/executor"
	"github.com/hanpama/graphcache/internal/opid"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/store"
)

// FetchOperation is one fetch in flight. Its state moves from Start to
// Delivered, through NetworkInFlight and Normalizing when the network is
// used, or to Cancelled at any point before Delivered. A cancelled
// operation calls no handler; a response already being normalized is still
// written to the store.
type FetchOperation struct {
	client    *Client
	op        *selection.Operation
	policy    CachePolicy
	contextID string
	handler   Handler

	state  atomic.Int32
	cancel context.CancelFunc
	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

func newFetchOperation(c *Client, op *selection.Operation, policy CachePolicy, contextID string, handler Handler) *FetchOperation {
	return &FetchOperation{
		client:    c,
		op:        op,
		policy:    policy,
		contextID: contextID,
		handler:   handler,
		done:      make(chan struct{}),
	}
}

// State returns the current state.
func (f *FetchOperation) State() State { return State(f.state.Load()) }

// Cancel moves the operation to Cancelled unless it was delivered and
// aborts an in-flight network request.
func (f *FetchOperation) Cancel() {
	for {
		cur := State(f.state.Load())
		if cur.final() {
			return
		}
		if f.state.CompareAndSwap(int32(cur), int32(Cancelled)) {
			break
		}
	}
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.finish()
}

// Done is closed once the operation is delivered or cancelled.
func (f *FetchOperation) Done() <-chan struct{} { return f.done }

// Wait blocks until Done or until ctx is done, and returns the final state.
func (f *FetchOperation) Wait(ctx context.Context) (State, error) {
	select {
	case <-f.done:
		return f.State(), nil
	case <-ctx.Done():
		return f.State(), ctx.Err()
	}
}

func (f *FetchOperation) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
}

func (f *FetchOperation) cancelled() bool { return f.State() == Cancelled }

// advance moves from one non-final state to another, failing when the
// operation was cancelled meanwhile.
func (f *FetchOperation) advance(from, to State) bool {
	return f.state.CompareAndSwap(int32(from), int32(to))
}

func (f *FetchOperation) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	ctx, _ = opid.NewContext(ctx)
	start := time.Now()
	bus := f.client.opt.Bus
	eventbus.Emit(ctx, bus, events.FetchStart{
		OperationName: f.op.Name,
		OperationType: string(f.op.Kind),
		Policy:        f.policy.String(),
	})

	res, err := f.execute(ctx)

	finish := events.FetchFinish{
		OperationName: f.op.Name,
		OperationType: string(f.op.Kind),
		Policy:        f.policy.String(),
		Err:           err,
		Cancelled:     f.cancelled(),
		Duration:      time.Since(start),
	}
	if res != nil {
		finish.Source = string(res.Source)
		finish.Errors = len(res.Errors)
	}
	eventbus.Emit(ctx, bus, finish)

	if errors.Is(err, ErrCancelled) {
		f.client.opt.Logger.V(1).Info("fetch cancelled", "operation", f.op.Name)
		f.finish()
		return
	}
	f.deliver(res, err, true)
}

// execute walks the state machine and returns the final result.
// Intermediate cached results of ReturnCacheDataAndFetch are delivered
// from here.
func (f *FetchOperation) execute(ctx context.Context) (*store.Result, error) {
	if f.cancelled() {
		return nil, ErrCancelled
	}
	c := f.client

	if f.policy.readsCache() {
		res, err := c.store.Load(ctx, f.op)
		switch {
		case err == nil && f.policy == ReturnCacheDataAndFetch:
			f.deliver(res, nil, false)
		case err == nil:
			return res, nil
		case f.policy == ReturnCacheDataDontFetch && errors.Is(err, executor.ErrMissingValue):
			return nil, fmt.Errorf("%w: %w", ErrCacheMiss, err)
		case f.policy == ReturnCacheDataDontFetch:
			return nil, err
		default:
			// Misses and records that no longer match the operation go to the
			// network.
			c.opt.Logger.V(1).Info("cache read failed, fetching", "operation", f.op.Name, "error", err.Error())
		}
	}

	if !f.advance(Start, NetworkInFlight) {
		return nil, ErrCancelled
	}
	resp, err := f.send(ctx)
	if f.cancelled() {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}

	if !f.advance(NetworkInFlight, Normalizing) {
		return nil, ErrCancelled
	}
	if resp.Data == nil {
		return &store.Result{Errors: resp.Errors, Source: store.SourceServer}, nil
	}
	n, err := c.store.Normalize(f.op, resp.Data)
	if err != nil {
		return nil, err
	}
	if f.policy.writesCache() {
		// Publishing is not interrupted by cancellation.
		if _, err := c.store.Publish(context.WithoutCancel(ctx), n.Records, f.contextID); err != nil {
			return nil, err
		}
	}
	return &store.Result{
		Data:          n.Data,
		Errors:        resp.Errors,
		DependentKeys: n.DependentKeys,
		Source:        store.SourceServer,
	}, nil
}

func (f *FetchOperation) send(ctx context.Context) (*Response, error) {
	bus := f.client.opt.Bus
	start := time.Now()
	eventbus.Emit(ctx, bus, events.NetworkStart{OperationName: f.op.Name, OperationType: string(f.op.Kind)})
	resp, err := f.client.transport.Send(ctx, f.op)
	eventbus.Emit(ctx, bus, events.NetworkFinish{
		OperationName: f.op.Name,
		OperationType: string(f.op.Kind),
		Err:           err,
		Duration:      time.Since(start),
	})
	if err != nil {
		f.client.opt.Logger.Error(err, "network request failed", "operation", f.op.Name)
		return nil, fmt.Errorf("client: send %s: %w", f.op.Name, err)
	}
	return resp, nil
}

// deliver queues the handler. A final delivery moves the operation to
// Delivered; the handler is skipped when the operation was cancelled
// first.
func (f *FetchOperation) deliver(res *store.Result, err error, final bool) {
	f.client.opt.Queue.Async(func() {
		if final {
			defer f.finish()
			for {
				cur := f.State()
				if cur.final() {
					return
				}
				if f.state.CompareAndSwap(int32(cur), int32(Delivered)) {
					break
				}
			}
		} else if f.cancelled() {
			return
		}
		if f.handler != nil {
			f.handler(res, err)
		}
	})
}
