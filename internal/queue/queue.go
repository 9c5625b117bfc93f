// Package queue dispatches work items in order.
package queue

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("queue: closed")

// Queue runs submitted functions. Watchers deliver their results through
// one.
type Queue interface {
	Async(fn func())
}

// Serial runs submitted functions one at a time, in submission order, on a
// single goroutine.
type Serial struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
	done   chan struct{}
}

func NewSerial() *Serial {
	q := &Serial{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *Serial) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
	}
}

// Async queues fn. Functions queued after Close are dropped.
func (q *Serial) Async(fn func()) {
	_ = q.enqueue(fn)
}

func (q *Serial) enqueue(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, fn)
	q.cond.Signal()
	return nil
}

// Sync queues fn and waits for it to run. It must not be called from a
// function running on the queue.
func (q *Serial) Sync(fn func()) error {
	ran := make(chan struct{})
	if err := q.enqueue(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	<-ran
	return nil
}

// Close stops accepting work and waits for queued functions to finish.
func (q *Serial) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}

// Inline runs functions immediately on the calling goroutine.
type Inline struct{}

func (Inline) Async(fn func()) { fn() }
