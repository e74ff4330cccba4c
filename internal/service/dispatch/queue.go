// Package dispatch provides the serial execution context that owns display
// state. Work submitted from capture and inference goroutines is re-dispatched
// here before it touches anything the viewers see.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Sync after the queue has been closed.
var ErrClosed = errors.New("dispatch: queue closed")

// Executor runs functions on some execution context.
type Executor interface {
	Async(fn func())
}

// Queue runs submitted functions one at a time, in submission order, on a
// single goroutine.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

// NewQueue starts a queue goroutine.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}

// Async schedules fn and returns immediately. Calls after Close are dropped.
func (q *Queue) Async(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
}

// Sync schedules fn and waits until it has run. It must not be called from
// the queue goroutine itself.
func (q *Queue) Sync(ctx context.Context, fn func()) error {
	ran := make(chan struct{})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, func() {
		fn()
		close(ran)
	})
	q.cond.Signal()
	q.mu.Unlock()

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, drains what is already queued and waits for the
// queue goroutine to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

// Inline runs functions on the caller's goroutine. Tests use it where the
// execution context does not matter.
type Inline struct{}

// Async runs fn immediately.
func (Inline) Async(fn func()) { fn() }
