// Package startup joins independent initialization tasks before a session
// begins capturing.
package startup

import (
	"context"
	"errors"
	"sync"

	"camnet/internal/service/dispatch"
)

// Barrier counts outstanding initialization tasks and releases a single
// continuation once all of them have left.
//
// Every Enter must be paired with exactly one Leave or LeaveWithError, on the
// failure path too. There is no timeout: a task that never leaves keeps the
// continuation from running forever.
type Barrier struct {
	mu       sync.Mutex
	pending  int
	errs     []error
	notify   func(error)
	executor dispatch.Executor
	released bool
	done     chan struct{}
}

// New returns a barrier with no outstanding tasks.
func New() *Barrier {
	return &Barrier{done: make(chan struct{})}
}

// Enter registers one more outstanding task. Call it before the task starts.
func (b *Barrier) Enter() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		panic("startup: Enter called after the barrier was released")
	}
	b.pending++
}

// Leave marks one task as finished.
func (b *Barrier) Leave() {
	b.leave(nil)
}

// LeaveWithError marks one task as finished and records why it failed. The
// error is handed to the continuation.
func (b *Barrier) LeaveWithError(err error) {
	b.leave(err)
}

func (b *Barrier) leave(err error) {
	b.mu.Lock()
	if b.pending == 0 {
		b.mu.Unlock()
		panic("startup: Leave called more times than Enter")
	}
	b.pending--
	if err != nil {
		b.errs = append(b.errs, err)
	}
	b.releaseLocked()
}

// Notify registers the continuation and the executor it runs on. If nothing is
// outstanding the continuation is scheduled right away. Notify may only be
// called once.
func (b *Barrier) Notify(executor dispatch.Executor, fn func(err error)) {
	b.mu.Lock()
	if b.notify != nil {
		b.mu.Unlock()
		panic("startup: Notify called twice")
	}
	b.notify = fn
	b.executor = executor
	b.releaseLocked()
}

// releaseLocked must be called with b.mu held and unlocks it.
func (b *Barrier) releaseLocked() {
	if b.pending != 0 || b.notify == nil || b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	fn, executor := b.notify, b.executor
	err := errors.Join(b.errs...)
	close(b.done)
	b.mu.Unlock()

	executor.Async(func() { fn(err) })
}

// Pending returns the number of tasks that have not left yet.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Released reports whether the continuation has been scheduled.
func (b *Barrier) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Wait blocks until the continuation has been scheduled or ctx ends.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
