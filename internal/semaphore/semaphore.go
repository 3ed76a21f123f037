// Package semaphore implements the distributed counting semaphore of
// spec.md §4.5: a fixed-capacity list of interchangeable tokens
// backed by the coordination store.
package semaphore

import (
	"context"
	"fmt"
	"time"

	"subtitle-pipeline/internal/store"
)

// Limiter is a named, fixed-capacity semaphore. Capacity is only
// established by Init; ordinary acquire/release calls never resize
// the backing list.
type Limiter struct {
	s        store.Store
	name     string
	capacity int
}

// New wraps an existing Store with a named semaphore of the given
// capacity. Capacity is not applied until Init runs.
func New(s store.Store, name string, capacity int) *Limiter {
	return &Limiter{s: s, name: name, capacity: capacity}
}

// Init atomically replaces the backing list with exactly Capacity
// placeholder tokens (spec.md §4.5). It must run at most once per
// deployment; concurrent boots racing Init may briefly over-supply
// tokens (spec.md §9) — operators run it from a single bootstrap
// invocation (see cmd/worker's --bootstrap-semaphores flag).
func (l *Limiter) Init(ctx context.Context) error {
	err := l.s.MultiExec(ctx, func(p store.Pipe) error {
		p.Del(l.name)
		for i := 0; i < l.capacity; i++ {
			p.RPush(l.name, "token")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("semaphore: init %s: %w", l.name, err)
	}
	return nil
}

// Acquire blocks until a token is available, with no timeout, per
// spec.md §4.5 and §5.
func (l *Limiter) Acquire(ctx context.Context) error {
	_, _, err := l.s.BRPop(ctx, 0, l.name)
	if err != nil {
		return fmt.Errorf("semaphore: acquire %s: %w", l.name, err)
	}
	return nil
}

// AcquireTimeout blocks for at most timeout, returning store.ErrNoJob
// if no token became available. Used only by tests that need a bound
// on how long they wait for a semaphore that should stay exhausted.
func (l *Limiter) AcquireTimeout(ctx context.Context, timeout time.Duration) error {
	_, _, err := l.s.BRPop(ctx, timeout, l.name)
	return err
}

// Release returns a token to the semaphore. Every Acquire must pair
// with exactly one Release on all exit paths (spec.md §4.5) — callers
// are expected to defer this immediately after a successful Acquire.
func (l *Limiter) Release(ctx context.Context) error {
	if err := l.s.LPushValue(ctx, l.name, "token"); err != nil {
		return fmt.Errorf("semaphore: release %s: %w", l.name, err)
	}
	return nil
}
