// Package syncutil provides synchronization primitives beyond those in the
// standard sync package.
package syncutil

import (
	"context"
	"sync"
)

// Guarded wraps a value that must only ever be used by one holder at a time,
// like a database connection that doesn't tolerate concurrent access. It's
// built on a channel-based semaphore rather than a sync.Mutex so that a
// blocked acquisition can be abandoned when a context is canceled, which a
// mutex doesn't allow.
type Guarded[T any] struct {
	sem   chan struct{}
	value T
}

// NewGuarded wraps value in a new guard.
func NewGuarded[T any](value T) *Guarded[T] {
	return &Guarded[T]{
		sem:   make(chan struct{}, 1),
		value: value,
	}
}

// Acquire blocks until the guard is free or ctx is done. On success it
// returns the guarded value along with a release function that must be called
// (normally with defer) when the holder is finished with it. Calling release
// more than once is safe. On cancellation the zero value and the context's
// error are returned, and the caller holds nothing.
func (g *Guarded[T]) Acquire(ctx context.Context) (T, func(), error) {
	var zero T

	// A context that's already done always fails, even when the guard is
	// free, so that cancellation behaves deterministically.
	select {
	case <-ctx.Done():
		return zero, nil, ctx.Err()
	default:
	}

	select {
	case g.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() { <-g.sem })
		}
		return g.value, release, nil

	case <-ctx.Done():
		return zero, nil, ctx.Err()
	}
}
