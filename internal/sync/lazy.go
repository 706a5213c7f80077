// Package sync provides synchronization primitives for lazily loaded
// storage fragments.
//
// sync.Once never retries a failed initialization. Fragment loads hit
// disks, archives and remote mounts, so a failed load leaves the cell
// empty for the next caller.
package sync

import (
	"sync"
	"sync/atomic"
)

// Lazy is a lazily initialized cell. The first successful Get caches the
// loaded value for the lifetime of the cell; a failed load is not cached.
//
// Lazy is safe for concurrent use.
type Lazy[T any] struct {
	done atomic.Bool
	mu   sync.Mutex
	load func() (T, error)
	val  T
}

// NewLazy returns a cell that calls load on first access.
func NewLazy[T any](load func() (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Get returns the cached value, loading it if needed. Concurrent callers
// wait for a single load in progress.
func (l *Lazy[T]) Get() (T, error) {
	if l.done.Load() {
		return l.val, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.done.Load() {
		v, err := l.load()
		if err != nil {
			var zero T
			return zero, err
		}
		l.val = v
		l.done.Store(true)
	}
	return l.val, nil
}

// Loaded reports whether a value has been cached.
func (l *Lazy[T]) Loaded() bool {
	return l.done.Load()
}
