// Package syncx provides small synchronization helpers
package syncx

import "sync"

// RWGuard pairs a value with the RWMutex that protects it, so the two
// cannot drift apart across a struct. T should be a value type or an
// immutable pointer; Get hands out whatever T is without copying what
// it points to.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard returns a guard holding initial.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns the current value under a read lock.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value under a write lock.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Update runs fn with the write lock held and passes back its result,
// for read-modify-write sequences that must be one critical section.
func (g *RWGuard[T]) Update(fn func(*T) any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(&g.value)
}
