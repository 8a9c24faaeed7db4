// Package memo provides the memoization contract used by the event router
// for its per-type caches (receiver method lists and type ancestry).
//
// A Cache is pure memoization keyed by reflect.Type: it never interprets the
// values it stores, and it never caches a failed computation. Callers may
// supply their own implementation to manage cache storage externally.
package memo

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Cache memoizes values computed from a reflect.Type.
type Cache[V any] interface {
	// Load returns the cached value for t, computing and storing it on a miss.
	// Errors returned by compute are passed through and nothing is stored.
	Load(t reflect.Type, compute func(reflect.Type) (V, error)) (V, error)

	// InvalidateAll drops every cached value.
	InvalidateAll()
}

// Map is the default Cache. It is safe for concurrent use; racing
// computations for the same type are allowed and the first stored value wins.
type Map[V any] struct {
	entries sync.Map
	size    atomic.Int64
	misses  atomic.Uint64
}

// New creates an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{}
}

// Load implements Cache.
func (m *Map[V]) Load(t reflect.Type, compute func(reflect.Type) (V, error)) (V, error) {
	if v, ok := m.entries.Load(t); ok {
		return v.(V), nil
	}

	m.misses.Add(1)
	v, err := compute(t)
	if err != nil {
		var zero V
		return zero, err
	}

	actual, loaded := m.entries.LoadOrStore(t, v)
	if !loaded {
		m.size.Add(1)
	}
	return actual.(V), nil
}

// InvalidateAll implements Cache.
func (m *Map[V]) InvalidateAll() {
	m.entries.Clear()
	m.size.Store(0)
}

// Len returns the approximate number of cached entries.
func (m *Map[V]) Len() int {
	return int(m.size.Load())
}

// Misses returns how many loads had to compute their value.
func (m *Map[V]) Misses() uint64 {
	return m.misses.Load()
}
