// Package inmemorystore provides an unbounded, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Purpose
//
// This package keeps every dynamic space instance a registry creates, for
// as long as the model lives or until invalidation drops it. Nothing is ever
// evicted, so an instance returned once is returned again for the same key.
//
// # Concurrency Model
//
// The store uses sync.Map because:
//   - **Write-Once Keys:** each key is stored once and then read many times
//   - **Disjoint Keys:** concurrent chains mostly touch different keys
//
// sync.Map is optimized for exactly this append-mostly pattern. The element
// count is tracked separately with an atomic counter since sync.Map has none.
package inmemorystore

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/cellgridgo/internal/nodestore"
)

// Store is an unbounded nodestore.Store backed by sync.Map.
type Store[V any] struct {
	values sync.Map // Key: canonical argument key, Value: V
	count  atomic.Int64
}

// New creates a new, empty in-memory store.
func New[V any]() nodestore.Store[V] {
	return &Store[V]{}
}

// Get returns the value stored under key.
func (s *Store[V]) Get(key string) (V, bool) {
	v, ok := s.values.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set stores v under key.
func (s *Store[V]) Set(key string, v V) {
	if _, loaded := s.values.Swap(key, v); !loaded {
		s.count.Add(1)
	}
}

// Delete removes key.
func (s *Store[V]) Delete(key string) {
	if _, loaded := s.values.LoadAndDelete(key); loaded {
		s.count.Add(-1)
	}
}

// Clear removes every key.
func (s *Store[V]) Clear() {
	s.values.Range(func(k, _ any) bool {
		s.Delete(k.(string))
		return true
	})
}

// Len returns the number of stored values.
func (s *Store[V]) Len() int {
	return int(s.count.Load())
}
