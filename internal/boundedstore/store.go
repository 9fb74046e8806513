// Package boundedstore provides a capacity-limited implementation of the
// nodestore.Store interface backed by a ristretto cache.
//
// A bounded store trades instance identity for memory: once full, the cache's
// admission policy decides which instances stay, and an evicted instance is
// rebuilt on its next use, re-running its mapping and recomputing its cells.
// Use it for models that fan out over many more keys than are ever revisited.
package boundedstore

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/specialistvlad/cellgridgo/internal/nodestore"
)

// Store is a nodestore.Store holding at most a fixed number of values.
type Store[V any] struct {
	cache   *ristretto.Cache[string, V]
	count   atomic.Int64
	onEvict func(V)
}

// New creates a store for up to capacity values. onEvict, if not nil, is
// called with every value the store lets go of on its own: values evicted
// to make room and values the admission policy refused to keep. It runs on
// the cache's goroutine and must not block on callers of Set or Delete.
func New[V any](capacity int, onEvict func(V)) (nodestore.Store[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	s := &Store[V]{onEvict: onEvict}
	cache, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item[V]) {
			s.count.Add(-1)
			s.release(item.Value)
		},
		OnReject: func(item *ristretto.Item[V]) {
			s.release(item.Value)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create instance cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Get returns the value stored under key.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.cache.Get(key)
}

// Set offers v to the cache and waits until the decision is applied, so a
// value that was admitted is visible to the next Get.
func (s *Store[V]) Set(key string, v V) {
	_, existed := s.cache.Get(key)
	if !s.cache.Set(key, v, 1) {
		// Dropped before reaching the policy.
		s.release(v)
		return
	}
	s.cache.Wait()
	if _, ok := s.cache.Get(key); ok && !existed {
		s.count.Add(1)
	}
}

func (s *Store[V]) release(v V) {
	if s.onEvict != nil {
		s.onEvict(v)
	}
}

// Delete removes key.
func (s *Store[V]) Delete(key string) {
	if _, ok := s.cache.Get(key); ok {
		s.count.Add(-1)
	}
	s.cache.Del(key)
	s.cache.Wait()
}

// Clear removes every value.
func (s *Store[V]) Clear() {
	s.cache.Clear()
	s.count.Store(0)
}

// Len returns an approximate number of stored values.
func (s *Store[V]) Len() int {
	n := s.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close stops the cache's background goroutines.
func (s *Store[V]) Close() {
	s.cache.Close()
}
