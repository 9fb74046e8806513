package inmemorystore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	s := New[int]()

	// Get a key that doesn't exist yet
	v, ok := s.Get("3")
	assert.False(t, ok)
	assert.Zero(t, v)

	s.Set("3", 42)
	v, ok = s.Get("3")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, s.Len())

	// Replacing keeps the count
	s.Set("3", 43)
	v, _ = s.Get("3")
	assert.Equal(t, 43, v)
	assert.Equal(t, 1, s.Len())
}

func TestDeleteAndClear(t *testing.T) {
	s := New[string]()
	s.Set("a", "x")
	s.Set("b", "y")

	s.Delete("a")
	s.Delete("missing")
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok = s.Get("b")
	assert.False(t, ok)
}

// TestStore_ConcurrentAccess verifies that the store can be safely accessed by
// multiple goroutines simultaneously without data races or lost writes.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := New[int]()
	numGoroutines := 100
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			s.Set(fmt.Sprint(i), i)
		}(i)
	}
	wg.Wait()

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			v, ok := s.Get(fmt.Sprint(i))
			assert.True(t, ok)
			assert.Equal(t, i, v, "mismatched value for key %d", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines, s.Len())
}
