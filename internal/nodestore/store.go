// Package nodestore defines the interface for storing the dynamic space
// instances that a parameterized child registry creates on demand.
//
// # Why Node Store Exists
//
// A child such as PrudentTerm[t] can be instantiated for every key a model
// ever asks for. The registry owns the creation protocol (mapping runs at most
// once per key, failures are not cached); the node store only decides where
// the created instances live and for how long:
//   - **Unbounded:** internal/inmemorystore keeps every instance until it is
//     invalidated. Instance identity and caches are stable for the lifetime
//     of the model.
//   - **Bounded:** internal/boundedstore keeps a fixed number of instances and
//     lets a cache admission policy evict the rest. An evicted instance is
//     rebuilt, and recomputed, on its next use.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per child registry
//  2. **Filled** by GetOrCreate as keys are first requested
//  3. **Pruned** by invalidation (Delete) or, for bounded stores, eviction
//  4. **Discarded** with the registry
package nodestore

// Store holds values of type V under canonical string keys.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use; independent evaluation
// chains create and read instances of the same registry in parallel.
type Store[V any] interface {
	// Get returns the value stored under key.
	Get(key string) (V, bool)

	// Set stores v under key, replacing any previous value. A bounded store
	// may decline to keep it; the caller must not rely on a later Get.
	Set(key string, v V)

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string)

	// Clear removes every key.
	Clear()

	// Len returns the number of values currently held. Bounded stores may
	// report an approximation.
	Len() int
}
