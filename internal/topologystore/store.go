// Package topologystore defines the interface for storing and querying the
// dependency graph that evaluation discovers between cell entries,
// references and dynamic space instances.
//
// # Why Topology Store Exists
//
// Nothing about a model's dependency structure is known up front: formulas
// are opaque functions and only reveal what they read when they run. The
// evaluator therefore records an edge every time one node reads another,
// and the invalidation controller walks those edges backwards to find every
// value that became stale.
//
// This keeps the **discovered graph** (who read whom) apart from the
// **cached values** held by each cell:
//   - **Clarity:** cells only cache; the store only answers graph queries
//   - **Targeted invalidation:** clearing one input clears exactly its readers
//   - **Cleanup:** dropping a dynamic instance removes every edge under its address
//
// # Node Identifiers
//
// Nodes are plain strings built by the evaluator from instance addresses:
//
//	RealisticTerm.num_pols_if(3)             cell entry
//	RealisticTerm#premium                    reference
//	RealisticTerm.PrudentTerm[3]             dynamic instance
//	RealisticTerm.PrudentTerm[3].claims(0)   cell entry inside that instance
//
// Everything that lives inside an instance shares its address as a prefix,
// which is what RemoveSubtree relies on.
//
// # Lifecycle and Usage
//
// The store is:
//  1. **Created** once per model (ephemeral, never persisted)
//  2. **Grown** during evaluation, one batch of edges per completed entry
//  3. **Queried** and **pruned** during invalidation
//  4. **Discarded** with the model
package topologystore

import "context"

// Edge records that To read From while it was being computed, so To is
// stale whenever From changes.
type Edge struct {
	From string
	To   string
}

// Store is the interface for the dependency graph discovered during evaluation.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use: independent evaluation
// chains record edges while other goroutines invalidate.
//
// # Typical Implementation
//
// See internal/inmemorytopology for the reference implementation backed by
// go-memdb, which gives indexed lookups in both directions and prefix scans.
type Store interface {
	// AddDependencies records that 'to' read every node in 'from'.
	//
	// Recording an edge that already exists is a no-op. Nodes have no
	// separate registration step; a node exists while an edge touches it.
	AddDependencies(ctx context.Context, to string, from ...string) error

	// DependentsOf returns every node that read 'id', in no particular order.
	// An unknown id has no dependents and is not an error.
	DependentsOf(ctx context.Context, id string) ([]string, error)

	// DependenciesOf returns every node that 'id' read.
	DependenciesOf(ctx context.Context, id string) ([]string, error)

	// RemoveNode deletes every edge that starts or ends at 'id' and returns
	// how many were removed.
	RemoveNode(ctx context.Context, id string) (int, error)

	// RemoveSubtree deletes every edge touching 'id' itself or any node whose
	// identifier is nested under it (`id.` or `id#`), returning the count.
	RemoveSubtree(ctx context.Context, id string) (int, error)

	// Len returns the number of stored edges.
	Len(ctx context.Context) int
}
