/*
Package engine is the evaluation layer of the application. It turns immutable
space definitions into live space instances and computes cell values on
demand.

# Evaluation

Nothing is computed ahead of time. Asking for a cell value runs its formula,
which in turn asks for the values it needs, depth-first. Every result is
cached per (cell, argument tuple) and never recomputed unless invalidated,
which is what makes recursive definitions such as

	num_pols_if(t) = num_pols_if(t-1) - num_deaths(t-1)

linear instead of exponential.

Each top-level request starts an evaluation chain with its own id. While an
entry is being computed it is marked in progress; asking for the same entry
again from the same chain is a circular reference and fails with
*CircularReferenceError. Asking for it from a different chain waits for the
first chain to finish, unless the first chain is itself (transitively)
waiting on the second, in which case the would-be deadlock is reported as a
circular reference too.

# Dynamic instances

A parameterized child space is backed by a Registry. The first request for a
key runs the child's mapping against the parent instance and builds a new
instance from the result; later requests return the same instance. A failing
mapping yields *KeyMappingError and leaves nothing behind, so the next
request retries.

# Invalidation

Every read a formula makes is recorded as a dependency edge in a
topologystore.Store. Invalidate clears the requested entries and then walks
the recorded edges to clear everything that read them, transitively.
Invalidation is always explicit: changing a reference with SetRef does not
clear anything until InvalidateRef is called.
*/
package engine
