// Package inmemorystore provides an unbounded, thread-safe, in-memory
// implementation of the nodestore.Store interface. It is the default home of
// dynamic space instances.
package inmemorystore
