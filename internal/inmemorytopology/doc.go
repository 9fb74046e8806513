// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface on top of go-memdb. It is designed for
// models whose discovered dependency graph fits comfortably in memory and
// does not require persistent storage.
package inmemorytopology
