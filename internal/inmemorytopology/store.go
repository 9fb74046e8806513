package inmemorytopology

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/specialistvlad/cellgridgo/internal/topologystore"
)

const edgesTable = "edges"

// schema indexes every edge by its (From, To) pair and by each end on its
// own. The single-field indexes also serve prefix scans.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		edgesTable: {
			Name: edgesTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "From"},
							&memdb.StringFieldIndex{Field: "To"},
						},
					},
				},
				"from": {
					Name:    "from",
					Indexer: &memdb.StringFieldIndex{Field: "From"},
				},
				"to": {
					Name:    "to",
					Indexer: &memdb.StringFieldIndex{Field: "To"},
				},
			},
		},
	},
}

// Store implements topologystore.Store with an in-memory go-memdb database.
// Writers are serialized by memdb; readers work on immutable snapshots.
type Store struct {
	db *memdb.MemDB
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		// The schema is static, so this only fails on a programming error.
		panic(fmt.Errorf("inmemorytopology: invalid schema: %w", err))
	}
	return &Store{db: db}
}

// AddDependencies records one edge per entry of from, all in one transaction.
func (s *Store) AddDependencies(ctx context.Context, to string, from ...string) error {
	if len(from) == 0 {
		return nil
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	for _, f := range from {
		if f == to {
			return fmt.Errorf("node '%s' cannot depend on itself", to)
		}
		if err := txn.Insert(edgesTable, &topologystore.Edge{From: f, To: to}); err != nil {
			return fmt.Errorf("failed to record dependency '%s' -> '%s': %w", f, to, err)
		}
	}
	txn.Commit()
	return nil
}

// DependentsOf returns the nodes that read id.
func (s *Store) DependentsOf(ctx context.Context, id string) ([]string, error) {
	return s.collect("from", id, func(e *topologystore.Edge) string { return e.To })
}

// DependenciesOf returns the nodes that id read.
func (s *Store) DependenciesOf(ctx context.Context, id string) ([]string, error) {
	return s.collect("to", id, func(e *topologystore.Edge) string { return e.From })
}

func (s *Store) collect(index, id string, pick func(*topologystore.Edge) string) ([]string, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(edgesTable, index, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s index for '%s': %w", index, id, err)
	}
	out := []string{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, pick(obj.(*topologystore.Edge)))
	}
	return out, nil
}

// RemoveNode deletes every edge starting or ending at id.
func (s *Store) RemoveNode(ctx context.Context, id string) (int, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	n := 0
	for _, index := range []string{"from", "to"} {
		removed, err := txn.DeleteAll(edgesTable, index, id)
		if err != nil {
			return 0, fmt.Errorf("failed to remove edges of '%s': %w", id, err)
		}
		n += removed
	}
	txn.Commit()
	return n, nil
}

// RemoveSubtree deletes every edge touching id or a node nested under it.
func (s *Store) RemoveSubtree(ctx context.Context, id string) (int, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	// Gather first: memdb iterators must not outlive writes to the same index.
	doomed := make(map[topologystore.Edge]*topologystore.Edge)
	for _, index := range []string{"from", "to"} {
		exact, err := txn.Get(edgesTable, index, id)
		if err != nil {
			return 0, fmt.Errorf("failed to scan '%s': %w", id, err)
		}
		for obj := exact.Next(); obj != nil; obj = exact.Next() {
			e := obj.(*topologystore.Edge)
			doomed[*e] = e
		}
		for _, sep := range []string{".", "#"} {
			nested, err := txn.Get(edgesTable, index+"_prefix", id+sep)
			if err != nil {
				return 0, fmt.Errorf("failed to scan subtree of '%s': %w", id, err)
			}
			for obj := nested.Next(); obj != nil; obj = nested.Next() {
				e := obj.(*topologystore.Edge)
				doomed[*e] = e
			}
		}
	}

	for _, e := range doomed {
		if err := txn.Delete(edgesTable, e); err != nil {
			return 0, fmt.Errorf("failed to remove edge '%s' -> '%s': %w", e.From, e.To, err)
		}
	}
	txn.Commit()
	return len(doomed), nil
}

// Len returns the number of stored edges.
func (s *Store) Len(ctx context.Context) int {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(edgesTable, "id")
	if err != nil {
		return 0
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n
}
