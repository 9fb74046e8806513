// Package source defines where formulas read external data from, such as
// mortality tables, and provides the in-memory implementations used by the
// CLI and tests.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrNoTable is returned when a table name is unknown to a source.
	ErrNoTable = errors.New("no such table")
	// ErrNoKey is returned when a table has no row for a key.
	ErrNoKey = errors.New("no such key")
)

// Source answers table lookups for formulas. Implementations must be safe
// for concurrent use.
type Source interface {
	Lookup(ctx context.Context, table string, key cty.Value) (cty.Value, error)
}

// Func adapts a plain function to the Source interface.
type Func func(ctx context.Context, table string, key cty.Value) (cty.Value, error)

// Lookup calls f.
func (f Func) Lookup(ctx context.Context, table string, key cty.Value) (cty.Value, error) {
	return f(ctx, table, key)
}

// Const returns v for every table and key. The stand-in for a real mortality
// table when a flat rate is enough.
func Const(v cty.Value) Source {
	return Func(func(context.Context, string, cty.Value) (cty.Value, error) {
		return v, nil
	})
}

// Tables is an in-memory source of numeric tables keyed by whole numbers,
// e.g. attained age.
type Tables struct {
	mu     sync.RWMutex
	tables map[string]map[int]float64
}

// NewTables creates an empty table source.
func NewTables() *Tables {
	return &Tables{tables: make(map[string]map[int]float64)}
}

// Put stores a whole table, replacing any table of the same name.
func (t *Tables) Put(name string, rows map[int]float64) {
	cp := make(map[int]float64, len(rows))
	for k, v := range rows {
		cp[k] = v
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[name] = cp
}

// Names lists the stored tables in sorted order.
func (t *Tables) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.tables))
	for n := range t.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the row for key in table.
func (t *Tables) Lookup(ctx context.Context, table string, key cty.Value) (cty.Value, error) {
	k, err := value.ToInt(key)
	if err != nil {
		return cty.NilVal, fmt.Errorf("table %q: invalid key: %w", table, err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	rows, ok := t.tables[table]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %q", ErrNoTable, table)
	}
	v, ok := rows[k]
	if !ok {
		return cty.NilVal, fmt.Errorf("table %q: %w: %d", table, ErrNoKey, k)
	}
	return value.Float(v), nil
}
