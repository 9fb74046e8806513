package extract

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Getter is anything that computes a value per argument tuple, such as an
// *engine.Cell.
type Getter interface {
	Name() string
	Get(ctx context.Context, args ...cty.Value) (cty.Value, error)
}

// Options tunes an extraction.
type Options struct {
	// Workers is the number of rows evaluated at once. Values below 2 mean
	// rows are evaluated one after another, in order.
	Workers int
}

// Entry is the outcome for one argument tuple: Value, or Err when the
// computation failed.
type Entry struct {
	Args  []cty.Value
	Value cty.Value
	Err   error
}

// Result holds the entries of one getter in row order.
type Result struct {
	Name    string
	Entries []Entry
}

// Err combines the errors of every failed entry, or returns nil.
func (r *Result) Err() error {
	var errs *multierror.Error
	for _, e := range r.Entries {
		if e.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s%s: %w", r.Name, value.Format(e.Args), e.Err))
		}
	}
	return errs.ErrorOrNil()
}

// Failed returns the number of entries holding an error.
func (r *Result) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err != nil {
			n++
		}
	}
	return n
}

// Values returns the entry values in row order; failed entries are cty.NilVal.
func (r *Result) Values() []cty.Value {
	out := make([]cty.Value, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Value
	}
	return out
}

// Range returns single-argument rows from, from+1, ..., to-1.
func Range(from, to int) [][]cty.Value {
	if to < from {
		return nil
	}
	rows := make([][]cty.Value, 0, to-from)
	for i := from; i < to; i++ {
		rows = append(rows, []cty.Value{value.Int(i)})
	}
	return rows
}

// Run evaluates g for every row. A failing row does not stop the others and
// never affects values already computed.
func Run(ctx context.Context, g Getter, rows [][]cty.Value, opts Options) *Result {
	res := &Result{Name: g.Name(), Entries: make([]Entry, len(rows))}
	eval := func(i int) {
		v, err := g.Get(ctx, rows[i]...)
		res.Entries[i] = Entry{Args: rows[i], Value: v, Err: err}
	}

	if opts.Workers < 2 {
		for i := range rows {
			eval(i)
		}
		return res
	}

	var group errgroup.Group
	group.SetLimit(opts.Workers)
	for i := range rows {
		group.Go(func() error {
			eval(i)
			return nil
		})
	}
	_ = group.Wait()
	return res
}

// Table is several results over the same rows.
type Table struct {
	Rows    [][]cty.Value
	Columns []*Result
}

// RunTable extracts every getter over rows into a table. Columns are evaluated
// in order, each with opts.
func RunTable(ctx context.Context, getters []Getter, rows [][]cty.Value, opts Options) *Table {
	t := &Table{Rows: rows, Columns: make([]*Result, 0, len(getters))}
	for _, g := range getters {
		t.Columns = append(t.Columns, Run(ctx, g, rows, opts))
	}
	return t
}

// Column returns the result named name.
func (t *Table) Column(name string) (*Result, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Err combines the errors of every column.
func (t *Table) Err() error {
	var errs *multierror.Error
	for _, c := range t.Columns {
		if err := c.Err(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Sum totals a numeric result. It fails if any entry failed or is not a number.
func Sum(r *Result) (float64, error) {
	if err := r.Err(); err != nil {
		return 0, err
	}
	total := 0.0
	for _, e := range r.Entries {
		f, err := value.ToFloat(e.Value)
		if err != nil {
			return 0, fmt.Errorf("%s%s: %w", r.Name, value.Format(e.Args), err)
		}
		total += f
	}
	return total, nil
}
