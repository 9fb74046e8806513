package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Cell is a named, memoized function bound to one space instance.
type Cell struct {
	inst    *Instance
	def     *space.CellDef
	formula space.Formula
	prefix  string // instance address plus cell name, the stem of entry ids

	mu      sync.Mutex
	cache   map[string]cty.Value
	flights map[string]*flight
}

func newCell(inst *Instance, def *space.CellDef, formula space.Formula) *Cell {
	return &Cell{
		inst:    inst,
		def:     def,
		formula: formula,
		prefix:  inst.id + "." + def.Name,
		cache:   make(map[string]cty.Value),
		flights: make(map[string]*flight),
	}
}

// Name returns the cell name.
func (c *Cell) Name() string { return c.def.Name }

// Params returns the declared parameter names.
func (c *Cell) Params() []string { return append([]string(nil), c.def.Params...) }

// Instance returns the instance the cell belongs to.
func (c *Cell) Instance() *Instance { return c.inst }

// String returns the cell's address, e.g. RealisticTerm.PrudentTerm[3].claims.
func (c *Cell) String() string { return c.prefix }

func (c *Cell) entryID(key string) string {
	return c.prefix + "(" + key + ")"
}

// Get returns the value for args, computing and caching it on first use.
// Formula errors are returned unchanged and nothing is cached for them.
func (c *Cell) Get(ctx context.Context, args ...cty.Value) (cty.Value, error) {
	if len(args) != c.def.Arity() {
		return cty.NilVal, &ArityError{Name: c.prefix, Want: c.def.Arity(), Got: len(args)}
	}
	key, err := value.Key(args)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%s: %w", c.prefix, err)
	}
	id := c.entryID(key)
	caller := currentFrame(ctx)
	m := c.inst.model

	c.mu.Lock()
	if v, ok := c.cache[key]; ok {
		c.mu.Unlock()
		m.metrics.Hit(c.inst.def.Name())
		c.inst.markRead(caller, id)
		return v, nil
	}
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		if err := m.await(ctx, caller, id, f); err != nil {
			return cty.NilVal, err
		}
		if f.err == nil {
			c.inst.markRead(caller, id)
		}
		return f.val, f.err
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return cty.NilVal, err
	}
	if caller != nil && caller.depth >= m.maxDepth {
		c.mu.Unlock()
		return cty.NilVal, &RecursionLimitError{Entry: id, Limit: m.maxDepth}
	}

	ctx, self := push(ctx, caller, id)
	f := newFlight(self)
	c.flights[key] = f
	c.mu.Unlock()

	epoch := m.epoch.Load()
	v, err := c.compute(ctx, self, args)

	if err == nil {
		if recErr := m.recordEntry(ctx, self, nodeRef{cell: c, key: key}); recErr != nil {
			err = recErr
		}
	}

	c.mu.Lock()
	delete(c.flights, key)
	if err == nil && m.epoch.Load() == epoch {
		c.cache[key] = v
	}
	f.val, f.err = v, err
	close(f.done)
	c.mu.Unlock()

	if err != nil {
		return cty.NilVal, err
	}
	c.inst.markRead(caller, id)
	return v, nil
}

func (c *Cell) compute(ctx context.Context, self *frame, args []cty.Value) (v cty.Value, err error) {
	logger := ctxlog.FromContext(ctx)
	debug := logger.Enabled(ctx, slog.LevelDebug)
	if debug && self.parent == nil {
		logger.Debug("Evaluation started.", "eval_id", self.chain.id, "cell", c.prefix, "args", value.Format(args))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("formula %s%s panicked: %v", c.prefix, value.Format(args), r)
		}
	}()

	c.inst.model.metrics.Evaluated(c.inst.def.Name())
	v, err = c.formula(ctx, c.inst, args)
	if err == nil && v == cty.NilVal {
		err = fmt.Errorf("formula %s%s returned no value", c.prefix, value.Format(args))
	}

	if debug {
		if err != nil {
			logger.Debug("Cell evaluation failed.", "eval_id", self.chain.id, "cell", c.prefix, "args", value.Format(args), "error", err)
		} else {
			logger.Debug("Cell evaluated.", "eval_id", self.chain.id, "cell", c.prefix, "args", value.Format(args), "value", value.FormatValue(v))
		}
	}
	return v, err
}

// Cached returns the cached value for args without computing anything.
func (c *Cell) Cached(args ...cty.Value) (cty.Value, bool) {
	key, err := value.Key(args)
	if err != nil {
		return cty.NilVal, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[key]
	return v, ok
}

// Len returns the number of cached entries.
func (c *Cell) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Invalidate clears the entry for args, or every entry when args is empty,
// together with everything that read them. It returns the number of cleared
// entries. A cell taking no arguments always clears its single entry.
func (c *Cell) Invalidate(ctx context.Context, args ...cty.Value) (int, error) {
	var ids []string
	if len(args) == 0 {
		ids = c.entryIDs()
	} else {
		if len(args) != c.def.Arity() {
			return 0, &ArityError{Name: c.prefix, Want: c.def.Arity(), Got: len(args)}
		}
		key, err := value.Key(args)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c.prefix, err)
		}
		ids = []string{c.entryID(key)}
	}
	return c.inst.model.invalidate(ctx, ids...)
}

// entryIDs lists the ids of every cached entry, sorted.
func (c *Cell) entryIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.cache)+1)
	for key := range c.cache {
		ids = append(ids, c.entryID(key))
	}
	if c.def.Arity() == 0 && len(ids) == 0 {
		ids = append(ids, c.entryID(""))
	}
	sort.Strings(ids)
	return ids
}

// clear drops one cached entry and reports whether it was cached.
func (c *Cell) clear(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[key]
	delete(c.cache, key)
	return ok
}
