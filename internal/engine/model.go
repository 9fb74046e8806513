package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/inmemorytopology"
	"github.com/specialistvlad/cellgridgo/internal/metrics"
	"github.com/specialistvlad/cellgridgo/internal/nodeid"
	"github.com/specialistvlad/cellgridgo/internal/source"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/topologystore"
	"github.com/zclconf/go-cty/cty"
)

// Model holds the root space instances of one calculation model together
// with the shared machinery their cells use: the dependency graph, the
// cross-chain wait tracker, metrics and the value source.
type Model struct {
	mu    sync.RWMutex
	roots map[string]*Instance
	order []string

	topo    topologystore.Store
	tracker *tracker
	nodes   sync.Map // Key: node id, Value: nodeRef
	epoch   atomic.Uint64

	metrics  *metrics.Metrics
	source   source.Source
	capacity int
	maxDepth int
	logger   *slog.Logger
}

// DefaultMaxDepth is how many nested entries one evaluation may compute
// before it fails with a RecursionLimitError.
const DefaultMaxDepth = 10000

// nodeRef locates the state behind a node id: a cell entry, or a dynamic
// instance held by a registry.
type nodeRef struct {
	cell *Cell
	reg  *Registry
	key  string
	inst *Instance
}

// Option configures a Model.
type Option func(*Model)

// WithSource sets the source formulas read external tables from.
func WithSource(s source.Source) Option {
	return func(m *Model) { m.source = s }
}

// WithMetrics reports evaluation metrics to mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Model) { m.metrics = mt }
}

// WithInstanceCapacity bounds every dynamic child registry to roughly n
// instances. Zero, the default, keeps every instance. An evicted instance is
// forgotten along with everything recorded inside it; its next use re-runs
// the key mapping.
func WithInstanceCapacity(n int) Option {
	return func(m *Model) { m.capacity = n }
}

// WithMaxDepth limits how deeply entries may nest in one evaluation. Values
// below one keep DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxDepth = n
		}
	}
}

// WithLogger sets the logger used when the caller's context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTopology replaces the in-memory dependency store.
func WithTopology(s topologystore.Store) Option {
	return func(m *Model) {
		if s != nil {
			m.topo = s
		}
	}
}

// New creates an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		roots:    make(map[string]*Instance),
		topo:     inmemorytopology.New(),
		tracker:  newTracker(),
		maxDepth: DefaultMaxDepth,
		logger:   ctxlog.FromContext(context.Background()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Metrics returns the model's metrics, which may be nil.
func (m *Model) Metrics() *metrics.Metrics { return m.metrics }

// Topology returns the dependency store.
func (m *Model) Topology() topologystore.Store { return m.topo }

func (m *Model) withLogger(ctx context.Context) context.Context {
	if ctxlog.Has(ctx) {
		return ctx
	}
	return ctxlog.WithLogger(ctx, m.logger)
}

// AddSpace instantiates def as a root space under its own name.
func (m *Model) AddSpace(ctx context.Context, def *space.Definition) (*Instance, error) {
	return m.Instantiate(ctx, def.Name(), def, nil, nil)
}

// Instantiate builds a fresh root instance of def named name. Formulas in
// overrides replace the inherited ones and refs replace reference values.
// Nothing is evaluated.
func (m *Model) Instantiate(ctx context.Context, name string, def *space.Definition, overrides map[string]space.Formula, refs map[string]cty.Value) (*Instance, error) {
	ctx = m.withLogger(ctx)
	if def == nil {
		return nil, fmt.Errorf("instantiate %q: nil definition", name)
	}
	if !nodeid.IsValidName(name) {
		return nil, fmt.Errorf("instantiate %q: invalid space name", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roots[name]; ok {
		return nil, fmt.Errorf("instantiate %q: space already exists", name)
	}
	inst, err := newInstance(m, def, nodeid.Root(name), nil, nil, space.Params{Refs: refs, Overrides: overrides})
	if err != nil {
		return nil, fmt.Errorf("instantiate %q: %w", name, err)
	}
	m.roots[name] = inst
	m.order = append(m.order, name)

	ctxlog.FromContext(ctx).Debug("Space instantiated.", "space", name, "definition", def.Name(), "cells", len(inst.cells))
	return inst, nil
}

// Space returns the root instance called name.
func (m *Model) Space(name string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.roots[name]
	return inst, ok
}

// Spaces lists the root instance names in creation order.
func (m *Model) Spaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// resolve walks addr.Path[:n] from its root space through child registries.
// With create unset, missing dynamic instances are reported as (nil, nil).
func (m *Model) resolve(ctx context.Context, addr *nodeid.Address, n int, create bool) (*Instance, error) {
	root := addr.Path[0]
	if root.HasKeys() {
		return nil, &RefError{Input: addr.String(), Reason: "a root space takes no key"}
	}
	inst, ok := m.Space(root.Name)
	if !ok {
		return nil, &UndefinedNameError{Space: "model", Name: root.Name}
	}
	for _, seg := range addr.Path[1:n] {
		reg, err := inst.Registry(seg.Name)
		if err != nil {
			return nil, err
		}
		if !create {
			next, ok := reg.Lookup(seg.Keys...)
			if !ok {
				return nil, nil
			}
			inst = next
			continue
		}
		if inst, err = reg.GetOrCreate(ctx, seg.Keys...); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Instance returns the instance at ref, e.g. RealisticTerm.PrudentTerm[3],
// creating dynamic instances along the way.
func (m *Model) Instance(ctx context.Context, ref string) (*Instance, error) {
	addr, err := nodeid.Parse(ref)
	if err != nil {
		return nil, err
	}
	return m.resolve(m.withLogger(ctx), addr, len(addr.Path), true)
}

// Cell returns the cell at ref, e.g. RealisticTerm.PrudentTerm[3].claims.
func (m *Model) Cell(ctx context.Context, ref string) (*Cell, error) {
	addr, err := nodeid.Parse(ref)
	if err != nil {
		return nil, err
	}
	if len(addr.Path) < 2 {
		return nil, &RefError{Input: ref, Reason: "a cell reference needs a space and a cell name"}
	}
	if addr.Last().HasKeys() {
		return nil, &RefError{Input: ref, Reason: "a cell name takes no key; pass arguments to Eval"}
	}
	inst, err := m.resolve(m.withLogger(ctx), addr, len(addr.Path)-1, true)
	if err != nil {
		return nil, err
	}
	return inst.CellHandle(addr.Last().Name)
}

// Eval computes the cell at ref for args.
func (m *Model) Eval(ctx context.Context, ref string, args ...cty.Value) (cty.Value, error) {
	ctx = m.withLogger(ctx)
	c, err := m.Cell(ctx, ref)
	if err != nil {
		return cty.NilVal, err
	}
	return c.Get(ctx, args...)
}

// Invalidate clears what ref names and everything that read it, returning
// the number of cleared entries. ref may name a cell (args select one entry,
// none selects all), a reference value or a child instance. Nothing is
// created while resolving ref; a path into an instance that does not exist
// clears nothing.
func (m *Model) Invalidate(ctx context.Context, ref string, args ...cty.Value) (int, error) {
	ctx = m.withLogger(ctx)
	addr, err := nodeid.Parse(ref)
	if err != nil {
		return 0, err
	}
	if len(addr.Path) < 2 {
		return 0, &RefError{Input: ref, Reason: "nothing to invalidate on a root space"}
	}
	inst, err := m.resolve(ctx, addr, len(addr.Path)-1, false)
	if err != nil || inst == nil {
		return 0, err
	}

	last := addr.Last()
	if reg, ok := inst.children[last.Name]; ok {
		if len(args) > 0 {
			return 0, &ArityError{Name: reg.prefix, Want: 0, Got: len(args)}
		}
		return m.invalidate(ctx, reg.instanceID(last.Keys))
	}
	if last.HasKeys() {
		return 0, inst.missing(last.Name, space.KindChild)
	}
	if c, ok := inst.cells[last.Name]; ok {
		return c.Invalidate(ctx, args...)
	}
	if len(args) > 0 {
		return 0, inst.missing(last.Name, space.KindCell)
	}
	return m.InvalidateRef(ctx, inst.id, last.Name)
}

// InvalidateRef clears every entry that read reference name of the instance
// at spaceRef. Call it after SetRef to recompute with the new value.
func (m *Model) InvalidateRef(ctx context.Context, spaceRef, name string) (int, error) {
	ctx = m.withLogger(ctx)
	addr, err := nodeid.Parse(spaceRef)
	if err != nil {
		return 0, err
	}
	inst, err := m.resolve(ctx, addr, len(addr.Path), false)
	if err != nil || inst == nil {
		return 0, err
	}
	inst.mu.RLock()
	_, ok := inst.refs[name]
	inst.mu.RUnlock()
	if !ok {
		return 0, inst.missing(name, space.KindRef)
	}
	return m.invalidate(ctx, inst.refID(name))
}

// recordEntry stores the edges self discovered and makes its id resolvable
// for invalidation.
func (m *Model) recordEntry(ctx context.Context, self *frame, ref nodeRef) error {
	if ref.owner().isDetached() {
		return nil
	}
	if deps := self.dependencies(); len(deps) > 0 {
		if err := m.topo.AddDependencies(ctx, self.id, deps...); err != nil {
			return fmt.Errorf("record dependencies of %s: %w", self.id, err)
		}
	}
	m.nodes.Store(self.id, ref)
	return nil
}
