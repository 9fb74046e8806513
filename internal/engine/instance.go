package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/nodeid"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Instance is a live space: its own cells and caches, reference values and
// child registries. It implements space.Scope for the formulas bound to it.
type Instance struct {
	model  *Model
	def    *space.Definition
	addr   *nodeid.Address
	id     string
	parent *Instance
	key    []cty.Value

	cells    map[string]*Cell
	children map[string]*Registry

	mu   sync.RWMutex
	refs map[string]cty.Value

	// deps are the nodes the key mapping read when the instance was created.
	deps []string
	// detached is set once the registry no longer holds the instance.
	detached atomic.Bool
}

var _ space.Scope = (*Instance)(nil)

// newInstance builds an instance of def. Cell formulas come from the
// flattened definition with p.Overrides on top; references come from the
// definition with p.Refs on top. Nothing is evaluated.
func newInstance(m *Model, def *space.Definition, addr *nodeid.Address, parent *Instance, key []cty.Value, p space.Params) (*Instance, error) {
	inst := &Instance{
		model:    m,
		def:      def,
		addr:     addr,
		id:       addr.String(),
		parent:   parent,
		key:      key,
		cells:    make(map[string]*Cell),
		children: make(map[string]*Registry),
		refs:     make(map[string]cty.Value),
	}

	for _, mem := range def.Flatten() {
		switch mem.Kind {
		case space.KindCell:
			formula := mem.Cell.Formula
			if o, ok := p.Overrides[mem.Name]; ok && o != nil {
				formula = o
			}
			inst.cells[mem.Name] = newCell(inst, mem.Cell, formula)
		case space.KindRef:
			inst.refs[mem.Name] = mem.Ref
		case space.KindChild:
			reg, err := newRegistry(inst, mem.Child)
			if err != nil {
				return nil, err
			}
			inst.children[mem.Name] = reg
		}
	}

	for name := range p.Overrides {
		if _, ok := inst.cells[name]; !ok {
			if mem, err := def.Resolve(name); err == nil {
				return nil, &KindError{Space: def.Name(), Name: name, Want: space.KindCell, Got: mem.Kind}
			}
			return nil, &UndefinedNameError{Space: def.Name(), Name: name}
		}
	}
	for name, v := range p.Refs {
		if mem, err := def.Resolve(name); err == nil && mem.Kind != space.KindRef {
			return nil, &KindError{Space: def.Name(), Name: name, Want: space.KindRef, Got: mem.Kind}
		}
		if !nodeid.IsValidName(name) {
			return nil, fmt.Errorf("invalid reference name %q", name)
		}
		inst.refs[name] = v
	}
	return inst, nil
}

// Path returns the instance address.
func (i *Instance) Path() *nodeid.Address { return i.addr }

// String returns the instance address as text.
func (i *Instance) String() string { return i.id }

// Definition returns the space definition the instance was built from.
func (i *Instance) Definition() *space.Definition { return i.def }

// Parent returns the instance owning this one, or nil for a root space.
func (i *Instance) Parent() *Instance { return i.parent }

// Key returns the key this dynamic instance was created for, or nil.
func (i *Instance) Key() []cty.Value { return i.key }

// Model returns the model the instance belongs to.
func (i *Instance) Model() *Model { return i.model }

// CellNames lists the instance's cells in sorted order.
func (i *Instance) CellNames() []string {
	names := make([]string, 0, len(i.cells))
	for n := range i.cells {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RefNames lists the instance's references in sorted order.
func (i *Instance) RefNames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.refs))
	for n := range i.refs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CellHandle returns the named cell.
func (i *Instance) CellHandle(name string) (*Cell, error) {
	if c, ok := i.cells[name]; ok {
		return c, nil
	}
	return nil, i.missing(name, space.KindCell)
}

// Registry returns the registry of the named child.
func (i *Instance) Registry(name string) (*Registry, error) {
	if r, ok := i.children[name]; ok {
		return r, nil
	}
	return nil, i.missing(name, space.KindChild)
}

func (i *Instance) missing(name string, want space.Kind) error {
	i.mu.RLock()
	_, isRef := i.refs[name]
	i.mu.RUnlock()
	switch {
	case isRef && want != space.KindRef:
		return &KindError{Space: i.id, Name: name, Want: want, Got: space.KindRef}
	case i.cells[name] != nil:
		return &KindError{Space: i.id, Name: name, Want: want, Got: space.KindCell}
	case i.children[name] != nil:
		return &KindError{Space: i.id, Name: name, Want: want, Got: space.KindChild}
	}
	return &UndefinedNameError{Space: i.id, Name: name}
}

// Cell evaluates the named cell of this instance.
func (i *Instance) Cell(ctx context.Context, name string, args ...cty.Value) (cty.Value, error) {
	c, err := i.CellHandle(name)
	if err != nil {
		return cty.NilVal, err
	}
	return c.Get(ctx, args...)
}

func (i *Instance) refID(name string) string {
	return i.id + "#" + name
}

// Ref reads a reference value, recording the read for invalidation.
func (i *Instance) Ref(ctx context.Context, name string) (cty.Value, error) {
	i.mu.RLock()
	v, ok := i.refs[name]
	i.mu.RUnlock()
	if !ok {
		return cty.NilVal, i.missing(name, space.KindRef)
	}
	i.markRead(currentFrame(ctx), i.refID(name))
	return v, nil
}

// SetRef replaces a reference value. Cached values that read the old value
// stay cached until InvalidateRef (or another invalidation) clears them.
func (i *Instance) SetRef(ctx context.Context, name string, v cty.Value) error {
	if i.cells[name] != nil || i.children[name] != nil {
		return i.missing(name, space.KindRef)
	}
	if !nodeid.IsValidName(name) {
		return fmt.Errorf("invalid reference name %q", name)
	}
	i.mu.Lock()
	i.refs[name] = v
	i.mu.Unlock()
	ctxlog.FromContext(ctx).Debug("Reference updated.", "space", i.id, "ref", name, "value", value.FormatValue(v))
	return nil
}

// Child returns the child instance for key as a Scope.
func (i *Instance) Child(ctx context.Context, name string, key ...cty.Value) (space.Scope, error) {
	return i.ChildInstance(ctx, name, key...)
}

// ChildInstance returns the child instance for key, creating it on first use.
func (i *Instance) ChildInstance(ctx context.Context, name string, key ...cty.Value) (*Instance, error) {
	r, err := i.Registry(name)
	if err != nil {
		return nil, err
	}
	return r.GetOrCreate(ctx, key...)
}

// Lookup reads an external table through the model's value source.
func (i *Instance) Lookup(ctx context.Context, table string, key cty.Value) (cty.Value, error) {
	if i.model.source == nil {
		return cty.NilVal, fmt.Errorf("lookup %q in %s: no value source configured", table, i.id)
	}
	return i.model.source.Lookup(ctx, table, key)
}
