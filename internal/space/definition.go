package space

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Definition is an immutable space definition: one layer of members plus an
// optional base definition it inherits from.
type Definition struct {
	name     string
	base     *Definition
	cells    []*CellDef
	refs     []RefDef
	children []*ChildDef
	index    map[string]Member
}

// Name returns the space name.
func (d *Definition) Name() string { return d.name }

// Base returns the definition this one inherits from, or nil.
func (d *Definition) Base() *Definition { return d.base }

// Cells returns the cells declared in this layer only.
func (d *Definition) Cells() []*CellDef { return append([]*CellDef(nil), d.cells...) }

// Refs returns the references declared in this layer only.
func (d *Definition) Refs() []RefDef { return append([]RefDef(nil), d.refs...) }

// Children returns the child declarations of this layer only.
func (d *Definition) Children() []*ChildDef { return append([]*ChildDef(nil), d.children...) }

// Resolve finds name in this definition or, failing that, its base chain.
func (d *Definition) Resolve(name string) (Member, error) {
	for layer := d; layer != nil; layer = layer.base {
		if m, ok := layer.index[name]; ok {
			return m, nil
		}
	}
	return Member{}, &UndefinedNameError{Space: d.name, Name: name}
}

// Flatten returns every member visible in this definition, base members
// first. A member redefined in a derived layer keeps the position of the
// member it replaces.
func (d *Definition) Flatten() []Member {
	var members []Member
	if d.base != nil {
		members = d.base.Flatten()
	}
	pos := make(map[string]int, len(members))
	for i, m := range members {
		pos[m.Name] = i
	}
	for _, m := range d.local() {
		if i, ok := pos[m.Name]; ok {
			members[i] = m
			continue
		}
		pos[m.Name] = len(members)
		members = append(members, m)
	}
	return members
}

// CellNames lists every visible cell in flattened order.
func (d *Definition) CellNames() []string {
	var names []string
	for _, m := range d.Flatten() {
		if m.Kind == KindCell {
			names = append(names, m.Name)
		}
	}
	return names
}

// IsA reports whether d is other or inherits from it.
func (d *Definition) IsA(other *Definition) bool {
	for layer := d; layer != nil; layer = layer.base {
		if layer == other {
			return true
		}
	}
	return false
}

func (d *Definition) local() []Member {
	members := make([]Member, 0, len(d.cells)+len(d.refs)+len(d.children))
	for _, r := range d.refs {
		members = append(members, d.index[r.Name])
	}
	for _, c := range d.cells {
		members = append(members, d.index[c.Name])
	}
	for _, c := range d.children {
		members = append(members, d.index[c.Name])
	}
	return members
}

// Builder assembles a Definition. Methods record problems instead of failing
// immediately; Build reports all of them together.
type Builder struct {
	def  *Definition
	errs *multierror.Error
}

// New starts a definition named name.
func New(name string) *Builder {
	b := &Builder{def: &Definition{name: name, index: make(map[string]Member)}}
	if !nodeid.IsValidName(name) {
		b.errs = multierror.Append(b.errs, fmt.Errorf("invalid space name %q", name))
	}
	return b
}

// Base sets the definition to inherit from.
func (b *Builder) Base(base *Definition) *Builder {
	if base == nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: base definition is nil", b.def.name))
		return b
	}
	b.def.base = base
	return b
}

// Ref declares a reference value.
func (b *Builder) Ref(name string, v cty.Value) *Builder {
	if b.claim(name) {
		b.def.refs = append(b.def.refs, RefDef{Name: name, Value: v})
		b.def.index[name] = Member{Kind: KindRef, Name: name, Ref: v, Owner: b.def}
	}
	return b
}

// Cell declares a cell with its formula and parameter names.
func (b *Builder) Cell(name string, f Formula, params ...string) *Builder {
	if f == nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: cell %q has no formula", b.def.name, name))
		return b
	}
	for _, p := range params {
		if !nodeid.IsValidName(p) {
			b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: cell %q has invalid parameter name %q", b.def.name, name, p))
			return b
		}
	}
	if b.claim(name) {
		c := &CellDef{Name: name, Params: params, Formula: f}
		b.def.cells = append(b.def.cells, c)
		b.def.index[name] = Member{Kind: KindCell, Name: name, Cell: c, Owner: b.def}
	}
	return b
}

// Child declares a parameterized child space whose instances are keyed by
// keyParams and configured by param.
func (b *Builder) Child(name string, def *Definition, param ParamFunc, keyParams ...string) *Builder {
	if def == nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: child %q has no space definition", b.def.name, name))
		return b
	}
	if param != nil && len(keyParams) == 0 {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: child %q has a mapping but no key parameters", b.def.name, name))
		return b
	}
	if b.claim(name) {
		c := &ChildDef{Name: name, Space: def, KeyParams: keyParams, Param: param}
		b.def.children = append(b.def.children, c)
		b.def.index[name] = Member{Kind: KindChild, Name: name, Child: c, Owner: b.def}
	}
	return b
}

// StaticChild declares a child space with a single shared instance.
func (b *Builder) StaticChild(name string, def *Definition) *Builder {
	return b.Child(name, def, nil)
}

func (b *Builder) claim(name string) bool {
	if !nodeid.IsValidName(name) {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: invalid member name %q", b.def.name, name))
		return false
	}
	if m, ok := b.def.index[name]; ok {
		b.errs = multierror.Append(b.errs, fmt.Errorf("space %q: %q is already declared as a %s", b.def.name, name, m.Kind))
		return false
	}
	return true
}

// Build returns the finished definition or every problem found while
// assembling it.
func (b *Builder) Build() (*Definition, error) {
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return b.def, nil
}

// MustBuild is Build for definitions written in Go source.
func (b *Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
