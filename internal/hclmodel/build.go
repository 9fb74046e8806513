package hclmodel

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/source"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/zclconf/go-cty/cty"
)

// builder turns decoded blocks into definitions. A space is built after its
// base and the spaces of its children, so those must not form a cycle.
type builder struct {
	blocks   map[string]*spaceBlock
	order    []string
	defs     map[string]*space.Definition
	visiting map[string]bool
	failed   map[string]bool
	checks   []check
	errs     *multierror.Error
}

func newBuilder() *builder {
	return &builder{
		blocks:   make(map[string]*spaceBlock),
		defs:     make(map[string]*space.Definition),
		visiting: make(map[string]bool),
		failed:   make(map[string]bool),
	}
}

func (b *builder) add(blk *spaceBlock) {
	if prev, ok := b.blocks[blk.Name]; ok {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: space %q is already declared at %s", blk.DefRange, blk.Name, prev.DefRange))
		return
	}
	b.blocks[blk.Name] = blk
	b.order = append(b.order, blk.Name)
}

func (b *builder) diags(diags hcl.Diagnostics) {
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			b.errs = multierror.Append(b.errs, d)
		}
	}
}

// define builds the space called name, building what it depends on first.
func (b *builder) define(name string, from hcl.Range) *space.Definition {
	if def, ok := b.defs[name]; ok {
		return def
	}
	if b.failed[name] {
		return nil
	}
	blk, ok := b.blocks[name]
	if !ok {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: space %q is not declared", from, name))
		return nil
	}
	if b.visiting[name] {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: space %q depends on itself through its base or children", from, name))
		return nil
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	def := b.construct(name, blk)
	if def == nil {
		b.failed[name] = true
		return nil
	}
	b.defs[name] = def
	return def
}

func (b *builder) construct(name string, blk *spaceBlock) *space.Definition {
	sb := space.New(name)
	if blk.Base != nil {
		base := b.define(*blk.Base, blk.DefRange)
		if base == nil {
			return nil
		}
		sb.Base(base)
	}

	refs, diags := constObject(blk.Refs)
	b.diags(diags)
	for _, k := range sortedKeys(refs) {
		sb.Ref(k, refs[k])
	}

	var formulas []*formula
	for _, cb := range blk.Cells {
		f, diags := newFormula(name+"."+cb.Name, cb.Params, cb.Formula)
		b.diags(diags)
		if f == nil {
			continue
		}
		sb.Cell(cb.Name, f.eval, cb.Params...)
		formulas = append(formulas, f)
	}

	type childCheck struct {
		def       *space.Definition
		overrides []*formula
	}
	var refChecks []*formula
	var childChecks []childCheck
	for _, cb := range blk.Children {
		childDef := b.define(cb.Space, cb.DefRange)
		if childDef == nil {
			continue
		}

		var keyRefs *formula
		if !isNull(cb.Refs) {
			f, diags := newFormula(name+"."+cb.Name+".refs", cb.Params, cb.Refs)
			b.diags(diags)
			keyRefs = f
			if f != nil {
				refChecks = append(refChecks, f)
			}
		}

		overrides := make(map[string]space.Formula, len(cb.Cells))
		var overrideFormulas []*formula
		for _, cell := range cb.Cells {
			f, diags := newFormula(name+"."+cb.Name+"."+cell.Name, cell.Params, cell.Formula)
			b.diags(diags)
			if f == nil {
				continue
			}
			overrides[cell.Name] = f.eval
			overrideFormulas = append(overrideFormulas, f)
		}
		childChecks = append(childChecks, childCheck{def: childDef, overrides: overrideFormulas})

		if keyRefs == nil && len(overrides) == 0 && len(cb.Params) == 0 {
			sb.StaticChild(cb.Name, childDef)
			continue
		}
		sb.Child(cb.Name, childDef, mapping(keyRefs, overrides), cb.Params...)
	}

	def, err := sb.Build()
	if err != nil {
		b.errs = multierror.Append(b.errs, fmt.Errorf("%s: %w", blk.DefRange, err))
		return nil
	}

	for _, f := range formulas {
		b.checks = append(b.checks, check{scope: def, f: f, open: true})
	}
	for _, f := range refChecks {
		b.checks = append(b.checks, check{scope: def, f: f, open: true})
	}
	for _, cc := range childChecks {
		for _, f := range cc.overrides {
			b.checks = append(b.checks, check{scope: cc.def, f: f})
		}
	}
	return def
}

// build defines every declared space, validates every formula and returns
// the model, or every problem found.
func (b *builder) build(ctx context.Context, tables []*tableBlock) (*Model, error) {
	for _, name := range b.order {
		b.define(name, b.blocks[name].DefRange)
	}
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := validate(b.checks, b.defs); err != nil {
		return nil, err
	}

	src := source.NewTables()
	seen := make(map[string]bool)
	for _, tb := range tables {
		if seen[tb.Name] {
			b.errs = multierror.Append(b.errs, fmt.Errorf("%s: table %q is already declared", tb.DefRange, tb.Name))
			continue
		}
		seen[tb.Name] = true

		rows := make(map[int]float64, len(tb.Rows))
		for k, v := range tb.Rows {
			i, err := strconv.Atoi(k)
			if err != nil {
				b.errs = multierror.Append(b.errs, fmt.Errorf("%s: table %q: row key %q is not a whole number", tb.DefRange, tb.Name, k))
				continue
			}
			rows[i] = v
		}
		src.Put(tb.Name, rows)
	}
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("HCL model built.", "spaces", len(b.defs), "formulas", len(b.checks), "tables", len(seen))
	return &Model{Order: b.order, Spaces: b.defs, Tables: src}, nil
}

func isNull(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	// gohcl fills a missing optional attribute with a static null.
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

// constObject evaluates a refs attribute of a space, which may use builtin
// functions but no names.
func constObject(expr hcl.Expression) (map[string]cty.Value, hcl.Diagnostics) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(builtinContext)
	if diags.HasErrors() || v.IsNull() {
		return nil, diags
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid refs",
			Detail:   fmt.Sprintf("refs must be an object, got %s.", v.Type().FriendlyName()),
			Subject:  expr.Range().Ptr(),
		})
	}
	out := make(map[string]cty.Value, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		out[k.AsString()] = val
	}
	return out, diags
}
