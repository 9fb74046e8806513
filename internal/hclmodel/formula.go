package hclmodel

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// formula is a compiled HCL expression with named parameters.
type formula struct {
	where  string // owner and name, for messages
	params []string
	expr   hclsyntax.Expression
	run    node

	vars  []string                      // root variable names read
	calls []*hclsyntax.FunctionCallExpr // every call site
	names []string                      // distinct called names
}

func newFormula(where string, params []string, expr hcl.Expression) (*formula, hcl.Diagnostics) {
	syn, ok := expr.(hclsyntax.Expression)
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unsupported formula syntax",
			Detail:   fmt.Sprintf("The formula of %s must be written in native HCL syntax.", where),
			Subject:  expr.Range().Ptr(),
		}}
	}

	f := &formula{where: where, params: params, expr: syn, run: compile(syn)}

	vars := make(map[string]struct{})
	for _, t := range syn.Variables() {
		vars[t.RootName()] = struct{}{}
	}
	for v := range vars {
		f.vars = append(f.vars, v)
	}
	sort.Strings(f.vars)

	names := make(map[string]struct{})
	walkForCalls(syn, func(call *hclsyntax.FunctionCallExpr) {
		f.calls = append(f.calls, call)
		names[call.Name] = struct{}{}
	})
	for n := range names {
		f.names = append(f.names, n)
	}
	sort.Strings(f.names)
	return f, nil
}

func (f *formula) param(name string) int {
	for i, p := range f.params {
		if p == name {
			return i
		}
	}
	return -1
}

// bind prepares an evaluation context for one run against s. Only the names
// the expression actually uses are read, so only they become dependencies.
func (f *formula) bind(ctx context.Context, s space.Scope, args []cty.Value) (*hcl.EvalContext, *invocation, error) {
	inv := &invocation{ctx: ctx, scope: s}
	hctx := builtinContext.NewChild()

	hctx.Variables = make(map[string]cty.Value, len(f.vars))
	for _, name := range f.vars {
		if i := f.param(name); i >= 0 && i < len(args) {
			hctx.Variables[name] = args[i]
			continue
		}
		v, err := s.Ref(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		hctx.Variables[name] = v
	}

	hctx.Functions = make(map[string]function.Function, len(f.names))
	for _, name := range f.names {
		switch {
		case name == fnChild:
			hctx.Functions[name] = inv.childFunc()
		case name == fnLookup:
			hctx.Functions[name] = inv.lookupFunc()
		case name == fnFail:
			hctx.Functions[name] = inv.failFunc()
		case isBuiltin(name):
		default:
			hctx.Functions[name] = inv.cellFunc(name)
		}
	}
	return hctx, inv, nil
}

// eval runs the formula. Errors raised by the engine, such as a circular
// reference or a failing cell, are returned unchanged.
func (f *formula) eval(ctx context.Context, s space.Scope, args []cty.Value) (cty.Value, error) {
	hctx, inv, err := f.bind(ctx, s, args)
	if err != nil {
		return cty.NilVal, err
	}

	v, diags := f.run(hctx)
	if inv.err != nil {
		return cty.NilVal, inv.err
	}
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("%s: %w", f.where, diags)
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("%s: result is not known", f.where)
	}
	return v, nil
}

func isBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// mapping builds the parameter function of a child block: refs evaluated
// against the parent with the key bound to the block's params, plus formula
// overrides shared by every instance.
func mapping(refs *formula, overrides map[string]space.Formula) space.ParamFunc {
	return func(ctx context.Context, parent space.Scope, key []cty.Value) (space.Params, error) {
		p := space.Params{Overrides: overrides}
		if refs == nil {
			return p, nil
		}

		obj, err := refs.eval(ctx, parent, key)
		if err != nil {
			return space.Params{}, err
		}
		if obj.IsNull() {
			return p, nil
		}
		if !obj.Type().IsObjectType() && !obj.Type().IsMapType() {
			return space.Params{}, fmt.Errorf("%s: refs must be an object, got %s", refs.where, obj.Type().FriendlyName())
		}

		p.Refs = make(map[string]cty.Value, obj.LengthInt())
		for it := obj.ElementIterator(); it.Next(); {
			k, v := it.Element()
			p.Refs[k.AsString()] = v
		}
		return p, nil
	}
}
