package hclmodel

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/zclconf/go-cty/cty"
)

// walkForCalls recursively walks the AST and reports every function call.
func walkForCalls(expr hclsyntax.Expression, visit func(*hclsyntax.FunctionCallExpr)) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		visit(e)
		for _, arg := range e.Args {
			walkForCalls(arg, visit)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForCalls(e.LHS, visit)
		walkForCalls(e.RHS, visit)
	case *hclsyntax.ConditionalExpr:
		walkForCalls(e.Condition, visit)
		walkForCalls(e.TrueResult, visit)
		walkForCalls(e.FalseResult, visit)
	case *hclsyntax.UnaryOpExpr:
		walkForCalls(e.Val, visit)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForCalls(part, visit)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForCalls(e.Wrapped, visit)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForCalls(item, visit)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForCalls(item.KeyExpr, visit)
			walkForCalls(item.ValueExpr, visit)
		}
	case *hclsyntax.ObjectConsKeyExpr:
		walkForCalls(e.Wrapped, visit)
	case *hclsyntax.ForExpr:
		walkForCalls(e.CollExpr, visit)
		walkForCalls(e.KeyExpr, visit)
		walkForCalls(e.ValExpr, visit)
		walkForCalls(e.CondExpr, visit)
	case *hclsyntax.IndexExpr:
		walkForCalls(e.Collection, visit)
		walkForCalls(e.Key, visit)
	case *hclsyntax.SplatExpr:
		walkForCalls(e.Source, visit)
		walkForCalls(e.Each, visit)
	case *hclsyntax.ParenthesesExpr:
		walkForCalls(e.Expression, visit)
	}
}

// check is one formula to validate against the space its names resolve in.
// An open check also accepts names that only a space inheriting from scope
// defines, since the formula runs in instances of those spaces too.
type check struct {
	scope *space.Definition
	f     *formula
	open  bool
}

// validate reports every unresolvable name of every formula at once.
func validate(checks []check, defs map[string]*space.Definition) error {
	derived := inheritors(defs)
	var errs *multierror.Error
	for _, c := range checks {
		scopes := []*space.Definition{c.scope}
		if c.open {
			scopes = append(scopes, derived[c.scope]...)
		}
		for _, err := range validateFormula(scopes, c.f) {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// inheritors maps every definition to the definitions built on it, directly
// or through other bases, in name order.
func inheritors(defs map[string]*space.Definition) map[*space.Definition][]*space.Definition {
	out := make(map[*space.Definition][]*space.Definition)
	for _, name := range sortedKeys(defs) {
		def := defs[name]
		for base := def.Base(); base != nil; base = base.Base() {
			out[base] = append(out[base], def)
		}
	}
	return out
}

// validateFormula checks f against scopes. A name passes when it is valid in
// any of them; otherwise the problem found in the first scope is reported.
func validateFormula(scopes []*space.Definition, f *formula) []error {
	var errs []error
	report := func(rng fmt.Stringer, problem func(*space.Definition) string) {
		first := ""
		for i, scope := range scopes {
			p := problem(scope)
			if p == "" {
				return
			}
			if i == 0 {
				first = p
			}
		}
		errs = append(errs, fmt.Errorf("%s: %s: %s", rng, f.where, first))
	}

	for _, name := range f.vars {
		if f.param(name) >= 0 {
			continue
		}
		report(f.expr.Range(), func(scope *space.Definition) string {
			mem, err := scope.Resolve(name)
			switch {
			case err != nil:
				return fmt.Sprintf("unknown name %q", name)
			case mem.Kind != space.KindRef:
				return fmt.Sprintf("%q is a %s, not a reference", name, mem.Kind)
			}
			return ""
		})
	}

	for _, call := range f.calls {
		switch {
		case isBuiltin(call.Name), call.Name == fnLookup, call.Name == fnFail:
		case call.Name == fnChild:
			report(call.Range(), func(scope *space.Definition) string {
				return childCallProblem(scope, call)
			})
		default:
			report(call.NameRange, func(scope *space.Definition) string {
				mem, err := scope.Resolve(call.Name)
				switch {
				case err != nil:
					return fmt.Sprintf("call to unknown cell or function %q", call.Name)
				case mem.Kind != space.KindCell:
					return fmt.Sprintf("%q is a %s and cannot be called", call.Name, mem.Kind)
				case !call.ExpandFinal && len(call.Args) != mem.Cell.Arity():
					return fmt.Sprintf("%q takes %d argument(s), got %d", call.Name, mem.Cell.Arity(), len(call.Args))
				}
				return ""
			})
		}
	}
	return errs
}

// childCallProblem checks child(name, key, cell, args...) when the child
// and cell names are literals.
func childCallProblem(scope *space.Definition, call *hclsyntax.FunctionCallExpr) string {
	if len(call.Args) < 3 {
		return "child takes a child name, a key and a cell name"
	}
	childName, ok := literalString(call.Args[0])
	if !ok {
		return ""
	}
	mem, err := scope.Resolve(childName)
	if err != nil || mem.Kind != space.KindChild {
		return fmt.Sprintf("%q is not a child of %s", childName, scope.Name())
	}

	cellName, ok := literalString(call.Args[2])
	if !ok {
		return ""
	}
	target, err := mem.Child.Space.Resolve(cellName)
	if err != nil || target.Kind != space.KindCell {
		return fmt.Sprintf("%q is not a cell of %s", cellName, mem.Child.Space.Name())
	}
	if got := len(call.Args) - 3; !call.ExpandFinal && got != target.Cell.Arity() {
		return fmt.Sprintf("%q takes %d argument(s), got %d", cellName, target.Cell.Arity(), got)
	}
	return ""
}

func literalString(expr hclsyntax.Expression) (string, bool) {
	if len(expr.Variables()) > 0 {
		return "", false
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.Type() != cty.String || v.IsNull() || !v.IsKnown() {
		return "", false
	}
	return v.AsString(), true
}
