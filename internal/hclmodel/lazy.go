package hclmodel

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// node evaluates one compiled expression.
type node func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics)

// compile turns expr into a node that evaluates only the selected branch of
// every conditional. hclsyntax evaluates both branches before looking at the
// condition, which never terminates for `t == 0 ? 1 : f(t - 1)`. Expressions
// without a conditional evaluate through hclsyntax unchanged.
func compile(expr hclsyntax.Expression) node {
	if !hasConditional(expr) {
		return expr.Value
	}

	switch e := expr.(type) {
	case *hclsyntax.ConditionalExpr:
		return compileConditional(e)
	case *hclsyntax.ParenthesesExpr:
		return compile(e.Expression)
	case *hclsyntax.BinaryOpExpr:
		return compileOperation(e.Op, e.SrcRange, compile(e.LHS), compile(e.RHS))
	case *hclsyntax.UnaryOpExpr:
		return compileOperation(e.Op, e.SrcRange, compile(e.Val))
	case *hclsyntax.FunctionCallExpr:
		if !e.ExpandFinal {
			return compileCall(e)
		}
	case *hclsyntax.TupleConsExpr:
		return compileTuple(e)
	case *hclsyntax.ForExpr:
		if e.KeyExpr == nil {
			return compileFor(e)
		}
	}
	// Objects, indexing and splats stay eager.
	return expr.Value
}

func hasConditional(expr hclsyntax.Expression) bool {
	found := false
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if _, ok := n.(*hclsyntax.ConditionalExpr); ok {
			found = true
		}
		return nil
	})
	return found
}

func compileConditional(e *hclsyntax.ConditionalExpr) node {
	cond, whenTrue, whenFalse := compile(e.Condition), compile(e.TrueResult), compile(e.FalseResult)
	return func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics) {
		c, diags := cond(hctx)
		if diags.HasErrors() {
			return cty.DynamicVal, diags
		}
		c, err := convert.Convert(c, cty.Bool)
		if err != nil || c.IsNull() || !c.IsKnown() {
			reason := "the condition must be either true or false"
			if err != nil {
				reason = err.Error()
			}
			return cty.DynamicVal, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Incorrect condition type",
				Detail:   fmt.Sprintf("Invalid condition: %s.", reason),
				Subject:  e.Condition.Range().Ptr(),
			})
		}

		branch := whenFalse
		if c.True() {
			branch = whenTrue
		}
		v, more := branch(hctx)
		return v, append(diags, more...)
	}
}

func compileTuple(e *hclsyntax.TupleConsExpr) node {
	items := make([]node, len(e.Exprs))
	for i, item := range e.Exprs {
		items[i] = compile(item)
	}
	return func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics) {
		var diags hcl.Diagnostics
		vals := make([]cty.Value, len(items))
		for i, item := range items {
			v, more := item(hctx)
			diags = append(diags, more...)
			if more.HasErrors() {
				return cty.DynamicVal, diags
			}
			vals[i] = v
		}
		return cty.TupleVal(vals), diags
	}
}

// compileFor handles the tuple form [for k, v in coll : val if cond]. Each
// element gets a child context holding the iteration variables.
func compileFor(e *hclsyntax.ForExpr) node {
	coll, val := compile(e.CollExpr), compile(e.ValExpr)
	var cond node
	if e.CondExpr != nil {
		cond = compile(e.CondExpr)
	}
	invalid := func(subject hcl.Range, summary, detail string) hcl.Diagnostics {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  summary,
			Detail:   detail,
			Subject:  subject.Ptr(),
		}}
	}

	return func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics) {
		c, diags := coll(hctx)
		if diags.HasErrors() {
			return cty.DynamicVal, diags
		}
		if c.IsNull() {
			return cty.DynamicVal, append(diags, invalid(e.CollExpr.Range(), "Iteration over null value", "A null value cannot be used as the collection in a 'for' expression.")...)
		}
		if !c.IsWhollyKnown() {
			return cty.DynamicVal, diags
		}
		if !c.CanIterateElements() {
			return cty.DynamicVal, append(diags, invalid(e.CollExpr.Range(), "Iteration over non-iterable value", fmt.Sprintf("A value of type %s cannot be used as the collection in a 'for' expression.", c.Type().FriendlyName()))...)
		}

		var vals []cty.Value
		for it := c.ElementIterator(); it.Next(); {
			k, v := it.Element()
			child := hctx.NewChild()
			child.Variables = map[string]cty.Value{e.ValVar: v}
			if e.KeyVar != "" {
				child.Variables[e.KeyVar] = k
			}

			if cond != nil {
				include, more := cond(child)
				diags = append(diags, more...)
				if more.HasErrors() {
					return cty.DynamicVal, diags
				}
				include, err := convert.Convert(include, cty.Bool)
				if err != nil || include.IsNull() || !include.IsKnown() {
					return cty.DynamicVal, append(diags, invalid(e.CondExpr.Range(), "Invalid 'for' condition", "The 'if' clause value must be either true or false.")...)
				}
				if include.False() {
					continue
				}
			}

			result, more := val(child)
			diags = append(diags, more...)
			if more.HasErrors() {
				return cty.DynamicVal, diags
			}
			vals = append(vals, result)
		}
		if len(vals) == 0 {
			return cty.EmptyTupleVal, diags
		}
		return cty.TupleVal(vals), diags
	}
}

func compileOperation(op *hclsyntax.Operation, rng hcl.Range, operands ...node) node {
	params := op.Impl.Params()
	return func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics) {
		var diags hcl.Diagnostics
		args := make([]cty.Value, len(operands))
		for i, operand := range operands {
			v, more := operand(hctx)
			diags = append(diags, more...)
			if more.HasErrors() {
				return cty.UnknownVal(op.Type), diags
			}
			converted, err := convert.Convert(v, params[i].Type)
			if err != nil {
				return cty.UnknownVal(op.Type), append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid operand",
					Detail:   fmt.Sprintf("Unsuitable value for operand: %s.", err),
					Subject:  rng.Ptr(),
				})
			}
			args[i] = converted
		}

		v, err := op.Impl.Call(args)
		if err != nil {
			return cty.UnknownVal(op.Type), append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Operation failed",
				Detail:   fmt.Sprintf("Error during operation: %s.", err),
				Subject:  rng.Ptr(),
			})
		}
		return v, diags
	}
}

func compileCall(e *hclsyntax.FunctionCallExpr) node {
	args := make([]node, len(e.Args))
	for i, a := range e.Args {
		args[i] = compile(a)
	}
	return func(hctx *hcl.EvalContext) (cty.Value, hcl.Diagnostics) {
		f, ok := findFunction(hctx, e.Name)
		if !ok {
			return cty.DynamicVal, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Call to unknown function",
				Detail:   fmt.Sprintf("There is no function named %q.", e.Name),
				Subject:  e.NameRange.Ptr(),
			}}
		}

		params, varParam := f.Params(), f.VarParam()
		var diags hcl.Diagnostics
		vals := make([]cty.Value, len(args))
		for i, arg := range args {
			v, more := arg(hctx)
			diags = append(diags, more...)
			if more.HasErrors() {
				return cty.DynamicVal, diags
			}

			// Convert like hclsyntax does before calling.
			var param *function.Parameter
			if i < len(params) {
				param = &params[i]
			} else {
				param = varParam
			}
			if param != nil && param.Type != cty.DynamicPseudoType {
				converted, err := convert.Convert(v, param.Type)
				if err != nil {
					return cty.DynamicVal, append(diags, &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Invalid function argument",
						Detail:   fmt.Sprintf("Invalid value for %q parameter: %s.", param.Name, err),
						Subject:  e.Args[i].Range().Ptr(),
					})
				}
				v = converted
			}
			vals[i] = v
		}

		v, err := f.Call(vals)
		if err != nil {
			return cty.DynamicVal, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Error in function call",
				Detail:   fmt.Sprintf("Call to function %q failed: %s.", e.Name, err),
				Subject:  e.Range().Ptr(),
			})
		}
		return v, diags
	}
}

func findFunction(hctx *hcl.EvalContext, name string) (function.Function, bool) {
	for c := hctx; c != nil; c = c.Parent() {
		if f, ok := c.Functions[name]; ok {
			return f, true
		}
	}
	return function.Function{}, false
}
