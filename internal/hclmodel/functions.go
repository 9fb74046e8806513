package hclmodel

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

const (
	fnChild  = "child"
	fnFail   = "fail"
	fnLookup = "lookup"
)

// FailError is the domain error a formula raises with fail(message).
type FailError struct {
	Message string
}

func (e *FailError) Error() string { return e.Message }

// SumFunc totals a list, set or tuple of numbers.
var SumFunc = function.New(&function.Spec{
	Description: "Returns the total of a collection of numbers.",
	Params: []function.Parameter{
		{Name: "numbers", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		coll := args[0]
		if !coll.CanIterateElements() {
			return cty.NilVal, fmt.Errorf("sum expects a collection of numbers, got %s", coll.Type().FriendlyName())
		}
		total := cty.Zero
		for it := coll.ElementIterator(); it.Next(); {
			_, v := it.Element()
			n, err := convert.Convert(v, cty.Number)
			if err != nil {
				return cty.NilVal, fmt.Errorf("sum: %w", err)
			}
			if n.IsNull() {
				return cty.NilVal, fmt.Errorf("sum: null element")
			}
			total = total.Add(n)
		}
		return total, nil
	},
})

// builtins are the functions every formula can call besides cells.
var builtins = map[string]function.Function{
	"sum":    SumFunc,
	"range":  stdlib.RangeFunc,
	"min":    stdlib.MinFunc,
	"max":    stdlib.MaxFunc,
	"floor":  stdlib.FloorFunc,
	"ceil":   stdlib.CeilFunc,
	"abs":    stdlib.AbsoluteFunc,
	"pow":    stdlib.PowFunc,
	"length": stdlib.LengthFunc,
	"concat": stdlib.ConcatFunc,
}

// Builtins lists the builtin function names in sorted order.
func Builtins() []string {
	names := make([]string, 0, len(builtins)+3)
	for n := range builtins {
		names = append(names, n)
	}
	names = append(names, fnChild, fnFail, fnLookup)
	sort.Strings(names)
	return names
}

// builtinContext is the shared root of every evaluation context.
var builtinContext = &hcl.EvalContext{Functions: builtins}

// invocation is one formula run. The functions it hands to hcl close over
// the caller's context and scope, and remember the first engine error so it
// can be returned as is instead of as a diagnostic.
type invocation struct {
	ctx   context.Context
	scope space.Scope
	err   error
}

func (inv *invocation) fail(err error) error {
	if err != nil && inv.err == nil {
		inv.err = err
	}
	return err
}

// cellFunc calls cell name of the invocation's scope.
func (inv *invocation) cellFunc(name string) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{Name: "args", Type: cty.DynamicPseudoType},
		Type:     function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, err := inv.scope.Cell(inv.ctx, name, args...)
			return v, inv.fail(err)
		},
	})
}

// childFunc is child(name, key, cell, args...). A tuple key supplies several
// key values; an empty tuple addresses a static child.
func (inv *invocation) childFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
			{Name: "key", Type: cty.DynamicPseudoType},
			{Name: "cell", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "args", Type: cty.DynamicPseudoType},
		Type:     function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var key []cty.Value
			if k := args[1]; k.Type().IsTupleType() {
				key = k.AsValueSlice()
			} else {
				key = []cty.Value{k}
			}
			child, err := inv.scope.Child(inv.ctx, args[0].AsString(), key...)
			if err != nil {
				return cty.NilVal, inv.fail(err)
			}
			v, err := child.Cell(inv.ctx, args[2].AsString(), args[3:]...)
			return v, inv.fail(err)
		},
	})
}

// lookupFunc is lookup(table, key).
func (inv *invocation) lookupFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "table", Type: cty.String},
			{Name: "key", Type: cty.DynamicPseudoType},
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, err := inv.scope.Lookup(inv.ctx, args[0].AsString(), args[1])
			return v, inv.fail(err)
		},
	})
}

// failFunc is fail(message). It never returns a value; the FailError reaches
// the caller unchanged.
func (inv *invocation) failFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "message", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.NilVal, inv.fail(&FailError{Message: args[0].AsString()})
		},
	})
}
