package hclmodel

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func TestSumFunc(t *testing.T) {
	testCases := []struct {
		name    string
		arg     cty.Value
		want    cty.Value
		wantErr string
	}{
		{name: "tuple", arg: cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberFloatVal(2.5)}), want: cty.NumberFloatVal(3.5)},
		{name: "list", arg: cty.ListVal([]cty.Value{cty.NumberIntVal(4), cty.NumberIntVal(-4)}), want: cty.Zero},
		{name: "empty", arg: cty.EmptyTupleVal, want: cty.Zero},
		{name: "numeric strings", arg: cty.TupleVal([]cty.Value{cty.StringVal("2"), cty.NumberIntVal(3)}), want: cty.NumberIntVal(5)},
		{name: "not a collection", arg: cty.NumberIntVal(3), wantErr: "collection of numbers"},
		{name: "null element", arg: cty.TupleVal([]cty.Value{cty.NullVal(cty.Number)}), wantErr: "null element"},
		{name: "bad element", arg: cty.TupleVal([]cty.Value{cty.StringVal("x")}), wantErr: "sum:"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SumFunc.Call([]cty.Value{tc.arg})
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equals(got).True(), "got %#v", got)
		})
	}
}

func TestBuiltins(t *testing.T) {
	names := Builtins()
	assert.Contains(t, names, "sum")
	assert.Contains(t, names, fnChild)
	assert.Contains(t, names, fnLookup)
	assert.Contains(t, names, fnFail)
	assert.IsIncreasing(t, names)
}

func TestCompile_SelectsOneBranch(t *testing.T) {
	calls := 0
	boom := function.New(&function.Spec{
		Params: []function.Parameter{{Name: "x", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			calls++
			return args[0], nil
		},
	})
	hctx := builtinContext.NewChild()
	hctx.Functions = map[string]function.Function{"boom": boom}

	testCases := []struct {
		src       string
		n         int64
		want      int64
		wantCalls int
	}{
		{src: `n == 0 ? 1 : boom(n)`, n: 0, want: 1, wantCalls: 0},
		{src: `n == 0 ? 1 : boom(n)`, n: 3, want: 3, wantCalls: 1},
		{src: `(n > 0 ? boom(n) : 0) * 2`, n: 0, want: 0, wantCalls: 0},
		{src: `max(n > 0 ? boom(n) : 0, 7)`, n: 9, want: 9, wantCalls: 1},
		{src: `-(n > 0 ? 1 : boom("2"))`, n: 1, want: -1, wantCalls: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			calls = 0
			expr, diags := hclsyntax.ParseExpression([]byte(tc.src), "test.hcl", hcl.InitialPos)
			require.False(t, diags.HasErrors(), diags.Error())

			hctx.Variables = map[string]cty.Value{"n": cty.NumberIntVal(tc.n)}
			got, diags := compile(expr)(hctx)
			require.False(t, diags.HasErrors(), diags.Error())
			assert.True(t, cty.NumberIntVal(tc.want).Equals(got).True(), "got %#v", got)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestCompile_InvalidCondition(t *testing.T) {
	expr, diags := hclsyntax.ParseExpression([]byte(`"maybe" ? 1 : 2`), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors())

	_, diags = compile(expr)(builtinContext)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "Incorrect condition type")
}
