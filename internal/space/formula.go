package space

import (
	"context"
	"fmt"

	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Const is a formula that ignores its arguments.
func Const(v cty.Value) Formula {
	return func(context.Context, Scope, []cty.Value) (cty.Value, error) {
		return v, nil
	}
}

// IndexFormula adapts a numeric function of one whole-number argument, the
// usual shape of a time-indexed projection cell.
func IndexFormula(fn func(ctx context.Context, s Scope, t int) (float64, error)) Formula {
	return func(ctx context.Context, s Scope, args []cty.Value) (cty.Value, error) {
		if len(args) != 1 {
			return cty.NilVal, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		t, err := value.ToInt(args[0])
		if err != nil {
			return cty.NilVal, err
		}
		f, err := fn(ctx, s, t)
		if err != nil {
			return cty.NilVal, err
		}
		return value.Float(f), nil
	}
}

// Float evaluates a cell through s and reads the result as a float64.
func Float(ctx context.Context, s Scope, cell string, args ...cty.Value) (float64, error) {
	v, err := s.Cell(ctx, cell, args...)
	if err != nil {
		return 0, err
	}
	return value.ToFloat(v)
}

// FloatAt is Float for a cell taking one whole-number argument.
func FloatAt(ctx context.Context, s Scope, cell string, t int) (float64, error) {
	return Float(ctx, s, cell, value.Int(t))
}

// RefFloat reads a reference through s as a float64.
func RefFloat(ctx context.Context, s Scope, name string) (float64, error) {
	v, err := s.Ref(ctx, name)
	if err != nil {
		return 0, err
	}
	return value.ToFloat(v)
}

// RefInt reads a reference through s as an int.
func RefInt(ctx context.Context, s Scope, name string) (int, error) {
	v, err := s.Ref(ctx, name)
	if err != nil {
		return 0, err
	}
	return value.ToInt(v)
}
