package value

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// TypeError reports a value that does not have the shape a caller needs.
type TypeError struct {
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// Float wraps a float64 as a cty number.
func Float(f float64) cty.Value { return cty.NumberFloatVal(f) }

// Int wraps an int as a cty number.
func Int(i int) cty.Value { return cty.NumberIntVal(int64(i)) }

// Ints wraps every int as a cty number.
func Ints(is ...int) []cty.Value {
	out := make([]cty.Value, len(is))
	for i, v := range is {
		out[i] = Int(v)
	}
	return out
}

// FromGo converts a plain Go value into its implied cty value.
func FromGo(v any) (cty.Value, error) {
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot infer type of %T: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}

// ToFloat reads a number (or a string holding one) as a float64.
func ToFloat(v cty.Value) (float64, error) {
	n, err := number(v)
	if err != nil {
		return 0, err
	}
	f, _ := n.AsBigFloat().Float64()
	return f, nil
}

// ToInt reads a whole number as an int.
func ToInt(v cty.Value) (int, error) {
	n, err := number(v)
	if err != nil {
		return 0, err
	}
	bf := n.AsBigFloat()
	if !bf.IsInt() {
		return 0, &TypeError{Want: "whole number", Got: bf.Text('g', -1)}
	}
	i, acc := bf.Int64()
	if acc != big.Exact {
		return 0, &TypeError{Want: "int-sized number", Got: bf.Text('g', -1)}
	}
	return int(i), nil
}

func number(v cty.Value) (cty.Value, error) {
	if !v.IsKnown() || v.IsNull() {
		return cty.NilVal, &TypeError{Want: "number", Got: describe(v)}
	}
	n, err := convert.Convert(v, cty.Number)
	if err != nil {
		return cty.NilVal, &TypeError{Want: "number", Got: v.Type().FriendlyName()}
	}
	return n, nil
}

func describe(v cty.Value) string {
	switch {
	case v == cty.NilVal:
		return "nothing"
	case !v.IsKnown():
		return "unknown"
	case v.IsNull():
		return "null"
	default:
		return v.Type().FriendlyName()
	}
}

// ToGo converts a cty value into plain Go data: float64, string, bool,
// []any and map[string]any. Null and unknown values become nil.
func ToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := []any{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}

// Format renders an argument tuple for logs and error messages, e.g. "(3, \"a\")".
func Format(args []cty.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FormatValue renders a single value for logs.
func FormatValue(v cty.Value) string {
	if v == cty.NilVal {
		return "<nil>"
	}
	if !v.IsWhollyKnown() {
		return "<unknown>"
	}
	k, err := Key([]cty.Value{v})
	if err != nil {
		return fmt.Sprintf("[unloggable cty.Value: %v]", err)
	}
	return k
}
