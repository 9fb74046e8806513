package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Key reduces an argument tuple to its canonical string form.
// The empty tuple has the empty key.
func Key(args []cty.Value) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := writeKey(&sb, arg); err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return sb.String(), nil
}

// MustKey is Key for arguments known to be valid, such as literals in tests.
func MustKey(args ...cty.Value) string {
	k, err := Key(args)
	if err != nil {
		panic(err)
	}
	return k
}

func writeKey(sb *strings.Builder, v cty.Value) error {
	if !v.IsWhollyKnown() {
		return &TypeError{Want: "known value", Got: "unknown"}
	}
	if v.IsNull() {
		sb.WriteString("null")
		return nil
	}
	v, _ = v.Unmark()

	ty := v.Type()
	switch {
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.Sign() == 0 {
			sb.WriteByte('0')
			return nil
		}
		sb.WriteString(bf.Text('g', -1))
	case ty == cty.String:
		sb.WriteString(strconv.Quote(v.AsString()))
	case ty == cty.Bool:
		sb.WriteString(strconv.FormatBool(v.True()))
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		sb.WriteByte('[')
		i := 0
		for it := v.ElementIterator(); it.Next(); i++ {
			if i > 0 {
				sb.WriteByte(',')
			}
			_, elem := it.Element()
			if err := writeKey(sb, elem); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case ty.IsObjectType() || ty.IsMapType():
		m := v.AsValueMap()
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteByte('{')
		for i, name := range names {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(name))
			sb.WriteByte('=')
			if err := writeKey(sb, m[name]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return &TypeError{Want: "number, string, bool or collection", Got: ty.FriendlyName()}
	}
	return nil
}
