package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestKey(t *testing.T) {
	testCases := []struct {
		name     string
		args     []cty.Value
		expected string
	}{
		{name: "no arguments", args: nil, expected: ""},
		{name: "integer", args: []cty.Value{cty.NumberIntVal(3)}, expected: "3"},
		{name: "float with fraction", args: []cty.Value{cty.NumberFloatVal(0.5)}, expected: "0.5"},
		{name: "negative zero", args: []cty.Value{cty.NumberFloatVal(-0.0)}, expected: "0"},
		{name: "string is quoted", args: []cty.Value{cty.StringVal("3")}, expected: `"3"`},
		{name: "bool", args: []cty.Value{cty.True}, expected: "true"},
		{name: "null", args: []cty.Value{cty.NullVal(cty.Number)}, expected: "null"},
		{name: "several arguments", args: []cty.Value{cty.NumberIntVal(1), cty.StringVal("x")}, expected: `1,"x"`},
		{
			name:     "tuple",
			args:     []cty.Value{cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)})},
			expected: "[1,2]",
		},
		{
			name: "object keys are sorted",
			args: []cty.Value{cty.ObjectVal(map[string]cty.Value{
				"b": cty.NumberIntVal(2),
				"a": cty.NumberIntVal(1),
			})},
			expected: `{"a"=1,"b"=2}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k, err := Key(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, k)
		})
	}
}

func TestKey_IntegerAndFloatCollide(t *testing.T) {
	assert.Equal(t, MustKey(cty.NumberIntVal(3)), MustKey(cty.NumberFloatVal(3.0)))
	assert.NotEqual(t, MustKey(cty.NumberIntVal(3)), MustKey(cty.StringVal("3")))
}

func TestKey_RejectsUnknown(t *testing.T) {
	_, err := Key([]cty.Value{cty.UnknownVal(cty.Number)})
	require.Error(t, err)

	var typeErr *TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestToInt(t *testing.T) {
	i, err := ToInt(cty.NumberFloatVal(12))
	require.NoError(t, err)
	assert.Equal(t, 12, i)

	i, err = ToInt(cty.StringVal("7"))
	require.NoError(t, err)
	assert.Equal(t, 7, i)

	_, err = ToInt(cty.NumberFloatVal(1.5))
	require.Error(t, err)

	_, err = ToInt(cty.True)
	require.Error(t, err)

	_, err = ToInt(cty.NullVal(cty.Number))
	require.Error(t, err)
}

func TestToFloat(t *testing.T) {
	f, err := ToFloat(Float(0.0012))
	require.NoError(t, err)
	assert.InDelta(t, 0.0012, f, 1e-15)
}

func TestFromGoAndBack(t *testing.T) {
	v, err := FromGo(map[string]any{})
	require.Error(t, err, "interface-typed maps have no implied cty type")
	assert.Equal(t, cty.NilVal, v)

	v, err = FromGo(42)
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(42)))

	v, err = FromGo([]string{"a", "b"})
	require.NoError(t, err)
	out, err := ToGo(v)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, `(3, "a")`, Format([]cty.Value{cty.NumberIntVal(3), cty.StringVal("a")}))
	assert.Equal(t, "()", Format(nil))
	assert.Equal(t, "<unknown>", FormatValue(cty.UnknownVal(cty.Number)))
}
