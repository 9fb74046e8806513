package space

import (
	"context"
	"testing"

	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func base(t *testing.T) *Definition {
	t.Helper()
	def, err := New("Term").
		Ref("premium", value.Int(1300)).
		Cell("q_x", Const(value.Float(0.001)), "t").
		Cell("premiums", Const(value.Int(1)), "t").
		Build()
	require.NoError(t, err)
	return def
}

func TestResolve_Inheritance(t *testing.T) {
	term := base(t)
	prudent, err := New("PrudentTerm").
		Base(term).
		Cell("q_x", Const(value.Float(0.0012)), "t").
		Build()
	require.NoError(t, err)

	t.Run("derived layer shadows base", func(t *testing.T) {
		m, err := prudent.Resolve("q_x")
		require.NoError(t, err)
		assert.Equal(t, KindCell, m.Kind)
		assert.Same(t, prudent, m.Owner)

		v, err := m.Cell.Formula(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.True(t, v.RawEquals(value.Float(0.0012)))
	})

	t.Run("falls back to base", func(t *testing.T) {
		m, err := prudent.Resolve("premiums")
		require.NoError(t, err)
		assert.Same(t, term, m.Owner)

		m, err = prudent.Resolve("premium")
		require.NoError(t, err)
		assert.Equal(t, KindRef, m.Kind)
		assert.True(t, m.Ref.RawEquals(value.Int(1300)))
	})

	t.Run("base is untouched", func(t *testing.T) {
		m, err := term.Resolve("q_x")
		require.NoError(t, err)
		assert.Same(t, term, m.Owner)
	})

	t.Run("undefined name", func(t *testing.T) {
		_, err := prudent.Resolve("nope")
		var undef *UndefinedNameError
		require.ErrorAs(t, err, &undef)
		assert.Equal(t, "PrudentTerm", undef.Space)
		assert.Equal(t, "nope", undef.Name)
	})

	assert.True(t, prudent.IsA(term))
	assert.False(t, term.IsA(prudent))
}

func TestFlatten_KeepsOrderAndReplacesInPlace(t *testing.T) {
	term := base(t)
	prudent := New("PrudentTerm").
		Base(term).
		Cell("extra", Const(cty.True)).
		Cell("q_x", Const(value.Float(0.0012)), "t").
		MustBuild()

	var names []string
	for _, m := range prudent.Flatten() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"premium", "q_x", "premiums", "extra"}, names)
	assert.Equal(t, []string{"q_x", "premiums", "extra"}, prudent.CellNames())

	m := prudent.Flatten()[1]
	assert.Same(t, prudent, m.Owner)
}

func TestBuild_ReportsAllProblems(t *testing.T) {
	_, err := New("Bad").
		Cell("dup", Const(cty.True)).
		Ref("dup", cty.True).
		Cell("no_formula", nil).
		Cell("1bad", Const(cty.True)).
		Child("kid", nil, nil).
		Build()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `"dup" is already declared as a cell`)
	assert.Contains(t, msg, `cell "no_formula" has no formula`)
	assert.Contains(t, msg, `invalid member name "1bad"`)
	assert.Contains(t, msg, `child "kid" has no space definition`)
}

func TestChildDef_Static(t *testing.T) {
	inner := New("Inner").MustBuild()
	mapping := func(context.Context, Scope, []cty.Value) (Params, error) { return Params{}, nil }

	outer := New("Outer").
		StaticChild("Fixed", inner).
		Child("Keyed", inner, mapping, "t").
		MustBuild()

	m, err := outer.Resolve("Fixed")
	require.NoError(t, err)
	assert.True(t, m.Child.Static())

	m, err = outer.Resolve("Keyed")
	require.NoError(t, err)
	assert.False(t, m.Child.Static())
	assert.Equal(t, []string{"t"}, m.Child.KeyParams)

	_, err = New("Broken").Child("K", inner, mapping).Build()
	require.Error(t, err, "a mapping without key parameters is rejected")
}
