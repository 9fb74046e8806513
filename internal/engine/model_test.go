package engine

import (
	"context"
	"testing"

	"github.com/specialistvlad/cellgridgo/internal/source"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/testutil"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func rateDefinitions(t *testing.T) (base, derived *space.Definition) {
	t.Helper()
	rate := func(r float64) space.Formula {
		return space.IndexFormula(func(context.Context, space.Scope, int) (float64, error) { return r, nil })
	}
	base = space.New("Base").
		Ref("amount", value.Int(1000)).
		Cell("rate", rate(0.01), "t").
		Cell("charge", space.IndexFormula(func(ctx context.Context, s space.Scope, t int) (float64, error) {
			r, err := space.FloatAt(ctx, s, "rate", t)
			if err != nil {
				return 0, err
			}
			a, err := space.RefFloat(ctx, s, "amount")
			return r * a, err
		}), "t").
		MustBuild()
	derived = space.New("Derived").
		Base(base).
		Cell("rate", rate(0.02), "t").
		MustBuild()
	return base, derived
}

func TestModel_InheritanceOverride(t *testing.T) {
	ctx := context.Background()
	base, derived := rateDefinitions(t)
	m := New()
	_, err := m.AddSpace(ctx, base)
	require.NoError(t, err)
	_, err = m.AddSpace(ctx, derived)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, evalFloat(t, m, "Base.charge", value.Int(0)), 1e-9)
	assert.InDelta(t, 20.0, evalFloat(t, m, "Derived.charge", value.Int(0)), 1e-9, "inherited formula calls the overriding rate")
	assert.Equal(t, []string{"Base", "Derived"}, m.Spaces())
}

func TestModel_Instantiate(t *testing.T) {
	ctx := context.Background()
	base, _ := rateDefinitions(t)
	m := New()

	_, err := m.Instantiate(ctx, "Stressed", base,
		map[string]space.Formula{"rate": space.Const(value.Float(0.5))},
		map[string]cty.Value{"amount": value.Int(10)},
	)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, evalFloat(t, m, "Stressed.charge", value.Int(7)), 1e-9)

	_, err = m.Instantiate(ctx, "Stressed", base, nil, nil)
	assert.ErrorContains(t, err, "already exists")

	_, err = m.Instantiate(ctx, "not a name", base, nil, nil)
	assert.Error(t, err)

	_, err = m.Instantiate(ctx, "Bad", base, map[string]space.Formula{"missing": space.Const(value.Int(1))}, nil)
	var undefined *UndefinedNameError
	assert.ErrorAs(t, err, &undefined)
}

func TestModel_ResolveErrors(t *testing.T) {
	base, _ := rateDefinitions(t)
	m := New()
	_, err := m.AddSpace(context.Background(), base)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		ref     string
		args    []cty.Value
		wantErr any
	}{
		{name: "unknown cell", ref: "Base.nope", args: []cty.Value{value.Int(1)}, wantErr: new(*UndefinedNameError)},
		{name: "unknown space", ref: "Nope.rate", args: []cty.Value{value.Int(1)}, wantErr: new(*UndefinedNameError)},
		{name: "reference read as a cell", ref: "Base.amount", wantErr: new(*KindError)},
		{name: "cell used as a child", ref: "Base.rate[1].x", wantErr: new(*KindError)},
		{name: "keyed root", ref: "Base[1].rate", args: []cty.Value{value.Int(1)}, wantErr: new(*RefError)},
		{name: "keyed cell", ref: "Base.rate[1]", wantErr: new(*RefError)},
		{name: "bare space", ref: "Base", wantErr: new(*RefError)},
		{name: "bad syntax", ref: "Base.rate[", wantErr: new(*RefError)},
		{name: "wrong arity", ref: "Base.rate", wantErr: new(*ArityError)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Eval(context.Background(), tc.ref, tc.args...)
			require.ErrorAs(t, err, tc.wantErr)
		})
	}
}

func TestModel_LookupSource(t *testing.T) {
	tables := source.NewTables()
	tables.Put("mort", map[int]float64{30: 0.001, 31: 0.0012})

	def := space.New("S").
		Cell("q", func(ctx context.Context, s space.Scope, args []cty.Value) (cty.Value, error) {
			return s.Lookup(ctx, "mort", args[0])
		}, "age").
		MustBuild()

	t.Run("configured", func(t *testing.T) {
		m := New(WithSource(tables))
		_, err := m.AddSpace(context.Background(), def)
		require.NoError(t, err)
		assert.InDelta(t, 0.0012, evalFloat(t, m, "S.q", value.Int(31)), 1e-12)

		_, err = m.Eval(context.Background(), "S.q", value.Int(99))
		assert.ErrorIs(t, err, source.ErrNoKey)
	})

	t.Run("missing", func(t *testing.T) {
		m := New()
		_, err := m.AddSpace(context.Background(), def)
		require.NoError(t, err)
		_, err = m.Eval(context.Background(), "S.q", value.Int(31))
		assert.ErrorContains(t, err, "no value source")
	})
}

func TestModel_LogsEvaluations(t *testing.T) {
	ctx, logs := testutil.NewContext(t)
	base, _ := rateDefinitions(t)
	m := New()
	_, err := m.AddSpace(ctx, base)
	require.NoError(t, err)

	_, err = m.Eval(ctx, "Base.charge", value.Int(1))
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "Space instantiated.")
	assert.Contains(t, out, "Evaluation started.")
	assert.Contains(t, out, "eval_id=")
	assert.Contains(t, out, "cell=Base.rate")
}
