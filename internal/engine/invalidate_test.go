package engine

import (
	"context"
	"testing"

	"github.com/specialistvlad/cellgridgo/internal/metrics"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/testutil"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// plusOneModel is A(t) = B(t) + 1 with B(t) = b * t.
func plusOneModel(t *testing.T, counter *testutil.Counter, opts ...Option) *Model {
	t.Helper()
	m, _ := newModel(t, func(b *space.Builder) {
		b.Ref("b", value.Int(2))
		b.Cell("B", counter.Wrap("B", space.IndexFormula(func(ctx context.Context, s space.Scope, t int) (float64, error) {
			f, err := space.RefFloat(ctx, s, "b")
			return f * float64(t), err
		})), "t")
		b.Cell("A", counter.Wrap("A", space.IndexFormula(func(ctx context.Context, s space.Scope, t int) (float64, error) {
			v, err := space.FloatAt(ctx, s, "B", t)
			return v + 1, err
		})), "t")
		b.Cell("other", space.Const(value.Int(0)))
	}, opts...)
	return m
}

func evalFloat(t *testing.T, m *Model, ref string, args ...cty.Value) float64 {
	t.Helper()
	v, err := m.Eval(context.Background(), ref, args...)
	require.NoError(t, err)
	f, err := value.ToFloat(v)
	require.NoError(t, err)
	return f
}

func TestInvalidate_ReferenceChangePropagates(t *testing.T) {
	counter := testutil.NewCounter()
	mt := metrics.New(false)
	m := plusOneModel(t, counter, WithMetrics(mt))
	ctx := context.Background()

	assert.Equal(t, 5.0, evalFloat(t, m, "S.A", value.Int(2)))
	assert.Equal(t, 3.0, evalFloat(t, m, "S.A", value.Int(1)))

	inst, ok := m.Space("S")
	require.True(t, ok)
	require.NoError(t, inst.SetRef(ctx, "b", value.Int(3)))
	assert.Equal(t, 5.0, evalFloat(t, m, "S.A", value.Int(2)), "SetRef alone keeps cached values")

	n, err := m.InvalidateRef(ctx, "S", "b")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "A(1), A(2), B(1) and B(2)")
	assert.Equal(t, 4.0, counterValue(t, mt, "cellgrid_invalidated_entries_total"))

	assert.Equal(t, 7.0, evalFloat(t, m, "S.A", value.Int(2)))
	assert.Equal(t, 2, counter.Calls("A", value.Int(2)))
	assert.Equal(t, 2, counter.Calls("B", value.Int(2)))
}

func TestInvalidate_Cell(t *testing.T) {
	testCases := []struct {
		name        string
		ref         string
		args        []cty.Value
		wantCleared int
		wantA1Calls int
	}{
		{name: "one entry clears its readers", ref: "S.B", args: []cty.Value{value.Int(2)}, wantCleared: 2, wantA1Calls: 1},
		{name: "every entry of a cell", ref: "S.B", wantCleared: 4, wantA1Calls: 2},
		{name: "a reader alone", ref: "S.A", args: []cty.Value{value.Int(1)}, wantCleared: 1, wantA1Calls: 2},
		{name: "an unrelated cell", ref: "S.other", wantCleared: 0, wantA1Calls: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			counter := testutil.NewCounter()
			m := plusOneModel(t, counter)
			evalFloat(t, m, "S.A", value.Int(1))
			evalFloat(t, m, "S.A", value.Int(2))

			n, err := m.Invalidate(context.Background(), tc.ref, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCleared, n)

			assert.Equal(t, 3.0, evalFloat(t, m, "S.A", value.Int(1)))
			assert.Equal(t, 5.0, evalFloat(t, m, "S.A", value.Int(2)))
			assert.Equal(t, tc.wantA1Calls, counter.Calls("A", value.Int(1)))
		})
	}
}

func TestInvalidate_DropsDynamicInstances(t *testing.T) {
	ctx := context.Background()

	t.Run("through the cell the mapping read", func(t *testing.T) {
		m, root := scaledModel(t, nil)
		assert.Equal(t, 60.0, evalFloat(t, m, "P.total"))
		before, err := m.Instance(ctx, "P.Scaled[2]")
		require.NoError(t, err)

		require.NoError(t, root.SetRef(ctx, "base_ref", value.Int(100)))
		n, err := m.InvalidateRef(ctx, "P", "base_ref")
		require.NoError(t, err)
		assert.Equal(t, 4, n, "base, the instance, its value(3) and total")

		reg, err := root.Registry("Scaled")
		require.NoError(t, err)
		assert.Zero(t, reg.Len())

		assert.Equal(t, 600.0, evalFloat(t, m, "P.total"))
		after, err := m.Instance(ctx, "P.Scaled[2]")
		require.NoError(t, err)
		assert.NotSame(t, before, after)
	})

	t.Run("by address", func(t *testing.T) {
		m, root := scaledModel(t, nil)
		assert.Equal(t, 60.0, evalFloat(t, m, "P.total"))
		_, err := m.Instance(ctx, "P.Scaled[3]")
		require.NoError(t, err)

		n, err := m.Invalidate(ctx, "P.Scaled[2]")
		require.NoError(t, err)
		assert.Equal(t, 3, n, "the instance, its value(3) and total")

		reg, err := root.Registry("Scaled")
		require.NoError(t, err)
		assert.Equal(t, 1, reg.Len(), "Scaled[3] is untouched")

		c, err := root.CellHandle("base")
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len(), "what the mapping read stays cached")
	})

	t.Run("missing instance", func(t *testing.T) {
		m, _ := scaledModel(t, nil)
		n, err := m.Invalidate(ctx, "P.Scaled[9].value", value.Int(1))
		require.NoError(t, err)
		assert.Zero(t, n)

		reg, err := m.roots["P"].Registry("Scaled")
		require.NoError(t, err)
		assert.Zero(t, reg.Len(), "invalidation never creates instances")
	})
}

func TestInvalidate_Errors(t *testing.T) {
	m, _ := scaledModel(t, nil)
	ctx := context.Background()

	testCases := []struct {
		name    string
		ref     string
		args    []cty.Value
		wantErr any
	}{
		{name: "unknown name", ref: "P.nothing", wantErr: new(*UndefinedNameError)},
		{name: "unknown space", ref: "Q.base", wantErr: new(*UndefinedNameError)},
		{name: "root only", ref: "P", wantErr: new(*RefError)},
		{name: "malformed", ref: "P..base", wantErr: new(*RefError)},
		{name: "reference with arguments", ref: "P.base_ref", args: []cty.Value{value.Int(1)}, wantErr: new(*KindError)},
		{name: "instance with arguments", ref: "P.Scaled[1]", args: []cty.Value{value.Int(1)}, wantErr: new(*ArityError)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Invalidate(ctx, tc.ref, tc.args...)
			require.ErrorAs(t, err, tc.wantErr)
		})
	}
}

func TestInvalidate_DuringComputationSkipsCaching(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m, inst := newModel(t, func(b *space.Builder) {
		b.Cell("slow", func(context.Context, space.Scope, []cty.Value) (cty.Value, error) {
			close(started)
			<-release
			return value.Int(1), nil
		})
		b.Cell("other", space.Const(value.Int(0)))
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.Eval(context.Background(), "S.slow")
		done <- err
	}()

	<-started
	_, err := m.Invalidate(context.Background(), "S.other")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	c, err := inst.CellHandle("slow")
	require.NoError(t, err)
	assert.Zero(t, c.Len(), "a value computed across an invalidation is not cached")
}

func TestInvalidate_PrunesTopology(t *testing.T) {
	counter := testutil.NewCounter()
	m := plusOneModel(t, counter)
	ctx := context.Background()
	evalFloat(t, m, "S.A", value.Int(2))
	require.Equal(t, 2, m.Topology().Len(ctx), "A(2) <- B(2) <- S#b")

	_, err := m.InvalidateRef(ctx, "S", "b")
	require.NoError(t, err)
	assert.Zero(t, m.Topology().Len(ctx))
}
