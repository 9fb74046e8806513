package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/specialistvlad/cellgridgo/internal/termmodel"
	"github.com/specialistvlad/cellgridgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearModel = `
space "Line" {
  refs = { slope = 2 }

  cell "value" {
    params  = ["t"]
    formula = slope * t
  }
  cell "shifted" {
    params  = ["t"]
    formula = value(t) + 1
  }
  cell "fragile" {
    params  = ["t"]
    formula = t == 2 ? lookup("missing", t) : t
  }
  cell "area" {
    params  = ["w", "h"]
    formula = w * h
  }
}
`

func newTestApp(t *testing.T, cfg Config) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()
	cfg.LogLevel = "debug"
	c, err := NewConfig(cfg)
	require.NoError(t, err)

	out, logs := &testutil.SafeBuffer{}, &testutil.SafeBuffer{}
	a := NewApp(out, logs, c)
	return a, out, logs
}

func TestRun_BuiltinModel(t *testing.T) {
	a, out, logs := newTestApp(t, Config{From: 0, To: 3, Workers: 2})
	require.NoError(t, a.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1+3+2, "header, three rows and two totals")
	assert.Contains(t, lines[0], "capital_requirement")
	assert.Contains(t, lines[0], "term_remaining")
	assert.True(t, strings.HasPrefix(lines[4], "total net_cashflow: "))
	assert.True(t, strings.HasPrefix(lines[5], "total capital_change: "))
	assert.Contains(t, logs.String(), "No model paths given")
	assert.Contains(t, logs.String(), "Evaluation finished.")
}

func TestRun_HCLModel(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"line.hcl": linearModel})

	t.Run("selected cells and totals", func(t *testing.T) {
		a, out, _ := newTestApp(t, Config{
			ModelPaths: []string{dir},
			Space:      "Line",
			Cells:      []string{"value", "shifted"},
			Totals:     []string{"value", "shifted"},
			From:       0,
			To:         4,
		})
		require.NoError(t, a.Run(context.Background()))

		text := out.String()
		assert.Contains(t, text, "total value: 12\n")
		assert.Contains(t, text, "total shifted: 16\n")
		assert.Equal(t, []string{"Line"}, a.Engine().Spaces())
	})

	t.Run("partial results on failure", func(t *testing.T) {
		a, out, _ := newTestApp(t, Config{
			ModelPaths: []string{dir},
			Space:      "Line",
			To:         4,
		})
		err := a.Run(context.Background())
		require.Error(t, err)
		assert.ErrorContains(t, err, "fragile(2)")

		header := strings.SplitN(out.String(), "\n", 2)[0]
		assert.Contains(t, header, "fragile")
		assert.NotContains(t, header, "area", "two-argument cells are not tabulated by default")
		assert.Contains(t, out.String(), "ERR")
	})

	t.Run("total of a cell outside the table", func(t *testing.T) {
		a, out, _ := newTestApp(t, Config{
			ModelPaths: []string{dir},
			Space:      "Line",
			Cells:      []string{"shifted"},
			Totals:     []string{"value"},
			To:         3,
		})
		require.NoError(t, a.Run(context.Background()))
		assert.Contains(t, out.String(), "total value: 6\n")
	})
}

func TestRun_Errors(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"line.hcl": linearModel})

	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "unknown space",
			cfg:  Config{ModelPaths: []string{dir}, Space: "Nope", To: 1},
			want: `space "Nope" is not defined`,
		},
		{
			name: "unknown cell",
			cfg:  Config{ModelPaths: []string{dir}, Space: "Line", Cells: []string{"nope"}, To: 1},
			want: "nope",
		},
		{
			name: "cell with two arguments",
			cfg:  Config{ModelPaths: []string{dir}, Space: "Line", Cells: []string{"area"}, To: 1},
			want: "only one-argument cells",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, _, _ := newTestApp(t, tc.cfg)
			require.ErrorContains(t, a.Run(context.Background()), tc.want)
		})
	}
}

func TestRun_NegativeStartFailsPerEntry(t *testing.T) {
	a, out, _ := newTestApp(t, Config{From: -1, To: 2, Cells: []string{"num_pols_if"}, Totals: []string{"num_pols_if"}})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, termmodel.ErrNegativeTime)
	assert.ErrorContains(t, err, "num_pols_if(-1)")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1+3, "header and three rows, no total")
	assert.Equal(t, []string{"0", "1"}, strings.Fields(lines[2]), "later rows still evaluate")
}

func TestNewApp_PanicsOnBadModel(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"bad.hcl": `space "S" { cell "x" { formula = y } }`})
	cfg, err := NewConfig(Config{ModelPaths: []string{dir}})
	require.NoError(t, err)

	assert.Panics(t, func() {
		NewApp(&testutil.SafeBuffer{}, &testutil.SafeBuffer{}, cfg)
	})
}

func TestHandler(t *testing.T) {
	a, _, logs := newTestApp(t, Config{To: 2, Cells: []string{"num_pols_if"}})
	require.NoError(t, a.Run(context.Background()))

	rec := httptest.NewRecorder()
	a.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
	assert.Contains(t, logs.String(), "Health check endpoint hit.")

	rec = httptest.NewRecorder()
	a.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cellgrid_evaluations_total")
}
