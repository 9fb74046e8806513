package inmemorytopology

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencies(t *testing.T) {
	s := New()
	ctx := context.Background()

	// b(1) read a(0) and a(1); c read b(1).
	require.NoError(t, s.AddDependencies(ctx, "M.b(1)", "M.a(0)", "M.a(1)"))
	require.NoError(t, s.AddDependencies(ctx, "M.c()", "M.b(1)"))

	deps, err := s.DependenciesOf(ctx, "M.b(1)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"M.a(0)", "M.a(1)"}, deps)

	dependents, err := s.DependentsOf(ctx, "M.a(0)")
	require.NoError(t, err)
	assert.Equal(t, []string{"M.b(1)"}, dependents)

	none, err := s.DependentsOf(ctx, "M.unknown()")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, 3, s.Len(ctx))
}

func TestAddDependencies_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AddDependencies(ctx, "M.b(1)", "M.a(0)"))
	require.NoError(t, s.AddDependencies(ctx, "M.b(1)", "M.a(0)"))
	assert.Equal(t, 1, s.Len(ctx))

	require.NoError(t, s.AddDependencies(ctx, "M.b(1)"))
	assert.Equal(t, 1, s.Len(ctx))
}

func TestAddDependencies_RejectsSelfEdge(t *testing.T) {
	s := New()
	err := s.AddDependencies(context.Background(), "M.a(0)", "M.b(0)", "M.a(0)")
	require.Error(t, err)
	assert.Equal(t, 0, s.Len(context.Background()), "a failed batch must not be partially applied")
}

func TestRemoveNode(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddDependencies(ctx, "M.b(1)", "M.a(0)"))
	require.NoError(t, s.AddDependencies(ctx, "M.c()", "M.b(1)"))
	require.NoError(t, s.AddDependencies(ctx, "M.d()", "M.a(0)"))

	n, err := s.RemoveNode(ctx, "M.b(1)")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.Len(ctx))
}

func TestRemoveSubtree(t *testing.T) {
	s := New()
	ctx := context.Background()

	// The instance P[3] read the parent's age(3); cells inside it read each
	// other and a parent reference; the parent read a cell inside it.
	require.NoError(t, s.AddDependencies(ctx, "R.P[3]", "R.age(3)"))
	require.NoError(t, s.AddDependencies(ctx, "R.P[3].x(1)", "R.P[3].x(0)", "R.P[3]#term_m"))
	require.NoError(t, s.AddDependencies(ctx, "R.cr(3)", "R.P[3].x(1)"))
	// A sibling whose address shares a textual prefix must survive.
	require.NoError(t, s.AddDependencies(ctx, "R.P[30].x(0)", "R.P[30]#term_m"))
	require.NoError(t, s.AddDependencies(ctx, "R.cr(30)", "R.P[30].x(0)"))

	n, err := s.RemoveSubtree(ctx, "R.P[3]")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, s.Len(ctx))

	deps, err := s.DependenciesOf(ctx, "R.cr(30)")
	require.NoError(t, err)
	assert.Equal(t, []string{"R.P[30].x(0)"}, deps)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	numGoroutines := 50
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			to := fmt.Sprintf("M.f(%d)", i)
			if err := s.AddDependencies(ctx, to, fmt.Sprintf("M.g(%d)", i), "M#shared"); err != nil {
				t.Errorf("failed to add dependencies: %v", err)
			}
		}(i)
	}
	wg.Wait()

	dependents, err := s.DependentsOf(ctx, "M#shared")
	require.NoError(t, err)
	assert.Len(t, dependents, numGoroutines)
	assert.Equal(t, 2*numGoroutines, s.Len(ctx))
}
