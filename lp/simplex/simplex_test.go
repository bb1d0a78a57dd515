package simplex_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/lp/simplex"
)

const eps = 1e-6

func define(t *testing.T, p lp.Problem, name string, lo, hi float64, opts ...lp.VarOption) lp.Var {
	t.Helper()
	v, err := p.Define(name, lo, hi, opts...)
	require.NoError(t, err)

	return v
}

func TestSolve_Maximize(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 0, lp.Inf)
	y := define(t, p, "y", 0, lp.Inf)

	_, err := p.AddConstraints(
		lp.LessEq(lp.NewExpression(lp.Term{Var: x, Coeff: 1}, lp.Term{Var: y, Coeff: 2}), 4),
		lp.LessEq(lp.NewExpression(lp.Term{Var: x, Coeff: 3}, lp.Term{Var: y, Coeff: 1}), 6),
	)
	require.NoError(t, err)
	p.SetObjective(lp.Sum(x, y), lp.Maximize)

	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.6, r.Value(x), eps)
	assert.InDelta(t, 1.2, r.Value(y), eps)
	assert.InDelta(t, 2.8, r.Objective(), eps)
	assert.Same(t, r, p.Result())
}

func TestSolve_FreeAndUpperOnlyVariables(t *testing.T) {
	p := simplex.New().CreateProblem()
	free := define(t, p, "free", math.Inf(-1), lp.Inf)
	capped := define(t, p, "capped", math.Inf(-1), 5)

	_, err := p.AddConstraints(lp.GreaterEq(lp.Sum(free), -3))
	require.NoError(t, err)

	p.SetObjective(lp.Sum(free), lp.Minimize)
	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -3, r.Value(free), eps)

	p.SetObjective(lp.Sum(capped), lp.Maximize)
	r, err = p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5, r.Value(capped), eps)
}

func TestSolve_DependentEqualities(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 0, 10)
	y := define(t, p, "y", 0, 10)

	double := lp.NewExpression(lp.Term{Var: x, Coeff: 2}, lp.Term{Var: y, Coeff: 2})
	_, err := p.AddConstraints(lp.Equal(lp.Sum(x, y), 2), lp.Equal(double, 4))
	require.NoError(t, err)
	p.SetObjective(lp.Sum(x), lp.Minimize)

	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0, r.Value(x), eps)
	assert.InDelta(t, 2, r.Value(y), eps)
}

func TestSolve_Infeasible(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 0, 1)
	y := define(t, p, "y", 0, 1)
	_, err := p.AddConstraints(lp.GreaterEq(lp.Sum(x, y), 3))
	require.NoError(t, err)

	_, err = p.Solve(context.Background())
	require.ErrorIs(t, err, lp.ErrInfeasible)
	assert.Nil(t, p.Result())
}

func TestSolve_FixedVariableConstraint(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 1, 1)
	_, err := p.AddConstraints(lp.GreaterEq(lp.Sum(x), 2))
	require.NoError(t, err)

	_, err = p.Solve(context.Background())
	require.ErrorIs(t, err, lp.ErrInfeasible)
}

func TestSolve_Unbounded(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 0, lp.Inf)
	y := define(t, p, "y", 0, lp.Inf)
	_, err := p.AddConstraints(lp.GreaterEq(lp.Sum(x, y), 1))
	require.NoError(t, err)
	p.SetObjective(lp.Sum(x), lp.Maximize)

	_, err = p.Solve(context.Background())
	require.ErrorIs(t, err, lp.ErrUnbounded)
}

func TestRemoveConstraints(t *testing.T) {
	p := simplex.New().CreateProblem()
	x := define(t, p, "x", 0, 10)
	ids, err := p.AddConstraints(lp.LessEq(lp.Sum(x), 3))
	require.NoError(t, err)
	p.SetObjective(lp.Sum(x), lp.Maximize)

	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3, r.Objective(), eps)

	p.RemoveConstraints(ids...)
	p.RemoveConstraints(ids...)
	r, err = p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10, r.Objective(), eps)
}

func TestDefineErrors(t *testing.T) {
	p := simplex.New().CreateProblem()
	define(t, p, "x", 0, 1)

	_, err := p.Define("x", 0, 1)
	require.ErrorIs(t, err, lp.ErrDuplicateVar)

	_, err = p.Define("bad", 2, 1)
	require.ErrorIs(t, err, lp.ErrInvalidBounds)

	_, err = p.AddConstraints(lp.LessEq(lp.Sum(lp.Var(7)), 1))
	require.ErrorIs(t, err, lp.ErrUnknownVar)

	v, ok := p.Var("x")
	require.True(t, ok)
	require.Equal(t, lp.Var(0), v)
}

func knapsack(t *testing.T, s *simplex.Solver) (lp.Problem, [3]lp.Var) {
	t.Helper()
	p := s.CreateProblem()
	var v [3]lp.Var
	for i, name := range []string{"a", "b", "c"} {
		v[i] = define(t, p, name, 0, 1, lp.Binary())
	}
	weight := lp.NewExpression(
		lp.Term{Var: v[0], Coeff: 3}, lp.Term{Var: v[1], Coeff: 4}, lp.Term{Var: v[2], Coeff: 2})
	_, err := p.AddConstraints(lp.LessEq(weight, 6))
	require.NoError(t, err)
	p.SetObjective(lp.NewExpression(
		lp.Term{Var: v[0], Coeff: 10}, lp.Term{Var: v[1], Coeff: 13}, lp.Term{Var: v[2], Coeff: 7}), lp.Maximize)

	return p, v
}

func TestSolve_BinaryKnapsack(t *testing.T) {
	p, v := knapsack(t, simplex.New())

	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Value(v[0]))
	assert.Equal(t, 1.0, r.Value(v[1]))
	assert.Equal(t, 1.0, r.Value(v[2]))
	assert.InDelta(t, 20, r.Objective(), eps)
}

func TestSolve_NodeLimit(t *testing.T) {
	p, _ := knapsack(t, simplex.New(simplex.WithNodeLimit(1)))

	_, err := p.Solve(context.Background())
	require.ErrorIs(t, err, lp.ErrNodeLimit)
}

func TestSolve_Cancelled(t *testing.T) {
	p, _ := knapsack(t, simplex.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Solve(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOptionsPanics(t *testing.T) {
	require.Panics(t, func() { simplex.WithTolerance(0) })
	require.Panics(t, func() { simplex.WithIntegralityTolerance(math.Inf(1)) })
	require.Panics(t, func() { simplex.WithNodeLimit(-1) })
	require.Equal(t, simplex.DefaultOptions(), simplex.New().Options())
}
