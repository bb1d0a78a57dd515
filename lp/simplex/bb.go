package simplex

import (
	"context"
	"errors"
	"math"

	"github.com/katalvlaran/metnet/lp"
)

// bbEngine holds the branch-and-bound search state.
type bbEngine struct {
	p        *problem
	ctx      context.Context
	cons     []lp.Constraint
	binaries []int

	nodes    int
	limitHit bool

	// Incumbent, objective stored in minimization terms.
	best    []float64
	bestObj float64
}

// run searches from the root bounds and returns the best integral solution.
func (e *bbEngine) run(lower, upper []float64) ([]float64, error) {
	if err := e.node(lower, upper); err != nil {
		return nil, err
	}
	switch {
	case e.best != nil:
		return e.best, nil
	case e.limitHit:
		return nil, lp.ErrNodeLimit
	default:
		return nil, lp.ErrInfeasible
	}
}

// signed converts an objective value to minimization terms.
func (e *bbEngine) signed(obj float64) float64 {
	if e.p.sense == lp.Maximize {
		return -obj
	}
	return obj
}

func (e *bbEngine) node(lower, upper []float64) error {
	if limit := e.p.opts.NodeLimit; limit > 0 && e.nodes >= limit {
		e.limitHit = true
		return nil
	}
	e.nodes++
	if err := e.ctx.Err(); err != nil {
		return err
	}

	x, err := e.p.relax(e.ctx, lower, upper, e.cons)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil
	case err != nil:
		return err
	}

	z := e.signed(e.p.objectiveAt(x))
	if e.best != nil && z >= e.bestObj-1e-9*math.Max(1, math.Abs(e.bestObj)) {
		return nil
	}

	branch, frac := -1, e.p.opts.IntegralityTolerance
	for _, i := range e.binaries {
		if f := math.Min(x[i], 1-x[i]); f > frac {
			branch, frac = i, f
		}
	}

	if branch < 0 {
		for _, i := range e.binaries {
			x[i] = math.Round(x[i])
		}
		e.best = x
		e.bestObj = e.signed(e.p.objectiveAt(x))
		return nil
	}

	first := 0.0
	if x[branch] >= 0.5 {
		first = 1
	}
	for _, side := range []float64{first, 1 - first} {
		lo := append([]float64(nil), lower...)
		hi := append([]float64(nil), upper...)
		lo[branch], hi[branch] = side, side
		if err := e.node(lo, hi); err != nil {
			return err
		}
		if e.limitHit {
			return nil
		}
	}

	return nil
}
