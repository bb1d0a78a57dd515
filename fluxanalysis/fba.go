package fluxanalysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
)

// FluxBalance maximizes the flux of objective and returns the flux of every
// active reaction at the optimum.
//
// Infeasibility is returned as *InfeasibleError.
func FluxBalance(ctx context.Context, model *metabolic.Model, solver lp.Solver, objective string, opts ...Option) (map[string]float64, error) {
	fp, err := NewFluxProblem(model, solver, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := fp.Maximize(ctx, objective); err != nil {
		return nil, wrapInfeasible(objective, err)
	}

	return fp.Fluxes(), nil
}

// FluxMinimization maximizes objective, holds it at the optimum and returns
// the fluxes of minimal weighted L1 norm.
func FluxMinimization(ctx context.Context, model *metabolic.Model, solver lp.Solver, objective string, opts ...Option) (map[string]float64, error) {
	fp, err := NewFluxProblem(model, solver, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := fp.MaximizeThenMinimizeL1(ctx, objective); err != nil {
		return nil, wrapInfeasible(objective, err)
	}

	return fp.Fluxes(), nil
}

// Range is the feasible flux interval of a reaction.
type Range struct {
	Min, Max float64
}

// FluxVariability fixes the objective at ≥ fraction·optimum and returns the
// minimal and maximal flux of every active reaction.
func FluxVariability(ctx context.Context, model *metabolic.Model, solver lp.Solver, objective string, fraction float64, opts ...Option) (map[string]Range, error) {
	if !(fraction >= 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidFraction, fraction)
	}
	fp, err := NewFluxProblem(model, solver, opts...)
	if err != nil {
		return nil, err
	}
	opt, err := fp.Maximize(ctx, objective)
	if err != nil {
		return nil, wrapInfeasible(objective, err)
	}

	obj := fp.v.MustVar(objective)
	floor := fraction*opt - optimumSlack*math.Max(1, math.Abs(opt))
	if _, err := fp.prob.AddConstraints(lp.GreaterEq(lp.Sum(obj), floor)); err != nil {
		return nil, err
	}

	out := make(map[string]Range, fp.v.Len())
	for _, id := range model.Reactions() {
		v := fp.v.MustVar(id)
		var rg Range
		for _, sense := range []lp.Sense{lp.Minimize, lp.Maximize} {
			fp.prob.SetObjective(lp.Sum(v), sense)
			r, err := fp.prob.Solve(ctx)
			if err != nil {
				return nil, fmt.Errorf("fluxanalysis: variability of %q: %w", id, err)
			}
			if sense == lp.Minimize {
				rg.Min = r.Value(v)
			} else {
				rg.Max = r.Value(v)
			}
		}
		out[id] = rg
		fp.opts.Logger.Debug("flux range", slog.String("reaction", id),
			slog.Float64("min", rg.Min), slog.Float64("max", rg.Max))
	}

	return out, nil
}

func wrapInfeasible(objective string, err error) error {
	if errors.Is(err, lp.ErrInfeasible) {
		return &InfeasibleError{Objective: objective, Err: err}
	}
	return err
}
