package fluxanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// optimumSlack loosens a fixed optimum so the follow-up problem stays
// feasible under solver round-off.
const optimumSlack = 1e-9

// FluxProblem is the flux LP of a model: one bounded variable per active
// reaction and one mass balance per compound.
type FluxProblem struct {
	model *metabolic.Model
	prob  lp.Problem
	v     *lp.Namespace
	z     *lp.Namespace
	opts  Options
}

// NewFluxProblem builds the flux LP of model on a fresh solver problem.
func NewFluxProblem(model *metabolic.Model, solver lp.Solver, opts ...Option) (*FluxProblem, error) {
	o := newOptions(opts)
	fp := &FluxProblem{model: model, prob: solver.CreateProblem(), opts: o}
	fp.v = lp.NewNamespace(fp.prob, "v")

	for _, id := range model.Reactions() {
		l, err := model.Limits(id)
		if err != nil {
			return nil, err
		}
		if _, err := fp.v.Define(id, l.Lower, l.Upper); err != nil {
			return nil, err
		}
	}

	var (
		cons    []lp.Constraint
		current reaction.Compound
		lhs     lp.Expression
		started bool
	)
	flush := func() {
		if !started {
			return
		}
		if o.ImplicitSinks || (o.Sinks != nil && o.Sinks(current)) {
			cons = append(cons, lp.GreaterEq(lhs, 0))
		} else {
			cons = append(cons, lp.Equal(lhs, 0))
		}
	}
	for _, e := range model.Matrix() {
		if !started || e.Compound != current {
			flush()
			current, lhs, started = e.Compound, lp.Expression{}, true
		}
		lhs.Add(fp.v.MustVar(e.Reaction), e.Value)
	}
	flush()

	if _, err := fp.prob.AddConstraints(cons...); err != nil {
		return nil, err
	}
	o.Logger.Debug("flux problem built",
		slog.Int("reactions", fp.v.Len()), slog.Int("balances", len(cons)))

	return fp, nil
}

// Problem exposes the underlying LP for callers adding their own variables
// and constraints.
func (fp *FluxProblem) Problem() lp.Problem { return fp.prob }

// Namespace returns the flux variables keyed by reaction id.
func (fp *FluxProblem) Namespace() *lp.Namespace { return fp.v }

// FluxVar returns the flux variable of id.
func (fp *FluxProblem) FluxVar(id string) (lp.Var, bool) { return fp.v.Var(id) }

// Flux returns the flux of id in the last solution.
func (fp *FluxProblem) Flux(id string) float64 { return fp.v.Value(fp.prob.Result(), id) }

// Fluxes returns every reaction flux of the last solution.
func (fp *FluxProblem) Fluxes() map[string]float64 {
	out := make(map[string]float64, fp.v.Len())
	for _, id := range fp.model.Reactions() {
		out[id] = fp.Flux(id)
	}

	return out
}

func (fp *FluxProblem) fluxVar(id string) (lp.Var, error) {
	v, ok := fp.v.Var(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", metabolic.ErrReactionNotFound, id)
	}
	return v, nil
}

// Maximize solves for the maximal flux of id and returns it.
func (fp *FluxProblem) Maximize(ctx context.Context, id string) (float64, error) {
	v, err := fp.fluxVar(id)
	if err != nil {
		return 0, err
	}
	fp.prob.SetObjective(lp.Sum(v), lp.Maximize)
	r, err := fp.prob.Solve(ctx)
	if err != nil {
		return 0, err
	}

	return r.Value(v), nil
}

// MinimizeL1 minimizes Σ w·|v| under the current constraints. The auxiliary
// variables z ≥ |v| are created on first use.
func (fp *FluxProblem) MinimizeL1(ctx context.Context) error {
	if fp.z == nil {
		fp.z = lp.NewNamespace(fp.prob, "z")
		var cons []lp.Constraint
		for _, id := range fp.model.Reactions() {
			z, err := fp.z.Define(id, 0, lp.Inf)
			if err != nil {
				return err
			}
			v := fp.v.MustVar(id)
			var up, down lp.Expression
			up.Add(z, 1).Add(v, -1)
			down.Add(z, 1).Add(v, 1)
			cons = append(cons, lp.GreaterEq(up, 0), lp.GreaterEq(down, 0))
		}
		if _, err := fp.prob.AddConstraints(cons...); err != nil {
			return err
		}
	}

	var obj lp.Expression
	for _, id := range fp.model.Reactions() {
		obj.Add(fp.z.MustVar(id), weight(fp.opts.Weights, id))
	}
	fp.prob.SetObjective(obj, lp.Minimize)
	_, err := fp.prob.Solve(ctx)

	return err
}

// MaximizeThenMinimizeL1 maximizes id, holds its flux at the optimum and
// minimizes Σ w·|v|. The optimum constraint is removed before returning.
func (fp *FluxProblem) MaximizeThenMinimizeL1(ctx context.Context, id string) (float64, error) {
	opt, err := fp.Maximize(ctx, id)
	if err != nil {
		return 0, err
	}

	v := fp.v.MustVar(id)
	ids, err := fp.prob.AddConstraints(lp.GreaterEq(lp.Sum(v), opt-optimumSlack*math.Max(1, math.Abs(opt))))
	if err != nil {
		return 0, err
	}
	defer fp.prob.RemoveConstraints(ids...)

	if err := fp.MinimizeL1(ctx); err != nil {
		return 0, err
	}

	return opt, nil
}
