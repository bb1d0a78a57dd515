package fastcore

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/katalvlaran/metnet/fluxanalysis"
	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
)

// consistentFraction is the share of ε a tested flux must reach.
const consistentFraction = 0.999

// supportedFraction is the share of ε a core flux must reach in LP7 before
// LP10 forces it to ε.
const supportedFraction = 0.99

// problem is the shared LP state of one FastCC or FastCore run.
type problem struct {
	model   *metabolic.Model
	fp      *fluxanalysis.FluxProblem
	prob    lp.Problem
	epsilon float64
	logger  *slog.Logger

	zl *lp.Namespace // LP7 indicators in [0, ε]
	z  *lp.Namespace // LP10 |v| bounds

	flipped map[string]bool
	last    *lp.Result
}

func newProblem(model *metabolic.Model, solver lp.Solver, epsilon float64, logger *slog.Logger) (*problem, error) {
	fp, err := fluxanalysis.NewFluxProblem(model, solver, fluxanalysis.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	p := &problem{
		model:   model,
		fp:      fp,
		prob:    fp.Problem(),
		epsilon: epsilon,
		logger:  logger,
		flipped: make(map[string]bool),
	}
	for _, id := range model.Reactions() {
		l, err := model.Limits(id)
		if err != nil {
			return nil, err
		}
		if l.Lower < 0 && l.Upper <= 0 {
			p.flipped[id] = true
		}
	}

	return p, nil
}

func (p *problem) flip(ids []string) {
	for _, id := range ids {
		p.flipped[id] = !p.flipped[id]
	}
}

func (p *problem) v(id string) lp.Var { return p.fp.Namespace().MustVar(id) }

// flux returns the oriented flux of id in the last solve (0 after an
// infeasible solve).
func (p *problem) flux(id string) float64 {
	f := p.fp.Namespace().Value(p.last, id)
	if p.flipped[id] {
		return -f
	}
	return f
}

// absFlux returns |v| of id in the last solve.
func (p *problem) absFlux(id string) float64 {
	return math.Abs(p.fp.Namespace().Value(p.last, id))
}

// solve runs the problem with temporary constraints that are removed
// afterwards. Infeasibility clears the last result and is not an error.
func (p *problem) solve(ctx context.Context, temp []lp.Constraint, obj lp.Expression, sense lp.Sense) error {
	ids, err := p.prob.AddConstraints(temp...)
	if err != nil {
		return err
	}
	defer p.prob.RemoveConstraints(ids...)

	p.prob.SetObjective(obj, sense)
	r, err := p.prob.Solve(ctx)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		p.last = nil
		p.logger.Debug("subproblem infeasible")
		return nil
	case err != nil:
		return err
	}
	p.last = r

	return nil
}

// orient returns v, or −v for flipped reactions.
func (p *problem) orient(id string) lp.Expression {
	sign := 1.0
	if p.flipped[id] {
		sign = -1
	}
	var e lp.Expression
	e.Add(p.v(id), sign)

	return e
}

// lp7 approximately maximizes the number of reactions in subset with flux
// of at least ε in their current orientation.
func (p *problem) lp7(ctx context.Context, subset []string) error {
	if p.zl == nil {
		p.zl = lp.NewNamespace(p.prob, "zl")
		if err := p.zl.DefineAll(p.model.Reactions(), 0, p.epsilon); err != nil {
			return err
		}
	}

	temp := make([]lp.Constraint, 0, len(subset))
	for _, id := range subset {
		e := p.orient(id)
		e.Add(p.zl.MustVar(id), -1)
		temp = append(temp, lp.GreaterEq(e, 0))
	}

	return p.solve(ctx, temp, p.zl.Sum(subset), lp.Maximize)
}

// lp10 forces every reaction in k to carry ε in its orientation and
// minimizes the weighted support of penalty.
func (p *problem) lp10(ctx context.Context, k, penalty []string, weights map[string]float64) error {
	if p.z == nil {
		p.z = lp.NewNamespace(p.prob, "z")
		var cons []lp.Constraint
		for _, id := range p.model.Reactions() {
			zv, err := p.z.Define(id, 0, lp.Inf)
			if err != nil {
				return err
			}
			var up, down lp.Expression
			up.Add(zv, 1).Add(p.v(id), -1)
			down.Add(zv, 1).Add(p.v(id), 1)
			cons = append(cons, lp.GreaterEq(up, 0), lp.GreaterEq(down, 0))
		}
		if _, err := p.prob.AddConstraints(cons...); err != nil {
			return err
		}
	}

	temp := make([]lp.Constraint, 0, len(k))
	for _, id := range k {
		temp = append(temp, lp.GreaterEq(p.orient(id), p.epsilon))
	}
	var obj lp.Expression
	for _, id := range penalty {
		obj.Add(p.z.MustVar(id), weight(weights, id))
	}

	return p.solve(ctx, temp, obj, lp.Minimize)
}

// lp3 maximizes the oriented flux of one reaction.
func (p *problem) lp3(ctx context.Context, id string) error {
	return p.solve(ctx, nil, p.orient(id), lp.Maximize)
}

// findSparseMode returns the support of a sparse mode through as many of the
// core reactions as LP7 can carry, penalizing reactions in penalty.
func (p *problem) findSparseMode(ctx context.Context, core, penalty []string, scaling float64, weights map[string]float64) ([]string, error) {
	if len(core) == 0 {
		return nil, nil
	}
	if err := p.lp7(ctx, core); err != nil {
		return nil, err
	}

	var k []string
	for _, id := range core {
		if p.flux(id) >= supportedFraction*p.epsilon {
			k = append(k, id)
		}
	}
	if len(k) == 0 {
		return nil, nil
	}

	if err := p.lp10(ctx, k, penalty, weights); err != nil {
		return nil, err
	}
	if p.last == nil {
		return nil, nil
	}

	var mode []string
	for _, id := range p.model.Reactions() {
		if p.absFlux(id) >= p.epsilon/scaling {
			mode = append(mode, id)
		}
	}

	return mode, nil
}

func weight(w map[string]float64, id string) float64 {
	if v, ok := w[id]; ok {
		return v
	}
	return 1
}

// idSet is a set of reaction ids with sorted iteration.
type idSet map[string]struct{}

func newIDSet(ids ...string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s idSet) remove(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

// sorted returns the members in ascending order.
func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

// intersects reports whether any member of s is in o.
func (s idSet) intersects(o idSet) bool {
	for id := range s {
		if o.has(id) {
			return true
		}
	}
	return false
}
