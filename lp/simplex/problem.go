package simplex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/metnet/lp"
)

// Solver creates gonum-backed problems.
type Solver struct {
	opts Options
}

// New returns a Solver configured by opts.
func New(opts ...Option) *Solver {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Solver{opts: o}
}

// Options returns the effective configuration.
func (s *Solver) Options() Options { return s.opts }

// CreateProblem returns an empty problem.
func (s *Solver) CreateProblem() lp.Problem {
	return &problem{
		opts:  s.opts,
		names: make(map[string]lp.Var),
		rows:  make(map[lp.ConstraintID]lp.Constraint),
	}
}

type problem struct {
	opts Options

	vars  []lp.VarSpec
	names map[string]lp.Var

	rows    map[lp.ConstraintID]lp.Constraint
	nextRow lp.ConstraintID

	objective lp.Expression
	sense     lp.Sense

	result *lp.Result
}

func (p *problem) Define(name string, lower, upper float64, opts ...lp.VarOption) (lp.Var, error) {
	if _, ok := p.names[name]; ok {
		return 0, fmt.Errorf("%w: %s", lp.ErrDuplicateVar, name)
	}
	spec, err := lp.ResolveVar(name, lower, upper, opts...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsInf(spec.Lower, 1) || math.IsInf(spec.Upper, -1) {
		return 0, fmt.Errorf("%s: %w", name, lp.ErrInvalidBounds)
	}

	v := lp.Var(len(p.vars))
	p.vars = append(p.vars, spec)
	p.names[name] = v

	return v, nil
}

func (p *problem) Var(name string) (lp.Var, bool) {
	v, ok := p.names[name]
	return v, ok
}

func (p *problem) AddConstraints(cs ...lp.Constraint) ([]lp.ConstraintID, error) {
	for _, c := range cs {
		if math.IsNaN(c.RHS) {
			return nil, fmt.Errorf("%w: NaN right-hand side", lp.ErrInvalidBounds)
		}
		for _, t := range c.Expr.Terms() {
			if int(t.Var) < 0 || int(t.Var) >= len(p.vars) {
				return nil, fmt.Errorf("%w: handle %d", lp.ErrUnknownVar, t.Var)
			}
		}
	}

	ids := make([]lp.ConstraintID, len(cs))
	for i, c := range cs {
		id := p.nextRow
		p.nextRow++
		p.rows[id] = lp.Constraint{Expr: c.Expr.Clone(), Rel: c.Rel, RHS: c.RHS}
		ids[i] = id
	}

	return ids, nil
}

func (p *problem) RemoveConstraints(ids ...lp.ConstraintID) {
	for _, id := range ids {
		delete(p.rows, id)
	}
}

func (p *problem) SetObjective(e lp.Expression, sense lp.Sense) {
	p.objective = e.Clone()
	p.sense = sense
}

func (p *problem) Result() *lp.Result { return p.result }

// Solve runs the relaxation, or branch-and-bound when binaries are present.
func (p *problem) Solve(ctx context.Context) (*lp.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, t := range p.objective.Terms() {
		if int(t.Var) < 0 || int(t.Var) >= len(p.vars) {
			return nil, fmt.Errorf("%w: objective handle %d", lp.ErrUnknownVar, t.Var)
		}
	}

	lower := make([]float64, len(p.vars))
	upper := make([]float64, len(p.vars))
	var binaries []int
	for i, s := range p.vars {
		lower[i], upper[i] = s.Lower, s.Upper
		if s.Kind == lp.BinaryKind {
			binaries = append(binaries, i)
		}
	}
	cons := p.constraints()

	var (
		x   []float64
		err error
	)
	if len(binaries) == 0 {
		x, err = p.relax(ctx, lower, upper, cons)
	} else {
		e := &bbEngine{p: p, ctx: ctx, cons: cons, binaries: binaries}
		x, err = e.run(lower, upper)
	}
	if err != nil {
		return nil, err
	}

	r := lp.NewResult(x, 0)
	p.result = lp.NewResult(x, r.Eval(p.objective))

	return p.result, nil
}

// constraints returns the live rows in insertion order.
func (p *problem) constraints() []lp.Constraint {
	ids := make([]lp.ConstraintID, 0, len(p.rows))
	for id := range p.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]lp.Constraint, len(ids))
	for i, id := range ids {
		out[i] = p.rows[id]
	}

	return out
}

// relax solves the continuous relaxation under the given bounds and snaps
// values within tolerance of zero or a bound.
func (p *problem) relax(ctx context.Context, lower, upper []float64, cons []lp.Constraint) ([]float64, error) {
	tol := p.opts.Tolerance
	cost := make([]float64, len(lower))
	for _, t := range p.objective.Terms() {
		cost[t.Var] = t.Coeff
	}
	if p.sense == lp.Maximize {
		floats.Scale(-1, cost)
	}

	x, err := newTableau(lower, upper, cons, tol).solve(ctx, cost)
	if err != nil {
		return nil, err
	}
	for i := range x {
		switch {
		case math.Abs(x[i]-lower[i]) <= tol:
			x[i] = lower[i]
		case math.Abs(x[i]-upper[i]) <= tol:
			x[i] = upper[i]
		case math.Abs(x[i]) <= tol:
			x[i] = 0
		}
	}

	return x, nil
}

func (p *problem) objectiveAt(x []float64) float64 {
	return lp.NewResult(x, 0).Eval(p.objective)
}
