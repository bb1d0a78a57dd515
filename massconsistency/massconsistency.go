// Package massconsistency checks whether the stoichiometry of a model admits
// positive molecular masses.
//
// A model is mass consistent when every compound can be given a mass ≥ 1 such
// that every non-exchange reaction balances: Σ coefficient·mass = 0. Masses
// belong to compound names; compartments are ignored, so a transport reaction
// always balances. Exchange reactions are left out of the balance entirely and
// zero-mass compounds (protons, photons, electrons) are pinned to exactly 0.
package massconsistency

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
)

const (
	// fixSlack loosens the phase-one optimum when it becomes a constraint.
	fixSlack = 1e-9
	// unitTol is how close to 1 a phase-one indicator must be for its
	// compound to keep a mass of at least 1.
	unitTol = 1e-6
)

// Options configures the checks.
type Options struct {
	Exchange map[string]bool
	ZeroMass map[string]bool
	Weights  map[string]float64
	Logger   *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithExchange excludes reactions from the balance.
func WithExchange(ids ...string) Option {
	return func(o *Options) {
		for _, id := range ids {
			o.Exchange[id] = true
		}
	}
}

// WithZeroMass pins the masses of the named compounds to 0.
func WithZeroMass(names ...string) Option {
	return func(o *Options) {
		for _, n := range names {
			o.ZeroMass[n] = true
		}
	}
}

// WithWeights weights the residual of each reaction (default 1).
func WithWeights(w map[string]float64) Option {
	return func(o *Options) { o.Weights = w }
}

// WithLogger routes debug output to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		Exchange: make(map[string]bool),
		ZeroMass: make(map[string]bool),
		Logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// checker holds the mass variables shared by every formulation.
type checker struct {
	model *metabolic.Model
	opts  Options
	prob  lp.Problem
	mass  *lp.Namespace
	names []string
}

// newChecker defines one mass per compound name: [lower(name), ∞) for
// regular compounds and [0, 0] for zero-mass ones.
func newChecker(model *metabolic.Model, solver lp.Solver, o Options, lower func(name string) float64) (*checker, error) {
	c := &checker{model: model, opts: o, prob: solver.CreateProblem()}
	c.mass = lp.NewNamespace(c.prob, "m")

	seen := make(map[string]bool)
	for _, cpd := range model.Compounds() {
		if !seen[cpd.Name] {
			seen[cpd.Name] = true
			c.names = append(c.names, cpd.Name)
		}
	}
	sort.Strings(c.names)

	for _, name := range c.names {
		lo, hi := lower(name), lp.Inf
		if c.opts.ZeroMass[name] {
			lo, hi = 0, 0
		}
		if _, err := c.mass.Define(name, lo, hi); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func unitMass(string) float64 { return 1 }

// balanced returns the active non-exchange reactions in order.
func (c *checker) balanced() []string {
	var out []string
	for _, id := range c.model.Reactions() {
		if !c.opts.Exchange[id] {
			out = append(out, id)
		}
	}

	return out
}

// massBalance returns Σ coefficient·mass for reaction id.
func (c *checker) massBalance(id string) (lp.Expression, error) {
	r, err := c.model.Reaction(id)
	if err != nil {
		return lp.Expression{}, err
	}
	var e lp.Expression
	for _, t := range r.Terms() {
		e.Add(c.mass.MustVar(t.Compound.Name), t.Value)
	}

	return e, nil
}

func (c *checker) masses(r *lp.Result) map[string]float64 {
	out := make(map[string]float64, len(c.names))
	for _, name := range c.names {
		out[name] = c.mass.Value(r, name)
	}

	return out
}

// IsConsistent reports whether masses ≥ 1 balance every non-exchange reaction.
func IsConsistent(ctx context.Context, model *metabolic.Model, solver lp.Solver, opts ...Option) (bool, error) {
	c, err := newChecker(model, solver, newOptions(opts), unitMass)
	if err != nil {
		return false, err
	}

	cons, err := c.balanceAll()
	if err != nil {
		return false, err
	}
	if _, err := c.prob.AddConstraints(cons...); err != nil {
		return false, err
	}

	c.prob.SetObjective(c.mass.Sum(c.names), lp.Minimize)
	_, err = c.prob.Solve(ctx)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}

// balanceAll requires every non-exchange reaction to balance.
func (c *checker) balanceAll() ([]lp.Constraint, error) {
	var cons []lp.Constraint
	for _, id := range c.balanced() {
		e, err := c.massBalance(id)
		if err != nil {
			return nil, err
		}
		cons = append(cons, lp.Equal(e, 0))
	}

	return cons, nil
}

// indicators defines z ≤ mass in [0, 1] for every regular compound name not
// in skip and returns the namespace with the names covered.
func (c *checker) indicators(skip map[string]bool) (*lp.Namespace, []string, []lp.Constraint, error) {
	z := lp.NewNamespace(c.prob, "z")
	var (
		names []string
		cons  []lp.Constraint
	)
	for _, name := range c.names {
		if c.opts.ZeroMass[name] || skip[name] {
			continue
		}
		zv, err := z.Define(name, 0, 1)
		if err != nil {
			return nil, nil, nil, err
		}
		var e lp.Expression
		e.Add(c.mass.MustVar(name), 1).Add(zv, -1)
		cons = append(cons, lp.GreaterEq(e, 0))
		names = append(names, name)
	}

	return z, names, cons, nil
}

// CheckCompoundConsistency returns the minimal mass of every compound name.
//
// The first problem maximizes the number of compounds with a positive mass
// (indicators z ≤ min(mass, 1)). The second keeps a mass of at least 1 for
// every compound whose indicator reached 1, keeps the total of the remaining
// indicators and minimizes the total mass. Compounds reported below 1 are
// mass inconsistent; zero-mass compounds report exactly 0.
func CheckCompoundConsistency(ctx context.Context, model *metabolic.Model, solver lp.Solver, opts ...Option) (map[string]float64, error) {
	o := newOptions(opts)
	c, err := newChecker(model, solver, o, func(string) float64 { return 0 })
	if err != nil {
		return nil, err
	}
	cons, err := c.balanceAll()
	if err != nil {
		return nil, err
	}
	z, positive, zc, err := c.indicators(nil)
	if err != nil {
		return nil, err
	}
	if _, err := c.prob.AddConstraints(append(cons, zc...)...); err != nil {
		return nil, err
	}

	c.prob.SetObjective(z.Sum(positive), lp.Maximize)
	r, err := c.prob.Solve(ctx)
	if err != nil {
		return nil, err
	}
	best := r.Objective()
	unit := make(map[string]bool)
	for _, name := range positive {
		if z.Value(r, name) >= 1-unitTol {
			unit[name] = true
		}
	}
	o.Logger.Debug("compound consistency",
		slog.Float64("positive", best), slog.Int("unit", len(unit)), slog.Int("compounds", len(positive)))

	fixed, err := newChecker(model, solver, o, func(name string) float64 {
		if unit[name] {
			return 1
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	cons, err = fixed.balanceAll()
	if err != nil {
		return nil, err
	}
	z, rest, zc, err := fixed.indicators(unit)
	if err != nil {
		return nil, err
	}
	cons = append(cons, zc...)
	if keep := best - float64(len(unit)); len(rest) > 0 && keep > 0 {
		cons = append(cons, lp.GreaterEq(z.Sum(rest), keep-fixSlack*math.Max(1, keep)))
	}
	if _, err := fixed.prob.AddConstraints(cons...); err != nil {
		return nil, err
	}

	fixed.prob.SetObjective(fixed.mass.Sum(fixed.names), lp.Minimize)
	r, err = fixed.prob.Solve(ctx)
	if err != nil {
		return nil, err
	}

	return fixed.masses(r), nil
}

// CheckReactionConsistency gives every non-exchange reaction a free residual
// r (Σ coefficient·mass + r = 0) and minimizes Σ w·|r| with masses ≥ 1. It
// returns |r| per reaction and the masses per compound name; a positive
// residual flags a mass-inconsistent reaction.
func CheckReactionConsistency(ctx context.Context, model *metabolic.Model, solver lp.Solver, opts ...Option) (residuals, masses map[string]float64, err error) {
	c, err := newChecker(model, solver, newOptions(opts), unitMass)
	if err != nil {
		return nil, nil, err
	}

	res := lp.NewNamespace(c.prob, "r")
	abs := lp.NewNamespace(c.prob, "z")
	reactions := c.balanced()

	var (
		cons []lp.Constraint
		obj  lp.Expression
	)
	for _, id := range reactions {
		e, err := c.massBalance(id)
		if err != nil {
			return nil, nil, err
		}
		rv, err := res.Define(id, math.Inf(-1), lp.Inf)
		if err != nil {
			return nil, nil, err
		}
		zv, err := abs.Define(id, 0, lp.Inf)
		if err != nil {
			return nil, nil, err
		}
		e.Add(rv, 1)
		var up, down lp.Expression
		up.Add(zv, 1).Add(rv, -1)
		down.Add(zv, 1).Add(rv, 1)
		cons = append(cons, lp.Equal(e, 0), lp.GreaterEq(up, 0), lp.GreaterEq(down, 0))

		w := 1.0
		if v, ok := c.opts.Weights[id]; ok {
			w = v
		}
		obj.Add(zv, w)
	}
	if _, err := c.prob.AddConstraints(cons...); err != nil {
		return nil, nil, err
	}

	c.prob.SetObjective(obj, lp.Minimize)
	r, err := c.prob.Solve(ctx)
	if err != nil {
		return nil, nil, err
	}

	residuals = make(map[string]float64, len(reactions))
	for _, id := range reactions {
		residuals[id] = math.Abs(res.Value(r, id))
	}

	return residuals, c.masses(r), nil
}
