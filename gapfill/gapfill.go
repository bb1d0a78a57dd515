package gapfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

var (
	// ErrGapFill is matched when no candidate set satisfies the targets.
	ErrGapFill = errors.New("gapfill: no reaction set satisfies the targets")

	// ErrNoTarget means neither a target reaction nor blocked compounds were given.
	ErrNoTarget = errors.New("gapfill: no target reaction or blocked compound")

	// ErrInvalidEpsilon rejects ε ≤ 0 or non-finite ε.
	ErrInvalidEpsilon = errors.New("gapfill: epsilon must be finite and > 0")
)

// Error reports which targets could not be satisfied.
type Error struct {
	Targets []string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gapfill: unblocking %s: %v", strings.Join(e.Targets, ", "), e.Err)
}

// Unwrap exposes ErrGapFill and the solver error.
func (e *Error) Unwrap() []error { return []error{ErrGapFill, e.Err} }

// Result lists the proposed changes.
type Result struct {
	// Added are candidate reactions to include, sorted.
	Added []string
	// Expanded are core reactions whose bounds must widen, sorted.
	Expanded []string
}

// Options configures GapFill.
type Options struct {
	Target          string
	Blocked         []reaction.Compound
	Exclude         map[string]bool
	Weights         map[string]float64
	ImplicitSinks   bool
	BoundsExpansion bool
	NoSinks         bool
	Logger          *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithTargetReaction requires id to carry at least ε (in its allowed direction).
func WithTargetReaction(id string) Option {
	return func(o *Options) { o.Target = id }
}

// WithBlocked requires each compound to be produced at ≥ ε by some reaction.
func WithBlocked(compounds ...reaction.Compound) Option {
	return func(o *Options) { o.Blocked = append(o.Blocked, compounds...) }
}

// WithExclude removes reactions from the program entirely.
func WithExclude(ids ...string) Option {
	return func(o *Options) {
		for _, id := range ids {
			o.Exclude[id] = true
		}
	}
}

// WithWeights sets per-reaction penalties (default 1).
func WithWeights(w map[string]float64) Option {
	return func(o *Options) { o.Weights = w }
}

// WithImplicitSinks relaxes every mass balance to ≥ 0.
func WithImplicitSinks() Option {
	return func(o *Options) { o.ImplicitSinks = true }
}

// WithBoundsExpansion lets core reactions widen their limits at a penalty.
func WithBoundsExpansion() Option {
	return func(o *Options) { o.BoundsExpansion = true }
}

// WithLogger routes progress output to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func newOptions(opts []Option) Options {
	o := Options{Exclude: make(map[string]bool), Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func weight(w map[string]float64, id string) float64 {
	if v, ok := w[id]; ok {
		return v
	}
	return 1
}

// program is the GapFill MILP under construction.
type program struct {
	model   *metabolic.Model
	opts    Options
	epsilon float64
	vmax    float64

	prob lp.Problem
	v    *lp.Namespace
	y    *lp.Namespace // candidate indicators
	ym   *lp.Namespace // bound expansion indicators
	w    *lp.Namespace // production indicators

	included   []string
	candidates []string
	cons       []lp.Constraint
	objective  lp.Expression
}

// GapFill finds the candidate reactions of smallest total weight whose
// addition satisfies the targets. Candidates are the active reactions of
// model outside core and the excluded set.
func GapFill(ctx context.Context, model *metabolic.Model, solver lp.Solver, core []string, epsilon float64, opts ...Option) (*Result, error) {
	if !(epsilon > 0) || math.IsInf(epsilon, 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidEpsilon, epsilon)
	}
	o := newOptions(opts)
	if o.Target == "" && len(o.Blocked) == 0 {
		return nil, ErrNoTarget
	}

	pg := &program{model: model, opts: o, epsilon: epsilon, vmax: model.FluxLimit(), prob: solver.CreateProblem()}
	if err := pg.build(core); err != nil {
		return nil, err
	}
	if _, err := pg.prob.AddConstraints(pg.cons...); err != nil {
		return nil, err
	}
	pg.prob.SetObjective(pg.objective, lp.Minimize)

	o.Logger.Debug("gapfill program",
		slog.Int("reactions", len(pg.included)), slog.Int("candidates", len(pg.candidates)))
	r, err := pg.prob.Solve(ctx)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, &Error{Targets: pg.targets(), Err: err}
	case err != nil:
		return nil, err
	}

	res := &Result{Added: []string{}, Expanded: []string{}}
	for _, id := range pg.candidates {
		if pg.y.Value(r, id) > 0.5 {
			res.Added = append(res.Added, id)
		}
	}
	if pg.ym != nil {
		for _, id := range pg.included {
			if pg.ym.Has(id) && pg.ym.Value(r, id) > 0.5 {
				res.Expanded = append(res.Expanded, id)
			}
		}
	}
	o.Logger.Info("gapfill solved", slog.Int("added", len(res.Added)), slog.Int("expanded", len(res.Expanded)))

	return res, nil
}

func (pg *program) targets() []string {
	var out []string
	if pg.opts.Target != "" {
		out = append(out, pg.opts.Target)
	}
	for _, c := range pg.opts.Blocked {
		out = append(out, c.String())
	}

	return out
}

func (pg *program) build(core []string) error {
	coreSet := make(map[string]bool, len(core))
	for _, id := range core {
		coreSet[id] = true
	}
	for _, id := range pg.model.Reactions() {
		if pg.opts.Exclude[id] {
			continue
		}
		pg.included = append(pg.included, id)
		if !coreSet[id] {
			pg.candidates = append(pg.candidates, id)
		}
	}

	pg.v = lp.NewNamespace(pg.prob, "v")
	pg.y = lp.NewNamespace(pg.prob, "y")
	if pg.opts.BoundsExpansion {
		pg.ym = lp.NewNamespace(pg.prob, "ym")
	}

	for _, id := range pg.included {
		l, err := pg.model.Limits(id)
		if err != nil {
			return err
		}
		if err := pg.defineFlux(id, l, !coreSet[id]); err != nil {
			return err
		}
	}

	if err := pg.addTarget(); err != nil {
		return err
	}
	if err := pg.addBlocked(); err != nil {
		return err
	}
	pg.addBalance()

	return nil
}

// defineFlux adds v for id with either indicator-scaled, expandable or fixed
// limits.
func (pg *program) defineFlux(id string, l metabolic.Limits, candidate bool) error {
	switch {
	case candidate:
		v, err := pg.v.Define(id, math.Min(l.Lower, 0), math.Max(l.Upper, 0))
		if err != nil {
			return err
		}
		y, err := pg.y.Define(id, 0, 1, lp.Binary())
		if err != nil {
			return err
		}
		var lo, hi lp.Expression
		lo.Add(v, 1).Add(y, -l.Lower)
		hi.Add(v, 1).Add(y, -l.Upper)
		pg.cons = append(pg.cons, lp.GreaterEq(lo, 0), lp.LessEq(hi, 0))
		pg.objective.Add(y, weight(pg.opts.Weights, id))

	case pg.ym != nil:
		v, err := pg.v.Define(id, math.Min(l.Lower, -pg.vmax), math.Max(l.Upper, pg.vmax))
		if err != nil {
			return err
		}
		ym, err := pg.ym.Define(id, 0, 1, lp.Binary())
		if err != nil {
			return err
		}
		deltaLower := math.Min(0, -pg.vmax-l.Lower)
		deltaUpper := math.Max(0, pg.vmax-l.Upper)
		var lo, hi lp.Expression
		lo.Add(v, 1).Add(ym, -deltaLower)
		hi.Add(v, 1).Add(ym, -deltaUpper)
		pg.cons = append(pg.cons, lp.GreaterEq(lo, l.Lower), lp.LessEq(hi, l.Upper))
		pg.objective.Add(ym, weight(pg.opts.Weights, id))

	default:
		if _, err := pg.v.Define(id, l.Lower, l.Upper); err != nil {
			return err
		}
	}

	return nil
}

func (pg *program) addTarget() error {
	id := pg.opts.Target
	if id == "" {
		return nil
	}
	v, ok := pg.v.Var(id)
	if !ok {
		return fmt.Errorf("gapfill: target %w: %q", metabolic.ErrReactionNotFound, id)
	}
	l, err := pg.model.Limits(id)
	if err != nil {
		return err
	}
	if l.Upper <= 0 && l.Lower < 0 {
		pg.cons = append(pg.cons, lp.LessEq(lp.Sum(v), -pg.epsilon))
	} else {
		pg.cons = append(pg.cons, lp.GreaterEq(lp.Sum(v), pg.epsilon))
	}

	return nil
}

// addBlocked adds a production indicator w for every (compound, reaction)
// pair: w = 1 forces the reaction to produce the compound at ≥ ε, w = 0
// forbids production. Each compound needs Σ w ≥ 1.
func (pg *program) addBlocked() error {
	if len(pg.opts.Blocked) == 0 {
		return nil
	}
	pg.w = lp.NewNamespace(pg.prob, "w")
	blocked := make(map[reaction.Compound]*lp.Expression, len(pg.opts.Blocked))
	for _, c := range pg.opts.Blocked {
		blocked[c] = &lp.Expression{}
	}

	for _, e := range pg.model.Matrix() {
		sum, ok := blocked[e.Compound]
		if !ok || pg.opts.Exclude[e.Reaction] {
			continue
		}
		w, err := pg.w.Define(e.Compound.String()+"."+e.Reaction, 0, 1, lp.Binary())
		if err != nil {
			return err
		}
		sign := 1.0
		if e.Value < 0 {
			sign = -1
		}
		v := pg.v.MustVar(e.Reaction)

		var upper, lower lp.Expression
		upper.Add(v, sign).Add(w, -pg.vmax)
		lower.Add(v, sign).Add(w, -(pg.vmax + pg.epsilon))
		pg.cons = append(pg.cons, lp.LessEq(upper, 0), lp.GreaterEq(lower, -pg.vmax))
		sum.Add(w, 1)
	}

	compounds := make([]reaction.Compound, 0, len(blocked))
	for c := range blocked {
		compounds = append(compounds, c)
	}
	sort.Slice(compounds, func(i, j int) bool { return compounds[i].Less(compounds[j]) })
	for _, c := range compounds {
		pg.cons = append(pg.cons, lp.GreaterEq(*blocked[c], 1))
	}

	return nil
}

func (pg *program) addBalance() {
	lhs := make(map[reaction.Compound]*lp.Expression)
	var order []reaction.Compound
	for _, e := range pg.model.Matrix() {
		v, ok := pg.v.Var(e.Reaction)
		if !ok {
			continue
		}
		if _, seen := lhs[e.Compound]; !seen {
			lhs[e.Compound] = &lp.Expression{}
			order = append(order, e.Compound)
		}
		lhs[e.Compound].Add(v, e.Value)
	}
	for _, c := range order {
		if pg.opts.ImplicitSinks {
			pg.cons = append(pg.cons, lp.GreaterEq(*lhs[c], 0))
		} else {
			pg.cons = append(pg.cons, lp.Equal(*lhs[c], 0))
		}
	}
}

// CompoundResult is the outcome of gap filling for one blocked compound.
type CompoundResult struct {
	Compound reaction.Compound
	Result   *Result
	Err      error
}

// FillCompounds runs GapFill once per compound. A failure is recorded in that
// compound's entry and the remaining compounds are still processed; only
// context cancellation stops the loop.
func FillCompounds(ctx context.Context, model *metabolic.Model, solver lp.Solver, core []string, compounds []reaction.Compound, epsilon float64, opts ...Option) ([]CompoundResult, error) {
	sorted := append([]reaction.Compound(nil), compounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	logger := newOptions(opts).Logger

	out := make([]CompoundResult, 0, len(sorted))
	for _, c := range sorted {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := GapFill(ctx, model, solver, core, epsilon, append(opts[:len(opts):len(opts)], WithBlocked(c))...)
		if err != nil && ctx.Err() != nil {
			return out, err
		}
		if err != nil {
			logger.Warn("gap filling failed", slog.String("compound", c.String()), slog.Any("error", err))
		}
		out = append(out, CompoundResult{Compound: c, Result: res, Err: err})
	}

	return out, nil
}
