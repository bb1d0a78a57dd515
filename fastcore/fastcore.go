package fastcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
)

// DefaultScaling divides ε into the support threshold of a sparse mode.
const DefaultScaling = 1e5

var (
	// ErrIrreconcilableCore is wrapped by CoreResult.Err.
	ErrIrreconcilableCore = errors.New("fastcore: irreconcilable core reactions")

	// ErrInvalidEpsilon rejects ε ≤ 0 or non-finite ε.
	ErrInvalidEpsilon = errors.New("fastcore: epsilon must be finite and > 0")
)

// Options configures FastCC and FastCore.
type Options struct {
	Weights map[string]float64
	Scaling float64
	Logger  *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithWeights sets per-reaction penalties for FastCore (default 1).
func WithWeights(w map[string]float64) Option {
	return func(o *Options) { o.Weights = w }
}

// WithScaling sets the support threshold divisor. Panics unless scaling > 0.
func WithScaling(scaling float64) Option {
	if !(scaling > 0) || math.IsInf(scaling, 0) {
		panic("fastcore: WithScaling: scaling must be finite and > 0")
	}
	return func(o *Options) { o.Scaling = scaling }
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
	o := Options{Scaling: DefaultScaling, Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func checkEpsilon(epsilon float64) error {
	if !(epsilon > 0) || math.IsInf(epsilon, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidEpsilon, epsilon)
	}
	return nil
}

// FastCC returns the reactions of model that cannot carry a flux of at least
// ε, in ascending order.
func FastCC(ctx context.Context, model *metabolic.Model, solver lp.Solver, epsilon float64, opts ...Option) ([]string, error) {
	if err := checkEpsilon(epsilon); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	p, err := newProblem(model, solver, epsilon, o.Logger)
	if err != nil {
		return nil, err
	}

	all := model.Reactions()
	consistent := make(idSet)
	inconsistent := make(idSet)
	markConsistent := func(ids []string) {
		for _, id := range ids {
			if p.absFlux(id) >= consistentFraction*epsilon {
				consistent.add(id)
			}
		}
	}

	var oneWay []string
	remaining := make(idSet)
	for _, id := range all {
		if model.IsReversible(id) {
			remaining.add(id)
		} else {
			oneWay = append(oneWay, id)
		}
	}
	o.Logger.Info("checking irreversible reactions", slog.Int("count", len(oneWay)))

	if err := p.lp7(ctx, oneWay); err != nil {
		return nil, err
	}
	markConsistent(all)
	for _, id := range oneWay {
		if !consistent.has(id) {
			inconsistent.add(id)
		}
	}
	remaining.remove(consistent.sorted()...)

	o.Logger.Info("checking reversible reactions", slog.Int("count", len(remaining)))
	flipped, singleton := false, false
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o.Logger.Debug("reversible reactions left", slog.Int("count", len(remaining)))

		var subset []string
		if singleton {
			subset = remaining.sorted()[:1]
			err = p.lp3(ctx, subset[0])
		} else {
			subset = remaining.sorted()
			err = p.lp7(ctx, subset)
		}
		if err != nil {
			return nil, err
		}
		markConsistent(remaining.sorted())

		if remaining.intersects(consistent) {
			remaining.remove(consistent.sorted()...)
			flipped = false
			continue
		}

		switch {
		case !flipped:
			p.flip(subset)
			flipped = true
		case singleton:
			inconsistent.add(subset...)
			remaining.remove(subset...)
			flipped = false
			o.Logger.Debug("inconsistent", slog.String("reaction", subset[0]))
		default:
			singleton = true
			flipped = false
		}
	}

	return inconsistent.sorted(), nil
}

// FastCCConsistentSubset returns the reactions of model that can carry a
// flux of at least ε, in ascending order.
func FastCCConsistentSubset(ctx context.Context, model *metabolic.Model, solver lp.Solver, epsilon float64, opts ...Option) ([]string, error) {
	inconsistent, err := FastCC(ctx, model, solver, epsilon, opts...)
	if err != nil {
		return nil, err
	}
	skip := newIDSet(inconsistent...)

	var out []string
	for _, id := range model.Reactions() {
		if !skip.has(id) {
			out = append(out, id)
		}
	}

	return out, nil
}

// CoreResult is the outcome of FastCore.
type CoreResult struct {
	// Reactions is the consistent set found, sorted.
	Reactions []string
	// Irreconcilable lists core reactions that no extension could support.
	Irreconcilable []string
}

// Err returns an error wrapping ErrIrreconcilableCore when some core
// reactions could not be supported, nil otherwise.
func (r *CoreResult) Err() error {
	if len(r.Irreconcilable) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIrreconcilableCore, strings.Join(r.Irreconcilable, ", "))
}

// FastCore extends core to a flux-consistent reaction set of small total
// weight, drawing extra reactions from the rest of model.
func FastCore(ctx context.Context, model *metabolic.Model, solver lp.Solver, core []string, epsilon float64, opts ...Option) (*CoreResult, error) {
	if err := checkEpsilon(epsilon); err != nil {
		return nil, err
	}
	for _, id := range core {
		if !model.HasReaction(id) {
			return nil, fmt.Errorf("fastcore: core %w: %q", metabolic.ErrReactionNotFound, id)
		}
	}
	o := newOptions(opts)
	p, err := newProblem(model, solver, epsilon, o.Logger)
	if err != nil {
		return nil, err
	}

	coreSet := newIDSet(core...)
	penalty := make(idSet)
	for _, id := range model.Reactions() {
		if !coreSet.has(id) {
			penalty.add(id)
		}
	}

	var oneWay []string
	for _, id := range coreSet.sorted() {
		if !model.IsReversible(id) {
			oneWay = append(oneWay, id)
		}
	}

	consistent := make(idSet)
	irreconcilable := make(idSet)

	mode, err := p.findSparseMode(ctx, oneWay, penalty.sorted(), o.Scaling, o.Weights)
	if err != nil {
		return nil, err
	}
	consistent.add(mode...)
	for _, id := range oneWay {
		if !consistent.has(id) {
			irreconcilable.add(id)
		}
	}
	o.Logger.Debug("irreversible core", slog.Int("supported", len(consistent)), slog.Int("irreconcilable", len(irreconcilable)))

	remaining := make(idSet)
	for id := range coreSet {
		if !consistent.has(id) && !irreconcilable.has(id) {
			remaining.add(id)
		}
	}

	flipped, singleton := false, false
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		penalty.remove(consistent.sorted()...)

		subset := remaining.sorted()
		if singleton {
			subset = subset[:1]
		}
		mode, err := p.findSparseMode(ctx, subset, penalty.sorted(), o.Scaling, o.Weights)
		if err != nil {
			return nil, err
		}
		consistent.add(mode...)

		if remaining.intersects(consistent) {
			remaining.remove(consistent.sorted()...)
			flipped = false
			continue
		}

		switch {
		case !flipped:
			p.flip(subset)
			flipped = true
		case singleton:
			irreconcilable.add(subset...)
			remaining.remove(subset...)
			flipped = false
			o.Logger.Info("irreconcilable core reaction", slog.String("reaction", subset[0]))
		default:
			singleton = true
			flipped = false
		}
	}

	o.Logger.Info("fastcore done", slog.Int("reactions", len(consistent)), slog.Int("irreconcilable", len(irreconcilable)))

	return &CoreResult{Reactions: consistent.sorted(), Irreconcilable: irreconcilable.sorted()}, nil
}
