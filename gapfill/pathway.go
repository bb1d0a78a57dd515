package gapfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/metnet/fluxanalysis"
	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// ProductionReaction is the id of the synthetic sink draining the target
// compound in PathwayExtraction.
const ProductionReaction = "Compound_Production"

// WithoutSinks makes PathwayExtraction balance every compound exactly.
func WithoutSinks() Option {
	return func(o *Options) { o.NoSinks = true }
}

// PathwayExtraction restricts model to reactions, adds ProductionReaction
// for target, maximizes it and returns the fluxes of minimal L1 norm at that
// optimum. Compounds touched by gap-filling reactions (gapCompounds) are
// balanced exactly; all others may accumulate unless WithoutSinks is given.
//
// Reactions of model not listed are dropped; ids unknown to model are an
// error. Infeasibility is returned as *fluxanalysis.InfeasibleError.
func PathwayExtraction(ctx context.Context, model *metabolic.Model, solver lp.Solver, reactions []string, gapCompounds []reaction.Compound, target reaction.Compound, opts ...Option) (map[string]float64, error) {
	o := newOptions(opts)

	prod := metabolic.NewDictDatabase()
	prod.SetReaction(ProductionReaction, reaction.MustNew(reaction.Forward, reaction.Term{Compound: target, Value: -1}))
	db := metabolic.NewChainedDatabase(prod, model.Database())

	sub, err := metabolic.LoadModel(db, nil, metabolic.WithFluxLimit(model.FluxLimit()))
	if err != nil {
		return nil, err
	}
	for _, id := range append([]string{ProductionReaction}, reactions...) {
		if id != ProductionReaction && !model.HasReaction(id) {
			return nil, fmt.Errorf("gapfill: pathway %w: %q", metabolic.ErrReactionNotFound, id)
		}
		if sub.HasReaction(id) {
			continue
		}
		if err := sub.AddReaction(id); err != nil {
			return nil, err
		}
		if id == ProductionReaction {
			continue
		}
		l, err := model.Limits(id)
		if err != nil {
			return nil, err
		}
		if err := sub.SetLimits(id, l); err != nil {
			return nil, err
		}
	}

	fopts := []fluxanalysis.Option{fluxanalysis.WithLogger(o.Logger), fluxanalysis.WithWeights(o.Weights)}
	if !o.NoSinks {
		balanced := make(map[reaction.Compound]bool, len(gapCompounds))
		for _, c := range gapCompounds {
			balanced[c] = true
		}
		fopts = append(fopts, fluxanalysis.WithSinks(func(c reaction.Compound) bool { return !balanced[c] }))
	}

	fp, err := fluxanalysis.NewFluxProblem(sub, solver, fopts...)
	if err != nil {
		return nil, err
	}
	opt, err := fp.MaximizeThenMinimizeL1(ctx, ProductionReaction)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			err = &fluxanalysis.InfeasibleError{Objective: ProductionReaction, Err: err}
		}
		return nil, err
	}
	o.Logger.Info("pathway extracted", slog.String("compound", target.String()), slog.Float64("production", opt))

	return fp.Fluxes(), nil
}
