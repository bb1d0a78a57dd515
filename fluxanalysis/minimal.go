package fluxanalysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/metabolic"
)

// defaultRNGSeed replaces a zero seed so the default stream is reproducible.
const defaultRNGSeed int64 = 1

// NewRand returns a deterministic source. Seed 0 maps to defaultRNGSeed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = defaultRNGSeed
	}
	return rand.New(rand.NewSource(seed))
}

// MinimalReactionSet searches a random minimal set of reactions that keeps
// the biomass flux at or above fraction of its wild-type value.
//
// Reactions other than biomass are visited in an order drawn from rng (nil
// uses NewRand(0)). Each one is closed to (0, 0) and FBA is re-run on the
// reduced model; if biomass stays above the threshold the reaction remains
// closed, otherwise its bounds are restored and it is kept. An infeasible
// knockout counts as falling below the threshold. model itself is not modified.
//
// The result maps every active reaction to true (kept) or false (deleted).
func MinimalReactionSet(ctx context.Context, model *metabolic.Model, solver lp.Solver, biomass string, fraction float64, rng *rand.Rand, opts ...Option) (map[string]bool, error) {
	if !(fraction >= 0 && fraction <= 1) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidFraction, fraction)
	}
	if rng == nil {
		rng = NewRand(0)
	}
	logger := newOptions(opts).Logger

	wild, err := FluxBalance(ctx, model, solver, biomass, opts...)
	if err != nil {
		return nil, err
	}
	threshold := wild[biomass] * fraction
	logger.Info("wild-type biomass", slog.Float64("flux", wild[biomass]), slog.Float64("threshold", threshold))

	test := model.Copy()
	order := make([]string, 0, test.Len())
	for _, id := range test.Reactions() {
		if id != biomass {
			order = append(order, id)
		}
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	kept := make(map[string]bool, test.Len())
	kept[biomass] = true
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var flux float64
		knockout := func() error {
			fluxes, err := FluxBalance(ctx, test, solver, biomass, opts...)
			switch {
			case errors.Is(err, ErrFBAInfeasible):
				flux = 0
				return nil
			case err != nil:
				return err
			}
			flux = fluxes[biomass]
			return nil
		}
		if err := test.WithLimits(id, metabolic.Limits{}, knockout); err != nil {
			return nil, fmt.Errorf("fluxanalysis: knockout of %q: %w", id, err)
		}

		if flux < threshold-optimumSlack*math.Max(1, math.Abs(threshold)) {
			kept[id] = true
			logger.Debug("essential", slog.String("reaction", id), slog.Float64("biomass", flux))
			continue
		}
		kept[id] = false
		if err := test.SetLimits(id, metabolic.Limits{}); err != nil {
			return nil, err
		}
		logger.Debug("deleted", slog.String("reaction", id), slog.Float64("biomass", flux))
	}

	return kept, nil
}
