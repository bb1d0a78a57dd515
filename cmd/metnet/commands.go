package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/metnet/dataset"
	"github.com/katalvlaran/metnet/fastcore"
	"github.com/katalvlaran/metnet/fluxanalysis"
	"github.com/katalvlaran/metnet/gapfill"
	"github.com/katalvlaran/metnet/massconsistency"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

func objectiveFlag(f *pflag.FlagSet) {
	f.String("objective", "", "Objective reaction (default: model biomass)")
}

func epsilonFlag(f *pflag.FlagSet) {
	f.Float64("epsilon", 1e-5, "Minimum flux for a reaction to count as active")
}

func fbaCommand() command {
	return command{
		name:    "fba",
		summary: "Flux balance analysis",
		flags:   objectiveFlag,
		run: func(ctx context.Context, e *env) error {
			obj, err := e.objective()
			if err != nil {
				return err
			}
			fluxes, err := fluxanalysis.FluxBalance(ctx, e.model.Metabolic, e.solver, obj,
				fluxanalysis.WithLogger(e.log))
			if err != nil {
				return err
			}
			for _, id := range sortedKeys(fluxes) {
				e.row(id, fluxes[id])
			}
			e.log.Info("objective flux", slog.String("reaction", obj), slog.Float64("flux", fluxes[obj]))

			return nil
		},
	}
}

func fvaCommand() command {
	return command{
		name:    "fva",
		summary: "Flux variability analysis",
		flags: func(f *pflag.FlagSet) {
			objectiveFlag(f)
			f.Float64("fraction", 1, "Fraction of the optimal objective flux to maintain")
		},
		run: func(ctx context.Context, e *env) error {
			obj, err := e.objective()
			if err != nil {
				return err
			}
			ranges, err := fluxanalysis.FluxVariability(ctx, e.model.Metabolic, e.solver, obj, e.cfg.Fraction,
				fluxanalysis.WithLogger(e.log))
			if err != nil {
				return err
			}
			for _, id := range sortedKeys(ranges) {
				e.row(id, ranges[id].Min, ranges[id].Max)
			}

			return nil
		},
	}
}

func massCheckCommand() command {
	return command{
		name:    "masscheck",
		summary: "Check mass consistency of reactions or compounds",
		flags: func(f *pflag.FlagSet) {
			f.String("type", "reaction", "What to check: reaction or compound")
			epsilonFlag(f)
		},
		run: func(ctx context.Context, e *env) error {
			mm := e.model.Metabolic
			exchange := append([]string(nil), e.model.Exchange...)
			for _, id := range mm.Reactions() {
				if mm.IsExchange(id) || id == mm.Biomass() {
					exchange = append(exchange, id)
				}
			}
			opts := []massconsistency.Option{
				massconsistency.WithExchange(exchange...),
				massconsistency.WithZeroMass(e.model.ZeroMass...),
				massconsistency.WithLogger(e.log),
			}

			switch e.cfg.Type {
			case "compound":
				masses, err := massconsistency.CheckCompoundConsistency(ctx, mm, e.solver, opts...)
				if err != nil {
					return err
				}
				for _, name := range sortedKeys(masses) {
					e.row(name, masses[name])
				}
			case "reaction":
				residuals, _, err := massconsistency.CheckReactionConsistency(ctx, mm, e.solver, opts...)
				if err != nil {
					return err
				}
				ids := sortedKeys(residuals)
				sort.SliceStable(ids, func(i, j int) bool { return residuals[ids[i]] > residuals[ids[j]] })
				for _, id := range ids {
					if residuals[id] > e.cfg.Epsilon {
						e.row(id, residuals[id], e.equation(id))
					}
				}
			default:
				return fmt.Errorf("%w: --type must be reaction or compound, got %q", errUsage, e.cfg.Type)
			}

			return nil
		},
	}
}

func fastCCCommand() command {
	return command{
		name:    "fastcc",
		summary: "Find flux-inconsistent reactions (FastCC)",
		flags:   epsilonFlag,
		run: func(ctx context.Context, e *env) error {
			inconsistent, err := fastcore.FastCC(ctx, e.model.Metabolic, e.solver, e.cfg.Epsilon,
				fastcore.WithLogger(e.log))
			if err != nil {
				return err
			}
			bad := make(map[string]bool, len(inconsistent))
			for _, id := range inconsistent {
				bad[id] = true
			}
			for _, id := range e.model.Metabolic.Reactions() {
				e.row(id, flag(!bad[id]))
			}
			e.log.Info("flux consistency checked", slog.Int("inconsistent", len(inconsistent)))

			return nil
		},
	}
}

func fastCoreCommand() command {
	return command{
		name:    "fastcore",
		summary: "Extend a core set to a consistent model (FastCore)",
		flags: func(f *pflag.FlagSet) {
			epsilonFlag(f)
			f.StringSlice("core", nil, "Core reaction ids (@file reads ids from a file)")
			f.String("penalty", "", "File of reaction penalties")
			f.Float64("scaling", fastcore.DefaultScaling, "Support threshold divisor")
		},
		run: func(ctx context.Context, e *env) error {
			core, err := expandList(e.cfg.Core)
			if err != nil {
				return err
			}
			if len(core) == 0 {
				return fmt.Errorf("%w: --core is required", errUsage)
			}
			weights, err := e.loadPenalties()
			if err != nil {
				return err
			}

			res, err := fastcore.FastCore(ctx, e.model.Metabolic, e.solver, core, e.cfg.Epsilon,
				fastcore.WithWeights(weights), fastcore.WithScaling(e.cfg.Scaling), fastcore.WithLogger(e.log))
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				e.log.Warn("core not fully supported", slog.Any("error", err))
			}
			in := make(map[string]bool, len(res.Reactions))
			for _, id := range res.Reactions {
				in[id] = true
			}
			for _, id := range e.model.Metabolic.Reactions() {
				e.row(id, flag(in[id]))
			}

			return nil
		},
	}
}

func gapFillFlags(f *pflag.FlagSet) {
	epsilonFlag(f)
	f.StringSlice("compound", nil, "Compounds to unblock (@file reads ids from a file)")
	f.StringSlice("database", nil, "Extra reaction tables to draw candidates from")
	f.String("penalty", "", "File of reaction penalties")
	f.Float64("db-penalty", 0, "Default penalty for database reactions")
	f.Float64("tp-penalty", 0, "Default penalty for transport reactions")
	f.Float64("source-penalty", 0, "Default penalty for source reactions")
	f.Float64("sink-penalty", 0, "Default penalty for sink reactions")
	f.Bool("allow-bounds-expansion", false, "Allow expanding the flux bounds of model reactions")
}

// databases chains the model tables with the --database tables.
func (e *env) databases() (metabolic.Database, error) {
	dbs := []metabolic.Database{e.model.Database}
	for _, path := range e.cfg.Databases {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		db, err := dataset.LoadReactions(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		dbs = append(dbs, db)
	}

	return metabolic.NewChainedDatabase(dbs...), nil
}

// extended builds the candidate model: the active model plus every reaction
// of the model tables and --database tables, sources, sinks and transports.
func (e *env) extended() (*metabolic.Model, map[string]float64, error) {
	db, err := e.databases()
	if err != nil {
		return nil, nil, err
	}
	overrides, err := e.loadPenalties()
	if err != nil {
		return nil, nil, err
	}

	return gapfill.ExtendModel(e.model.Metabolic, db, gapfill.Penalties{
		Database:   e.cfg.DBPenalty,
		Source:     e.cfg.SourcePenalty,
		Sink:       e.cfg.SinkPenalty,
		Transport:  e.cfg.TPPenalty,
		Boundaries: e.model.BoundaryPairs(),
		Overrides:  overrides,
	})
}

// compounds parses --compound, placing bare names in the default compartment.
func (e *env) compounds() ([]reaction.Compound, error) {
	names, err := expandList(e.cfg.Compounds)
	if err != nil {
		return nil, err
	}
	out := make([]reaction.Compound, 0, len(names))
	for _, n := range names {
		c, err := reaction.ParseCompound(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e.model.Compound(c))
	}

	return out, nil
}

func (e *env) gapFillOptions(weights map[string]float64) []gapfill.Option {
	opts := []gapfill.Option{gapfill.WithWeights(weights), gapfill.WithLogger(e.log)}
	if b := e.model.Metabolic.Biomass(); b != "" {
		opts = append(opts, gapfill.WithExclude(b))
	}
	if e.cfg.BoundsExpansion {
		opts = append(opts, gapfill.WithBoundsExpansion())
	}

	return opts
}

func (e *env) printGaps(ext *metabolic.Model, weights map[string]float64, res *gapfill.Result) {
	for _, id := range res.Added {
		e.row(id, "Add", penalty(weights, id), equation(ext, id))
	}
	for _, id := range res.Expanded {
		e.row(id, "Remove bounds", penalty(weights, id), equation(ext, id))
	}
}

func gapFillCommand() command {
	return command{
		name:    "gapfill",
		summary: "Propose reactions that unblock compounds (GapFill)",
		flags: func(f *pflag.FlagSet) {
			gapFillFlags(f)
			f.Bool("implicit-sinks", false, "Let every compound accumulate")
			f.Bool("each", false, "Gap-fill every compound separately")
		},
		run: func(ctx context.Context, e *env) error {
			blocked, err := e.compounds()
			if err != nil {
				return err
			}
			if len(blocked) == 0 {
				blocked = e.model.Metabolic.Compounds()
				e.log.Info("unblocking all compounds", slog.Int("count", len(blocked)))
			}
			ext, weights, err := e.extended()
			if err != nil {
				return err
			}
			core := e.model.Metabolic.Reactions()
			opts := e.gapFillOptions(weights)
			if e.cfg.ImplicitSinks {
				opts = append(opts, gapfill.WithImplicitSinks())
			}

			if e.cfg.EachCompound {
				results, err := gapfill.FillCompounds(ctx, ext, e.solver, core, blocked, e.cfg.Epsilon, opts...)
				if err != nil {
					return err
				}
				for _, r := range results {
					fmt.Fprintf(e.out, "# %s\n", r.Compound)
					if r.Err != nil {
						continue
					}
					e.printGaps(ext, weights, r.Result)
				}
				return nil
			}

			res, err := gapfill.GapFill(ctx, ext, e.solver, core, e.cfg.Epsilon, append(opts, gapfill.WithBlocked(blocked...))...)
			if err != nil {
				return epsilonHint(err, e.cfg.Epsilon)
			}
			e.printGaps(ext, weights, res)

			return nil
		},
	}
}

func completePathCommand() command {
	return command{
		name:    "completepath",
		summary: "Gap-fill and extract the production pathway of compounds",
		flags: func(f *pflag.FlagSet) {
			gapFillFlags(f)
			f.Bool("no-fba-sinks", false, "Balance every compound exactly in the pathway FBA")
			f.Bool("print-gaps", false, "Print the gap-filling result instead of pathways")
			f.Bool("fastgapfill", false, "Complete the model with FastCore instead of GapFill")
			f.Float64("scaling", fastcore.DefaultScaling, "Support threshold divisor for --fastgapfill")
		},
		run: func(ctx context.Context, e *env) error {
			targets, err := e.compounds()
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("%w: --compound is required", errUsage)
			}
			ext, weights, err := e.extended()
			if err != nil {
				return err
			}
			mm := e.model.Metabolic
			core := mm.Reactions()

			var res *gapfill.Result
			if e.cfg.FastGapFill {
				res, err = e.coreCompletion(ctx, ext, weights, targets)
				if err != nil {
					return err
				}
			} else {
				res, err = gapfill.GapFill(ctx, ext, e.solver, core, e.cfg.Epsilon,
					append(e.gapFillOptions(weights), gapfill.WithBlocked(targets...))...)
				if err != nil {
					return epsilonHint(err, e.cfg.Epsilon)
				}
			}

			if e.cfg.PrintGaps {
				for _, id := range core {
					e.row(id, "Model", 0, equation(ext, id))
				}
				e.printGaps(ext, weights, res)
				return nil
			}

			pathway := append([]string(nil), core...)
			var gapCompounds []reaction.Compound
			for _, id := range res.Added {
				pathway = append(pathway, id)
				r, err := ext.Reaction(id)
				if err != nil {
					return err
				}
				gapCompounds = append(gapCompounds, r.Compounds()...)
			}
			var popts []gapfill.Option
			popts = append(popts, gapfill.WithLogger(e.log))
			if e.cfg.NoFBASinks {
				popts = append(popts, gapfill.WithoutSinks())
			}

			for _, target := range targets {
				fmt.Fprintf(e.out, "#Results for Compound %s\n", target)
				fluxes, err := gapfill.PathwayExtraction(ctx, ext, e.solver, pathway, gapCompounds, target, popts...)
				if err != nil {
					var infeasible *fluxanalysis.InfeasibleError
					if errors.As(err, &infeasible) {
						e.log.Warn("no pathway", slog.String("compound", target.String()), slog.Any("error", err))
						continue
					}
					return err
				}
				for _, id := range sortedKeys(fluxes) {
					flux := fluxes[id]
					if math.Abs(flux) <= e.cfg.Epsilon {
						continue
					}
					label := "Gapfilling Reaction"
					switch {
					case id == gapfill.ProductionReaction:
						label = "Compound Production Sink"
					case mm.HasReaction(id):
						label = e.genes(id)
					}
					e.row(id, flux, pathwayEquation(ext, id, target), label)
				}
			}

			return nil
		},
	}
}

// coreCompletion runs FastCore on ext once per target, with a production
// sink for the target as the only core reaction, and reports the reactions
// outside the model that some target needed.
func (e *env) coreCompletion(ctx context.Context, ext *metabolic.Model, weights map[string]float64, targets []reaction.Compound) (*gapfill.Result, error) {
	added := make(map[string]bool)
	for _, target := range targets {
		sink := metabolic.NewDictDatabase()
		sink.SetReaction(gapfill.ProductionReaction,
			reaction.MustNew(reaction.Forward, reaction.Term{Compound: target, Value: -1}))
		m, err := ext.Rebase(metabolic.NewChainedDatabase(sink, ext.Database()))
		if err != nil {
			return nil, err
		}
		if err := m.AddReaction(gapfill.ProductionReaction); err != nil {
			return nil, err
		}

		res, err := fastcore.FastCore(ctx, m, e.solver, []string{gapfill.ProductionReaction}, e.cfg.Epsilon,
			fastcore.WithWeights(weights), fastcore.WithScaling(e.cfg.Scaling), fastcore.WithLogger(e.log))
		if err != nil {
			return nil, err
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("compound %s: %w", target, err)
		}
		for _, id := range res.Reactions {
			if id != gapfill.ProductionReaction && !e.model.Metabolic.HasReaction(id) {
				added[id] = true
			}
		}
	}

	return &gapfill.Result{Added: sortedKeys(added)}, nil
}

func fastGapFillCommand() command {
	return command{
		name:    "fastgapfill",
		summary: "Complete the model from its reaction tables (FastCC, FastCore)",
		flags: func(f *pflag.FlagSet) {
			objectiveFlag(f)
			epsilonFlag(f)
			f.StringSlice("database", nil, "Extra reaction tables to draw reactions from")
			f.String("penalty", "", "File of reaction penalties")
			f.Float64("scaling", fastcore.DefaultScaling, "Support threshold divisor")
		},
		run: func(ctx context.Context, e *env) error {
			obj, err := e.objective()
			if err != nil {
				return err
			}
			weights, err := e.loadPenalties()
			if err != nil {
				return err
			}
			mm := e.model.Metabolic
			consistent, err := fastcore.FastCCConsistentSubset(ctx, mm, e.solver, e.cfg.Epsilon,
				fastcore.WithLogger(e.log))
			if err != nil {
				return err
			}

			db, err := e.databases()
			if err != nil {
				return err
			}
			complete, err := mm.Rebase(db)
			if err != nil {
				return err
			}
			for _, id := range db.Reactions() {
				if !complete.HasReaction(id) {
					if err := complete.AddReaction(id); err != nil {
						return err
					}
				}
			}

			isCore := make(map[string]bool, len(consistent)+1)
			for _, id := range consistent {
				isCore[id] = true
			}
			isCore[obj] = true
			res, err := fastcore.FastCore(ctx, complete, e.solver, sortedKeys(isCore), e.cfg.Epsilon,
				fastcore.WithWeights(weights), fastcore.WithScaling(e.cfg.Scaling), fastcore.WithLogger(e.log))
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				e.log.Warn("core not fully supported", slog.Any("error", err))
			}
			e.log.Info("model completed",
				slog.Int("consistent", len(consistent)),
				slog.Int("induced", len(res.Reactions)))

			if fluxes, err := fluxanalysis.FluxBalance(ctx, mm, e.solver, obj); err == nil {
				e.log.Info("objective flux before completion", slog.String("reaction", obj), slog.Float64("flux", fluxes[obj]))
			} else {
				e.log.Warn("objective flux before completion", slog.String("reaction", obj), slog.Any("error", err))
			}

			induced := complete.Copy()
			in := make(map[string]bool, len(res.Reactions))
			for _, id := range res.Reactions {
				in[id] = true
			}
			for _, id := range complete.Reactions() {
				if !in[id] {
					induced.RemoveReaction(id)
				}
			}
			if !induced.HasReaction(obj) {
				return fmt.Errorf("%w: objective %q", fastcore.ErrIrreconcilableCore, obj)
			}
			fluxes, err := fluxanalysis.FluxBalance(ctx, induced, e.solver, obj, fluxanalysis.WithLogger(e.log))
			if err != nil {
				return err
			}
			for _, id := range induced.Reactions() {
				class := "Dbase"
				switch {
				case isCore[id]:
					class = "Core"
				case mm.HasReaction(id):
					class = "Model"
				}
				e.row(id, class, fluxes[id])
			}

			return nil
		},
	}
}

func randomSparseCommand() command {
	return command{
		name:    "randomsparse",
		summary: "Find a random minimal reaction set keeping the objective",
		flags: func(f *pflag.FlagSet) {
			objectiveFlag(f)
			f.Float64("fraction", 1, "Fraction of the wild-type objective flux to keep")
			f.Int64("seed", 1, "Seed of the deletion order")
		},
		run: func(ctx context.Context, e *env) error {
			obj, err := e.objective()
			if err != nil {
				return err
			}
			kept, err := fluxanalysis.MinimalReactionSet(ctx, e.model.Metabolic, e.solver, obj, e.cfg.Fraction,
				fluxanalysis.NewRand(e.cfg.Seed), fluxanalysis.WithLogger(e.log))
			if err != nil {
				return err
			}
			n := 0
			for _, id := range sortedKeys(kept) {
				e.row(id, flag(kept[id]))
				if kept[id] {
					n++
				}
			}
			e.log.Info("minimal reaction set", slog.Int("kept", n), slog.Int("reactions", len(kept)))

			return nil
		},
	}
}

// genes labels a model reaction by its gene association.
func (e *env) genes(id string) string {
	if g := e.model.GeneAssociation(id); g != "" {
		return g
	}
	return "No Gene"
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func penalty(weights map[string]float64, id string) float64 {
	if w, ok := weights[id]; ok {
		return w
	}
	return 1
}

func equation(m *metabolic.Model, id string) string {
	r, err := m.Reaction(id)
	if err != nil {
		return ""
	}
	return r.String()
}

// pathwayEquation also renders the synthetic production sink, which lives
// only inside the pathway problem.
func pathwayEquation(m *metabolic.Model, id string, target reaction.Compound) string {
	if id == gapfill.ProductionReaction {
		return reaction.MustNew(reaction.Forward, reaction.Term{Compound: target, Value: -1}).String()
	}
	return equation(m, id)
}

func epsilonHint(err error, epsilon float64) error {
	if errors.Is(err, gapfill.ErrGapFill) {
		return fmt.Errorf("%w (epsilon %g; a lower epsilon relaxes the production constraints)", err, epsilon)
	}
	return err
}
