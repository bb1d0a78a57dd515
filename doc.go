// Package metnet is a toolkit for constraint-based analysis of metabolic
// networks: flux balance, mass and flux consistency, and gap filling.
//
// A model is a set of reactions drawn from a database, each with flux
// limits. Every analysis turns the model into a linear (or mixed-integer)
// program over one flux variable per reaction and one mass balance per
// compound, and solves it through the lp.Solver interface.
//
// Packages:
//
//	reaction/        compounds, reactions and the |A| + (2) |B| => |C| notation
//	metabolic/       reaction databases and the stoichiometric Model
//	lp/              solver-neutral problem builder (variables, expressions, constraints)
//	lp/simplex/      bundled solver: gonum simplex plus branch-and-bound for binaries
//	lp/lpmetrics/    Prometheus instrumentation for any lp.Solver
//	fluxanalysis/    FBA, L1 flux minimization, FVA, random minimal reaction sets
//	massconsistency/ mass consistency of reactions and compounds
//	fastcore/        FastCC (flux consistency) and FastCore (core extension)
//	gapfill/         GapFill MILP, model extension and pathway extraction
//	dataset/         loading reaction tables, YAML model documents, penalties
//	logging/         slog setup for the command line
//	cmd/metnet/      the metnet command
//
// Quick start:
//
//	db := metabolic.NewDictDatabase()
//	db.SetReaction("EX_A", reaction.MustParse("=> |A|"))
//	db.SetReaction("R1", reaction.MustParse("|A| => |B|"))
//	db.SetReaction("Biomass", reaction.MustParse("|B| =>"))
//	model, _ := metabolic.LoadModel(db, db.Reactions())
//	fluxes, err := fluxanalysis.FluxBalance(ctx, model, simplex.New(), "Biomass")
//
// Analyses are single-threaded and deterministic: reactions are visited in
// sorted order and randomized searches take an explicit *rand.Rand.
package metnet
