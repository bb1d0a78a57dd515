// Package fluxanalysis implements flux balance analysis over a metabolic.Model.
//
// Every analysis builds a FluxProblem: one flux variable per active reaction,
// bounded by the model's limits, and one mass-balance constraint per compound
// (Σ coefficient·flux = 0, or ≥ 0 with implicit sinks). Exchange reactions are
// one-sided and provide the boundary of the network.
//
// Entry points:
//
//	FluxBalance        maximize one reaction, return all fluxes
//	FluxMinimization   maximize, fix the optimum, minimize Σ|v|
//	FluxVariability    min/max of each reaction at a fraction of the optimum
//	MinimalReactionSet randomized knockouts keeping the objective above a threshold
//
// FluxProblem is exported so other analyses (gap filling, pathway extraction)
// reuse the same construction and the shared maximize-then-minimize step.
//
// Errors:
//   - *InfeasibleError (matches ErrFBAInfeasible and lp.ErrInfeasible)
//   - metabolic.ErrReactionNotFound for an unknown objective
//   - ErrInvalidFraction for fractions outside [0, 1]
package fluxanalysis
