// Package fastcore finds flux-consistent reaction sets with the FastCC and
// FastCore heuristics.
//
// Both algorithms grow a result set monotonically through a sequence of LPs
// on one shared flux problem:
//
//	LP7   maximize Σ zᵢ, 0 ≤ zᵢ ≤ ε, vᵢ ≥ zᵢ (vᵢ ≤ −zᵢ when flipped)
//	LP10  vₖ ≥ ε on a supported core K, minimize Σ wᵢ·|vᵢ| over a penalty set
//	LP3   maximize a single flux
//
// FastCC reports the reactions that cannot reach |v| ≥ ε in any steady state.
// FastCore extends a core set with as few (weighted) extra reactions as the
// greedy search finds; it is a heuristic, not an exact minimization.
//
// Reactions are tested in sorted reaction-id order, so results are reproducible
// for a given solver. An infeasible subproblem counts as "nothing supported" and is
// never returned as an error. Core reactions that cannot be supported are
// listed in CoreResult.Irreconcilable.
//
// Reactions whose limits only allow reverse flux start out flipped, so every
// one-directional reaction is handled by the first irreversible pass.
package fastcore
