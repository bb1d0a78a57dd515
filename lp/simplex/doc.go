// Package simplex is the pure-Go lp.Solver backend: a bounded-variable
// two-phase primal simplex over a dense gonum tableau, with depth-first
// branch-and-bound for binary variables.
//
// # Row-activity form
//
// Every constraint row i gets an activity column r_i:
//
//	A·x − r = 0,  l ≤ x ≤ u,  rl ≤ r ≤ ru
//
// so variable and row bounds are enforced by the ratio test instead of extra
// rows or split columns. Nonbasic columns sit at a finite bound (0 when
// free); a step either flips the entering column to its opposite bound or
// pivots it into the basis.
//
// # Phases
//
//  1. Structural variables start at a bound. Rows whose activity is already
//     within bounds start with r_i basic; the others get an artificial
//     column, and phase one minimizes the sum of artificials. A positive
//     optimum proves lp.ErrInfeasible.
//  2. Artificials are fixed at zero and pivoted out of the basis; rows where
//     that is impossible are redundant and keep theirs. Phase two then
//     optimizes the real costs from that basis.
//
// Pricing uses the largest reduced cost and falls back to Bland's rule after
// a run of degenerate steps, so stalls on degenerate stoichiometric problems
// terminate. The context is checked between steps.
//
// # Branch-and-bound
//
// Nodes are explored depth-first. At each node the relaxation is solved with
// the node's bound fixings; nodes whose relaxation is infeasible or cannot
// beat the incumbent are pruned. Branching picks the most fractional binary
// (lowest index on ties) and explores the nearer integer first, so runs are
// deterministic. Options.NodeLimit bounds the search; when it is exhausted the
// best incumbent is returned, or lp.ErrNodeLimit if there is none.
//
// A Problem is not safe for concurrent use. The Solver is stateless and may be
// shared.
package simplex
