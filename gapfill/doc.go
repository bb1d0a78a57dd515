// Package gapfill proposes minimal-penalty reaction additions that unblock a
// target reaction or the production of blocked compounds.
//
// GapFill solves one mixed-integer program over an (extended) model:
//
//   - every non-core, non-excluded reaction is a candidate with a binary
//     indicator y and bounds lower·y ≤ v ≤ upper·y;
//   - a target reaction must carry at least ε, and/or each blocked compound
//     needs at least one reaction producing it at ≥ ε (production indicators
//     w per compound/reaction pair, Σ w ≥ 1);
//   - mass balance holds per compound (= 0, or ≥ 0 with implicit sinks);
//   - the objective minimizes Σ weight·y.
//
// With bounds expansion, each core reaction also gets a penalized binary that
// widens its limits to ±vmax, turning irreversible reactions reversible.
//
// ExtendModel builds the candidate model: all database reactions plus
// synthesized sources (SO_x), sinks (SK_x) and transports (TP_x_a_b) with
// their default penalties. PathwayExtraction explains how a compound is made
// once gaps are filled: maximize a synthetic production sink, keep it at the
// optimum and minimize Σ|v|.
//
// Errors: an infeasible program returns *Error, which matches ErrGapFill.
// FillCompounds keeps going when a single compound fails.
package gapfill
