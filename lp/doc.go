// Package lp defines the solver contract consumed by every metnet analysis:
// a Solver creates Problems; a Problem owns variables, linear constraints and
// one linear objective, and can be solved repeatedly.
//
// The contract is deliberately small:
//
//	p := solver.CreateProblem()
//	v := lp.NewNamespace(p, "v")
//	_, _ = v.Define("R1", 0, 10)
//	_, _ = v.Define("R2", -10, 10)
//	_, _ = p.AddConstraints(lp.Equal(v.Expr(map[string]float64{"R1": 1, "R2": -1}), 0))
//	p.SetObjective(v.Sum([]string{"R1"}), lp.Maximize)
//	res, err := p.Solve(ctx)
//	flux := res.Value(v.MustVar("R1"))
//
// Each Solve overwrites the previous result. Constraints may be removed by
// the handle returned from AddConstraints, which lets algorithms add
// temporary constraints around one solve and drop them afterwards.
//
// Variables are continuous by default; Binary() declares a 0/1 integer
// variable, which turns the problem into a MILP. Backends that do not support
// integer variables return ErrUnsupported from Define.
//
// Namespaces prefix variable names so that several families (fluxes v,
// auxiliary |v| bounds z, indicators y) coexist in one problem without
// collisions.
//
// # Errors
//
//	ErrInfeasible    - no point satisfies constraints and bounds.
//	ErrUnbounded     - the objective diverges.
//	ErrSolver        - numerical failure inside the backend.
//	ErrNodeLimit     - MILP search budget exhausted before any integral solution.
//	ErrDuplicateVar  - a variable name is defined twice.
//	ErrUnknownVar    - an expression references a variable of another problem.
//	ErrInvalidBounds - lower > upper or NaN bounds.
//	ErrUnsupported   - the backend lacks a requested capability.
//
// Backends live in sub-packages (lp/simplex). lp/lpmetrics decorates any
// Solver with Prometheus instrumentation.
package lp
