package lp

import "errors"

// Sentinel errors shared by all backends. Backends wrap them with detail;
// callers match with errors.Is.
var (
	// ErrInfeasible indicates the constraints and bounds admit no solution.
	ErrInfeasible = errors.New("lp: problem is infeasible")

	// ErrUnbounded indicates the objective can be improved without limit.
	ErrUnbounded = errors.New("lp: problem is unbounded")

	// ErrSolver indicates a numerical failure inside the backend.
	ErrSolver = errors.New("lp: solver failure")

	// ErrNodeLimit indicates the MILP node budget ran out before any
	// integral solution was found.
	ErrNodeLimit = errors.New("lp: node limit reached without integral solution")

	// ErrDuplicateVar indicates a variable name was defined twice.
	ErrDuplicateVar = errors.New("lp: duplicate variable")

	// ErrUnknownVar indicates a reference to a variable the problem does not own.
	ErrUnknownVar = errors.New("lp: unknown variable")

	// ErrInvalidBounds indicates lower > upper or a NaN bound.
	ErrInvalidBounds = errors.New("lp: invalid variable bounds")

	// ErrUnsupported indicates the backend lacks a requested capability.
	ErrUnsupported = errors.New("lp: unsupported by backend")
)
