package fluxanalysis

import (
	"errors"
	"fmt"
)

// ErrFBAInfeasible is matched by every infeasible top-level flux analysis.
var ErrFBAInfeasible = errors.New("fluxanalysis: infeasible flux balance problem")

// ErrInvalidFraction is returned for objective fractions outside [0, 1].
var ErrInvalidFraction = errors.New("fluxanalysis: fraction must be within [0, 1]")

// InfeasibleError reports the objective whose problem had no feasible flux.
type InfeasibleError struct {
	Objective string
	Err       error
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("fluxanalysis: maximizing %q: %v", e.Objective, e.Err)
}

// Unwrap exposes both ErrFBAInfeasible and the solver error.
func (e *InfeasibleError) Unwrap() []error { return []error{ErrFBAInfeasible, e.Err} }
