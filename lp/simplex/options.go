package simplex

import "math"

// Defaults for Options.
const (
	// DefaultTolerance is the pricing and zero tolerance of the tableau;
	// phase one accepts artificial mass up to 1e3 times this value.
	DefaultTolerance = 1e-9

	// DefaultIntegralityTolerance is the distance from 0 or 1 under which a
	// binary relaxation value counts as integral.
	DefaultIntegralityTolerance = 1e-9

	// DefaultNodeLimit bounds the number of branch-and-bound nodes.
	DefaultNodeLimit = 100000
)

const (
	panicToleranceInvalid = "simplex: tolerance must be finite and > 0"
	panicNodeLimitInvalid = "simplex: node limit must be ≥ 0"
)

// Options configures the backend.
type Options struct {
	Tolerance            float64
	IntegralityTolerance float64
	NodeLimit            int // 0 disables the limit
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance:            DefaultTolerance,
		IntegralityTolerance: DefaultIntegralityTolerance,
		NodeLimit:            DefaultNodeLimit,
	}
}

// WithTolerance sets the numeric tolerance. Panics on nonsensical values.
func WithTolerance(tol float64) Option {
	if !(tol > 0) || math.IsInf(tol, 0) {
		panic(panicToleranceInvalid)
	}
	return func(o *Options) { o.Tolerance = tol }
}

// WithIntegralityTolerance sets the binary integrality tolerance.
func WithIntegralityTolerance(tol float64) Option {
	if !(tol > 0) || math.IsInf(tol, 0) {
		panic(panicToleranceInvalid)
	}
	return func(o *Options) { o.IntegralityTolerance = tol }
}

// WithNodeLimit bounds the branch-and-bound search (0 = unlimited).
func WithNodeLimit(n int) Option {
	if n < 0 {
		panic(panicNodeLimitInvalid)
	}
	return func(o *Options) { o.NodeLimit = n }
}
