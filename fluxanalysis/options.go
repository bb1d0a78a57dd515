package fluxanalysis

import (
	"log/slog"

	"github.com/katalvlaran/metnet/reaction"
)

// Options configures flux problems.
type Options struct {
	// ImplicitSinks relaxes mass balance to Σ ≥ 0 so compounds may accumulate.
	ImplicitSinks bool
	// Sinks relaxes the balance of the compounds it accepts.
	Sinks func(reaction.Compound) bool
	// Weights scale the L1 term of each reaction (default 1).
	Weights map[string]float64
	Logger  *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

func newOptions(opts []Option) Options {
	o := Options{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithImplicitSinks relaxes every mass balance to ≥ 0.
func WithImplicitSinks() Option {
	return func(o *Options) { o.ImplicitSinks = true }
}

// WithSinks relaxes the balance to ≥ 0 for compounds accepted by pred.
func WithSinks(pred func(reaction.Compound) bool) Option {
	return func(o *Options) { o.Sinks = pred }
}

// WithWeights sets per-reaction L1 weights.
func WithWeights(w map[string]float64) Option {
	return func(o *Options) { o.Weights = w }
}

// WithLogger routes debug output to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// weight returns w[id] or 1.
func weight(w map[string]float64, id string) float64 {
	if v, ok := w[id]; ok {
		return v
	}
	return 1
}
