// Package lpmetrics decorates an lp.Solver with Prometheus instrumentation.
//
// Every Solve is counted by outcome (optimal, infeasible, unbounded,
// node_limit, error) and timed in a histogram. Problems created through the
// decorator behave exactly like the wrapped ones.
package lpmetrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/katalvlaran/metnet/lp"
)

// Outcome labels.
const (
	OutcomeOptimal    = "optimal"
	OutcomeInfeasible = "infeasible"
	OutcomeUnbounded  = "unbounded"
	OutcomeNodeLimit  = "node_limit"
	OutcomeError      = "error"
)

// Metrics holds the collectors shared by all instrumented problems.
type Metrics struct {
	Solves   *prometheus.CounterVec
	Duration prometheus.Histogram
	Problems prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg (nil skips
// registration).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metnet",
			Subsystem: "lp",
			Name:      "solves_total",
			Help:      "LP/MILP solves by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metnet",
			Subsystem: "lp",
			Name:      "solve_duration_seconds",
			Help:      "Wall time of a single Solve call.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		Problems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metnet",
			Subsystem: "lp",
			Name:      "problems_created_total",
			Help:      "Problems created through the instrumented solver.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Solves, m.Duration, m.Problems} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Outcome classifies a Solve error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOptimal
	case errors.Is(err, lp.ErrInfeasible):
		return OutcomeInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return OutcomeUnbounded
	case errors.Is(err, lp.ErrNodeLimit):
		return OutcomeNodeLimit
	default:
		return OutcomeError
	}
}

// Solver wraps another lp.Solver.
type Solver struct {
	inner   lp.Solver
	metrics *Metrics
}

// Instrument returns inner wrapped with m.
func Instrument(inner lp.Solver, m *Metrics) *Solver {
	return &Solver{inner: inner, metrics: m}
}

// CreateProblem implements lp.Solver.
func (s *Solver) CreateProblem() lp.Problem {
	s.metrics.Problems.Inc()
	return &problem{Problem: s.inner.CreateProblem(), metrics: s.metrics}
}

type problem struct {
	lp.Problem
	metrics *Metrics
}

func (p *problem) Solve(ctx context.Context) (*lp.Result, error) {
	start := time.Now()
	r, err := p.Problem.Solve(ctx)
	p.metrics.Duration.Observe(time.Since(start).Seconds())
	p.metrics.Solves.WithLabelValues(Outcome(err)).Inc()

	return r, err
}
