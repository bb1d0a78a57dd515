package lpmetrics_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/lp/lpmetrics"
	"github.com/katalvlaran/metnet/lp/simplex"
)

func TestInstrument_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := lpmetrics.NewMetrics(reg)
	require.NoError(t, err)
	s := lpmetrics.Instrument(simplex.New(), m)

	p := s.CreateProblem()
	x, err := p.Define("x", 0, 2)
	require.NoError(t, err)
	p.SetObjective(lp.Sum(x), lp.Maximize)
	r, err := p.Solve(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 2, r.Objective(), 1e-9)

	_, err = p.AddConstraints(lp.GreaterEq(lp.Sum(x), 5))
	require.NoError(t, err)
	_, err = p.Solve(context.Background())
	require.ErrorIs(t, err, lp.ErrInfeasible)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Solves.WithLabelValues(lpmetrics.OutcomeOptimal)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Solves.WithLabelValues(lpmetrics.OutcomeInfeasible)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Problems))
	require.Equal(t, 3, testutil.CollectAndCount(m.Solves)+testutil.CollectAndCount(m.Problems))

	families, err := reg.Gather()
	require.NoError(t, err)
	var hist *dto.Histogram
	for _, f := range families {
		if f.GetName() == "metnet_lp_solve_duration_seconds" {
			hist = f.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	require.Equal(t, uint64(2), hist.GetSampleCount())

	_, err = lpmetrics.NewMetrics(reg)
	require.Error(t, err, "double registration")
}

func TestOutcome(t *testing.T) {
	require.Equal(t, lpmetrics.OutcomeOptimal, lpmetrics.Outcome(nil))
	require.Equal(t, lpmetrics.OutcomeUnbounded, lpmetrics.Outcome(fmt.Errorf("wrap: %w", lp.ErrUnbounded)))
	require.Equal(t, lpmetrics.OutcomeNodeLimit, lpmetrics.Outcome(lp.ErrNodeLimit))
	require.Equal(t, lpmetrics.OutcomeError, lpmetrics.Outcome(lp.ErrSolver))
}
