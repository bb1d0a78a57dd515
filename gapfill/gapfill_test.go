package gapfill_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/metnet/fluxanalysis"
	"github.com/katalvlaran/metnet/gapfill"
	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/lp/simplex"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

const epsilon = 1e-3

var core = []string{"EX_A", "EX_C", "R1"}

type GapFillSuite struct {
	suite.Suite
	db     *metabolic.DictDatabase
	solver *simplex.Solver
	ctx    context.Context
}

// The core takes up A and turns it into B, but nothing links B to the C
// exchange. R2 closes the gap, R3 bypasses R1 at a higher price.
func (s *GapFillSuite) SetupTest() {
	s.db = metabolic.NewDictDatabase()
	for id, eq := range map[string]string{
		"EX_A": "=> |A|",
		"R1":   "|A| => |B|",
		"EX_C": "|C| =>",
		"R2":   "|B| => |C|",
		"R2r":  "|C| => |B|",
		"R3":   "|A| => |C|",
		"R4":   "|B| => |D|",
	} {
		s.db.SetReaction(id, reaction.MustParse(eq))
	}
	s.solver = simplex.New()
	s.ctx = context.Background()
}

func (s *GapFillSuite) model(ids ...string) *metabolic.Model {
	m, err := metabolic.LoadModel(s.db, ids)
	s.Require().NoError(err)
	return m
}

func (s *GapFillSuite) TestTargetReaction() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3", "R4")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithTargetReaction("EX_C"),
		gapfill.WithWeights(map[string]float64{"R3": 5}))
	s.Require().NoError(err)
	s.Equal([]string{"R2"}, res.Added)
	s.Empty(res.Expanded)
}

func (s *GapFillSuite) TestWeightsChangeTheAnswer() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3", "R4")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithTargetReaction("EX_C"),
		gapfill.WithWeights(map[string]float64{"R2": 5}))
	s.Require().NoError(err)
	s.Equal([]string{"R3"}, res.Added)
}

func (s *GapFillSuite) TestAlreadySatisfied() {
	m := s.model("EX_A", "EX_C", "R1", "R2")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, m.Reactions(), epsilon,
		gapfill.WithTargetReaction("EX_C"))
	s.Require().NoError(err)
	s.Empty(res.Added)
	s.Empty(res.Expanded)
}

func (s *GapFillSuite) TestInfeasible() {
	m := s.model("EX_A", "EX_C", "R1")
	_, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithTargetReaction("EX_C"))
	s.Require().Error(err)
	s.ErrorIs(err, gapfill.ErrGapFill)
	s.ErrorIs(err, lp.ErrInfeasible)

	var gfErr *gapfill.Error
	s.Require().True(errors.As(err, &gfErr))
	s.Equal([]string{"EX_C"}, gfErr.Targets)
}

func (s *GapFillSuite) TestExcludedReactionsAreIgnored() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithTargetReaction("EX_C"),
		gapfill.WithExclude("R2"),
		gapfill.WithWeights(map[string]float64{"R3": 5}))
	s.Require().NoError(err)
	s.Equal([]string{"R3"}, res.Added)
}

func (s *GapFillSuite) TestBlockedCompound() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3", "R4")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithBlocked(reaction.NewCompound("C")),
		gapfill.WithWeights(map[string]float64{"R3": 5}))
	s.Require().NoError(err)
	s.Equal([]string{"R2"}, res.Added)
}

func (s *GapFillSuite) TestBlockedCompoundWithImplicitSinks() {
	// D may accumulate, so R4 alone produces it.
	m := s.model("EX_A", "EX_C", "R1", "R2", "R4")
	res, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon,
		gapfill.WithBlocked(reaction.NewCompound("D")),
		gapfill.WithImplicitSinks())
	s.Require().NoError(err)
	s.Equal([]string{"R4"}, res.Added)
}

func (s *GapFillSuite) TestBoundsExpansion() {
	m := s.model("EX_A", "EX_C", "R1", "R2r")
	all := m.Reactions()

	_, err := gapfill.GapFill(s.ctx, m, s.solver, all, epsilon,
		gapfill.WithTargetReaction("EX_C"))
	s.ErrorIs(err, gapfill.ErrGapFill)

	res, err := gapfill.GapFill(s.ctx, m, s.solver, all, epsilon,
		gapfill.WithTargetReaction("EX_C"), gapfill.WithBoundsExpansion())
	s.Require().NoError(err)
	s.Empty(res.Added)
	s.Equal([]string{"R2r"}, res.Expanded)
}

func (s *GapFillSuite) TestArguments() {
	m := s.model("EX_A", "EX_C", "R1")
	_, err := gapfill.GapFill(s.ctx, m, s.solver, core, epsilon)
	s.ErrorIs(err, gapfill.ErrNoTarget)

	_, err = gapfill.GapFill(s.ctx, m, s.solver, core, -1, gapfill.WithTargetReaction("EX_C"))
	s.ErrorIs(err, gapfill.ErrInvalidEpsilon)

	_, err = gapfill.GapFill(s.ctx, m, s.solver, core, epsilon, gapfill.WithTargetReaction("nope"))
	s.ErrorIs(err, metabolic.ErrReactionNotFound)
}

func (s *GapFillSuite) TestFillCompoundsContinuesAfterFailure() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3")
	results, err := gapfill.FillCompounds(s.ctx, m, s.solver, core,
		[]reaction.Compound{reaction.NewCompound("Z"), reaction.NewCompound("C")}, epsilon,
		gapfill.WithWeights(map[string]float64{"R3": 5}))
	s.Require().NoError(err)
	s.Require().Len(results, 2)

	s.Equal("C", results[0].Compound.Name)
	s.Require().NoError(results[0].Err)
	s.Equal([]string{"R2"}, results[0].Result.Added)

	s.Equal("Z", results[1].Compound.Name)
	s.ErrorIs(results[1].Err, gapfill.ErrGapFill)
	s.Nil(results[1].Result)
}

func (s *GapFillSuite) TestPathwayExtraction() {
	m := s.model("EX_A", "EX_C", "R1", "R2", "R3")
	gap := []reaction.Compound{reaction.NewCompound("B"), reaction.NewCompound("C")}
	fluxes, err := gapfill.PathwayExtraction(s.ctx, m, s.solver,
		[]string{"EX_A", "EX_C", "R1", "R2"}, gap, reaction.NewCompound("C"))
	s.Require().NoError(err)

	s.InDelta(1000, fluxes[gapfill.ProductionReaction], 1e-6)
	s.InDelta(1000, fluxes["R2"], 1e-6)
	s.InDelta(0, fluxes["EX_C"], 1e-6)
	s.NotContains(fluxes, "R3")
}

func (s *GapFillSuite) TestPathwayExtraction_UnknownReaction() {
	m := s.model("EX_A", "EX_C", "R1")
	_, err := gapfill.PathwayExtraction(s.ctx, m, s.solver, []string{"R2"}, nil, reaction.NewCompound("C"))
	s.ErrorIs(err, metabolic.ErrReactionNotFound)
}

// failingSolver hands out problems whose Solve always returns err.
type failingSolver struct {
	lp.Solver
	err error
}

func (f failingSolver) CreateProblem() lp.Problem {
	return failingProblem{Problem: f.Solver.CreateProblem(), err: f.err}
}

type failingProblem struct {
	lp.Problem
	err error
}

func (p failingProblem) Solve(context.Context) (*lp.Result, error) { return nil, p.err }

func (s *GapFillSuite) TestSolverErrorsAreNotInfeasibility() {
	m := s.model("EX_A", "EX_C", "R1", "R2")
	for _, want := range []error{lp.ErrNodeLimit, lp.ErrSolver} {
		_, err := gapfill.GapFill(s.ctx, m, failingSolver{Solver: s.solver, err: want}, core, epsilon,
			gapfill.WithTargetReaction("EX_C"))
		s.ErrorIs(err, want)
		s.NotErrorIs(err, gapfill.ErrGapFill)

		var gfErr *gapfill.Error
		s.False(errors.As(err, &gfErr))
	}
}

// An extended model gives nine candidates (R_gap plus a source and a sink
// per compound); D is only unblocked by consuming it through R_gap.
func TestGapFill_ExtendedModelBlockedCompound(t *testing.T) {
	draft := metabolic.NewDictDatabase()
	for id, eq := range map[string]string{
		"EX_A":    "=> |A|",
		"R1":      "|A| => |B|",
		"R2":      "|B| => |C|",
		"Biomass": "|C| =>",
		"EX_C":    "|C| =>",
		"R_dead":  "|A| => |D|",
	} {
		draft.SetReaction(id, reaction.MustParse(eq))
	}
	reference := metabolic.NewDictDatabase()
	reference.SetReaction("R_gap", reaction.MustParse("|D| => |C|"))

	model, err := metabolic.LoadModel(draft, draft.Reactions(), metabolic.WithBiomass("Biomass"))
	require.NoError(t, err)
	require.NoError(t, model.SetLimits("EX_A", metabolic.Limits{Lower: 0, Upper: 10}))

	ext, weights, err := gapfill.ExtendModel(model, reference, gapfill.Penalties{Sink: 10})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := gapfill.GapFill(ctx, ext, simplex.New(), model.Reactions(), epsilon,
		gapfill.WithBlocked(reaction.NewCompound("D")),
		gapfill.WithExclude("Biomass"),
		gapfill.WithWeights(weights))
	require.NoError(t, err)
	assert.Equal(t, []string{"R_gap"}, res.Added)
	assert.Empty(t, res.Expanded)
}

func TestGapFillSuite(t *testing.T) {
	suite.Run(t, new(GapFillSuite))
}

func TestPathwayExtraction_Sinks(t *testing.T) {
	db := metabolic.NewDictDatabase()
	db.SetReaction("EX_A", reaction.MustParse("=> |A|"))
	db.SetReaction("R5", reaction.MustParse("|A| => |C| + |D|"))
	m, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)
	ctx := context.Background()
	solver := simplex.New()
	target := reaction.NewCompound("C")

	fluxes, err := gapfill.PathwayExtraction(ctx, m, solver, m.Reactions(), nil, target)
	require.NoError(t, err)
	assert.InDelta(t, 1000, fluxes[gapfill.ProductionReaction], 1e-6)

	// D cannot leave without sinks, so nothing is made.
	fluxes, err = gapfill.PathwayExtraction(ctx, m, solver, m.Reactions(), nil, target, gapfill.WithoutSinks())
	require.NoError(t, err)
	assert.InDelta(t, 0, fluxes[gapfill.ProductionReaction], 1e-6)

	var infeasible *fluxanalysis.InfeasibleError
	assert.False(t, errors.As(err, &infeasible))
}

func TestExtendModel(t *testing.T) {
	modelDB := metabolic.NewDictDatabase()
	modelDB.SetReaction("T1", reaction.MustParse("|A[e]| => |A[c]|"))
	modelDB.SetReaction("R1", reaction.MustParse("|A[c]| => |B[c]|"))
	m, err := metabolic.LoadModel(modelDB, modelDB.Reactions())
	require.NoError(t, err)

	extra := metabolic.NewDictDatabase()
	extra.SetReaction("DB1", reaction.MustParse("|B[c]| => |C[c]|"))

	ext, weights, err := gapfill.ExtendModel(m, extra, gapfill.Penalties{
		Database:  2,
		Source:    5,
		Transport: 3,
		Overrides: map[string]float64{"DB1": 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DB1", "R1",
		"SK_A[c]", "SK_A[e]", "SK_B[c]", "SK_C[c]",
		"SO_A[c]", "SO_A[e]", "SO_B[c]", "SO_C[c]",
		"T1", "TP_A_c_e", "TP_B_c_e", "TP_C_c_e",
	}, ext.Reactions())
	assert.False(t, m.HasReaction("DB1"), "original model untouched")

	assert.Equal(t, 0.5, weights["DB1"])
	assert.Equal(t, 5.0, weights["SO_B[c]"])
	assert.Equal(t, 3.0, weights["TP_C_c_e"])
	assert.NotContains(t, weights, "SK_A[c]")
	assert.NotContains(t, weights, "R1")

	tp, err := ext.Reaction("TP_B_c_e")
	require.NoError(t, err)
	assert.Equal(t, "|B[c]| <=> |B[e]|", tp.String())
	assert.True(t, ext.IsReversible("TP_B_c_e"))

	sink, err := ext.Reaction("SK_C[c]")
	require.NoError(t, err)
	assert.True(t, sink.OneSided())
}

func TestExtendModel_ExplicitBoundaries(t *testing.T) {
	db := metabolic.NewDictDatabase()
	db.SetReaction("R1", reaction.MustParse("|A[c]| => |A[p]|"))
	m, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)

	ext, _, err := gapfill.ExtendModel(m, metabolic.NewDictDatabase(), gapfill.Penalties{
		Boundaries: [][2]string{{"e", "c"}, {"c", "e"}, {"c", "c"}},
	})
	require.NoError(t, err)
	assert.True(t, ext.HasReaction("TP_A_c_e"))
	assert.False(t, ext.HasReaction("TP_A_c_p"))
}
