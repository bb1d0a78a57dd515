package fastcore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/metnet/fastcore"
	"github.com/katalvlaran/metnet/fluxanalysis"
	"github.com/katalvlaran/metnet/lp/simplex"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

const epsilon = 1e-3

type FastcoreSuite struct {
	suite.Suite
	db     *metabolic.DictDatabase
	model  *metabolic.Model
	solver *simplex.Solver
	ctx    context.Context
}

// A enters, reaches C through R1+R2 or R3 and leaves; K leaves via the
// reverse-only R5. R_dead and R_rev_dead can never carry flux.
func (s *FastcoreSuite) SetupTest() {
	s.db = metabolic.NewDictDatabase()
	for id, eq := range map[string]string{
		"EX_A":       "=> |A|",
		"R1":         "|A| => |B|",
		"R2":         "|B| <=> |C|",
		"R3":         "|A| => |C|",
		"EX_C":       "|C| =>",
		"R5":         "|K| <= |C|",
		"EX_K":       "|K| =>",
		"R_dead":     "|A| => |D|",
		"R_rev_dead": "|E| <=> |F|",
	} {
		s.db.SetReaction(id, reaction.MustParse(eq))
	}
	var err error
	s.model, err = metabolic.LoadModel(s.db, s.db.Reactions())
	s.Require().NoError(err)
	s.solver = simplex.New()
	s.ctx = context.Background()
}

func (s *FastcoreSuite) TestFastCC() {
	inconsistent, err := fastcore.FastCC(s.ctx, s.model, s.solver, epsilon)
	s.Require().NoError(err)
	s.Equal([]string{"R_dead", "R_rev_dead"}, inconsistent)

	consistent, err := fastcore.FastCCConsistentSubset(s.ctx, s.model, s.solver, epsilon)
	s.Require().NoError(err)
	s.Equal([]string{"EX_A", "EX_C", "EX_K", "R1", "R2", "R3", "R5"}, consistent)
}

func (s *FastcoreSuite) TestFastCC_Idempotent() {
	consistent, err := fastcore.FastCCConsistentSubset(s.ctx, s.model, s.solver, epsilon)
	s.Require().NoError(err)

	sub, err := metabolic.LoadModel(s.db, consistent)
	s.Require().NoError(err)
	again, err := fastcore.FastCCConsistentSubset(s.ctx, sub, s.solver, epsilon)
	s.Require().NoError(err)
	s.Equal(consistent, again)
}

func (s *FastcoreSuite) TestFastCC_InvalidEpsilon() {
	_, err := fastcore.FastCC(s.ctx, s.model, s.solver, 0)
	s.ErrorIs(err, fastcore.ErrInvalidEpsilon)
}

func (s *FastcoreSuite) TestFastCore_MinimalExtension() {
	res, err := fastcore.FastCore(s.ctx, s.model, s.solver, []string{"R1"}, epsilon)
	s.Require().NoError(err)
	s.NoError(res.Err())
	s.Empty(res.Irreconcilable)
	s.Equal([]string{"EX_A", "EX_C", "R1", "R2"}, res.Reactions)

	// Dropping any extra reaction blocks the core.
	for _, drop := range res.Reactions {
		if drop == "R1" {
			continue
		}
		var keep []string
		for _, id := range res.Reactions {
			if id != drop {
				keep = append(keep, id)
			}
		}
		sub, err := metabolic.LoadModel(s.db, keep)
		s.Require().NoError(err)
		fluxes, err := fluxanalysis.FluxBalance(s.ctx, sub, s.solver, "R1")
		s.Require().NoError(err)
		s.Less(fluxes["R1"], epsilon, "without %s", drop)
	}
}

func (s *FastcoreSuite) TestFastCore_WeightsSteerTheChoice() {
	// Core EX_C can be fed through R3 or R1+R2; R3 is cheaper by default.
	res, err := fastcore.FastCore(s.ctx, s.model, s.solver, []string{"EX_C"}, epsilon)
	s.Require().NoError(err)
	s.Contains(res.Reactions, "R3")
	s.NotContains(res.Reactions, "R1")

	res, err = fastcore.FastCore(s.ctx, s.model, s.solver, []string{"EX_C"}, epsilon,
		fastcore.WithWeights(map[string]float64{"R3": 10}))
	s.Require().NoError(err)
	s.Contains(res.Reactions, "R1")
	s.NotContains(res.Reactions, "R3")
}

func (s *FastcoreSuite) TestFastCore_ReverseOnlyCore() {
	res, err := fastcore.FastCore(s.ctx, s.model, s.solver, []string{"R5"}, epsilon)
	s.Require().NoError(err)
	s.Empty(res.Irreconcilable)
	s.Contains(res.Reactions, "R5")
	s.Contains(res.Reactions, "EX_K")
}

func (s *FastcoreSuite) TestFastCore_Irreconcilable() {
	res, err := fastcore.FastCore(s.ctx, s.model, s.solver, []string{"R1", "R_dead", "R_rev_dead"}, epsilon)
	s.Require().NoError(err)
	s.Equal([]string{"R_dead", "R_rev_dead"}, res.Irreconcilable)
	s.Contains(res.Reactions, "R1")
	s.NotContains(res.Reactions, "R_dead")
	s.NotContains(res.Reactions, "R_rev_dead")
	s.ErrorIs(res.Err(), fastcore.ErrIrreconcilableCore)
}

func (s *FastcoreSuite) TestFastCore_UnknownCore() {
	_, err := fastcore.FastCore(s.ctx, s.model, s.solver, []string{"nope"}, epsilon)
	s.ErrorIs(err, metabolic.ErrReactionNotFound)
}

func TestFastcoreSuite(t *testing.T) {
	suite.Run(t, new(FastcoreSuite))
}

func TestWithScalingPanics(t *testing.T) {
	require.Panics(t, func() { fastcore.WithScaling(0) })
}

// branchedChain builds M0 → M1 → … → Mn with a side branch Mi → Ni → out
// at every step; every twentieth branch also feeds a dead end Zi.
func branchedChain(t *testing.T, n int) (*metabolic.Model, []string) {
	t.Helper()
	db := metabolic.NewDictDatabase()
	db.SetReaction("EX_in", reaction.MustParse("=> |M0|"))
	db.SetReaction("EX_out", reaction.MustParse(fmt.Sprintf("|M%d| =>", n)))
	var dead []string
	for i := 0; i < n; i++ {
		db.SetReaction(fmt.Sprintf("C%03d", i), reaction.MustParse(fmt.Sprintf("|M%d| => |M%d|", i, i+1)))
		db.SetReaction(fmt.Sprintf("B%03d", i), reaction.MustParse(fmt.Sprintf("|M%d| => |N%d|", i, i)))
		db.SetReaction(fmt.Sprintf("X%03d", i), reaction.MustParse(fmt.Sprintf("|N%d| =>", i)))
		if i%20 == 0 {
			id := fmt.Sprintf("D%03d", i)
			db.SetReaction(id, reaction.MustParse(fmt.Sprintf("|N%d| => |Z%d|", i, i)))
			dead = append(dead, id)
		}
	}
	model, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)

	return model, dead
}

func TestFastCC_BranchedChain(t *testing.T) {
	model, dead := branchedChain(t, 120)
	require.Equal(t, 368, model.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	solver := simplex.New()

	fluxes, err := fluxanalysis.FluxBalance(ctx, model, solver, "EX_out")
	require.NoError(t, err)
	require.InDelta(t, 1000, fluxes["EX_out"], 1e-6)

	inconsistent, err := fastcore.FastCC(ctx, model, solver, epsilon)
	require.NoError(t, err)
	require.Equal(t, dead, inconsistent)
}
