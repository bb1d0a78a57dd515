package massconsistency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/metnet/lp/simplex"
	"github.com/katalvlaran/metnet/massconsistency"
	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

type MassSuite struct {
	suite.Suite
	db     *metabolic.DictDatabase
	model  *metabolic.Model
	solver *simplex.Solver
	ctx    context.Context
}

func (s *MassSuite) SetupTest() {
	s.db = metabolic.NewDictDatabase()
	for id, eq := range map[string]string{
		"rxn_1": "=> (2) |A|",
		"rxn_2": "|A| <=> |B|",
		"rxn_3": "|A| => |D|",
		"rxn_4": "|A| => |C|",
		"rxn_5": "|C| => |D|",
		"rxn_6": "|D| =>",
	} {
		s.db.SetReaction(id, reaction.MustParse(eq))
	}
	var err error
	s.model, err = metabolic.LoadModel(s.db, s.db.Reactions())
	s.Require().NoError(err)
	s.solver = simplex.New()
	s.ctx = context.Background()
}

func (s *MassSuite) exchange() massconsistency.Option {
	return massconsistency.WithExchange("rxn_1", "rxn_6")
}

func (s *MassSuite) TestIsConsistent() {
	ok, err := massconsistency.IsConsistent(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)
	s.True(ok)
}

func (s *MassSuite) TestIsConsistent_MassCreatingCycle() {
	s.db.SetReaction("rxn_7", reaction.MustParse("|D| => (2) |C|"))
	s.Require().NoError(s.model.AddReaction("rxn_7"))

	ok, err := massconsistency.IsConsistent(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *MassSuite) TestReactionConsistency_ReturnsCompounds() {
	residuals, masses, err := massconsistency.CheckReactionConsistency(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)

	s.Len(masses, 4)
	for name, m := range masses {
		s.GreaterOrEqual(m, 1.0, name)
	}
	s.Len(residuals, 4, "exchange reactions carry no residual")
	for id, r := range residuals {
		s.True(s.model.HasReaction(id))
		s.InDelta(0, r, 1e-9, id)
	}
}

func (s *MassSuite) TestReactionConsistency_FlagsCycle() {
	s.db.SetReaction("rxn_7", reaction.MustParse("|D| => (2) |C|"))
	s.Require().NoError(s.model.AddReaction("rxn_7"))

	residuals, _, err := massconsistency.CheckReactionConsistency(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)

	var total float64
	for _, r := range residuals {
		total += r
	}
	s.Greater(total, 0.5)
}

func (s *MassSuite) TestCompoundConsistency_FlagsCycle() {
	s.db.SetReaction("rxn_7", reaction.MustParse("|D| => (2) |C|"))
	s.Require().NoError(s.model.AddReaction("rxn_7"))

	masses, err := massconsistency.CheckCompoundConsistency(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)
	s.Less(masses["C"], 1.0)
	s.Less(masses["D"], 1.0)
}

func (s *MassSuite) TestAgreement() {
	ok, err := massconsistency.IsConsistent(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)
	s.Require().True(ok)

	masses, err := massconsistency.CheckCompoundConsistency(s.ctx, s.model, s.solver, s.exchange())
	s.Require().NoError(err)
	for name, m := range masses {
		s.GreaterOrEqual(m, 1.0, name)
	}
}

func TestMassSuite(t *testing.T) {
	suite.Run(t, new(MassSuite))
}

func zeroMassModel(t *testing.T) *metabolic.Model {
	t.Helper()
	db := metabolic.NewDictDatabase()
	db.SetReaction("rxn_1", reaction.MustParse("|A| + |B| => |C|"))
	db.SetReaction("rxn_2", reaction.MustParse("|C| + |Z| => |A| + |B|"))
	m, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)

	return m
}

func TestZeroMass(t *testing.T) {
	ctx := context.Background()
	m := zeroMassModel(t)
	zero := massconsistency.WithZeroMass("Z")

	ok, err := massconsistency.IsConsistent(ctx, m, simplex.New(), zero)
	require.NoError(t, err)
	require.True(t, ok)

	masses, err := massconsistency.CheckCompoundConsistency(ctx, m, simplex.New(), zero)
	require.NoError(t, err)
	require.Equal(t, 0.0, masses["Z"])
	for name, v := range masses {
		if name != "Z" {
			require.GreaterOrEqual(t, v, 1.0, name)
		}
	}

	residuals, _, err := massconsistency.CheckReactionConsistency(ctx, m, simplex.New(), zero)
	require.NoError(t, err)
	require.Len(t, residuals, 2)
	for id, r := range residuals {
		require.Equal(t, 0.0, r, id)
	}
}

func TestZeroMass_WithoutExemption(t *testing.T) {
	ok, err := massconsistency.IsConsistent(context.Background(), zeroMassModel(t), simplex.New())
	require.NoError(t, err)
	require.False(t, ok, "Z would need mass 0")
}

// The cycle A → B → A with the side product D balances only when D has no
// mass, so D is the single compound left below 1.
func TestCompoundConsistency_InconsistentCompound(t *testing.T) {
	db := metabolic.NewDictDatabase()
	db.SetReaction("fwd", reaction.MustParse("|A| => |B| + |D|"))
	db.SetReaction("back", reaction.MustParse("|B| => |A|"))
	db.SetReaction("conv", reaction.MustParse("(2) |A| <=> |C|"))
	m, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)

	masses, err := massconsistency.CheckCompoundConsistency(context.Background(), m, simplex.New())
	require.NoError(t, err)
	require.Len(t, masses, 4)
	require.Equal(t, 0.0, masses["D"])
	require.Equal(t, 1.0, masses["A"])
	require.Equal(t, 1.0, masses["B"])
	require.InDelta(t, 2.0, masses["C"], 1e-9)
}

func TestCompartmentsShareMass(t *testing.T) {
	db := metabolic.NewDictDatabase()
	db.SetReaction("tp", reaction.MustParse("|A[e]| <=> |A[c]|"))
	db.SetReaction("conv", reaction.MustParse("(2) |A[c]| => |B[c]|"))
	m, err := metabolic.LoadModel(db, db.Reactions())
	require.NoError(t, err)

	_, masses, err := massconsistency.CheckReactionConsistency(context.Background(), m, simplex.New())
	require.NoError(t, err)
	require.Len(t, masses, 2)
	require.InDelta(t, 2*masses["A"], masses["B"], 1e-6)
}
