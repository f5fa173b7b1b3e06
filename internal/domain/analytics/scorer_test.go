package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

func TestScoreRelationship_ZeroInputs(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")

	scorer := mustScorer(g, newFakeSignal())

	strength, err := scorer.ScoreRelationship(context.Background(), "A", "B")
	require.NoError(t, err)

	assert.Equal(t, 0.0, strength.Strength)
	assert.Equal(t, 0, strength.CommonFriends)
	assert.Equal(t, 0, strength.Interactions)
	assert.False(t, strength.Degraded)
}

func TestScoreRelationship_Symmetry(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("A", "M1")
	g.addEdge("B", "M1")
	g.addEdge("A", "M2")
	g.addEdge("B", "M2")

	signal := newFakeSignal()
	signal.set("A", "B", 12)

	scorer := mustScorer(g, signal)

	ab, err := scorer.ScoreRelationship(context.Background(), "A", "B")
	require.NoError(t, err)
	ba, err := scorer.ScoreRelationship(context.Background(), "B", "A")
	require.NoError(t, err)

	assert.Equal(t, ab.CommonFriends, ba.CommonFriends)
	assert.Equal(t, ab.Strength, ba.Strength)
	assert.Equal(t, 2, ab.CommonFriends)
}

func TestStrengthFrom_Bounded(t *testing.T) {
	scorer := mustScorer(newFakeGraph(), newFakeSignal())

	cases := []struct {
		common       int
		interactions int
	}{
		{0, 0}, {1, 0}, {0, 1}, {5, 20}, {100, 0}, {0, 1000}, {100000, 100000},
	}

	for _, tc := range cases {
		s := scorer.StrengthFrom(tc.common, tc.interactions)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)

		if tc.common == 0 && tc.interactions == 0 {
			assert.Equal(t, 0.0, s)
		} else {
			assert.Greater(t, s, 0.0)
		}
	}
}

func TestStrengthFrom_Monotone(t *testing.T) {
	scorer := mustScorer(newFakeGraph(), newFakeSignal())

	prev := -1.0
	for common := 0; common <= 50; common++ {
		s := scorer.StrengthFrom(common, 10)
		assert.Greater(t, s, prev)
		prev = s
	}

	prev = -1.0
	for interactions := 0; interactions <= 50; interactions++ {
		s := scorer.StrengthFrom(3, interactions)
		assert.Greater(t, s, prev)
		prev = s
	}
}

func TestScoreRelationship_Self(t *testing.T) {
	g := newFakeGraph()
	g.addUser("A")

	scorer := mustScorer(g, newFakeSignal())

	_, err := scorer.ScoreRelationship(context.Background(), "A", "A")
	assert.ErrorIs(t, err, shared.ErrSelfRelationship)
}

func TestScoreRelationship_DegradedOnSignalTimeout(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("A", "M")
	g.addEdge("B", "M")

	signal := newFakeSignal()
	signal.err = shared.ErrInteractionStoreTimeout

	scorer := mustScorer(g, signal)

	strength, err := scorer.ScoreRelationship(context.Background(), "A", "B")
	require.NoError(t, err)

	assert.True(t, strength.Degraded)
	assert.Equal(t, 0, strength.Interactions)
	assert.Equal(t, 1, strength.CommonFriends)
	assert.Greater(t, strength.Strength, 0.0)
}

func TestScorerConfig_Validate(t *testing.T) {
	valid := DefaultScorerConfig()
	assert.NoError(t, valid.Validate())

	zero := DefaultScorerConfig()
	zero.KCommon = 0
	assert.ErrorIs(t, zero.Validate(), shared.ErrInvalidInput)

	negative := DefaultScorerConfig()
	negative.Weights.Interactions = -1
	assert.ErrorIs(t, negative.Validate(), shared.ErrInvalidInput)

	bothZero := DefaultScorerConfig()
	bothZero.Weights = ScoreWeights{}
	assert.ErrorIs(t, bothZero.Validate(), shared.ErrInvalidInput)
}
