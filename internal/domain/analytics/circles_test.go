package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

func mustClassifier(store graph.GraphStore, scorer *RelationshipScorer) *CircleClassifier {
	c, err := NewCircleClassifier(store, scorer, DefaultCircleThresholds())
	if err != nil {
		panic(err)
	}
	return c
}

func TestClassifyCircles_Partition(t *testing.T) {
	g := newFakeGraph()
	// close: heavy interactions with "best"
	g.addEdge("me", "best")
	// distant: one mutual friend with "pal"
	g.addEdge("me", "pal")
	g.addEdge("best", "pal")
	// other: no signal at all with "stranger"
	g.addEdge("me", "stranger")

	signal := newFakeSignal()
	signal.set("me", "best", 100)
	signal.set("me", "pal", 3)

	classifier := mustClassifier(g, mustScorer(g, signal))

	result, err := classifier.ClassifyCircles(context.Background(), "me")
	require.NoError(t, err)
	assert.False(t, result.Degraded)

	// Union of circle members == direct friend set, no duplicates.
	seen := map[graph.UserID]int{}
	total := 0
	for _, circle := range result.Circles {
		assert.Equal(t, len(circle.Members), circle.Size)
		assert.NotEmpty(t, circle.Members)
		for _, m := range circle.Members {
			seen[m]++
			total++
			assert.NotEqual(t, graph.UserID("me"), m)
		}
	}
	assert.Equal(t, 3, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "friend %s must belong to exactly one circle", id)
	}
}

func TestClassifyCircles_StableOrder(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "best")
	g.addEdge("me", "pal")
	g.addEdge("best", "pal")
	g.addEdge("me", "stranger")

	signal := newFakeSignal()
	signal.set("me", "best", 100)
	signal.set("me", "pal", 3)

	classifier := mustClassifier(g, mustScorer(g, signal))

	result, err := classifier.ClassifyCircles(context.Background(), "me")
	require.NoError(t, err)

	var order []CircleType
	for _, c := range result.Circles {
		order = append(order, c.Type)
	}
	// Fixed display priority, not size-sorted.
	assert.Equal(t, []CircleType{CircleClose, CircleDistant, CircleOther}, order)
}

func TestClassifyCircles_EmptyBucketsOmitted(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "stranger")

	classifier := mustClassifier(g, mustScorer(g, newFakeSignal()))

	result, err := classifier.ClassifyCircles(context.Background(), "me")
	require.NoError(t, err)

	require.Len(t, result.Circles, 1)
	assert.Equal(t, CircleOther, result.Circles[0].Type)
}

func TestClassifyCircles_NoFriends(t *testing.T) {
	g := newFakeGraph()
	g.addUser("loner")

	classifier := mustClassifier(g, mustScorer(g, newFakeSignal()))

	result, err := classifier.ClassifyCircles(context.Background(), "loner")
	require.NoError(t, err)
	assert.Empty(t, result.Circles)
}

func TestClassifyCircles_DegradedSignal(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "friend")

	signal := newFakeSignal()
	signal.err = shared.ErrInteractionStoreTimeout

	classifier := mustClassifier(g, mustScorer(g, signal))

	result, err := classifier.ClassifyCircles(context.Background(), "me")
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.Len(t, result.Circles, 1)
}

func TestCircleThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultCircleThresholds().Validate())

	inverted := CircleThresholds{Close: 0.2, Distant: 0.6}
	assert.ErrorIs(t, inverted.Validate(), shared.ErrInvalidInput)

	outOfRange := CircleThresholds{Close: 1.0, Distant: 0.25}
	assert.ErrorIs(t, outOfRange.Validate(), shared.ErrInvalidInput)
}
