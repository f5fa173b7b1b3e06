package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

func newEngine(g *fakeGraph, activity ActivityRanker, privacy *fakePrivacy, requests *fakeRequests) *RecommendationEngine {
	if privacy == nil {
		privacy = &fakePrivacy{}
	}
	if requests == nil {
		requests = &fakeRequests{}
	}
	return NewRecommendationEngine(g, NewInfluenceCalculator(g), activity, privacy, requests)
}

func recommendedIDs(result *RecommendResult) []string {
	out := make([]string, 0, len(result.Recommendations))
	for _, r := range result.Recommendations {
		out = append(out, r.UserID.String())
	}
	return out
}

func TestRecommend_ActivityFirstThenProximity(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	g.addEdge("f1", "fof1")
	g.addEdge("f1", "fof2")
	g.addUser("act1")
	g.addUser("act2")

	activity := &fakeActivity{ranked: []graph.UserID{"act1", "act2"}}

	engine := newEngine(g, activity, nil, nil)

	result, err := engine.Recommend(context.Background(), "me", 10)
	require.NoError(t, err)
	assert.False(t, result.Degraded)

	assert.Equal(t, []string{"act1", "act2", "fof1", "fof2"}, recommendedIDs(result))
	assert.Equal(t, ReasonActivity, result.Recommendations[0].Reason)
	assert.Equal(t, ReasonProximity, result.Recommendations[2].Reason)
}

func TestRecommend_DedupAcrossGenerators(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	g.addEdge("f1", "shared")
	g.addEdge("f1", "fof")

	activity := &fakeActivity{ranked: []graph.UserID{"shared"}}

	engine := newEngine(g, activity, nil, nil)

	result, err := engine.Recommend(context.Background(), "me", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"shared", "fof"}, recommendedIDs(result))
	assert.Equal(t, ReasonBoth, result.Recommendations[0].Reason)
}

func TestRecommend_ExcludesSelfAndFriends(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	g.addEdge("me", "f2")
	g.addEdge("f1", "f2") // existing friend reachable at distance 2 too
	g.addEdge("f2", "cand")

	activity := &fakeActivity{ranked: []graph.UserID{"f1", "me"}}

	engine := newEngine(g, activity, nil, nil)

	result, err := engine.Recommend(context.Background(), "me", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"cand"}, recommendedIDs(result))
}

func TestRecommend_ExcludesPendingAndBlocked(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	g.addEdge("f1", "pending")
	g.addEdge("f1", "hidden")
	g.addEdge("f1", "open")

	privacy := &fakePrivacy{blocked: map[graph.UserID]bool{"hidden": true}}
	requests := &fakeRequests{pending: map[graph.UserID]bool{"pending": true}}

	engine := newEngine(g, &fakeActivity{}, privacy, requests)

	result, err := engine.Recommend(context.Background(), "me", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"open"}, recommendedIDs(result))
}

func TestRecommend_DegradedOnActivityFailure(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	g.addEdge("f1", "fof")

	activity := &fakeActivity{err: shared.ErrServiceUnavailable}

	engine := newEngine(g, activity, nil, nil)

	result, err := engine.Recommend(context.Background(), "me", 10)
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, []string{"fof"}, recommendedIDs(result))
}

func TestRecommend_LimitApplied(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("me", "f1")
	for _, id := range []graph.UserID{"c1", "c2", "c3", "c4", "c5"} {
		g.addEdge("f1", id)
	}

	engine := newEngine(g, &fakeActivity{}, nil, nil)

	result, err := engine.Recommend(context.Background(), "me", 3)
	require.NoError(t, err)
	assert.Len(t, result.Recommendations, 3)
}

func TestRecommend_UnknownUser(t *testing.T) {
	g := newFakeGraph()

	engine := newEngine(g, &fakeActivity{}, nil, nil)

	_, err := engine.Recommend(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
