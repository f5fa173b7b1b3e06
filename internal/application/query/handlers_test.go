package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
)

// testEnv wires the in-memory stack the handlers run against.
type testEnv struct {
	graph     *memory.GraphStore
	signal    *memory.InteractionStore
	users     *memory.UserDirectory
	cache     *memory.AnalyticsCache
	collector *memory.MetricsCollector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cache := memory.NewAnalyticsCache(memory.CacheConfig{
		Capacity:           100,
		DefaultTTL:         time.Minute,
		EnableSingleflight: true,
	}, nil)

	return &testEnv{
		graph:     memory.NewGraphStore(),
		signal:    memory.NewInteractionStore(),
		users:     memory.NewUserDirectory(),
		cache:     cache,
		collector: memory.NewMetricsCollector(memory.DefaultCollectorConfig(), cache, nil, nil),
	}
}

func (e *testEnv) addEdge(t *testing.T, a, b graph.UserID) {
	t.Helper()
	_, err := e.graph.AddFriendship(context.Background(), a, b)
	require.NoError(t, err)
}

func (e *testEnv) putUser(id graph.UserID, username string) {
	e.users.PutUser(&graph.User{ID: id, Username: username})
}

func (e *testEnv) classifier(t *testing.T) *analytics.CircleClassifier {
	t.Helper()
	scorer, err := analytics.NewRelationshipScorer(e.graph, e.signal, analytics.DefaultScorerConfig())
	require.NoError(t, err)
	classifier, err := analytics.NewCircleClassifier(e.graph, scorer, analytics.DefaultCircleThresholds())
	require.NoError(t, err)
	return classifier
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CIRCLES
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCirclesHandler_HydratesAndCaches(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "me", "best")
	env.addEdge(t, "me", "pal")
	env.signal.Record(context.Background(), "me", "best", graph.InteractionComment)
	env.putUser("best", "Best Friend")
	// "pal" has no profile on purpose: hydration must not drop them.

	handler := NewGetCirclesHandler(env.classifier(t), env.users, env.cache, env.collector, time.Minute)

	result, err := handler.Handle(context.Background(), GetCirclesQuery{UserID: "me"})
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, "me", result.UserID)

	members := map[string]string{}
	total := 0
	for _, c := range result.Circles {
		assert.Equal(t, len(c.Members), c.Size)
		for _, m := range c.Members {
			members[m.UserID] = m.Username
			total++
		}
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, "Best Friend", members["best"])
	assert.Equal(t, "", members["pal"])

	again, err := handler.Handle(context.Background(), GetCirclesQuery{UserID: "me"})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)

	current := env.collector.Current()
	assert.Equal(t, 50.0, current.HitRate)
}

func TestGetCirclesHandler_InvalidUserID(t *testing.T) {
	env := newTestEnv(t)
	handler := NewGetCirclesHandler(env.classifier(t), env.users, env.cache, nil, 0)

	_, err := handler.Handle(context.Background(), GetCirclesQuery{UserID: "  "})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetCirclesHandler_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	handler := NewGetCirclesHandler(env.classifier(t), env.users, env.cache, nil, 0)

	_, err := handler.Handle(context.Background(), GetCirclesQuery{UserID: "ghost"})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// GET INFLUENCE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetInfluenceHandler_Distribution(t *testing.T) {
	env := newTestEnv(t)
	// chain: me - b - c - d - e
	env.addEdge(t, "me", "b")
	env.addEdge(t, "b", "c")
	env.addEdge(t, "c", "d")
	env.addEdge(t, "d", "e")

	handler := NewGetInfluenceHandler(analytics.NewInfluenceCalculator(env.graph), env.cache, env.collector, time.Minute)

	result, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me", MaxDistance: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.MaxDistance)
	assert.Equal(t, 2, result.TotalReach)
	require.Len(t, result.Distribution, 2)
	assert.Equal(t, DistanceBucketDTO{Distance: 1, Count: 1}, result.Distribution[0])
	assert.Equal(t, DistanceBucketDTO{Distance: 2, Count: 1}, result.Distribution[1])
}

func TestGetInfluenceHandler_DefaultDepth(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "me", "b")
	env.addEdge(t, "b", "c")
	env.addEdge(t, "c", "d")
	env.addEdge(t, "d", "e")

	handler := NewGetInfluenceHandler(analytics.NewInfluenceCalculator(env.graph), env.cache, nil, 0)

	result, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me"})
	require.NoError(t, err)
	assert.Equal(t, analytics.DefaultMaxDistance, result.MaxDistance)
	assert.Equal(t, 3, result.TotalReach)
}

func TestGetInfluenceHandler_DepthKeysCacheSeparately(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "me", "b")
	env.addEdge(t, "b", "c")

	handler := NewGetInfluenceHandler(analytics.NewInfluenceCalculator(env.graph), env.cache, nil, time.Minute)

	one, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me", MaxDistance: 1})
	require.NoError(t, err)
	assert.False(t, one.CacheHit)

	two, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me", MaxDistance: 2})
	require.NoError(t, err)
	assert.False(t, two.CacheHit, "different depth must not share a cache entry")
	assert.Equal(t, 2, two.TotalReach)
}

func TestGetInfluenceHandler_DepthOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	handler := NewGetInfluenceHandler(analytics.NewInfluenceCalculator(env.graph), env.cache, nil, 0)

	_, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me", MaxDistance: analytics.MaxAllowedDistance + 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET RELATIONSHIP STRENGTH
// ══════════════════════════════════════════════════════════════════════════════

func TestGetRelationshipStrengthHandler_ScoresPair(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "a", "mutual")
	env.addEdge(t, "b", "mutual")
	env.signal.Record(context.Background(), "a", "b", graph.InteractionMessage)
	env.signal.Record(context.Background(), "a", "b", graph.InteractionLike)

	scorer, err := analytics.NewRelationshipScorer(env.graph, env.signal, analytics.DefaultScorerConfig())
	require.NoError(t, err)
	handler := NewGetRelationshipStrengthHandler(scorer, env.cache, env.collector, time.Minute)

	result, err := handler.Handle(context.Background(), GetRelationshipStrengthQuery{ViewerID: "a", TargetID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CommonFriends)
	assert.Equal(t, 2, result.Interactions)
	assert.Greater(t, result.Strength, 0.0)
	assert.LessOrEqual(t, result.Strength, 1.0)
	assert.False(t, result.Degraded)
	assert.False(t, result.CacheHit)
}

func TestGetRelationshipStrengthHandler_SelfPair(t *testing.T) {
	env := newTestEnv(t)
	scorer, err := analytics.NewRelationshipScorer(env.graph, env.signal, analytics.DefaultScorerConfig())
	require.NoError(t, err)
	handler := NewGetRelationshipStrengthHandler(scorer, env.cache, nil, 0)

	_, err = handler.Handle(context.Background(), GetRelationshipStrengthQuery{ViewerID: "a", TargetID: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSelfRelationship)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetRecommendationsHandler_ProximityCandidates(t *testing.T) {
	env := newTestEnv(t)
	// friend-of-friend "candidate" is the only admissible suggestion.
	env.addEdge(t, "me", "friend")
	env.addEdge(t, "friend", "candidate")
	env.putUser("candidate", "Candidate")

	engine := analytics.NewRecommendationEngine(
		env.graph,
		analytics.NewInfluenceCalculator(env.graph),
		memory.NoActivity{},
		memory.OpenPrivacy{},
		memory.NoRequests{},
	)
	handler := NewGetRecommendationsHandler(engine, env.users, env.cache, env.collector, time.Minute)

	result, err := handler.Handle(context.Background(), GetRecommendationsQuery{UserID: "me", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	assert.Equal(t, "candidate", rec.User.UserID)
	assert.Equal(t, "Candidate", rec.User.Username)
	assert.Equal(t, string(analytics.ReasonProximity), rec.Reason)
}

func TestGetRecommendationsHandler_NilUserDirectory(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "me", "friend")
	env.addEdge(t, "friend", "candidate")

	engine := analytics.NewRecommendationEngine(
		env.graph,
		analytics.NewInfluenceCalculator(env.graph),
		memory.NoActivity{},
		memory.OpenPrivacy{},
		memory.NoRequests{},
	)
	handler := NewGetRecommendationsHandler(engine, nil, env.cache, nil, time.Minute)

	result, err := handler.Handle(context.Background(), GetRecommendationsQuery{UserID: "me", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 1)
	// Without a directory candidates render with ID only.
	assert.Equal(t, "candidate", result.Recommendations[0].User.UserID)
	assert.Empty(t, result.Recommendations[0].User.Username)
}

func TestGetRecommendationsHandler_LimitNormalizedForCacheKey(t *testing.T) {
	env := newTestEnv(t)
	env.addEdge(t, "me", "friend")
	env.addEdge(t, "friend", "candidate")

	engine := analytics.NewRecommendationEngine(
		env.graph,
		analytics.NewInfluenceCalculator(env.graph),
		memory.NoActivity{},
		memory.OpenPrivacy{},
		memory.NoRequests{},
	)
	handler := NewGetRecommendationsHandler(engine, env.users, env.cache, nil, time.Minute)

	first, err := handler.Handle(context.Background(), GetRecommendationsQuery{UserID: "me"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Zero and the explicit default limit must hit the same entry.
	second, err := handler.Handle(context.Background(), GetRecommendationsQuery{UserID: "me", Limit: analytics.DefaultRecommendLimit})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CACHE METRICS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCacheMetricsHandler_CurrentAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.collector.RecordHit(2 * time.Millisecond)
	env.collector.RecordMiss(6 * time.Millisecond)
	env.collector.Snapshot(context.Background())

	handler := NewGetCacheMetricsHandler(env.collector)

	result, err := handler.Handle(context.Background(), GetCacheMetricsQuery{Period: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Current.HitRate)
	require.Len(t, result.History, 1)
	assert.Equal(t, 50.0, result.History[0].HitRate)
}

func TestGetCacheMetricsHandler_ZeroPeriodSkipsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.collector.Snapshot(context.Background())

	handler := NewGetCacheMetricsHandler(env.collector)

	result, err := handler.Handle(context.Background(), GetCacheMetricsQuery{})
	require.NoError(t, err)
	assert.Empty(t, result.History)
}

func TestGetCacheMetricsHandler_InvalidPeriod(t *testing.T) {
	handler := NewGetCacheMetricsHandler(newTestEnv(t).collector)

	_, err := handler.Handle(context.Background(), GetCacheMetricsQuery{Period: -time.Minute})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)

	_, err = handler.Handle(context.Background(), GetCacheMetricsQuery{Period: MaxHistoryPeriod + time.Hour})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

// ══════════════════════════════════════════════════════════════════════════════
// INSTRUMENTATION
// ══════════════════════════════════════════════════════════════════════════════

type failingCache struct{}

func (failingCache) GetOrCompute(ctx context.Context, _ analytics.CacheKey, _ time.Duration, compute analytics.ComputeFunc) (interface{}, bool, error) {
	return nil, false, errors.New("cache blew up")
}

func (failingCache) Invalidate(_ ...graph.UserID) int { return 0 }

func (failingCache) Stats() analytics.CacheStats { return analytics.CacheStats{} }

func TestCachedCompute_ErrorsNotRecorded(t *testing.T) {
	env := newTestEnv(t)
	handler := NewGetInfluenceHandler(analytics.NewInfluenceCalculator(env.graph), failingCache{}, env.collector, time.Minute)

	_, err := handler.Handle(context.Background(), GetInfluenceQuery{UserID: "me", MaxDistance: 1})
	require.Error(t, err)

	current := env.collector.Current()
	assert.Equal(t, 0.0, current.HitRate)
	assert.Equal(t, 0.0, current.AverageLatencyMs)
}
