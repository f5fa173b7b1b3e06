package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
)

func testKey(userID graph.UserID, op string, params ...string) analytics.CacheKey {
	return analytics.CacheKey{
		UserID:     userID,
		Operation:  op,
		ParamsHash: analytics.HashParams(params...),
	}
}

func constant(v interface{}) analytics.ComputeFunc {
	return func(context.Context) (interface{}, error) { return v, nil }
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)
	key := testKey("u1", analytics.OpCircles)

	calls := 0
	compute := func(context.Context) (interface{}, error) {
		calls++
		return "result", nil
	}

	v, hit, err := cache.GetOrCompute(context.Background(), key, time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "result", v)

	v, hit, err = cache.GetOrCompute(context.Background(), key, time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "result", v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_ExpiredEntryNeverHit(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)
	key := testKey("u1", analytics.OpInfluence, "3")

	_, hit, err := cache.GetOrCompute(context.Background(), key, time.Millisecond, constant("old"))
	require.NoError(t, err)
	assert.False(t, hit)

	time.Sleep(5 * time.Millisecond)

	v, hit, err := cache.GetOrCompute(context.Background(), key, time.Minute, constant("fresh"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)
}

func TestGetOrCompute_ErrorsNeverCached(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)
	key := testKey("u1", analytics.OpCircles)

	boom := errors.New("upstream exploded")
	_, _, err := cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Stats().KeysCount)

	v, hit, err := cache.GetOrCompute(context.Background(), key, time.Minute, constant("ok"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestInvalidate_ByUser(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)

	for _, u := range []graph.UserID{"a", "b", "c"} {
		_, _, err := cache.GetOrCompute(context.Background(), testKey(u, analytics.OpCircles), time.Minute, constant(u))
		require.NoError(t, err)
		_, _, err = cache.GetOrCompute(context.Background(), testKey(u, analytics.OpInfluence, "3"), time.Minute, constant(u))
		require.NoError(t, err)
	}
	assert.Equal(t, 6, cache.Stats().KeysCount)

	removed := cache.Invalidate("a", "b")
	assert.Equal(t, 4, removed)
	assert.Equal(t, 2, cache.Stats().KeysCount)

	// Invalidated user recomputes, untouched user still hits.
	_, hit, _ := cache.GetOrCompute(context.Background(), testKey("a", analytics.OpCircles), time.Minute, constant("a2"))
	assert.False(t, hit)
	_, hit, _ = cache.GetOrCompute(context.Background(), testKey("c", analytics.OpCircles), time.Minute, constant("c"))
	assert.True(t, hit)
}

func TestLRUEviction_CapacityBound(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.Capacity = 3
	cache := NewAnalyticsCache(cfg, nil)

	for _, u := range []graph.UserID{"a", "b", "c"} {
		_, _, err := cache.GetOrCompute(context.Background(), testKey(u, analytics.OpCircles), time.Minute, constant(u))
		require.NoError(t, err)
	}

	// Touch "a" so "b" becomes the least recently used.
	_, hit, _ := cache.GetOrCompute(context.Background(), testKey("a", analytics.OpCircles), time.Minute, constant("a"))
	assert.True(t, hit)

	_, _, err := cache.GetOrCompute(context.Background(), testKey("d", analytics.OpCircles), time.Minute, constant("d"))
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Stats().KeysCount)

	_, hit, _ = cache.GetOrCompute(context.Background(), testKey("b", analytics.OpCircles), time.Minute, constant("b"))
	assert.False(t, hit, "least recently used entry must have been evicted")
	// "b" reinsertion evicted "c"; recheck "a" and "d" directly survived.
	_, hit, _ = cache.GetOrCompute(context.Background(), testKey("d", analytics.OpCircles), time.Minute, constant("d"))
	assert.True(t, hit)
}

func TestSweep_PurgesExpired(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)

	_, _, err := cache.GetOrCompute(context.Background(), testKey("a", analytics.OpCircles), time.Millisecond, constant("a"))
	require.NoError(t, err)
	_, _, err = cache.GetOrCompute(context.Background(), testKey("b", analytics.OpCircles), time.Minute, constant("b"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	removed := cache.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, cache.Stats().KeysCount)
}

func TestClosedCache_BypassesToDirectComputation(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)
	cache.Close()

	calls := 0
	compute := func(context.Context) (interface{}, error) {
		calls++
		return "direct", nil
	}

	key := testKey("u1", analytics.OpCircles)
	for i := 0; i < 2; i++ {
		v, hit, err := cache.GetOrCompute(context.Background(), key, time.Minute, compute)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "direct", v)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, cache.Stats().KeysCount)
}

func TestSingleflight_CollapsesConcurrentMisses(t *testing.T) {
	cache := NewAnalyticsCache(DefaultCacheConfig(), nil)
	key := testKey("u1", analytics.OpRecommend)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(context.Context) (interface{}, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]interface{}, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			v, _, err := cache.GetOrCompute(context.Background(), key, time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	time.Sleep(10 * time.Millisecond) // let the rest queue on the flight
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestHashParams_OrderAndBoundaries(t *testing.T) {
	assert.Equal(t, analytics.HashParams("a", "b"), analytics.HashParams("a", "b"))
	assert.NotEqual(t, analytics.HashParams("a", "b"), analytics.HashParams("b", "a"))
	assert.NotEqual(t, analytics.HashParams("ab", "c"), analytics.HashParams("a", "bc"))
}
