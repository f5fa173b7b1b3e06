package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
)

type staticSampler struct {
	stats analytics.CacheStats
}

func (s staticSampler) Stats() analytics.CacheStats { return s.stats }

type capturingPublisher struct {
	published []analytics.MetricsSnapshot
}

func (p *capturingPublisher) PublishSnapshot(_ context.Context, s analytics.MetricsSnapshot) error {
	p.published = append(p.published, s)
	return nil
}

func TestCurrent_HitRateMath(t *testing.T) {
	collector := NewMetricsCollector(DefaultCollectorConfig(), staticSampler{}, nil, nil)

	for i := 0; i < 7; i++ {
		collector.RecordHit(2 * time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		collector.RecordMiss(12 * time.Millisecond)
	}

	current := collector.Current()
	assert.Equal(t, 70.0, current.HitRate)
	assert.InDelta(t, 5.0, current.AverageLatencyMs, 0.01)
}

func TestCurrent_NoObservations(t *testing.T) {
	collector := NewMetricsCollector(DefaultCollectorConfig(), staticSampler{}, nil, nil)

	current := collector.Current()
	assert.Equal(t, 0.0, current.HitRate)
	assert.Equal(t, 0.0, current.AverageLatencyMs)
}

func TestCurrent_SamplesCacheStats(t *testing.T) {
	sampler := staticSampler{stats: analytics.CacheStats{KeysCount: 42, MemoryUsageBytes: 4096}}
	collector := NewMetricsCollector(DefaultCollectorConfig(), sampler, nil, nil)

	current := collector.Current()
	assert.Equal(t, 42, current.KeysCount)
	assert.Equal(t, int64(4096), current.MemoryUsageBytes)
}

func TestSnapshot_AppendsAndPublishes(t *testing.T) {
	publisher := &capturingPublisher{}
	collector := NewMetricsCollector(DefaultCollectorConfig(), staticSampler{}, publisher, nil)

	collector.RecordHit(time.Millisecond)
	snapshot := collector.Snapshot(context.Background())

	assert.Equal(t, 100.0, snapshot.HitRate)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, snapshot, publisher.published[0])

	history := collector.History(time.Hour)
	require.Len(t, history, 1)
	assert.Equal(t, snapshot, history[0])
}

func TestHistory_TrailingWindow(t *testing.T) {
	collector := NewMetricsCollector(DefaultCollectorConfig(), staticSampler{}, nil, nil)

	old := analytics.MetricsSnapshot{Timestamp: time.Now().UTC().Add(-2 * time.Hour)}
	recent := analytics.MetricsSnapshot{Timestamp: time.Now().UTC().Add(-10 * time.Minute)}
	collector.history = []analytics.MetricsSnapshot{old, recent}

	hour := collector.History(time.Hour)
	require.Len(t, hour, 1)
	assert.Equal(t, recent.Timestamp, hour[0].Timestamp)

	day := collector.History(24 * time.Hour)
	assert.Len(t, day, 2)
}

func TestSnapshot_FIFOPruning(t *testing.T) {
	cfg := DefaultCollectorConfig()
	cfg.MaxSnapshots = 3
	collector := NewMetricsCollector(cfg, staticSampler{}, nil, nil)

	for i := 0; i < 5; i++ {
		collector.Snapshot(context.Background())
	}

	history := collector.History(24 * time.Hour)
	require.Len(t, history, 3)
	// Oldest dropped first; remaining snapshots stay chronological.
	assert.True(t, !history[0].Timestamp.After(history[1].Timestamp))
	assert.True(t, !history[1].Timestamp.After(history[2].Timestamp))
}

func TestSnapshot_RetentionPruning(t *testing.T) {
	cfg := DefaultCollectorConfig()
	cfg.Retention = time.Hour
	collector := NewMetricsCollector(cfg, staticSampler{}, nil, nil)

	collector.history = []analytics.MetricsSnapshot{
		{Timestamp: time.Now().UTC().Add(-3 * time.Hour)},
		{Timestamp: time.Now().UTC().Add(-30 * time.Minute)},
	}

	collector.Snapshot(context.Background())

	history := collector.History(24 * time.Hour)
	assert.Len(t, history, 2)
}
