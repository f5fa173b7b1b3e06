package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// CollectorConfig holds metrics collector tuning parameters.
type CollectorConfig struct {
	// MaxSnapshots bounds the history buffer; the oldest snapshot is
	// dropped once the buffer exceeds it.
	MaxSnapshots int

	// Retention drops snapshots older than this window regardless of
	// buffer occupancy.
	Retention time.Duration
}

// DefaultCollectorConfig returns production defaults: 7 days of
// one-minute snapshots.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxSnapshots: 7 * 24 * 60,
		Retention:    7 * 24 * time.Hour,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS COLLECTOR
// ══════════════════════════════════════════════════════════════════════════════

// MetricsCollector records every cache access and keeps a bounded
// snapshot history for the dashboard.
//
// One instance per process, passed explicitly to every component that
// reports metrics; counters are atomic since they are touched on every
// request. Hit/miss totals run over the process lifetime; per-interval
// rates live in the snapshots.
type MetricsCollector struct {
	hits         atomic.Int64
	misses       atomic.Int64
	latencyTotal atomic.Int64 // microseconds

	sampler   analytics.CacheSampler
	publisher analytics.SnapshotPublisher // optional push channel
	cfg       CollectorConfig
	logger    *logger.Logger

	mu      sync.RWMutex
	history []analytics.MetricsSnapshot
}

// compile-time interface checks
var (
	_ analytics.AccessRecorder = (*MetricsCollector)(nil)
	_ analytics.MetricsSource  = (*MetricsCollector)(nil)
)

// NewMetricsCollector creates the collector. publisher may be nil when
// no push channel is configured.
func NewMetricsCollector(cfg CollectorConfig, sampler analytics.CacheSampler, publisher analytics.SnapshotPublisher, log *logger.Logger) *MetricsCollector {
	if cfg.MaxSnapshots <= 0 {
		cfg.MaxSnapshots = DefaultCollectorConfig().MaxSnapshots
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultCollectorConfig().Retention
	}
	if log == nil {
		log = logger.Default()
	}

	return &MetricsCollector{
		sampler:   sampler,
		publisher: publisher,
		cfg:       cfg,
		logger:    log.With(logger.Component("metrics_collector")),
	}
}

// RecordHit implements analytics.AccessRecorder.
func (m *MetricsCollector) RecordHit(latency time.Duration) {
	m.hits.Add(1)
	m.latencyTotal.Add(latency.Microseconds())
}

// RecordMiss implements analytics.AccessRecorder.
func (m *MetricsCollector) RecordMiss(latency time.Duration) {
	m.misses.Add(1)
	m.latencyTotal.Add(latency.Microseconds())
}

// Current implements analytics.MetricsSource.
// HitRate is a percentage in [0,100]; 0 when nothing was observed yet.
func (m *MetricsCollector) Current() analytics.CurrentMetrics {
	hits := m.hits.Load()
	misses := m.misses.Load()
	total := hits + misses

	metrics := analytics.CurrentMetrics{}
	if total > 0 {
		metrics.HitRate = float64(hits) / float64(total) * 100
		metrics.AverageLatencyMs = float64(m.latencyTotal.Load()) / float64(total) / 1000
	}

	if m.sampler != nil {
		stats := m.sampler.Stats()
		metrics.KeysCount = stats.KeysCount
		metrics.MemoryUsageBytes = stats.MemoryUsageBytes
	}

	return metrics
}

// Snapshot appends the current aggregates to the history and publishes
// them to the optional push channel. Called by the scheduler ticker;
// it only reads counters and never blocks request handling.
func (m *MetricsCollector) Snapshot(ctx context.Context) analytics.MetricsSnapshot {
	current := m.Current()
	snapshot := analytics.MetricsSnapshot{
		Timestamp:        time.Now().UTC(),
		HitRate:          current.HitRate,
		AverageLatencyMs: current.AverageLatencyMs,
		MemoryUsageBytes: current.MemoryUsageBytes,
		KeysCount:        current.KeysCount,
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	m.pruneLocked(snapshot.Timestamp)
	m.mu.Unlock()

	if m.publisher != nil {
		if err := m.publisher.PublishSnapshot(ctx, snapshot); err != nil {
			m.logger.Warn("snapshot publish failed", logger.Err(err))
		}
	}

	return snapshot
}

// History implements analytics.MetricsSource.
// Returns snapshots within the trailing period, oldest first.
func (m *MetricsCollector) History(period time.Duration) []analytics.MetricsSnapshot {
	cutoff := time.Now().UTC().Add(-period)

	m.mu.RLock()
	defer m.mu.RUnlock()

	// History is chronological; find the first snapshot inside the window.
	start := len(m.history)
	for i, s := range m.history {
		if !s.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}

	out := make([]analytics.MetricsSnapshot, len(m.history)-start)
	copy(out, m.history[start:])
	return out
}

// pruneLocked enforces both the count bound and the retention window.
func (m *MetricsCollector) pruneLocked(now time.Time) {
	cutoff := now.Add(-m.cfg.Retention)

	drop := 0
	for drop < len(m.history) && m.history[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if excess := len(m.history) - drop - m.cfg.MaxSnapshots; excess > 0 {
		drop += excess
	}

	if drop > 0 {
		m.history = append(m.history[:0:0], m.history[drop:]...)
	}
}
