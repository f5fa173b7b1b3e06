// Package jobs contains implementations of scheduled background jobs.
package jobs

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METRICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMetricsJob periodically takes a snapshot of the cache metrics
// aggregates and appends it to the bounded history. Dashboards read the
// history through the metrics API; without this job the history stays
// empty and only current aggregates are available.
type SnapshotMetricsJob struct {
	collector *memory.MetricsCollector
	logger    *logger.Logger
}

// NewSnapshotMetricsJob creates a new snapshot metrics job.
func NewSnapshotMetricsJob(collector *memory.MetricsCollector, log *logger.Logger) *SnapshotMetricsJob {
	if log == nil {
		log = logger.Default()
	}
	return &SnapshotMetricsJob{
		collector: collector,
		logger:    log.With(logger.Component("snapshot_metrics_job")),
	}
}

// Name returns the job name.
func (j *SnapshotMetricsJob) Name() string {
	return "snapshot_metrics"
}

// Description returns a human-readable description.
func (j *SnapshotMetricsJob) Description() string {
	return "Takes a cache metrics snapshot and appends it to the bounded history"
}

// Run executes the snapshot job.
func (j *SnapshotMetricsJob) Run(ctx context.Context) error {
	snapshot := j.collector.Snapshot(ctx)

	j.logger.Debug("metrics snapshot taken",
		logger.Time("timestamp", snapshot.Timestamp),
		logger.HitRate(snapshot.HitRate),
		logger.Int("keys_count", snapshot.KeysCount),
		logger.Int64("memory_usage_bytes", snapshot.MemoryUsageBytes),
		logger.Float64("average_latency_ms", snapshot.AverageLatencyMs),
	)

	return nil
}

// DefaultSnapshotInterval is how often metrics snapshots are taken.
const DefaultSnapshotInterval = time.Minute
