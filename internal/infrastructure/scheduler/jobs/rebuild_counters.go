package jobs

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD COUNTERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// EventLogReader aggregates the durable interaction event log.
type EventLogReader interface {
	// InteractionCounts returns per-pair event counts at or after since,
	// keyed by canonical pair key.
	InteractionCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// CounterWriter overwrites hot interaction counters.
type CounterWriter interface {
	// Rebuild sets the counter for a canonical pair key to an absolute count.
	Rebuild(ctx context.Context, pairKey string, count int) error
}

// RebuildCountersJob reconstructs the Redis per-pair interaction
// counters from the Postgres event log. Counters drift after a Redis
// flush or failover; relationship strength scores then undercount
// interactions until this job runs.
type RebuildCountersJob struct {
	log     EventLogReader
	writer  CounterWriter
	window  graph.InteractionWindow
	logger  *logger.Logger
	timeout time.Duration
}

// NewRebuildCountersJob creates a new rebuild counters job.
func NewRebuildCountersJob(log EventLogReader, writer CounterWriter, window graph.InteractionWindow, lg *logger.Logger) *RebuildCountersJob {
	if window.Lookback <= 0 {
		window = graph.DefaultInteractionWindow()
	}
	if lg == nil {
		lg = logger.Default()
	}
	return &RebuildCountersJob{
		log:     log,
		writer:  writer,
		window:  window,
		logger:  lg.With(logger.Component("rebuild_counters_job")),
		timeout: 5 * time.Minute,
	}
}

// Name returns the job name.
func (j *RebuildCountersJob) Name() string {
	return "rebuild_counters"
}

// Description returns a human-readable description.
func (j *RebuildCountersJob) Description() string {
	return "Rebuilds hot interaction counters from the durable event log"
}

// Run executes the rebuild.
func (j *RebuildCountersJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	since := started.Add(-j.window.Lookback)

	counts, err := j.log.InteractionCounts(ctx, since)
	if err != nil {
		return err
	}

	var rebuilt, failed int
	for pairKey, count := range counts {
		if err := j.writer.Rebuild(ctx, pairKey, count); err != nil {
			failed++
			j.logger.Warn("counter rebuild failed for pair",
				logger.String("pair", pairKey),
				logger.Err(err),
			)
			continue
		}
		rebuilt++
	}

	j.logger.Info("counters rebuilt",
		logger.Int("rebuilt", rebuilt),
		logger.Int("failed", failed),
		logger.Latency(time.Since(started)),
	)

	return nil
}

// DefaultRebuildInterval is how often counters are reconciled with the log.
const DefaultRebuildInterval = 24 * time.Hour
