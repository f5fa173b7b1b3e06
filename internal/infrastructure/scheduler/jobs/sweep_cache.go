package jobs

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// SweepCacheJob purges expired entries from the analytics cache.
// Expired entries are already invisible to readers; the sweep reclaims
// their memory and keeps the reported key count honest between misses.
type SweepCacheJob struct {
	cache  *memory.AnalyticsCache
	logger *logger.Logger
}

// NewSweepCacheJob creates a new sweep cache job.
func NewSweepCacheJob(cache *memory.AnalyticsCache, log *logger.Logger) *SweepCacheJob {
	if log == nil {
		log = logger.Default()
	}
	return &SweepCacheJob{
		cache:  cache,
		logger: log.With(logger.Component("sweep_cache_job")),
	}
}

// Name returns the job name.
func (j *SweepCacheJob) Name() string {
	return "sweep_cache"
}

// Description returns a human-readable description.
func (j *SweepCacheJob) Description() string {
	return "Purges expired analytics cache entries and reclaims their memory"
}

// Run executes the sweep.
func (j *SweepCacheJob) Run(ctx context.Context) error {
	purged := j.cache.Sweep()

	if purged > 0 {
		j.logger.Debug("cache sweep completed", logger.Int("purged", purged))
	}

	return nil
}

// DefaultSweepInterval is how often the cache sweep runs.
const DefaultSweepInterval = 5 * time.Minute
