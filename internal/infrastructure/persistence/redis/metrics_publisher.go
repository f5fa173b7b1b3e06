package redis

import (
	"context"
	"encoding/json"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// ChannelMetricsSnapshots is the pub/sub channel for periodic cache
// metrics snapshots.
const ChannelMetricsSnapshots = PrefixPubSub + "metrics.snapshots"

// MetricsPublisher implements analytics.SnapshotPublisher by fanning
// snapshots out over Redis pub/sub. External dashboards subscribe to
// the snapshot channel; the in-process history in the collector stays
// the source of truth for the history endpoint.
type MetricsPublisher struct {
	client *Client
	logger *logger.Logger
}

var _ analytics.SnapshotPublisher = (*MetricsPublisher)(nil)

// NewMetricsPublisher creates a new MetricsPublisher.
func NewMetricsPublisher(client *Client, log *logger.Logger) *MetricsPublisher {
	if log == nil {
		log = logger.Default()
	}
	return &MetricsPublisher{
		client: client,
		logger: log.With(logger.Component("metrics_publisher")),
	}
}

// PublishSnapshot implements analytics.SnapshotPublisher.
func (p *MetricsPublisher) PublishSnapshot(ctx context.Context, snapshot analytics.MetricsSnapshot) error {
	if err := p.client.Publish(ctx, ChannelMetricsSnapshots, snapshot); err != nil {
		return shared.WrapError("metrics", "PublishSnapshot", shared.ErrExternalService, "pub/sub publish failed", err)
	}

	p.logger.Debug("published metrics snapshot",
		logger.Time("timestamp", snapshot.Timestamp),
		logger.HitRate(snapshot.HitRate),
	)
	return nil
}

// SubscribeSnapshots subscribes to the snapshot channel and forwards
// decoded snapshots until the context is cancelled. Malformed payloads
// are logged and skipped.
func (p *MetricsPublisher) SubscribeSnapshots(ctx context.Context, out chan<- analytics.MetricsSnapshot) error {
	sub := p.client.Subscribe(ctx, ChannelMetricsSnapshots)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return shared.ErrCacheUnavailable
			}

			var snapshot analytics.MetricsSnapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
				p.logger.Warn("skipping malformed snapshot payload", logger.Err(err))
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
