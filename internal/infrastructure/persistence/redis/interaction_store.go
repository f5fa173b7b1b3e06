package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERACTION STORE
// ══════════════════════════════════════════════════════════════════════════════

// InteractionStore implements graph.InteractionSignal with per-pair
// counters. A counter key is refreshed on every write with the lookback
// window as TTL, so pairs that stop interacting decay to zero once the
// window passes. The durable event log lives in Postgres; these
// counters are the hot read path for relationship scoring.
type InteractionStore struct {
	client *Client
	window graph.InteractionWindow
}

// compile-time interface check
var _ graph.InteractionSignal = (*InteractionStore)(nil)

// NewInteractionStore creates a new InteractionStore.
func NewInteractionStore(client *Client, window graph.InteractionWindow) *InteractionStore {
	if window.Lookback <= 0 {
		window = graph.DefaultInteractionWindow()
	}
	return &InteractionStore{
		client: client,
		window: window,
	}
}

// Count implements graph.InteractionSignal.
// Count(a, b) == Count(b, a): the counter key is built from the
// canonical pair key. A missing key means zero interactions, never
// an error.
func (s *InteractionStore) Count(ctx context.Context, a, b graph.UserID) (int, error) {
	key := InteractionKey(graph.PairKey(a, b))

	val, err := s.client.Raw().Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, shared.WrapError("interaction", "Count", shared.ErrExternalService, "counter read failed", err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, shared.WrapError("interaction", "Count", shared.ErrInvalidFormat, "corrupt counter value", err)
	}
	return count, nil
}

// Record implements graph.InteractionSignal.
// The TTL refresh keeps the counter alive for one full lookback window
// after the most recent interaction.
func (s *InteractionStore) Record(ctx context.Context, a, b graph.UserID, kind graph.InteractionKind) error {
	if !kind.IsValid() {
		return shared.ErrInvalidInteractionKind
	}
	if a == b {
		return shared.ErrSelfFriendship
	}

	key := InteractionKey(graph.PairKey(a, b))

	pipe := s.client.Raw().TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.window.Lookback)

	if _, err := pipe.Exec(ctx); err != nil {
		return shared.WrapError("interaction", "Record", shared.ErrExternalService, "counter write failed", err)
	}
	return nil
}

// Rebuild overwrites the counter for a canonical pair key with an
// absolute count. Used when reconstructing counters from the durable
// event log.
func (s *InteractionStore) Rebuild(ctx context.Context, pairKey string, count int) error {
	key := InteractionKey(pairKey)

	if err := s.client.Raw().Set(ctx, key, count, s.window.Lookback).Err(); err != nil {
		return shared.WrapError("interaction", "Rebuild", shared.ErrExternalService, "counter rebuild failed", err)
	}
	return nil
}

// Reset drops the counter for a pair. Used when rebuilding counters
// from the durable event log.
func (s *InteractionStore) Reset(ctx context.Context, a, b graph.UserID) error {
	key := InteractionKey(graph.PairKey(a, b))
	if err := s.client.Delete(ctx, key); err != nil {
		return shared.WrapError("interaction", "Reset", shared.ErrExternalService, "counter delete failed", err)
	}
	return nil
}

// Ping implements graph.HealthChecker.
func (s *InteractionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
