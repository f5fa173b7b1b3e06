package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
)

type fakeRegistrar struct {
	registered map[shared.EventType]shared.EventHandler
}

func (r *fakeRegistrar) Register(eventType shared.EventType, _ string, handler shared.EventHandler) error {
	if r.registered == nil {
		r.registered = make(map[shared.EventType]shared.EventHandler)
	}
	r.registered[eventType] = handler
	return nil
}

func seedEntry(t *testing.T, cache *memory.AnalyticsCache, userID graph.UserID) {
	t.Helper()
	key := analytics.CacheKey{UserID: userID, Operation: analytics.OpInfluence, ParamsHash: analytics.HashParams("3")}
	_, _, err := cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (interface{}, error) {
		return "cached", nil
	})
	require.NoError(t, err)
}

func TestOnFriendshipChanged_InvalidatesPair(t *testing.T) {
	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 10, DefaultTTL: time.Minute}, nil)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")
	seedEntry(t, cache, "other")

	handler := NewOnFriendshipChangedHandler(cache, nil, nil)

	err := handler.Handle(shared.NewFriendshipCreatedEvent("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Stats().KeysCount)
}

func TestOnFriendshipChanged_InteractionEvent(t *testing.T) {
	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 10, DefaultTTL: time.Minute}, nil)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")

	handler := NewOnFriendshipChangedHandler(cache, nil, nil)

	err := handler.Handle(shared.NewInteractionRecordedEvent("a", "b", "like"))
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Stats().KeysCount)
}

// remoteGraphEvent воспроизводит событие, пришедшее с другого инстанса
// через шину: конкретный тип потерян, данные остались только в payload.
type remoteGraphEvent struct {
	eventType   shared.EventType
	aggregateID string
	payload     map[string]interface{}
}

func (e remoteGraphEvent) EventType() shared.EventType     { return e.eventType }
func (e remoteGraphEvent) AggregateID() string             { return e.aggregateID }
func (e remoteGraphEvent) OccurredAt() time.Time           { return time.Now() }
func (e remoteGraphEvent) Payload() map[string]interface{} { return e.payload }

func TestOnFriendshipChanged_RemoteEventInvalidatesBothEndpoints(t *testing.T) {
	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 10, DefaultTTL: time.Minute}, nil)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")

	handler := NewOnFriendshipChangedHandler(cache, nil, nil)

	err := handler.Handle(remoteGraphEvent{
		eventType:   shared.EventFriendshipRemoved,
		aggregateID: "a",
		payload:     map[string]interface{}{"user_id": "a", "friend_id": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Stats().KeysCount, "second edge endpoint must be invalidated too")
}

func TestOnFriendshipChanged_RemoteEventExpandsToNeighbors(t *testing.T) {
	store := memory.NewGraphStore()
	_, err := store.AddFriendship(context.Background(), "b", "n")
	require.NoError(t, err)

	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 10, DefaultTTL: time.Minute}, nil)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")
	seedEntry(t, cache, "n")
	seedEntry(t, cache, "unrelated")

	handler := NewOnFriendshipChangedHandler(cache, store, nil)

	err = handler.Handle(remoteGraphEvent{
		eventType:   shared.EventFriendshipRemoved,
		aggregateID: "a",
		payload:     map[string]interface{}{"user_id": "a", "friend_id": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Stats().KeysCount, "pair and its neighbors invalidated, unrelated user kept")
}

func TestOnFriendshipChanged_RemoteEventWithoutPayloadUsesAggregate(t *testing.T) {
	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 10, DefaultTTL: time.Minute}, nil)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")

	handler := NewOnFriendshipChangedHandler(cache, nil, nil)

	err := handler.Handle(remoteGraphEvent{
		eventType:   shared.EventFriendshipCreated,
		aggregateID: "a",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Stats().KeysCount)
}

func TestOnFriendshipChanged_RegistersAllMutationEvents(t *testing.T) {
	registrar := &fakeRegistrar{}
	handler := NewOnFriendshipChangedHandler(memory.NewAnalyticsCache(memory.CacheConfig{}, nil), nil, nil)

	require.NoError(t, handler.RegisterAt(registrar))
	assert.Contains(t, registrar.registered, shared.EventFriendshipCreated)
	assert.Contains(t, registrar.registered, shared.EventFriendshipRemoved)
	assert.Contains(t, registrar.registered, shared.EventInteractionRecorded)
}
