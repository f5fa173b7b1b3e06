package command

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

// capturePublisher records published events.
type capturePublisher struct {
	events []shared.Event
	fail   bool
}

func (p *capturePublisher) Publish(event shared.Event) error {
	if p.fail {
		return errors.New("bus down")
	}
	p.events = append(p.events, event)
	return nil
}

func newCache(t *testing.T) *memory.AnalyticsCache {
	t.Helper()
	return memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 100, DefaultTTL: time.Minute}, nil)
}

// seedEntry caches a dummy value keyed by the given user.
func seedEntry(t *testing.T, cache *memory.AnalyticsCache, userID graph.UserID) {
	t.Helper()
	key := analytics.CacheKey{UserID: userID, Operation: analytics.OpCircles, ParamsHash: analytics.HashParams()}
	_, _, err := cache.GetOrCompute(context.Background(), key, time.Minute, func(context.Context) (interface{}, error) {
		return "cached", nil
	})
	require.NoError(t, err)
}

func TestConnectUsersHandler_CreatesEdgeAndInvalidates(t *testing.T) {
	store := memory.NewGraphStore()
	cache := newCache(t)
	publisher := &capturePublisher{}

	// "friend" already has a neighbor whose cached circles include them.
	_, err := store.AddFriendship(context.Background(), "friend", "bystander")
	require.NoError(t, err)
	seedEntry(t, cache, "me")
	seedEntry(t, cache, "friend")
	seedEntry(t, cache, "bystander")

	handler := NewConnectUsersHandler(store, cache, publisher, nil)

	result, err := handler.Handle(context.Background(), ConnectUsersCommand{UserID: "me", FriendID: "friend"})
	require.NoError(t, err)
	require.NotNil(t, result.Friendship)
	assert.True(t, result.Friendship.UserA < result.Friendship.UserB)
	assert.Equal(t, 3, result.InvalidatedEntries)

	connected, err := store.AreFriends(context.Background(), "me", "friend")
	require.NoError(t, err)
	assert.True(t, connected)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventFriendshipCreated, publisher.events[0].EventType())
}

func TestConnectUsersHandler_DuplicateEdge(t *testing.T) {
	store := memory.NewGraphStore()
	handler := NewConnectUsersHandler(store, newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), ConnectUsersCommand{UserID: "a", FriendID: "b"})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), ConnectUsersCommand{UserID: "b", FriendID: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrFriendshipExists)
}

func TestConnectUsersHandler_SelfAndInvalid(t *testing.T) {
	handler := NewConnectUsersHandler(memory.NewGraphStore(), newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), ConnectUsersCommand{UserID: "a", FriendID: "a"})
	assert.ErrorIs(t, err, shared.ErrSelfFriendship)

	_, err = handler.Handle(context.Background(), ConnectUsersCommand{UserID: "", FriendID: "b"})
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}

func TestConnectUsersHandler_PublishFailureDoesNotFailCommand(t *testing.T) {
	store := memory.NewGraphStore()
	handler := NewConnectUsersHandler(store, newCache(t), &capturePublisher{fail: true}, nil)

	result, err := handler.Handle(context.Background(), ConnectUsersCommand{UserID: "a", FriendID: "b"})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
}

func TestDisconnectUsersHandler_ScopeCapturedBeforeRemoval(t *testing.T) {
	store := memory.NewGraphStore()
	cache := newCache(t)
	publisher := &capturePublisher{}

	_, err := store.AddFriendship(context.Background(), "a", "b")
	require.NoError(t, err)
	_, err = store.AddFriendship(context.Background(), "b", "c")
	require.NoError(t, err)
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")
	seedEntry(t, cache, "c")

	handler := NewDisconnectUsersHandler(store, cache, publisher, nil)

	result, err := handler.Handle(context.Background(), DisconnectUsersCommand{UserID: "a", FriendID: "b"})
	require.NoError(t, err)
	// "c" is b's neighbor: their cached analytics covered the removed edge.
	assert.Equal(t, 3, result.InvalidatedEntries)

	connected, err := store.AreFriends(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.False(t, connected)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventFriendshipRemoved, publisher.events[0].EventType())
}

func TestDisconnectUsersHandler_MissingEdge(t *testing.T) {
	store := memory.NewGraphStore()
	store.AddUser("a")
	store.AddUser("b")
	handler := NewDisconnectUsersHandler(store, newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), DisconnectUsersCommand{UserID: "a", FriendID: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrFriendshipNotFound)
}

// recordingEventLog captures appended interaction events.
type recordingEventLog struct {
	appended int
	fail     bool
}

func (l *recordingEventLog) RecordInteractionEvent(_ context.Context, _ string, _, _ graph.UserID, _ graph.InteractionKind, _ time.Time) error {
	if l.fail {
		return errors.New("log down")
	}
	l.appended++
	return nil
}

func TestRecordInteractionHandler_CountsAndInvalidates(t *testing.T) {
	signal := memory.NewInteractionStore()
	cache := newCache(t)
	eventLog := &recordingEventLog{}
	publisher := &capturePublisher{}
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")

	handler := NewRecordInteractionHandler(signal, eventLog, cache, publisher, nil)

	result, err := handler.Handle(context.Background(), RecordInteractionCommand{
		UserID:      "a",
		OtherUserID: "b",
		Kind:        string(graph.InteractionLike),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.EventID)
	assert.Equal(t, 2, result.InvalidatedEntries)
	assert.Equal(t, 1, eventLog.appended)

	count, err := signal.Count(context.Background(), "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventInteractionRecorded, publisher.events[0].EventType())
}

func TestRecordInteractionHandler_InvalidKind(t *testing.T) {
	handler := NewRecordInteractionHandler(memory.NewInteractionStore(), nil, newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), RecordInteractionCommand{
		UserID:      "a",
		OtherUserID: "b",
		Kind:        "poke",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInteractionKind)
}

func TestRecordInteractionHandler_LogFailureIsNonFatal(t *testing.T) {
	signal := memory.NewInteractionStore()
	handler := NewRecordInteractionHandler(signal, &recordingEventLog{fail: true}, newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), RecordInteractionCommand{
		UserID:      "a",
		OtherUserID: "b",
		Kind:        string(graph.InteractionComment),
	})
	require.NoError(t, err)

	count, err := signal.Count(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInvalidateCacheHandler_DropsEntries(t *testing.T) {
	cache := newCache(t)
	publisher := &capturePublisher{}
	seedEntry(t, cache, "a")
	seedEntry(t, cache, "b")
	seedEntry(t, cache, "untouched")

	handler := NewInvalidateCacheHandler(cache, publisher, nil)

	result, err := handler.Handle(context.Background(), InvalidateCacheCommand{
		UserIDs: []string{"a", "b"},
		Reason:  "backfill",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.InvalidatedEntries)
	assert.Equal(t, 1, cache.Stats().KeysCount)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventCacheInvalidated, publisher.events[0].EventType())
}

func TestInvalidateCacheHandler_Validation(t *testing.T) {
	handler := NewInvalidateCacheHandler(newCache(t), nil, nil)

	_, err := handler.Handle(context.Background(), InvalidateCacheCommand{})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	ids := make([]string, MaxInvalidateBatch+1)
	for i := range ids {
		ids[i] = "u"
	}
	_, err = handler.Handle(context.Background(), InvalidateCacheCommand{UserIDs: ids})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}
