// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive cache invalidation and the metrics push
// channel. Any event that changes the friendship graph or the interaction
// signal for a user must flow through here so the analytics cache can react.
const (
	// Graph mutation events
	EventFriendshipCreated EventType = "graph.friendship_created"
	EventFriendshipRemoved EventType = "graph.friendship_removed"

	// Interaction signal events
	EventInteractionRecorded EventType = "interaction.recorded"

	// Cache events
	EventCacheInvalidated EventType = "cache.invalidated"
	EventCacheSwept       EventType = "cache.swept"

	// Metrics events
	EventMetricsSnapshotTaken EventType = "metrics.snapshot_taken"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Graph Mutation Events
// ═══════════════════════════════════════════════════════════════════════════

// FriendshipCreatedEvent is emitted when a friendship edge is created.
type FriendshipCreatedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`
}

// Payload implements Event interface.
func (e FriendshipCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"friend_id": e.FriendID,
	}
}

// NewFriendshipCreatedEvent creates a new FriendshipCreatedEvent.
func NewFriendshipCreatedEvent(userID, friendID string) FriendshipCreatedEvent {
	return FriendshipCreatedEvent{
		BaseEvent: NewBaseEvent(EventFriendshipCreated, userID),
		UserID:    userID,
		FriendID:  friendID,
	}
}

// FriendshipRemovedEvent is emitted when a friendship edge is removed.
type FriendshipRemovedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`
}

// Payload implements Event interface.
func (e FriendshipRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"friend_id": e.FriendID,
	}
}

// NewFriendshipRemovedEvent creates a new FriendshipRemovedEvent.
func NewFriendshipRemovedEvent(userID, friendID string) FriendshipRemovedEvent {
	return FriendshipRemovedEvent{
		BaseEvent: NewBaseEvent(EventFriendshipRemoved, userID),
		UserID:    userID,
		FriendID:  friendID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Interaction Signal Events
// ═══════════════════════════════════════════════════════════════════════════

// InteractionRecordedEvent is emitted when a qualifying interaction
// (comment, like, message) between two users is recorded.
type InteractionRecordedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	OtherUserID     string `json:"other_user_id"`
	InteractionKind string `json:"interaction_kind"`
}

// Payload implements Event interface.
func (e InteractionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"other_user_id":    e.OtherUserID,
		"interaction_kind": e.InteractionKind,
	}
}

// NewInteractionRecordedEvent creates a new InteractionRecordedEvent.
func NewInteractionRecordedEvent(userID, otherUserID, kind string) InteractionRecordedEvent {
	return InteractionRecordedEvent{
		BaseEvent:       NewBaseEvent(EventInteractionRecorded, userID),
		UserID:          userID,
		OtherUserID:     otherUserID,
		InteractionKind: kind,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Cache Events
// ═══════════════════════════════════════════════════════════════════════════

// CacheInvalidatedEvent is emitted after cache entries were invalidated.
type CacheInvalidatedEvent struct {
	BaseEvent
	UserID       string   `json:"user_id"`
	ScopeUserIDs []string `json:"scope_user_ids"`
	EntriesGone  int      `json:"entries_gone"`
	Reason       string   `json:"reason"`
}

// Payload implements Event interface.
func (e CacheInvalidatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"scope_user_ids": e.ScopeUserIDs,
		"entries_gone":   e.EntriesGone,
		"reason":         e.Reason,
	}
}

// NewCacheInvalidatedEvent creates a new CacheInvalidatedEvent.
func NewCacheInvalidatedEvent(userID string, scope []string, entriesGone int, reason string) CacheInvalidatedEvent {
	return CacheInvalidatedEvent{
		BaseEvent:    NewBaseEvent(EventCacheInvalidated, userID),
		UserID:       userID,
		ScopeUserIDs: scope,
		EntriesGone:  entriesGone,
		Reason:       reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
