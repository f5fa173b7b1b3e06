// Package command contains write operations (CQRS - Commands).
// Every graph mutation invalidates the affected analytics cache
// entries before the command acknowledges, and publishes a domain
// event so other instances can invalidate theirs.
package command

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECT USERS COMMAND
// Creates a friendship edge between two users. The edge is undirected
// and stored once in canonical order.
// ══════════════════════════════════════════════════════════════════════════════

// ConnectUsersCommand contains the data to create a friendship.
type ConnectUsersCommand struct {
	// UserID is the user initiating the friendship.
	UserID string

	// FriendID is the other side of the edge.
	FriendID string
}

// Validate validates the command.
func (c ConnectUsersCommand) Validate() error {
	if !graph.UserID(c.UserID).IsValid() || !graph.UserID(c.FriendID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.UserID == c.FriendID {
		return shared.ErrSelfFriendship
	}
	return nil
}

// ConnectUsersResult contains the result of creating a friendship.
type ConnectUsersResult struct {
	// Friendship is the created edge in canonical order.
	Friendship *graph.Friendship

	// InvalidatedEntries is the number of cache entries dropped.
	InvalidatedEntries int

	// Events contains domain events generated.
	Events []shared.Event

	// CreatedAt is when the friendship was created.
	CreatedAt time.Time
}

// ConnectUsersHandler handles the ConnectUsersCommand.
type ConnectUsersHandler struct {
	friendships graph.FriendshipRepository
	cache       analytics.Cache
	publisher   shared.EventPublisher
	logger      *logger.Logger
}

// NewConnectUsersHandler creates a new ConnectUsersHandler.
func NewConnectUsersHandler(
	friendships graph.FriendshipRepository,
	cache analytics.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ConnectUsersHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ConnectUsersHandler{
		friendships: friendships,
		cache:       cache,
		publisher:   publisher,
		logger:      log.With(logger.Component("connect_users")),
	}
}

// Handle executes the connect users command.
func (h *ConnectUsersHandler) Handle(ctx context.Context, cmd ConnectUsersCommand) (*ConnectUsersResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a := graph.UserID(cmd.UserID)
	b := graph.UserID(cmd.FriendID)

	friendship, err := h.friendships.AddFriendship(ctx, a, b)
	if err != nil {
		return nil, err
	}

	gone := invalidateMutationScope(ctx, h.friendships, h.cache, a, b)

	event := shared.NewFriendshipCreatedEvent(cmd.UserID, cmd.FriendID)
	events := publishEvents(h.publisher, h.logger, event)

	h.logger.Info("friendship created",
		logger.UserID(cmd.UserID),
		logger.String("friend_id", cmd.FriendID),
		logger.Int("invalidated_entries", gone),
	)

	return &ConnectUsersResult{
		Friendship:         friendship,
		InvalidatedEntries: gone,
		Events:             events,
		CreatedAt:          friendship.CreatedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DISCONNECT USERS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DisconnectUsersCommand contains the data to remove a friendship.
type DisconnectUsersCommand struct {
	// UserID is the user initiating the removal.
	UserID string

	// FriendID is the other side of the edge.
	FriendID string
}

// Validate validates the command.
func (c DisconnectUsersCommand) Validate() error {
	if !graph.UserID(c.UserID).IsValid() || !graph.UserID(c.FriendID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.UserID == c.FriendID {
		return shared.ErrSelfFriendship
	}
	return nil
}

// DisconnectUsersResult contains the result of removing a friendship.
type DisconnectUsersResult struct {
	// InvalidatedEntries is the number of cache entries dropped.
	InvalidatedEntries int

	// Events contains domain events generated.
	Events []shared.Event

	// RemovedAt is when the friendship was removed.
	RemovedAt time.Time
}

// DisconnectUsersHandler handles the DisconnectUsersCommand.
type DisconnectUsersHandler struct {
	friendships graph.FriendshipRepository
	cache       analytics.Cache
	publisher   shared.EventPublisher
	logger      *logger.Logger
}

// NewDisconnectUsersHandler creates a new DisconnectUsersHandler.
func NewDisconnectUsersHandler(
	friendships graph.FriendshipRepository,
	cache analytics.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *DisconnectUsersHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DisconnectUsersHandler{
		friendships: friendships,
		cache:       cache,
		publisher:   publisher,
		logger:      log.With(logger.Component("disconnect_users")),
	}
}

// Handle executes the disconnect users command.
func (h *DisconnectUsersHandler) Handle(ctx context.Context, cmd DisconnectUsersCommand) (*DisconnectUsersResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a := graph.UserID(cmd.UserID)
	b := graph.UserID(cmd.FriendID)

	// Neighbor sets must be captured before the edge disappears so
	// the invalidation scope still covers both former friends' circles.
	scope := mutationScope(ctx, h.friendships, a, b)

	if err := h.friendships.RemoveFriendship(ctx, a, b); err != nil {
		return nil, err
	}

	gone := h.cache.Invalidate(scope...)

	event := shared.NewFriendshipRemovedEvent(cmd.UserID, cmd.FriendID)
	events := publishEvents(h.publisher, h.logger, event)

	h.logger.Info("friendship removed",
		logger.UserID(cmd.UserID),
		logger.String("friend_id", cmd.FriendID),
		logger.Int("invalidated_entries", gone),
	)

	return &DisconnectUsersResult{
		InvalidatedEntries: gone,
		Events:             events,
		RemovedAt:          time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// mutationScope returns the users whose cached analytics an edge
// mutation between a and b can affect: the pair itself plus the direct
// neighbors of both. Second-hop results (influence, recommendations)
// for neighbors change too; deeper users age out via TTL.
func mutationScope(ctx context.Context, store graph.GraphStore, a, b graph.UserID) []graph.UserID {
	scope := []graph.UserID{a, b}
	seen := map[graph.UserID]struct{}{a: {}, b: {}}

	for _, id := range []graph.UserID{a, b} {
		neighbors, err := store.Neighbors(ctx, id)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			scope = append(scope, n)
		}
	}
	return scope
}

// invalidateMutationScope drops every cache entry keyed by a user in
// the mutation scope of the (a, b) edge.
func invalidateMutationScope(ctx context.Context, store graph.GraphStore, cache analytics.Cache, a, b graph.UserID) int {
	return cache.Invalidate(mutationScope(ctx, store, a, b)...)
}

// publishEvents publishes the given events, logging failures instead
// of failing the command: the mutation already happened, remote
// instances will converge via TTL if the event is lost.
func publishEvents(publisher shared.EventPublisher, log *logger.Logger, events ...shared.Event) []shared.Event {
	if publisher == nil {
		return events
	}
	for _, event := range events {
		if err := publisher.Publish(event); err != nil {
			log.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}
	return events
}
