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
// INVALIDATE CACHE COMMAND
// Administrative eviction of analytics cache entries for specific
// users, for when upstream data was corrected out of band.
// ══════════════════════════════════════════════════════════════════════════════

// MaxInvalidateBatch bounds one administrative invalidation request.
const MaxInvalidateBatch = 1000

// InvalidateCacheCommand contains the users whose entries to drop.
type InvalidateCacheCommand struct {
	// UserIDs are the users whose cached analytics must be dropped.
	UserIDs []string

	// Reason is a free-form audit note.
	Reason string
}

// Validate validates the command.
func (c InvalidateCacheCommand) Validate() error {
	if len(c.UserIDs) == 0 {
		return shared.NewDomainError("command", "InvalidateCache", shared.ErrInvalidInput, "user_ids is required")
	}
	if len(c.UserIDs) > MaxInvalidateBatch {
		return shared.NewDomainError("command", "InvalidateCache", shared.ErrValueOutOfRange, "too many user_ids in one request")
	}
	for _, id := range c.UserIDs {
		if !graph.UserID(id).IsValid() {
			return shared.ErrInvalidUserID
		}
	}
	return nil
}

// InvalidateCacheResult contains the result of the invalidation.
type InvalidateCacheResult struct {
	// InvalidatedEntries is the number of cache entries dropped.
	InvalidatedEntries int

	// Events contains domain events generated.
	Events []shared.Event

	// InvalidatedAt is when the invalidation ran.
	InvalidatedAt time.Time
}

// InvalidateCacheHandler handles the InvalidateCacheCommand.
type InvalidateCacheHandler struct {
	cache     analytics.Cache
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewInvalidateCacheHandler creates a new InvalidateCacheHandler.
func NewInvalidateCacheHandler(cache analytics.Cache, publisher shared.EventPublisher, log *logger.Logger) *InvalidateCacheHandler {
	if log == nil {
		log = logger.Default()
	}
	return &InvalidateCacheHandler{
		cache:     cache,
		publisher: publisher,
		logger:    log.With(logger.Component("invalidate_cache")),
	}
}

// Handle executes the invalidate cache command.
func (h *InvalidateCacheHandler) Handle(ctx context.Context, cmd InvalidateCacheCommand) (*InvalidateCacheResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]graph.UserID, len(cmd.UserIDs))
	for i, id := range cmd.UserIDs {
		ids[i] = graph.UserID(id)
	}

	gone := h.cache.Invalidate(ids...)

	event := shared.NewCacheInvalidatedEvent(cmd.UserIDs[0], cmd.UserIDs, gone, cmd.Reason)
	events := publishEvents(h.publisher, h.logger, event)

	h.logger.Info("cache invalidated by operator",
		logger.Int("users", len(cmd.UserIDs)),
		logger.Int("invalidated_entries", gone),
		logger.String("reason", cmd.Reason),
	)

	return &InvalidateCacheResult{
		InvalidatedEntries: gone,
		Events:             events,
		InvalidatedAt:      time.Now().UTC(),
	}, nil
}
