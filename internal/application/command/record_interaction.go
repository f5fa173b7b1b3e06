package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD INTERACTION COMMAND
// Records one qualifying interaction (comment, like, message) between
// a pair of users. The hot counter feeds relationship scoring; the
// durable event log lets the nightly job rebuild counters after a
// counter store loss.
// ══════════════════════════════════════════════════════════════════════════════

// InteractionEventLog is the durable append-only log of interactions.
type InteractionEventLog interface {
	// RecordInteractionEvent appends one interaction to the log.
	RecordInteractionEvent(ctx context.Context, eventID string, a, b graph.UserID, kind graph.InteractionKind, occurredAt time.Time) error
}

// RecordInteractionCommand contains the data to record an interaction.
type RecordInteractionCommand struct {
	// UserID is the acting user.
	UserID string

	// OtherUserID is the other side of the pair.
	OtherUserID string

	// Kind is the interaction kind (comment, like, message).
	Kind string
}

// Validate validates the command.
func (c RecordInteractionCommand) Validate() error {
	if !graph.UserID(c.UserID).IsValid() || !graph.UserID(c.OtherUserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if c.UserID == c.OtherUserID {
		return shared.ErrSelfFriendship
	}
	if !graph.InteractionKind(c.Kind).IsValid() {
		return shared.ErrInvalidInteractionKind
	}
	return nil
}

// RecordInteractionResult contains the result of recording an interaction.
type RecordInteractionResult struct {
	// EventID is the ID assigned to the logged interaction.
	EventID string

	// InvalidatedEntries is the number of cache entries dropped.
	InvalidatedEntries int

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the interaction was recorded.
	RecordedAt time.Time
}

// RecordInteractionHandler handles the RecordInteractionCommand.
type RecordInteractionHandler struct {
	signal    graph.InteractionSignal
	eventLog  InteractionEventLog
	cache     analytics.Cache
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewRecordInteractionHandler creates a new RecordInteractionHandler.
func NewRecordInteractionHandler(
	signal graph.InteractionSignal,
	eventLog InteractionEventLog,
	cache analytics.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *RecordInteractionHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordInteractionHandler{
		signal:    signal,
		eventLog:  eventLog,
		cache:     cache,
		publisher: publisher,
		logger:    log.With(logger.Component("record_interaction")),
	}
}

// Handle executes the record interaction command.
func (h *RecordInteractionHandler) Handle(ctx context.Context, cmd RecordInteractionCommand) (*RecordInteractionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a := graph.UserID(cmd.UserID)
	b := graph.UserID(cmd.OtherUserID)
	kind := graph.InteractionKind(cmd.Kind)
	now := time.Now().UTC()

	if err := h.signal.Record(ctx, a, b, kind); err != nil {
		return nil, err
	}

	eventID := uuid.NewString()
	if h.eventLog != nil {
		// Log failure does not roll back the counter: the counter is
		// the serving path, the log only backs the nightly rebuild.
		if err := h.eventLog.RecordInteractionEvent(ctx, eventID, a, b, kind, now); err != nil {
			h.logger.Warn("interaction event log append failed",
				logger.String("event_id", eventID),
				logger.Err(err),
			)
		}
	}

	// An interaction only shifts the pair's own strength and circles,
	// so invalidation stays pair-scoped.
	gone := h.cache.Invalidate(a, b)

	event := shared.NewInteractionRecordedEvent(cmd.UserID, cmd.OtherUserID, cmd.Kind)
	events := publishEvents(h.publisher, h.logger, event)

	h.logger.Debug("interaction recorded",
		logger.UserID(cmd.UserID),
		logger.String("other_user_id", cmd.OtherUserID),
		logger.String("kind", cmd.Kind),
		logger.Int("invalidated_entries", gone),
	)

	return &RecordInteractionResult{
		EventID:            eventID,
		InvalidatedEntries: gone,
		Events:             events,
		RecordedAt:         now,
	}, nil
}
