// Package eventhandler содержит обработчики доменных событий.
// Обработчики — "реактивная" часть системы: команды мутируют граф и
// публикуют события, обработчики инвалидируют кеш аналитики в ответ.
// Это путь согласованности для событий, пришедших с других инстансов
// через шину: локальная мутация инвалидирует свой кеш синхронно.
package eventhandler

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON FRIENDSHIP CHANGED HANDLER
// Инвалидирует записи кеша аналитики при мутациях графа и новых
// взаимодействиях. Инвалидация идемпотентна: повторная доставка
// события лишь удаляет уже отсутствующие записи.
// ══════════════════════════════════════════════════════════════════════════════

// remoteScopeTimeout ограничивает запросы соседей при расширении зоны
// инвалидации: шина не передаёт контекст в обработчик.
const remoteScopeTimeout = 5 * time.Second

// Registrar — подмножество диспетчера, нужное обработчику для подписки.
type Registrar interface {
	// Register регистрирует асинхронный обработчик события.
	Register(eventType shared.EventType, name string, handler shared.EventHandler) error
}

// OnFriendshipChangedHandler инвалидирует кеш по событиям мутации графа.
// store нужен для событий с удалённых инстансов: зона инвалидации там
// расширяется до соседей обоих концов ребра, как в командах. При nil
// store инвалидируется только пара.
type OnFriendshipChangedHandler struct {
	cache  analytics.Cache
	store  graph.GraphStore
	logger *logger.Logger
}

// NewOnFriendshipChangedHandler создаёт новый обработчик.
func NewOnFriendshipChangedHandler(cache analytics.Cache, store graph.GraphStore, log *logger.Logger) *OnFriendshipChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnFriendshipChangedHandler{
		cache:  cache,
		store:  store,
		logger: log.With(logger.Component("on_friendship_changed")),
	}
}

// RegisterAt подписывает обработчик на события мутации графа.
func (h *OnFriendshipChangedHandler) RegisterAt(registrar Registrar) error {
	if err := registrar.Register(shared.EventFriendshipCreated, "invalidate_on_friendship_created", h.Handle); err != nil {
		return err
	}
	if err := registrar.Register(shared.EventFriendshipRemoved, "invalidate_on_friendship_removed", h.Handle); err != nil {
		return err
	}
	return registrar.Register(shared.EventInteractionRecorded, "invalidate_on_interaction", h.Handle)
}

// Handle обрабатывает событие мутации графа.
func (h *OnFriendshipChangedHandler) Handle(event shared.Event) error {
	var scope []graph.UserID

	switch e := event.(type) {
	// Конкретные типы приходят только с локальной шины, где команда уже
	// инвалидировала полную зону пара+соседи: здесь достаточно пары.
	case shared.FriendshipCreatedEvent:
		scope = []graph.UserID{graph.UserID(e.UserID), graph.UserID(e.FriendID)}
	case shared.FriendshipRemovedEvent:
		scope = []graph.UserID{graph.UserID(e.UserID), graph.UserID(e.FriendID)}
	case shared.InteractionRecordedEvent:
		scope = []graph.UserID{graph.UserID(e.UserID), graph.UserID(e.OtherUserID)}
	default:
		// Событие с удалённого инстанса реконструируется без конкретного
		// типа; пара лежит в payload. Этот инстанс свою мутацию не видел,
		// поэтому зона инвалидации консервативная: пара плюс соседи.
		a, b := pairFromEvent(event)
		scope = h.remoteScope(a, b)
	}

	if len(scope) == 0 {
		return nil
	}

	gone := h.cache.Invalidate(scope...)
	if gone > 0 {
		h.logger.Debug("cache invalidated by event",
			logger.String("event_type", string(event.EventType())),
			logger.Int("invalidated_entries", gone),
		)
	}
	return nil
}

// pairFromEvent извлекает оба конца ребра из payload события.
// Агрегат служит запасным значением для первого конца; отсутствующий
// второй конец возвращается пустым.
func pairFromEvent(event shared.Event) (graph.UserID, graph.UserID) {
	payload := event.Payload()

	a := payloadUserID(payload, "user_id")
	if a == "" {
		a = graph.UserID(event.AggregateID())
	}

	b := payloadUserID(payload, "friend_id")
	if b == "" {
		b = payloadUserID(payload, "other_user_id")
	}
	return a, b
}

// payloadUserID читает строковое поле payload как идентификатор.
func payloadUserID(payload map[string]interface{}, key string) graph.UserID {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return graph.UserID(value)
	}
	return ""
}

// remoteScope строит зону инвалидации для удалённой мутации ребра (a, b):
// сама пара плюс прямые соседи обоих концов. Ошибки запроса соседей не
// фатальны: более глубокие записи в любом случае устаревают через TTL.
func (h *OnFriendshipChangedHandler) remoteScope(a, b graph.UserID) []graph.UserID {
	var scope []graph.UserID
	seen := make(map[graph.UserID]struct{})
	add := func(id graph.UserID) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		scope = append(scope, id)
	}

	add(a)
	add(b)
	if h.store == nil || len(scope) == 0 {
		return scope
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteScopeTimeout)
	defer cancel()

	for _, id := range []graph.UserID{a, b} {
		if id == "" {
			continue
		}
		neighbors, err := h.store.Neighbors(ctx, id)
		if err != nil {
			h.logger.Warn("failed to expand invalidation scope",
				logger.UserID(string(id)),
				logger.Err(err),
			)
			continue
		}
		for _, n := range neighbors {
			add(n)
		}
	}
	return scope
}
