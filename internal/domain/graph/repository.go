package graph

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORT INTERFACES
// Домен определяет контракты, инфраструктура реализует.
// Внешние коллабораторы (хранилище постов/сообщений, приватность, заявки
// в друзья) доступны только через эти интерфейсы — их внутренняя логика
// вне ядра.
// ══════════════════════════════════════════════════════════════════════════════

// GraphStore - доступ на чтение к графу дружбы.
// Неизвестный пользователь - это shared.ErrUserNotFound, а не пустой
// набор: вызывающий должен отличать "нет друзей" от "нет пользователя".
type GraphStore interface {
	// Neighbors возвращает прямых друзей пользователя.
	// Возвращает shared.ErrUserNotFound, если пользователь неизвестен.
	Neighbors(ctx context.Context, userID UserID) ([]UserID, error)

	// Exists проверяет, существует ли пользователь в графе.
	Exists(ctx context.Context, userID UserID) (bool, error)
}

// FriendshipRepository расширяет GraphStore операциями мутации графа.
// Мутации обязаны приводить к инвалидации кеша аналитики (см. application).
type FriendshipRepository interface {
	GraphStore

	// AddFriendship создаёт ребро дружбы.
	// Возвращает shared.ErrFriendshipExists, если ребро уже есть.
	AddFriendship(ctx context.Context, a, b UserID) (*Friendship, error)

	// RemoveFriendship удаляет ребро дружбы.
	// Возвращает shared.ErrFriendshipNotFound, если ребра нет.
	RemoveFriendship(ctx context.Context, a, b UserID) error

	// AreFriends проверяет наличие ребра между парой.
	AreFriends(ctx context.Context, a, b UserID) (bool, error)

	// CommonFriends возвращает пересечение множеств друзей пары.
	CommonFriends(ctx context.Context, a, b UserID) ([]UserID, error)
}

// InteractionSignal - счётчик взаимодействий между парой пользователей
// за скользящее окно. Поставляется внешними хранилищами постов/сообщений.
type InteractionSignal interface {
	// Count возвращает количество взаимодействий пары за окно.
	// Симметричен: Count(a, b) == Count(b, a).
	Count(ctx context.Context, a, b UserID) (int, error)

	// Record фиксирует одно взаимодействие пары.
	Record(ctx context.Context, a, b UserID, kind InteractionKind) error
}

// PrivacyCheck - проверка, может ли viewer видеть target в рекомендациях.
type PrivacyCheck interface {
	// IsDiscoverable возвращает true, если target можно показать viewer.
	IsDiscoverable(ctx context.Context, viewerID, targetID UserID) (bool, error)
}

// FriendRequestState - состояние заявки в друзья между парой.
type FriendRequestState interface {
	// Status возвращает текущее состояние заявки между парой.
	Status(ctx context.Context, viewerID, targetID UserID) (RequestStatus, error)
}

// UserDirectory - чтение профилей пользователей из внешней системы.
// Используется для гидратации участников кругов и рекомендаций.
type UserDirectory interface {
	// GetUser возвращает снимок профиля пользователя.
	// Возвращает shared.ErrUserNotFound, если пользователь неизвестен.
	GetUser(ctx context.Context, userID UserID) (*User, error)

	// GetUsers возвращает снимки профилей по списку ID.
	// Неизвестные ID молча пропускаются: гидратация списка не должна
	// падать из-за удалённого пользователя.
	GetUsers(ctx context.Context, userIDs []UserID) ([]*User, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker - проверка доступности хранилища для readiness probe.
type HealthChecker interface {
	// Ping проверяет соединение с хранилищем.
	Ping(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// InteractionWindow - окно учёта взаимодействий.
type InteractionWindow struct {
	// Lookback - глубина окна (по умолчанию 30 дней).
	Lookback time.Duration
}

// DefaultInteractionWindow возвращает окно по умолчанию.
func DefaultInteractionWindow() InteractionWindow {
	return InteractionWindow{
		Lookback: 30 * 24 * time.Hour,
	}
}
