// Package graph содержит доменную модель графа дружбы.
// Граф недвешенный и неориентированный: вес связи не хранится на ребре,
// а вычисляется на лету из сигналов взаимодействия (см. пакет analytics).
package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID представляет идентификатор пользователя (opaque ID внешней системы).
type UserID string

// IsValid проверяет, что UserID непустой и без пробелов.
func (u UserID) IsValid() bool {
	s := string(u)
	return len(s) > 0 && len(s) <= 64 && strings.TrimSpace(s) == s
}

// String возвращает строковое представление.
func (u UserID) String() string {
	return string(u)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// ProfileVisibility определяет видимость профиля пользователя.
type ProfileVisibility string

const (
	// VisibilityPublic - профиль виден всем.
	VisibilityPublic ProfileVisibility = "public"

	// VisibilityFriends - профиль виден только друзьям.
	VisibilityFriends ProfileVisibility = "friends"

	// VisibilityPrivate - профиль скрыт.
	VisibilityPrivate ProfileVisibility = "private"
)

// IsValid проверяет корректность значения видимости.
func (v ProfileVisibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	default:
		return false
	}
}

// InteractionKind определяет тип учитываемого взаимодействия между парой
// пользователей.
type InteractionKind string

const (
	// InteractionComment - комментарий к посту.
	InteractionComment InteractionKind = "comment"

	// InteractionLike - лайк.
	InteractionLike InteractionKind = "like"

	// InteractionMessage - личное сообщение.
	InteractionMessage InteractionKind = "message"
)

// IsValid проверяет корректность типа взаимодействия.
func (k InteractionKind) IsValid() bool {
	switch k {
	case InteractionComment, InteractionLike, InteractionMessage:
		return true
	default:
		return false
	}
}

// RequestStatus определяет состояние заявки в друзья между двумя
// пользователями. Используется движком рекомендаций для исключения
// кандидатов с уже существующей/ожидающей заявкой.
type RequestStatus string

const (
	// RequestStatusNone - заявки нет.
	RequestStatusNone RequestStatus = "none"

	// RequestStatusPending - заявка отправлена и ожидает ответа
	// (в любом направлении).
	RequestStatusPending RequestStatus = "pending"

	// RequestStatusFriends - пользователи уже друзья.
	RequestStatusFriends RequestStatus = "friends"
)

// IsValid проверяет корректность статуса.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusNone, RequestStatusPending, RequestStatusFriends:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// READ MODEL: USER
// Пользователь принадлежит внешней системе управления пользователями.
// Движок аналитики читает его как неизменяемый снимок на время вычисления.
// ══════════════════════════════════════════════════════════════════════════════

// UserStatistics содержит счётчики активности пользователя.
type UserStatistics struct {
	// FriendsCount - количество друзей.
	FriendsCount int

	// PostsCount - количество постов.
	PostsCount int

	// LikesCount - количество полученных лайков.
	LikesCount int
}

// PrivacySettings содержит настройки приватности пользователя.
type PrivacySettings struct {
	// ProfileVisibility - кому виден профиль.
	ProfileVisibility ProfileVisibility
}

// User - снимок профиля пользователя из внешней системы.
// Движок не владеет пользователями и никогда их не мутирует.
type User struct {
	// ID - идентификатор пользователя.
	ID UserID

	// Username - отображаемое имя.
	Username string

	// AvatarRef - ссылка на аватар (opaque reference).
	AvatarRef string

	// Bio - краткое описание профиля.
	Bio string

	// Statistics - счётчики активности.
	Statistics UserStatistics

	// Privacy - настройки приватности.
	Privacy PrivacySettings
}

// IsDiscoverable возвращает true, если профиль может показываться
// в рекомендациях незнакомым пользователям.
func (u *User) IsDiscoverable() bool {
	return u.Privacy.ProfileVisibility == VisibilityPublic
}

// String возвращает строковое представление для логирования.
func (u *User) String() string {
	return fmt.Sprintf("User{ID: %s, Username: %s}", u.ID, u.Username)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: FRIENDSHIP
// Ребро графа дружбы — неупорядоченная пара пользователей.
// ══════════════════════════════════════════════════════════════════════════════

// Friendship - ребро дружбы между двумя пользователями.
// Пара хранится в каноническом порядке (UserA < UserB лексикографически),
// чтобы неупорядоченность пары была инвариантом хранения, а не соглашением.
type Friendship struct {
	// UserA - лексикографически меньший из пары.
	UserA UserID

	// UserB - лексикографически больший из пары.
	UserB UserID

	// CreatedAt - когда создана дружба.
	CreatedAt time.Time
}

// NewFriendship создаёт ребро дружбы, нормализуя порядок пары.
func NewFriendship(a, b UserID) (*Friendship, error) {
	if !a.IsValid() || !b.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	if a == b {
		return nil, shared.ErrSelfFriendship
	}

	if b < a {
		a, b = b, a
	}

	return &Friendship{
		UserA:     a,
		UserB:     b,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Involves проверяет, участвует ли пользователь в ребре.
func (f *Friendship) Involves(id UserID) bool {
	return f.UserA == id || f.UserB == id
}

// Other возвращает второго участника ребра.
func (f *Friendship) Other(id UserID) UserID {
	if f.UserA == id {
		return f.UserB
	}
	return f.UserA
}

// String возвращает строковое представление.
func (f *Friendship) String() string {
	return fmt.Sprintf("Friendship{%s — %s}", f.UserA, f.UserB)
}

// ══════════════════════════════════════════════════════════════════════════════
// PAIR KEY
// Каноничный ключ неупорядоченной пары — используется кешем взаимодействий
// и скорером, чтобы (A,B) и (B,A) попадали в одну запись.
// ══════════════════════════════════════════════════════════════════════════════

// PairKey возвращает канонический ключ пары "меньший:больший".
func PairKey(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}
