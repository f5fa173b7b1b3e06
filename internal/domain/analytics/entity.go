// Package analytics содержит ядро аналитики социального графа:
// круги общения, распределение влияния по хопам, сила связи пары
// и рекомендации друзей. Все вычисления детерминированы и свободны
// от побочных эффектов — это требование корректности кеша: одинаковое
// состояние графа всегда даёт одинаковый результат.
package analytics

import (
	"fmt"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// CircleType определяет уровень круга общения.
type CircleType string

const (
	// CircleClose - близкие друзья (сила связи ≥ порога close).
	CircleClose CircleType = "close"

	// CircleDistant - приятели (сила связи между порогами).
	CircleDistant CircleType = "distant"

	// CircleOther - остальные друзья.
	CircleOther CircleType = "other"
)

// IsValid проверяет корректность типа круга.
func (c CircleType) IsValid() bool {
	switch c {
	case CircleClose, CircleDistant, CircleOther:
		return true
	default:
		return false
	}
}

// RecommendReason определяет, какой генератор предложил кандидата.
type RecommendReason string

const (
	// ReasonProximity - кандидат из друзей друзей (BFS на глубине 2).
	ReasonProximity RecommendReason = "proximity"

	// ReasonActivity - кандидат из внешнего активити-ранжирования.
	ReasonActivity RecommendReason = "activity"

	// ReasonBoth - кандидат найден обоими генераторами.
	ReasonBoth RecommendReason = "both"
)

// IsValid проверяет корректность причины.
func (r RecommendReason) IsValid() bool {
	switch r {
	case ReasonProximity, ReasonActivity, ReasonBoth:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED MODELS
// Все типы ниже производные: вычисляются по запросу, не персистятся
// (кеш аналитики хранит их как значения, но не владеет ими).
// ══════════════════════════════════════════════════════════════════════════════

// Circle - круг общения: группа прямых друзей одного уровня силы связи.
// Инвариант: каждый участник круга — прямой друг запрашивающего.
type Circle struct {
	// Type - уровень круга.
	Type CircleType

	// Members - участники круга (ID прямых друзей).
	Members []graph.UserID

	// Size - размер круга (len(Members)).
	Size int
}

// String возвращает строковое представление.
func (c Circle) String() string {
	return fmt.Sprintf("Circle{%s, size=%d}", c.Type, c.Size)
}

// ClassifyResult - результат классификации кругов.
type ClassifyResult struct {
	// Circles - непустые круги в порядке close, distant, other.
	Circles []Circle

	// Degraded - true, если сигнал взаимодействий был недоступен
	// и круги вычислены только по общим друзьям.
	Degraded bool
}

// DistanceBucket - количество достижимых пользователей на одной дистанции.
type DistanceBucket struct {
	// Distance - кратчайшее расстояние в хопах от источника (1..maxDistance).
	Distance int

	// Count - количество пользователей на этой дистанции.
	Count int
}

// InfluenceDistribution - распределение охвата по хопам.
// Инвариант: пользователь учитывается ровно один раз — на кратчайшей
// дистанции; источник исключён из всех корзин.
type InfluenceDistribution struct {
	// TotalReach - количество различных достижимых пользователей.
	TotalReach int

	// Distribution - непустые корзины по возрастанию дистанции.
	Distribution []DistanceBucket
}

// String возвращает строковое представление.
func (d *InfluenceDistribution) String() string {
	return fmt.Sprintf("InfluenceDistribution{reach=%d, buckets=%d}", d.TotalReach, len(d.Distribution))
}

// RelationshipStrength - сила связи пары пользователей.
// Сама сила симметрична относительно пары; результат ключуется
// по viewer только ради приватности.
type RelationshipStrength struct {
	// Strength - нормализованная сила связи в [0,1].
	// Ровно 0 тогда и только тогда, когда оба входа нулевые.
	Strength float64

	// CommonFriends - количество общих друзей.
	CommonFriends int

	// Interactions - количество взаимодействий за окно.
	Interactions int

	// Degraded - true, если счётчик взаимодействий был недоступен
	// и сила вычислена только по общим друзьям.
	Degraded bool
}

// String возвращает строковое представление.
func (r *RelationshipStrength) String() string {
	return fmt.Sprintf(
		"RelationshipStrength{strength=%.3f, common=%d, interactions=%d}",
		r.Strength, r.CommonFriends, r.Interactions,
	)
}

// Recommendation - один кандидат в друзья.
type Recommendation struct {
	// UserID - ID кандидата.
	UserID graph.UserID

	// Reason - какой генератор предложил кандидата.
	Reason RecommendReason
}

// RecommendResult - результат движка рекомендаций.
type RecommendResult struct {
	// Recommendations - дедуплицированный упорядоченный список кандидатов:
	// сначала активити-кандидаты в их исходном порядке, затем
	// proximity-only кандидаты в порядке обнаружения BFS.
	Recommendations []Recommendation

	// Degraded - true, если активити-источник был недоступен
	// и список построен только из proximity-кандидатов.
	Degraded bool
}
