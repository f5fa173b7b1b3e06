package analytics

import (
	"context"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CIRCLE CLASSIFIER
// Разбивает прямых друзей пользователя на круги по силе связи.
// Разбиение точное: каждый друг попадает ровно в один круг, объединение
// кругов равно множеству прямых друзей.
// ══════════════════════════════════════════════════════════════════════════════

// CircleThresholds - пороги классификации кругов.
type CircleThresholds struct {
	// Close - нижняя граница круга близких (strength ≥ Close).
	Close float64

	// Distant - нижняя граница круга приятелей (Distant ≤ strength < Close).
	// Ниже Distant — круг "other".
	Distant float64
}

// DefaultCircleThresholds возвращает пороги по умолчанию.
func DefaultCircleThresholds() CircleThresholds {
	return CircleThresholds{
		Close:   0.6,
		Distant: 0.25,
	}
}

// Validate проверяет, что пороги упорядочены: 0 < Distant < Close < 1.
func (t CircleThresholds) Validate() error {
	if t.Distant <= 0 || t.Close >= 1 || t.Distant >= t.Close {
		return shared.ErrInvalidThresholds
	}
	return nil
}

// classify возвращает тип круга для силы связи.
func (t CircleThresholds) classify(strength float64) CircleType {
	switch {
	case strength >= t.Close:
		return CircleClose
	case strength >= t.Distant:
		return CircleDistant
	default:
		return CircleOther
	}
}

// CircleClassifier классифицирует прямых друзей пользователя по кругам.
type CircleClassifier struct {
	store      graph.GraphStore
	scorer     *RelationshipScorer
	thresholds CircleThresholds
}

// NewCircleClassifier создаёт классификатор.
func NewCircleClassifier(store graph.GraphStore, scorer *RelationshipScorer, thresholds CircleThresholds) (*CircleClassifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &CircleClassifier{
		store:      store,
		scorer:     scorer,
		thresholds: thresholds,
	}, nil
}

// ClassifyCircles возвращает круги общения пользователя.
// Пустые круги опускаются; порядок кругов стабилен: close, distant, other.
// Если сигнал взаимодействий был недоступен хотя бы для одной пары,
// результат помечается как деградированный.
func (c *CircleClassifier) ClassifyCircles(ctx context.Context, userID graph.UserID) (*ClassifyResult, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	friends, err := c.store.Neighbors(ctx, userID)
	if err != nil {
		return nil, err
	}

	buckets := make(map[CircleType][]graph.UserID, 3)
	degraded := false

	for _, f := range friends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		strength, err := c.scorer.ScoreRelationship(ctx, userID, f)
		if err != nil {
			return nil, err
		}
		if strength.Degraded {
			degraded = true
		}

		kind := c.thresholds.classify(strength.Strength)
		buckets[kind] = append(buckets[kind], f)
	}

	result := &ClassifyResult{
		Circles:  make([]Circle, 0, len(buckets)),
		Degraded: degraded,
	}
	for _, kind := range []CircleType{CircleClose, CircleDistant, CircleOther} {
		members := buckets[kind]
		if len(members) == 0 {
			continue
		}
		result.Circles = append(result.Circles, Circle{
			Type:    kind,
			Members: members,
			Size:    len(members),
		})
	}

	return result, nil
}
