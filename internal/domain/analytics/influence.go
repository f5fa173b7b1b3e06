package analytics

import (
	"context"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INFLUENCE CALCULATOR
// BFS по графу дружбы с дисциплиной visited-set: первое (минимальное)
// расстояние назначается раз и навсегда — для невзвешенного графа оно
// гарантированно кратчайшее.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultMaxDistance - глубина обхода по умолчанию.
	DefaultMaxDistance = 3

	// MinAllowedDistance - минимальная допустимая глубина.
	MinAllowedDistance = 1

	// MaxAllowedDistance - максимальная допустимая глубина.
	MaxAllowedDistance = 6
)

// ValidateMaxDistance проверяет, что глубина обхода в допустимых границах.
func ValidateMaxDistance(maxDistance int) error {
	if maxDistance < MinAllowedDistance || maxDistance > MaxAllowedDistance {
		return shared.ErrInvalidMaxDistance
	}
	return nil
}

// InfluenceCalculator вычисляет охват влияния пользователя по хопам.
type InfluenceCalculator struct {
	store graph.GraphStore
}

// NewInfluenceCalculator создаёт калькулятор влияния.
func NewInfluenceCalculator(store graph.GraphStore) *InfluenceCalculator {
	return &InfluenceCalculator{store: store}
}

// ComputeInfluence возвращает распределение охвата для пользователя.
// Пользователь без друзей — это TotalReach=0 и пустое распределение,
// не ошибка. Неизвестный пользователь — shared.ErrUserNotFound.
func (c *InfluenceCalculator) ComputeInfluence(ctx context.Context, userID graph.UserID, maxDistance int) (*InfluenceDistribution, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if err := ValidateMaxDistance(maxDistance); err != nil {
		return nil, err
	}

	levels, err := c.traverse(ctx, userID, maxDistance)
	if err != nil {
		return nil, err
	}

	dist := &InfluenceDistribution{
		Distribution: make([]DistanceBucket, 0, len(levels)),
	}
	for i, level := range levels {
		if len(level) == 0 {
			continue
		}
		dist.Distribution = append(dist.Distribution, DistanceBucket{
			Distance: i + 1,
			Count:    len(level),
		})
		dist.TotalReach += len(level)
	}

	return dist, nil
}

// ReachableAt возвращает пользователей ровно на указанной дистанции
// в порядке обнаружения BFS. Используется движком рекомендаций для
// кандидатов "друзья друзей" (distance=2).
func (c *InfluenceCalculator) ReachableAt(ctx context.Context, userID graph.UserID, distance int) ([]graph.UserID, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if err := ValidateMaxDistance(distance); err != nil {
		return nil, err
	}

	levels, err := c.traverse(ctx, userID, distance)
	if err != nil {
		return nil, err
	}

	if len(levels) < distance {
		return nil, nil
	}
	return levels[distance-1], nil
}

// traverse выполняет BFS от источника до maxDistance хопов.
// Возвращает уровни: levels[i] — пользователи на дистанции i+1
// в порядке обнаружения. Источник исключён из всех уровней.
func (c *InfluenceCalculator) traverse(ctx context.Context, source graph.UserID, maxDistance int) ([][]graph.UserID, error) {
	exists, err := c.store.Exists(ctx, source)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.ErrUserNotFound
	}

	visited := map[graph.UserID]struct{}{source: {}}
	frontier := []graph.UserID{source}
	levels := make([][]graph.UserID, 0, maxDistance)

	for depth := 1; depth <= maxDistance && len(frontier) > 0; depth++ {
		var next []graph.UserID
		for _, u := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			neighbors, err := c.store.Neighbors(ctx, u)
			if err != nil {
				// Сосед мог быть удалён между уровнями обхода —
				// пропускаем его, обход не падает.
				if shared.IsNotFound(err) {
					continue
				}
				return nil, err
			}

			for _, n := range neighbors {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				next = append(next, n)
			}
		}

		if len(next) == 0 {
			break
		}
		levels = append(levels, next)
		frontier = next
	}

	return levels, nil
}
