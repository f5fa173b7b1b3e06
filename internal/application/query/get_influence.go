package query

import (
	"context"
	"strconv"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET INFLUENCE QUERY
// Вычисляет охват влияния пользователя: количество достижимых
// пользователей по каждой дистанции BFS до max_distance хопов.
// ══════════════════════════════════════════════════════════════════════════════

// GetInfluenceQuery содержит параметры запроса влияния.
type GetInfluenceQuery struct {
	// UserID - источник обхода.
	UserID string

	// MaxDistance - глубина обхода в хопах (0 = значение по умолчанию).
	MaxDistance int
}

// Validate проверяет корректность параметров запроса.
func (q *GetInfluenceQuery) Validate() error {
	if !graph.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.MaxDistance == 0 {
		q.MaxDistance = analytics.DefaultMaxDistance
	}
	return analytics.ValidateMaxDistance(q.MaxDistance)
}

// DistanceBucketDTO - количество пользователей на одной дистанции.
type DistanceBucketDTO struct {
	// Distance - кратчайшее расстояние в хопах.
	Distance int `json:"distance"`

	// Count - количество пользователей.
	Count int `json:"count"`
}

// GetInfluenceResult содержит распределение охвата по хопам.
type GetInfluenceResult struct {
	// UserID - источник обхода.
	UserID string `json:"user_id"`

	// MaxDistance - использованная глубина обхода.
	MaxDistance int `json:"max_distance"`

	// TotalReach - количество различных достижимых пользователей.
	TotalReach int `json:"total_reach"`

	// Distribution - непустые корзины по возрастанию дистанции.
	Distribution []DistanceBucketDTO `json:"distribution"`

	// CacheHit - true, если результат взят из кеша.
	CacheHit bool `json:"cache_hit"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetInfluenceHandler обрабатывает запросы охвата влияния.
type GetInfluenceHandler struct {
	calculator *analytics.InfluenceCalculator
	cache      analytics.Cache
	recorder   analytics.AccessRecorder
	cacheTTL   time.Duration
}

// NewGetInfluenceHandler создаёт новый обработчик запроса влияния.
func NewGetInfluenceHandler(
	calculator *analytics.InfluenceCalculator,
	cache analytics.Cache,
	recorder analytics.AccessRecorder,
	cacheTTL time.Duration,
) *GetInfluenceHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &GetInfluenceHandler{
		calculator: calculator,
		cache:      cache,
		recorder:   recorder,
		cacheTTL:   cacheTTL,
	}
}

// Handle выполняет запрос охвата влияния.
func (h *GetInfluenceHandler) Handle(ctx context.Context, query GetInfluenceQuery) (*GetInfluenceResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID := graph.UserID(query.UserID)
	key := analytics.CacheKey{
		UserID:     userID,
		Operation:  analytics.OpInfluence,
		ParamsHash: analytics.HashParams(strconv.Itoa(query.MaxDistance)),
	}

	retrier := upstreamRetrier()
	value, hit, err := cachedCompute(ctx, h.cache, h.recorder, key, h.cacheTTL, func(ctx context.Context) (interface{}, error) {
		var result *analytics.InfluenceDistribution
		retryErr := retrier.Do(ctx, func(ctx context.Context) error {
			var computeErr error
			result, computeErr = h.calculator.ComputeInfluence(ctx, userID, query.MaxDistance)
			return computeErr
		})
		return result, retryErr
	})
	if err != nil {
		return nil, err
	}

	distribution, ok := value.(*analytics.InfluenceDistribution)
	if !ok {
		return nil, shared.NewDomainError("query", "GetInfluence", shared.ErrInvalidState, "unexpected cached value type")
	}

	buckets := make([]DistanceBucketDTO, len(distribution.Distribution))
	for i, b := range distribution.Distribution {
		buckets[i] = DistanceBucketDTO{
			Distance: b.Distance,
			Count:    b.Count,
		}
	}

	return &GetInfluenceResult{
		UserID:       query.UserID,
		MaxDistance:  query.MaxDistance,
		TotalReach:   distribution.TotalReach,
		Distribution: buckets,
		CacheHit:     hit,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
