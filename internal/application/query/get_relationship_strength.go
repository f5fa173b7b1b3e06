package query

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RELATIONSHIP STRENGTH QUERY
// Вычисляет силу связи пары пользователей из общих друзей и
// счётчика взаимодействий. Результат ключуется по viewer, чтобы
// инвалидация по мутации его графа была точной.
// ══════════════════════════════════════════════════════════════════════════════

// GetRelationshipStrengthQuery содержит параметры запроса силы связи.
type GetRelationshipStrengthQuery struct {
	// ViewerID - пользователь, запрашивающий оценку.
	ViewerID string

	// TargetID - второй участник пары.
	TargetID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetRelationshipStrengthQuery) Validate() error {
	if !graph.UserID(q.ViewerID).IsValid() || !graph.UserID(q.TargetID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.ViewerID == q.TargetID {
		return shared.ErrSelfRelationship
	}
	return nil
}

// GetRelationshipStrengthResult содержит оценку силы связи.
type GetRelationshipStrengthResult struct {
	// ViewerID - запрашивающий пользователь.
	ViewerID string `json:"viewer_id"`

	// TargetID - второй участник пары.
	TargetID string `json:"target_id"`

	// Strength - нормализованная сила связи в [0,1].
	Strength float64 `json:"strength"`

	// CommonFriends - количество общих друзей.
	CommonFriends int `json:"common_friends"`

	// Interactions - количество взаимодействий за окно.
	Interactions int `json:"interactions"`

	// Degraded - true, если счётчик взаимодействий был недоступен.
	Degraded bool `json:"degraded"`

	// CacheHit - true, если результат взят из кеша.
	CacheHit bool `json:"cache_hit"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetRelationshipStrengthHandler обрабатывает запросы силы связи.
type GetRelationshipStrengthHandler struct {
	scorer   *analytics.RelationshipScorer
	cache    analytics.Cache
	recorder analytics.AccessRecorder
	cacheTTL time.Duration
}

// NewGetRelationshipStrengthHandler создаёт новый обработчик запроса силы связи.
func NewGetRelationshipStrengthHandler(
	scorer *analytics.RelationshipScorer,
	cache analytics.Cache,
	recorder analytics.AccessRecorder,
	cacheTTL time.Duration,
) *GetRelationshipStrengthHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &GetRelationshipStrengthHandler{
		scorer:   scorer,
		cache:    cache,
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

// Handle выполняет запрос силы связи.
func (h *GetRelationshipStrengthHandler) Handle(ctx context.Context, query GetRelationshipStrengthQuery) (*GetRelationshipStrengthResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	viewerID := graph.UserID(query.ViewerID)
	targetID := graph.UserID(query.TargetID)
	key := analytics.CacheKey{
		UserID:     viewerID,
		Operation:  analytics.OpRelationship,
		ParamsHash: analytics.HashParams(query.TargetID),
	}

	retrier := upstreamRetrier()
	value, hit, err := cachedCompute(ctx, h.cache, h.recorder, key, h.cacheTTL, func(ctx context.Context) (interface{}, error) {
		var result *analytics.RelationshipStrength
		retryErr := retrier.Do(ctx, func(ctx context.Context) error {
			var computeErr error
			result, computeErr = h.scorer.ScoreRelationship(ctx, viewerID, targetID)
			return computeErr
		})
		return result, retryErr
	})
	if err != nil {
		return nil, err
	}

	strength, ok := value.(*analytics.RelationshipStrength)
	if !ok {
		return nil, shared.NewDomainError("query", "GetRelationshipStrength", shared.ErrInvalidState, "unexpected cached value type")
	}

	return &GetRelationshipStrengthResult{
		ViewerID:      query.ViewerID,
		TargetID:      query.TargetID,
		Strength:      strength.Strength,
		CommonFriends: strength.CommonFriends,
		Interactions:  strength.Interactions,
		Degraded:      strength.Degraded,
		CacheHit:      hit,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
