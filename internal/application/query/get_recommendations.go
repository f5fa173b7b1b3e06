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
// GET RECOMMENDATIONS QUERY
// Строит список кандидатов в друзья: активити-кандидаты внешнего
// ранкера, дополненные proximity-кандидатами (друзья друзей),
// с фильтрами приватности и ожидающих заявок.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationsQuery содержит параметры запроса рекомендаций.
type GetRecommendationsQuery struct {
	// UserID - пользователь, для которого строятся рекомендации.
	UserID string

	// Limit - максимальный размер списка (0 = значение по умолчанию).
	Limit int
}

// Validate проверяет и нормализует параметры запроса.
// Лимит нормализуется здесь, чтобы ключ кеша строился по
// эффективному значению.
func (q *GetRecommendationsQuery) Validate() error {
	if !graph.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if q.Limit <= 0 {
		q.Limit = analytics.DefaultRecommendLimit
	}
	if q.Limit > analytics.MaxRecommendLimit {
		q.Limit = analytics.MaxRecommendLimit
	}
	return nil
}

// RecommendationDTO - один кандидат в друзья.
type RecommendationDTO struct {
	// User - профиль кандидата.
	User UserMiniDTO `json:"user"`

	// Reason - какой генератор предложил кандидата.
	Reason string `json:"reason"`
}

// GetRecommendationsResult содержит список рекомендаций.
type GetRecommendationsResult struct {
	// UserID - пользователь, для которого построен список.
	UserID string `json:"user_id"`

	// Recommendations - дедуплицированный упорядоченный список.
	Recommendations []RecommendationDTO `json:"recommendations"`

	// Degraded - true, если активити-источник был недоступен.
	Degraded bool `json:"degraded"`

	// CacheHit - true, если результат взят из кеша.
	CacheHit bool `json:"cache_hit"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetRecommendationsHandler обрабатывает запросы рекомендаций друзей.
type GetRecommendationsHandler struct {
	engine   *analytics.RecommendationEngine
	users    graph.UserDirectory
	cache    analytics.Cache
	recorder analytics.AccessRecorder
	cacheTTL time.Duration
}

// NewGetRecommendationsHandler создаёт новый обработчик запроса рекомендаций.
func NewGetRecommendationsHandler(
	engine *analytics.RecommendationEngine,
	users graph.UserDirectory,
	cache analytics.Cache,
	recorder analytics.AccessRecorder,
	cacheTTL time.Duration,
) *GetRecommendationsHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &GetRecommendationsHandler{
		engine:   engine,
		users:    users,
		cache:    cache,
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

// Handle выполняет запрос рекомендаций.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, query GetRecommendationsQuery) (*GetRecommendationsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID := graph.UserID(query.UserID)
	key := analytics.CacheKey{
		UserID:     userID,
		Operation:  analytics.OpRecommend,
		ParamsHash: analytics.HashParams(strconv.Itoa(query.Limit)),
	}

	retrier := upstreamRetrier()
	value, hit, err := cachedCompute(ctx, h.cache, h.recorder, key, h.cacheTTL, func(ctx context.Context) (interface{}, error) {
		var result *analytics.RecommendResult
		retryErr := retrier.Do(ctx, func(ctx context.Context) error {
			var computeErr error
			result, computeErr = h.engine.Recommend(ctx, userID, query.Limit)
			return computeErr
		})
		return result, retryErr
	})
	if err != nil {
		return nil, err
	}

	recommend, ok := value.(*analytics.RecommendResult)
	if !ok {
		return nil, shared.NewDomainError("query", "GetRecommendations", shared.ErrInvalidState, "unexpected cached value type")
	}

	dtos, err := h.hydrate(ctx, recommend.Recommendations)
	if err != nil {
		return nil, err
	}

	return &GetRecommendationsResult{
		UserID:          query.UserID,
		Recommendations: dtos,
		Degraded:        recommend.Degraded,
		CacheHit:        hit,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// hydrate обогащает кандидатов профилями из директории пользователей.
// Кандидаты без профиля (и все кандидаты без директории) рендерятся
// только с ID: гидратация не должна ронять запрос.
func (h *GetRecommendationsHandler) hydrate(ctx context.Context, recs []analytics.Recommendation) ([]RecommendationDTO, error) {
	ids := make([]graph.UserID, len(recs))
	for i, r := range recs {
		ids[i] = r.UserID
	}

	byID := make(map[graph.UserID]*graph.User, len(ids))
	if h.users != nil && len(ids) > 0 {
		profiles, err := h.users.GetUsers(ctx, ids)
		if err != nil {
			return nil, shared.WrapError("query", "GetRecommendations", shared.ErrExternalService, "profile hydration failed", err)
		}
		for _, p := range profiles {
			byID[p.ID] = p
		}
	}

	dtos := make([]RecommendationDTO, len(recs))
	for i, r := range recs {
		mini := UserMiniDTO{UserID: string(r.UserID)}
		if p, ok := byID[r.UserID]; ok {
			mini.Username = p.Username
			mini.AvatarRef = p.AvatarRef
		}
		dtos[i] = RecommendationDTO{
			User:   mini,
			Reason: string(r.Reason),
		}
	}
	return dtos, nil
}
