package query

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CIRCLES QUERY
// Классифицирует прямых друзей пользователя по кругам общения
// (close / distant / other) на основе силы связи.
// ══════════════════════════════════════════════════════════════════════════════

// GetCirclesQuery содержит параметры запроса кругов общения.
type GetCirclesQuery struct {
	// UserID - пользователь, чьи круги запрашиваются.
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetCirclesQuery) Validate() error {
	if !graph.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// CircleDTO - DTO одного круга общения.
type CircleDTO struct {
	// Type - уровень круга: "close", "distant", "other".
	Type string `json:"type"`

	// Members - участники круга с краткими профилями.
	Members []UserMiniDTO `json:"members"`

	// Size - размер круга.
	Size int `json:"size"`
}

// GetCirclesResult содержит результат классификации кругов.
type GetCirclesResult struct {
	// UserID - пользователь, для которого построены круги.
	UserID string `json:"user_id"`

	// Circles - непустые круги в порядке close, distant, other.
	Circles []CircleDTO `json:"circles"`

	// Degraded - true, если сигнал взаимодействий был недоступен.
	Degraded bool `json:"degraded"`

	// CacheHit - true, если результат взят из кеша.
	CacheHit bool `json:"cache_hit"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetCirclesHandler обрабатывает запросы кругов общения.
type GetCirclesHandler struct {
	classifier *analytics.CircleClassifier
	users      graph.UserDirectory
	cache      analytics.Cache
	recorder   analytics.AccessRecorder
	cacheTTL   time.Duration
}

// NewGetCirclesHandler создаёт новый обработчик запроса кругов.
func NewGetCirclesHandler(
	classifier *analytics.CircleClassifier,
	users graph.UserDirectory,
	cache analytics.Cache,
	recorder analytics.AccessRecorder,
	cacheTTL time.Duration,
) *GetCirclesHandler {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &GetCirclesHandler{
		classifier: classifier,
		users:      users,
		cache:      cache,
		recorder:   recorder,
		cacheTTL:   cacheTTL,
	}
}

// Handle выполняет запрос кругов общения.
func (h *GetCirclesHandler) Handle(ctx context.Context, query GetCirclesQuery) (*GetCirclesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID := graph.UserID(query.UserID)
	key := analytics.CacheKey{
		UserID:     userID,
		Operation:  analytics.OpCircles,
		ParamsHash: analytics.HashParams(),
	}

	retrier := upstreamRetrier()
	value, hit, err := cachedCompute(ctx, h.cache, h.recorder, key, h.cacheTTL, func(ctx context.Context) (interface{}, error) {
		var result *analytics.ClassifyResult
		retryErr := retrier.Do(ctx, func(ctx context.Context) error {
			var computeErr error
			result, computeErr = h.classifier.ClassifyCircles(ctx, userID)
			return computeErr
		})
		return result, retryErr
	})
	if err != nil {
		return nil, err
	}

	classified, ok := value.(*analytics.ClassifyResult)
	if !ok {
		return nil, shared.NewDomainError("query", "GetCircles", shared.ErrInvalidState, "unexpected cached value type")
	}

	circles, err := h.hydrate(ctx, classified.Circles)
	if err != nil {
		return nil, err
	}

	return &GetCirclesResult{
		UserID:      query.UserID,
		Circles:     circles,
		Degraded:    classified.Degraded,
		CacheHit:    hit,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// hydrate обогащает участников кругов краткими профилями.
// Неизвестные профили представляются только ID: гидратация не должна
// ронять запрос из-за удалённого пользователя.
func (h *GetCirclesHandler) hydrate(ctx context.Context, circles []analytics.Circle) ([]CircleDTO, error) {
	var allIDs []graph.UserID
	for _, c := range circles {
		allIDs = append(allIDs, c.Members...)
	}

	profiles := make(map[graph.UserID]*graph.User)
	if h.users != nil && len(allIDs) > 0 {
		users, err := h.users.GetUsers(ctx, allIDs)
		if err != nil {
			return nil, shared.WrapError("query", "GetCircles", shared.ErrExternalService, "profile hydration failed", err)
		}
		for _, u := range users {
			profiles[u.ID] = u
		}
	}

	dtos := make([]CircleDTO, len(circles))
	for i, c := range circles {
		members := make([]UserMiniDTO, len(c.Members))
		for j, id := range c.Members {
			member := UserMiniDTO{UserID: string(id)}
			if u, ok := profiles[id]; ok {
				member.Username = u.Username
				member.AvatarRef = u.AvatarRef
			}
			members[j] = member
		}
		dtos[i] = CircleDTO{
			Type:    string(c.Type),
			Members: members,
			Size:    c.Size,
		}
	}

	return dtos, nil
}
