package analytics

import (
	"context"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION ENGINE
// Два независимых генератора кандидатов: друзья друзей (BFS, глубина 2)
// и внешнее активити-ранжирование. Слияние: активити-кандидаты первыми
// в их исходном порядке, затем proximity-only в порядке обнаружения BFS;
// дедупликация по первому вхождению.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultRecommendLimit - размер списка рекомендаций по умолчанию.
	DefaultRecommendLimit = 20

	// MaxRecommendLimit - верхняя граница размера списка.
	MaxRecommendLimit = 100
)

// ActivityRanker - внешний источник активити-кандидатов.
// Ядро трактует список как opaque ранжированный вход.
type ActivityRanker interface {
	// TopCandidates возвращает кандидатов для пользователя
	// в порядке убывания активити-аффинности.
	TopCandidates(ctx context.Context, userID graph.UserID, limit int) ([]graph.UserID, error)
}

// RecommendationEngine строит рекомендации друзей.
type RecommendationEngine struct {
	store     graph.GraphStore
	influence *InfluenceCalculator
	activity  ActivityRanker
	privacy   graph.PrivacyCheck
	requests  graph.FriendRequestState
}

// NewRecommendationEngine создаёт движок рекомендаций.
func NewRecommendationEngine(
	store graph.GraphStore,
	influence *InfluenceCalculator,
	activity ActivityRanker,
	privacy graph.PrivacyCheck,
	requests graph.FriendRequestState,
) *RecommendationEngine {
	return &RecommendationEngine{
		store:     store,
		influence: influence,
		activity:  activity,
		privacy:   privacy,
		requests:  requests,
	}
}

// Recommend возвращает дедуплицированный ранжированный список кандидатов.
// Исключаются: сам пользователь, существующие друзья, пары с ожидающей
// заявкой в друзья и пользователи, скрытые приватностью. Если
// активити-источник недоступен, результат строится только из
// proximity-кандидатов и помечается как деградированный.
func (e *RecommendationEngine) Recommend(ctx context.Context, userID graph.UserID, limit int) (*RecommendResult, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}
	if limit > MaxRecommendLimit {
		limit = MaxRecommendLimit
	}

	friends, err := e.store.Neighbors(ctx, userID)
	if err != nil {
		return nil, err
	}
	friendSet := make(map[graph.UserID]struct{}, len(friends))
	for _, f := range friends {
		friendSet[f] = struct{}{}
	}

	proximity, err := e.influence.ReachableAt(ctx, userID, 2)
	if err != nil {
		return nil, err
	}

	degraded := false
	var activity []graph.UserID
	activity, err = e.activity.TopCandidates(ctx, userID, limit)
	if err != nil {
		if !shared.IsRetryable(err) && !shared.IsExternalService(err) {
			return nil, err
		}
		activity = nil
		degraded = true
	}

	proximitySet := make(map[graph.UserID]struct{}, len(proximity))
	for _, id := range proximity {
		proximitySet[id] = struct{}{}
	}
	activitySet := make(map[graph.UserID]struct{}, len(activity))
	for _, id := range activity {
		activitySet[id] = struct{}{}
	}

	result := &RecommendResult{
		Recommendations: make([]Recommendation, 0, limit),
		Degraded:        degraded,
	}
	seen := make(map[graph.UserID]struct{}, limit)

	appendCandidate := func(candidate graph.UserID, reason RecommendReason) error {
		if len(result.Recommendations) >= limit {
			return nil
		}
		if candidate == userID {
			return nil
		}
		if _, ok := friendSet[candidate]; ok {
			return nil
		}
		if _, ok := seen[candidate]; ok {
			return nil
		}

		ok, err := e.admissible(ctx, userID, candidate)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		seen[candidate] = struct{}{}
		result.Recommendations = append(result.Recommendations, Recommendation{
			UserID: candidate,
			Reason: reason,
		})
		return nil
	}

	// Активити-кандидаты первыми: при пересечении генераторов
	// выигрывает их порядок.
	for _, id := range activity {
		reason := ReasonActivity
		if _, ok := proximitySet[id]; ok {
			reason = ReasonBoth
		}
		if err := appendCandidate(id, reason); err != nil {
			return nil, err
		}
	}

	for _, id := range proximity {
		if _, ok := activitySet[id]; ok {
			continue
		}
		if err := appendCandidate(id, ReasonProximity); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// admissible проверяет кандидата против внешних коллабораторов:
// приватность и состояние заявки в друзья.
func (e *RecommendationEngine) admissible(ctx context.Context, viewerID, candidateID graph.UserID) (bool, error) {
	discoverable, err := e.privacy.IsDiscoverable(ctx, viewerID, candidateID)
	if err != nil {
		return false, shared.WrapError("analytics", "Recommend", shared.ErrExternalService, "privacy check failed", err)
	}
	if !discoverable {
		return false, nil
	}

	status, err := e.requests.Status(ctx, viewerID, candidateID)
	if err != nil {
		return false, shared.WrapError("analytics", "Recommend", shared.ErrExternalService, "friend request state failed", err)
	}
	return status == graph.RequestStatusNone, nil
}
