package analytics

import (
	"context"
	"math"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RELATIONSHIP SCORER
// Сила связи пары = взвешенное среднее двух насыщающихся компонент:
// общих друзей и взаимодействий. Насыщение 1 - exp(-x/k) приближается
// к 1, но никогда её не достигает; ровно 0 при нулевых входах.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreWeights - веса компонент итоговой силы связи.
type ScoreWeights struct {
	// CommonFriends - вес компоненты общих друзей.
	CommonFriends float64

	// Interactions - вес компоненты взаимодействий.
	Interactions float64
}

// ScorerConfig - настройки скорера.
type ScorerConfig struct {
	// KCommon - константа насыщения для общих друзей.
	// При x == KCommon компонента достигает ~0.63.
	KCommon float64

	// KInteractions - константа насыщения для взаимодействий.
	KInteractions float64

	// Weights - веса компонент.
	Weights ScoreWeights
}

// DefaultScorerConfig возвращает настройки по умолчанию: равные веса,
// насыщение на 5 общих друзьях и 20 взаимодействиях.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		KCommon:       5,
		KInteractions: 20,
		Weights: ScoreWeights{
			CommonFriends: 0.5,
			Interactions:  0.5,
		},
	}
}

// Validate проверяет корректность настроек.
func (c ScorerConfig) Validate() error {
	if c.KCommon <= 0 || c.KInteractions <= 0 {
		return shared.ErrInvalidScoreWeights
	}
	if c.Weights.CommonFriends < 0 || c.Weights.Interactions < 0 {
		return shared.ErrInvalidScoreWeights
	}
	if c.Weights.CommonFriends+c.Weights.Interactions == 0 {
		return shared.ErrInvalidScoreWeights
	}
	return nil
}

// RelationshipScorer вычисляет силу связи пары пользователей.
type RelationshipScorer struct {
	store  graph.GraphStore
	signal graph.InteractionSignal
	cfg    ScorerConfig
}

// NewRelationshipScorer создаёт скорер.
func NewRelationshipScorer(store graph.GraphStore, signal graph.InteractionSignal, cfg ScorerConfig) (*RelationshipScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RelationshipScorer{
		store:  store,
		signal: signal,
		cfg:    cfg,
	}, nil
}

// ScoreRelationship возвращает силу связи между viewer и target.
// Сила симметрична относительно пары. При недоступном сигнале
// взаимодействий возвращает деградированный результат (Interactions=0,
// Degraded=true) вместо ошибки.
func (s *RelationshipScorer) ScoreRelationship(ctx context.Context, viewerID, targetID graph.UserID) (*RelationshipStrength, error) {
	if !viewerID.IsValid() || !targetID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if viewerID == targetID {
		return nil, shared.ErrSelfRelationship
	}

	common, err := s.commonFriends(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}

	interactions := 0
	degraded := false
	n, err := s.signal.Count(ctx, viewerID, targetID)
	switch {
	case err == nil:
		interactions = n
	case shared.IsRetryable(err) || shared.IsExternalService(err):
		degraded = true
	default:
		return nil, err
	}

	return &RelationshipStrength{
		Strength:      s.StrengthFrom(common, interactions),
		CommonFriends: common,
		Interactions:  interactions,
		Degraded:      degraded,
	}, nil
}

// StrengthFrom - чистая функция силы связи от сырых входов.
// Монотонно неубывает по обоим входам, ограничена [0,1],
// ровно 0 тогда и только тогда, когда оба входа нулевые.
func (s *RelationshipScorer) StrengthFrom(commonFriends, interactions int) float64 {
	nc := saturate(float64(commonFriends), s.cfg.KCommon)
	ni := saturate(float64(interactions), s.cfg.KInteractions)

	total := s.cfg.Weights.CommonFriends + s.cfg.Weights.Interactions
	return (nc*s.cfg.Weights.CommonFriends + ni*s.cfg.Weights.Interactions) / total
}

// commonFriends возвращает мощность пересечения множеств друзей пары.
func (s *RelationshipScorer) commonFriends(ctx context.Context, a, b graph.UserID) (int, error) {
	na, err := s.store.Neighbors(ctx, a)
	if err != nil {
		return 0, err
	}
	nb, err := s.store.Neighbors(ctx, b)
	if err != nil {
		return 0, err
	}

	set := make(map[graph.UserID]struct{}, len(na))
	for _, id := range na {
		set[id] = struct{}{}
	}

	count := 0
	for _, id := range nb {
		if _, ok := set[id]; ok {
			count++
			delete(set, id)
		}
	}
	return count, nil
}

// saturate - насыщающаяся нормализация 1 - exp(-x/k).
func saturate(x, k float64) float64 {
	if x <= 0 {
		return 0
	}
	return 1 - math.Exp(-x/k)
}
