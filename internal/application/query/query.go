// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
//
// Каждый аналитический запрос проходит через кеш: обёртка cachedCompute
// измеряет латентность, записывает hit/miss в коллектор метрик и
// схлопывает конкурентные промахи средствами самого кеша.
package query

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/retry"
)

// DefaultCacheTTL - TTL записей кеша аналитики по умолчанию.
const DefaultCacheTTL = 5 * time.Minute

// cachedCompute выполняет GetOrCompute с инструментацией: латентность
// доступа записывается в recorder как hit или miss. Recorder может быть
// nil (метрики выключены), cache - нет.
func cachedCompute(
	ctx context.Context,
	cache analytics.Cache,
	recorder analytics.AccessRecorder,
	key analytics.CacheKey,
	ttl time.Duration,
	compute analytics.ComputeFunc,
) (interface{}, bool, error) {
	start := time.Now()

	value, hit, err := cache.GetOrCompute(ctx, key, ttl, compute)

	if recorder != nil && err == nil {
		if hit {
			recorder.RecordHit(time.Since(start))
		} else {
			recorder.RecordMiss(time.Since(start))
		}
	}

	return value, hit, err
}

// upstreamRetrier возвращает ретраер для вызовов доменных вычислений:
// одна повторная попытка для временных ошибок апстрима, остальные
// ошибки возвращаются сразу.
func upstreamRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(2),
		retry.WithInitialDelay(200*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.2),
		retry.WithRetryIf(shared.IsRetryable),
	)
}

// UserMiniDTO - краткий профиль пользователя для гидратации списков.
type UserMiniDTO struct {
	// UserID - идентификатор пользователя.
	UserID string `json:"user_id"`

	// Username - отображаемое имя.
	Username string `json:"username"`

	// AvatarRef - ссылка на аватар.
	AvatarRef string `json:"avatar_ref,omitempty"`
}
