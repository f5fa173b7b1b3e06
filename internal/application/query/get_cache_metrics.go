package query

import (
	"context"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CACHE METRICS QUERY
// Читает телеметрию кеша для дашборда: текущие агрегаты и историю
// снимков за скользящее окно. Читается напрямую из коллектора,
// без кеширования.
// ══════════════════════════════════════════════════════════════════════════════

// MaxHistoryPeriod - максимальное окно истории снимков.
const MaxHistoryPeriod = 7 * 24 * time.Hour

// GetCacheMetricsQuery содержит параметры запроса метрик.
type GetCacheMetricsQuery struct {
	// Period - скользящее окно истории снимков.
	// 0 означает только текущие агрегаты без истории.
	Period time.Duration
}

// Validate проверяет корректность параметров запроса.
func (q *GetCacheMetricsQuery) Validate() error {
	if q.Period < 0 || q.Period > MaxHistoryPeriod {
		return shared.ErrInvalidPeriod
	}
	return nil
}

// SnapshotDTO - один снимок агрегатов кеша.
type SnapshotDTO struct {
	// Timestamp - момент снятия снимка.
	Timestamp time.Time `json:"timestamp"`

	// HitRate - доля попаданий в процентах [0,100].
	HitRate float64 `json:"hit_rate"`

	// AverageLatencyMs - средняя латентность в миллисекундах.
	AverageLatencyMs float64 `json:"average_latency_ms"`

	// MemoryUsageBytes - оценка памяти кеша.
	MemoryUsageBytes int64 `json:"memory_usage_bytes"`

	// KeysCount - количество записей кеша.
	KeysCount int `json:"keys_count"`
}

// GetCacheMetricsResult содержит текущие агрегаты и историю снимков.
type GetCacheMetricsResult struct {
	// Current - текущие агрегаты кеша.
	Current analytics.CurrentMetrics `json:"current"`

	// History - снимки за окно Period, от старых к новым.
	// Пуст, если Period равен нулю.
	History []SnapshotDTO `json:"history,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetCacheMetricsHandler обрабатывает запросы метрик кеша.
type GetCacheMetricsHandler struct {
	source analytics.MetricsSource
}

// NewGetCacheMetricsHandler создаёт новый обработчик запроса метрик.
func NewGetCacheMetricsHandler(source analytics.MetricsSource) *GetCacheMetricsHandler {
	return &GetCacheMetricsHandler{source: source}
}

// Handle выполняет запрос метрик кеша.
func (h *GetCacheMetricsHandler) Handle(ctx context.Context, query GetCacheMetricsQuery) (*GetCacheMetricsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &GetCacheMetricsResult{
		Current:     h.source.Current(),
		GeneratedAt: time.Now().UTC(),
	}

	if query.Period > 0 {
		snapshots := h.source.History(query.Period)
		result.History = make([]SnapshotDTO, len(snapshots))
		for i, s := range snapshots {
			result.History[i] = SnapshotDTO{
				Timestamp:        s.Timestamp,
				HitRate:          s.HitRate,
				AverageLatencyMs: s.AverageLatencyMs,
				MemoryUsageBytes: s.MemoryUsageBytes,
				KeysCount:        s.KeysCount,
			}
		}
	}

	return result, nil
}
