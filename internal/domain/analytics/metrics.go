package analytics

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// Телеметрия кеша: каждый доступ записывается (hit/miss + латентность),
// агрегаты снимаются по интервалу в ограниченную историю для дашбордов.
// ══════════════════════════════════════════════════════════════════════════════

// CurrentMetrics - текущие агрегаты кеша.
type CurrentMetrics struct {
	// HitRate - доля попаданий в процентах [0,100].
	// 0 (не NaN), когда наблюдений ещё не было.
	HitRate float64 `json:"hit_rate"`

	// AverageLatencyMs - средняя латентность доступа в миллисекундах.
	AverageLatencyMs float64 `json:"average_latency_ms"`

	// MemoryUsageBytes - оценка памяти кеша.
	MemoryUsageBytes int64 `json:"memory_usage_bytes"`

	// KeysCount - количество записей кеша.
	KeysCount int `json:"keys_count"`
}

// MetricsSnapshot - снимок агрегатов на момент времени.
// История снимков append-only с ограниченным окном хранения:
// при переполнении выбрасывается старейший (FIFO по времени).
type MetricsSnapshot struct {
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

// AccessRecorder - приёмник исходов доступа к кешу.
// Счётчики обновляются атомарно: запись происходит на каждом запросе.
type AccessRecorder interface {
	// RecordHit фиксирует попадание и его латентность.
	RecordHit(latency time.Duration)

	// RecordMiss фиксирует промах и латентность вычисления.
	RecordMiss(latency time.Duration)
}

// CacheSampler - источник текущего размера кеша для снимков.
type CacheSampler interface {
	// Stats возвращает текущее состояние кеша.
	Stats() CacheStats
}

// MetricsSource - чтение метрик для API дашборда.
type MetricsSource interface {
	// Current возвращает текущие агрегаты.
	Current() CurrentMetrics

	// History возвращает снимки за скользящее окно period,
	// от старых к новым.
	History(period time.Duration) []MetricsSnapshot
}

// SnapshotPublisher - опциональный push-канал снимков для дашбордов,
// предпочитающих подписку опросу.
type SnapshotPublisher interface {
	// PublishSnapshot отправляет снимок подписчикам.
	PublishSnapshot(ctx context.Context, snapshot MetricsSnapshot) error
}
