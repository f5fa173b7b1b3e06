package analytics

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE PORT
// Кеш аналитики мемоизирует дорогие вычисления по графу. Кеширование —
// оптимизация, а не зависимость корректности: недоступный кеш означает
// прямое вычисление, а не отказ запроса.
// ══════════════════════════════════════════════════════════════════════════════

// Операции, по которым ключуется кеш.
const (
	OpCircles      = "circles"
	OpInfluence    = "influence"
	OpRelationship = "relationship"
	OpRecommend    = "recommend"
)

// CacheKey - ключ записи кеша: (пользователь, операция, хеш параметров).
type CacheKey struct {
	// UserID - пользователь, для которого выполнено вычисление.
	// Инвалидация по мутации графа ключуется этим полем.
	UserID graph.UserID

	// Operation - имя операции (OpCircles, OpInfluence, ...).
	Operation string

	// ParamsHash - хеш параметров операции (HashParams).
	ParamsHash string
}

// String возвращает каноническую строковую форму ключа.
func (k CacheKey) String() string {
	return string(k.UserID) + "|" + k.Operation + "|" + k.ParamsHash
}

// HashParams возвращает стабильный хеш параметров операции.
// Части хешируются с разделителем, чтобы ("a","bc") и ("ab","c")
// давали разные ключи.
func HashParams(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// ComputeFunc вычисляет значение при промахе кеша.
type ComputeFunc func(ctx context.Context) (interface{}, error)

// Cache - порт кеша аналитики.
type Cache interface {
	// GetOrCompute возвращает неистёкшее закешированное значение (hit=true)
	// или вычисляет его через compute, кеширует и возвращает (hit=false).
	// Ошибки compute никогда не кешируются и пропускаются без изменений.
	// Конкурентные промахи по одному ключу схлопываются в одно вычисление.
	GetOrCompute(ctx context.Context, key CacheKey, ttl time.Duration, compute ComputeFunc) (interface{}, bool, error)

	// Invalidate удаляет все записи, ключованные любым из пользователей.
	// Возвращает количество удалённых записей.
	Invalidate(userIDs ...graph.UserID) int

	// Stats возвращает текущий размер кеша.
	Stats() CacheStats
}

// CacheStats - текущее состояние кеша для сэмплирования метрик.
type CacheStats struct {
	// KeysCount - количество записей.
	KeysCount int

	// MemoryUsageBytes - оценка занимаемой памяти.
	MemoryUsageBytes int64
}
