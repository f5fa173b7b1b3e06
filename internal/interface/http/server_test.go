package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sociogram/graph-analytics/internal/application/command"
	"github.com/sociogram/graph-analytics/internal/application/query"
	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/infrastructure/persistence/memory"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	store := memory.NewGraphStore()
	signal := memory.NewInteractionStore()
	users := memory.NewUserDirectory()
	cache := memory.NewAnalyticsCache(memory.CacheConfig{Capacity: 100, DefaultTTL: time.Minute}, nil)
	collector := memory.NewMetricsCollector(memory.DefaultCollectorConfig(), cache, nil, nil)

	_, err := store.AddFriendship(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = store.AddFriendship(context.Background(), "bob", "carol")
	require.NoError(t, err)

	scorer, err := analytics.NewRelationshipScorer(store, signal, analytics.DefaultScorerConfig())
	require.NoError(t, err)
	classifier, err := analytics.NewCircleClassifier(store, scorer, analytics.DefaultCircleThresholds())
	require.NoError(t, err)
	calculator := analytics.NewInfluenceCalculator(store)
	engine := analytics.NewRecommendationEngine(store, calculator, memory.NoActivity{}, memory.OpenPrivacy{}, memory.NoRequests{})

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}

	return NewServer(cfg, Dependencies{
		GetCirclesHandler:              query.NewGetCirclesHandler(classifier, users, cache, collector, time.Minute),
		GetInfluenceHandler:            query.NewGetInfluenceHandler(calculator, cache, collector, time.Minute),
		GetRelationshipStrengthHandler: query.NewGetRelationshipStrengthHandler(scorer, cache, collector, time.Minute),
		GetRecommendationsHandler:      query.NewGetRecommendationsHandler(engine, users, cache, collector, time.Minute),
		GetCacheMetricsHandler:         query.NewGetCacheMetricsHandler(collector),
		ConnectUsersHandler:            command.NewConnectUsersHandler(store, cache, nil, nil),
		DisconnectUsersHandler:         command.NewDisconnectUsersHandler(store, cache, nil, nil),
		RecordInteractionHandler:       command.NewRecordInteractionHandler(signal, nil, cache, nil, nil),
		InvalidateCacheHandler:         command.NewInvalidateCacheHandler(cache, nil, nil),
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_GetCircles(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/alice/circles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_GetInfluence_BadDepth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/alice/influence?max_distance=99", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_failed", resp.Error.Code)
}

func TestServer_GetInfluence_UnknownUser(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/ghost/influence", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateAndDeleteFriendship(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/friendships",
		`{"user_id":"alice","friend_id":"dave"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate edge conflicts.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/friendships",
		`{"user_id":"dave","friend_id":"alice"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/friendships/alice/dave", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/friendships/alice/dave", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RecordInteraction(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/interactions",
		`{"user_id":"alice","other_user_id":"bob","kind":"like"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/interactions",
		`{"user_id":"alice","other_user_id":"bob","kind":"poke"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/interactions", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CacheMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	// Warm the cache once so hit counters move.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/alice/circles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cache/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cache/metrics/history?period=bogus", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/cache/metrics/history?period=1h", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AdminInvalidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	s := newTestServer(t, func(cfg *Config) {
		cfg.AdminAPIKeyHash = string(hash)
	})

	body := `{"user_ids":["alice"],"reason":"test"}`

	rec := doRequest(t, s, http.MethodPost, "/api/v1/admin/cache/invalidate", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/admin/cache/invalidate", body,
		map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/admin/cache/invalidate", body,
		map[string]string{"X-API-Key": "letmein"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_AdminDisabledWithoutHash(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/admin/cache/invalidate",
		`{"user_ids":["alice"]}`, map[string]string{"X-API-Key": "anything"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_HealthAndRoot(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, s, http.MethodGet, "/live", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, s, http.MethodGet, "/live", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
