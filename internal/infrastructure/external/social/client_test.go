package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.MaxAttempts = 1
	return NewClient(cfg)
}

func TestClient_TopCandidates(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [
				{"user_id": "dana", "affinity": 0.91},
				{"user_id": "  ", "affinity": 0.5},
				{"user_id": "eve", "affinity": 0.42}
			]
		}`))
	})

	ids, err := client.TopCandidates(context.Background(), "alice", 10)
	require.NoError(t, err)

	// Invalid IDs are dropped, order is preserved.
	assert.Equal(t, []graph.UserID{"dana", "eve"}, ids)
	assert.Equal(t, "/internal/v1/users/alice/activity-candidates?limit=10", gotPath)
}

func TestClient_TopCandidates_UnknownUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "USER_NOT_FOUND", "message": "no such user"}`))
	})

	_, err := client.TopCandidates(context.Background(), "ghost", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestClient_TopCandidates_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.TopCandidates(context.Background(), "alice", 10)
	require.Error(t, err)

	// The recommendation engine degrades on these instead of failing.
	assert.True(t, shared.IsExternalService(err))
	assert.True(t, shared.IsRetryable(err))
}

func TestClient_TopCandidates_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.TopCandidates(context.Background(), "alice", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRateLimited)

	// 429 must not count toward tripping the breaker.
	assert.Equal(t, circuitbreaker.StateClosed, client.breaker.State())
}

func TestClient_IsDiscoverable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.URL.Query().Get("viewer"))
		assert.Equal(t, "bob", r.URL.Query().Get("target"))
		_, _ = w.Write([]byte(`{"discoverable": false}`))
	})

	visible, err := client.IsDiscoverable(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestClient_Status(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "pending"}`))
	})

	status, err := client.Status(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, graph.RequestStatusPending, status)
}

func TestClient_Status_UnknownValue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "blocked"}`))
	})

	_, err := client.Status(context.Background(), "alice", "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, err := client.TopCandidates(context.Background(), "alice", 10)
		require.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.StateOpen, client.breaker.State())

	_, err := client.TopCandidates(context.Background(), "alice", 10)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       0, // fail immediately once drained
	})

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())

	rl.Reset()
	assert.True(t, rl.TryAllow())
}
