// Package social implements the client for the companion social service.
// That service owns user profiles, privacy settings, friend requests and
// the activity feed; the analytics engine consults it when building
// recommendations: privacy filtering, pending-request state, and
// activity-affinity candidates.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sociogram/graph-analytics/internal/domain/analytics"
	"github.com/sociogram/graph-analytics/internal/domain/graph"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/circuitbreaker"
	"github.com/sociogram/graph-analytics/pkg/logger"
	"github.com/sociogram/graph-analytics/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the social service client.
type ClientConfig struct {
	// BaseURL is the social service base URL
	BaseURL string

	// APIKey authenticates service-to-service calls
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for client-side request throttling
	RateLimiterConfig RateLimiterConfig

	// MaxAttempts bounds retries per logical request
	MaxAttempts int

	// Logger for structured logging
	Logger *logger.Logger

	// Debug enables per-request debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
		MaxAttempts:       3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the social service API client. Failures are reported as
// shared external-service errors so callers can degrade instead of
// failing the whole analytics request.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
}

var (
	_ analytics.ActivityRanker = (*Client)(nil)
	_ graph.PrivacyCheck       = (*Client)(nil)
	_ graph.FriendRequestState = (*Client)(nil)
)

// NewClient creates a new social service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	// Rate-limit responses must not trip the breaker: the service is
	// healthy, it is just shedding load.
	breaker := circuitbreaker.New("social_api",
		circuitbreaker.WithIsFailure(func(err error) bool {
			return shared.IsExternalService(err) && !errors.Is(err, shared.ErrRateLimited)
		}),
	)

	retrier := retry.New(
		retry.WithMaxAttempts(config.MaxAttempts),
		retry.WithRetryIf(shared.IsRetryable),
	)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:      config.Logger.With(logger.Component("social_client")),
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker:     breaker,
		retrier:     retrier,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// TopCandidates implements analytics.ActivityRanker: users whose recent
// activity overlaps the given user's, best affinity first.
func (c *Client) TopCandidates(ctx context.Context, userID graph.UserID, limit int) ([]graph.UserID, error) {
	path := fmt.Sprintf("/internal/v1/users/%s/activity-candidates?limit=%d",
		url.PathEscape(string(userID)), limit)

	var response activityCandidatesDTO
	if err := c.doRequest(ctx, path, &response); err != nil {
		return nil, fmt.Errorf("activity candidates for %s: %w", userID, err)
	}

	return response.UserIDs(), nil
}

// IsDiscoverable implements graph.PrivacyCheck.
func (c *Client) IsDiscoverable(ctx context.Context, viewerID, targetID graph.UserID) (bool, error) {
	path := "/internal/v1/privacy/discoverable?" + pairQuery(viewerID, targetID)

	var response discoverableDTO
	if err := c.doRequest(ctx, path, &response); err != nil {
		return false, fmt.Errorf("discoverable %s->%s: %w", viewerID, targetID, err)
	}

	return response.Discoverable, nil
}

// Status implements graph.FriendRequestState.
func (c *Client) Status(ctx context.Context, viewerID, targetID graph.UserID) (graph.RequestStatus, error) {
	path := "/internal/v1/friend-requests/status?" + pairQuery(viewerID, targetID)

	var response requestStatusDTO
	if err := c.doRequest(ctx, path, &response); err != nil {
		return graph.RequestStatusNone, fmt.Errorf("request status %s->%s: %w", viewerID, targetID, err)
	}

	status := graph.RequestStatus(response.Status)
	if !status.IsValid() {
		return graph.RequestStatusNone, shared.NewDomainError(
			"social", "Status", shared.ErrInvalidFormat,
			fmt.Sprintf("unknown request status %q", response.Status))
	}

	return status, nil
}

// Ping reports whether the social service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.doSingleRequest(ctx, "/health", nil)
}

func pairQuery(viewerID, targetID graph.UserID) string {
	params := url.Values{}
	params.Set("viewer", string(viewerID))
	params.Set("target", string(targetID))
	return params.Encode()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a GET with circuit breaking, retries, and rate limiting.
func (c *Client) doRequest(ctx context.Context, path string, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				var rateErr *RateLimitError
				if errors.As(err, &rateErr) {
					return shared.WrapError("social", "doRequest", shared.ErrRateLimited,
						"client-side rate limit", err)
				}
				return err
			}

			err := c.doSingleRequest(ctx, path, result)
			if err != nil {
				var rateErr *RateLimitError
				if errors.As(err, &rateErr) {
					c.rateLimiter.RecordRateLimitHit(rateErr.RetryAfter)
				}
			}
			return err
		})
	})
}

// doSingleRequest performs a single GET and maps failures onto the
// shared error taxonomy.
func (c *Client) doSingleRequest(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("social api request", logger.String("path", path))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return shared.WrapError("social", "doSingleRequest", shared.ErrTimeout,
				"social service timed out", err)
		}
		return shared.WrapError("social", "doSingleRequest", shared.ErrServiceUnavailable,
			"social service unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.WrapError("social", "doSingleRequest", shared.ErrServiceUnavailable,
			"read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 30 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return shared.WrapError("social", "doSingleRequest", shared.ErrRateLimited,
			"social service rate limit", &RateLimitError{
				RetryAfter: retryAfter,
				Message:    "rate limit exceeded",
			})

	case resp.StatusCode == http.StatusNotFound:
		return shared.WrapError("social", "doSingleRequest", shared.ErrUserNotFound,
			"unknown user", apiError(respBody, resp.StatusCode))

	case resp.StatusCode >= 500:
		return shared.WrapError("social", "doSingleRequest", shared.ErrServiceUnavailable,
			"social service error", apiError(respBody, resp.StatusCode))

	case resp.StatusCode >= 400:
		return shared.WrapError("social", "doSingleRequest", shared.ErrExternalService,
			"social service rejected request", apiError(respBody, resp.StatusCode))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("social", "doSingleRequest", shared.ErrInvalidFormat,
				"malformed response", err)
		}
	}

	return nil
}

// apiError extracts a structured error body when the service sent one.
func apiError(body []byte, statusCode int) error {
	var dto apiErrorDTO
	if err := json.Unmarshal(body, &dto); err == nil && dto.Message != "" {
		return &dto
	}
	return fmt.Errorf("status %d", statusCode)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus describes the current client protection state.
type ClientStatus struct {
	RateLimiter   RateLimiterStatus
	BreakerState  string
	BreakerCounts circuitbreaker.Counts
}

// ProtectionStatus returns the current status of the client.
func (c *Client) ProtectionStatus() ClientStatus {
	return ClientStatus{
		RateLimiter:   c.rateLimiter.Status(),
		BreakerState:  c.breaker.State().String(),
		BreakerCounts: c.breaker.Counts(),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.breaker.Reset()
}
