package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sociogram/graph-analytics/internal/application/command"
	"github.com/sociogram/graph-analytics/internal/application/query"
	"github.com/sociogram/graph-analytics/internal/domain/shared"
	"github.com/sociogram/graph-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Social Graph Analytics API",
		"version":     "v1",
		"description": "Circle classification, influence reach, relationship strength and friend recommendations",
		"endpoints": map[string]string{
			"health":          "/health",
			"circles":         "/api/v1/users/{id}/circles",
			"influence":       "/api/v1/users/{id}/influence",
			"relationship":    "/api/v1/users/{id}/relationship/{targetId}",
			"recommendations": "/api/v1/users/{id}/recommendations",
			"cache_metrics":   "/api/v1/cache/metrics",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCircles handles GET /api/v1/users/{id}/circles
func (s *Server) handleGetCircles(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCirclesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Circles handler not configured")
		return
	}

	result, err := s.deps.GetCirclesHandler.Handle(r.Context(), query.GetCirclesQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to classify circles")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		CacheHit: result.CacheHit,
		Degraded: result.Degraded,
	})
}

// handleGetInfluence handles GET /api/v1/users/{id}/influence?max_distance=3
func (s *Server) handleGetInfluence(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetInfluenceHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Influence handler not configured")
		return
	}

	result, err := s.deps.GetInfluenceHandler.Handle(r.Context(), query.GetInfluenceQuery{
		UserID:      r.PathValue("id"),
		MaxDistance: getQueryParamInt(r, "max_distance", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to compute influence")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{CacheHit: result.CacheHit})
}

// handleGetRelationshipStrength handles GET /api/v1/users/{id}/relationship/{targetId}
func (s *Server) handleGetRelationshipStrength(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRelationshipStrengthHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Relationship handler not configured")
		return
	}

	result, err := s.deps.GetRelationshipStrengthHandler.Handle(r.Context(), query.GetRelationshipStrengthQuery{
		ViewerID: r.PathValue("id"),
		TargetID: r.PathValue("targetId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to score relationship")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		CacheHit: result.CacheHit,
		Degraded: result.Degraded,
	})
}

// handleGetRecommendations handles GET /api/v1/users/{id}/recommendations?limit=20
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRecommendationsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Recommendations handler not configured")
		return
	}

	result, err := s.deps.GetRecommendationsHandler.Handle(r.Context(), query.GetRecommendationsQuery{
		UserID: r.PathValue("id"),
		Limit:  getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build recommendations")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		CacheHit: result.CacheHit,
		Degraded: result.Degraded,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE TELEMETRY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCacheMetrics handles GET /api/v1/cache/metrics
func (s *Server) handleGetCacheMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCacheMetricsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Metrics handler not configured")
		return
	}

	result, err := s.deps.GetCacheMetricsHandler.Handle(r.Context(), query.GetCacheMetricsQuery{})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to read cache metrics")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetCacheMetricsHistory handles GET /api/v1/cache/metrics/history?period=1h
func (s *Server) handleGetCacheMetricsHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCacheMetricsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Metrics handler not configured")
		return
	}

	period, err := getQueryParamDuration(r, "period", time.Hour)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_period", "period must be a duration like 30m, 1h or 7d")
		return
	}

	result, err := s.deps.GetCacheMetricsHandler.Handle(r.Context(), query.GetCacheMetricsQuery{Period: period})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to read cache metrics history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRAPH MUTATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type friendshipRequest struct {
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`
}

// handleCreateFriendship handles POST /api/v1/friendships
func (s *Server) handleCreateFriendship(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConnectUsersHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Connect handler not configured")
		return
	}

	var req friendshipRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.ConnectUsersHandler.Handle(r.Context(), command.ConnectUsersCommand{
		UserID:   req.UserID,
		FriendID: req.FriendID,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to create friendship")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_a":              string(result.Friendship.UserA),
		"user_b":              string(result.Friendship.UserB),
		"created_at":          result.CreatedAt,
		"invalidated_entries": result.InvalidatedEntries,
	})
}

// handleDeleteFriendship handles DELETE /api/v1/friendships/{id}/{friendId}
func (s *Server) handleDeleteFriendship(w http.ResponseWriter, r *http.Request) {
	if s.deps.DisconnectUsersHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Disconnect handler not configured")
		return
	}

	result, err := s.deps.DisconnectUsersHandler.Handle(r.Context(), command.DisconnectUsersCommand{
		UserID:   r.PathValue("id"),
		FriendID: r.PathValue("friendId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to remove friendship")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed_at":          result.RemovedAt,
		"invalidated_entries": result.InvalidatedEntries,
	})
}

type interactionRequest struct {
	UserID      string `json:"user_id"`
	OtherUserID string `json:"other_user_id"`
	Kind        string `json:"kind"`
}

// handleRecordInteraction handles POST /api/v1/interactions
func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordInteractionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Interaction handler not configured")
		return
	}

	var req interactionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordInteractionHandler.Handle(r.Context(), command.RecordInteractionCommand{
		UserID:      req.UserID,
		OtherUserID: req.OtherUserID,
		Kind:        req.Kind,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record interaction")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event_id":    result.EventID,
		"recorded_at": result.RecordedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type invalidateRequest struct {
	UserIDs []string `json:"user_ids"`
	Reason  string   `json:"reason"`
}

// handleInvalidateCache handles POST /api/v1/admin/cache/invalidate
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.InvalidateCacheHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Invalidate handler not configured")
		return
	}

	var req invalidateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.InvalidateCacheHandler.Handle(r.Context(), command.InvalidateCacheCommand{
		UserIDs: req.UserIDs,
		Reason:  req.Reason,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to invalidate cache")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated_entries": result.InvalidatedEntries,
		"invalidated_at":      result.InvalidatedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return false
	}
	return true
}

// writeDomainError maps a domain error to an HTTP status and writes it.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case shared.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, shared.ErrAlreadyExists):
		status = http.StatusConflict
		code = "already_exists"
	case shared.IsValidation(err):
		status = http.StatusBadRequest
		code = "validation_failed"
	case errors.Is(err, shared.ErrRateLimited):
		status = http.StatusTooManyRequests
		code = "rate_limited"
	case errors.Is(err, shared.ErrTimeout):
		status = http.StatusGatewayTimeout
		code = "upstream_timeout"
	case shared.IsExternalService(err) || errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrCacheUnavailable):
		status = http.StatusServiceUnavailable
		code = "upstream_unavailable"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(message,
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
	} else {
		s.logger.Debug(message,
			logger.Err(err),
			logger.String("path", r.URL.Path),
		)
	}

	writeJSONError(w, status, code, err.Error())
}
