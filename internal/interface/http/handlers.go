// Package http implements the REST API for the EduForge progression hub.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/application/query"
	"github.com/eduforge/progression-hub/internal/domain/shared"
	"github.com/eduforge/progression-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "EduForge Progression Hub API",
		"version":     "v1",
		"description": "XP ledger, levels, streaks, achievements and challenges for EduForge learners",
		"endpoints": map[string]string{
			"health":      "/health",
			"leaderboard": "/api/v1/leaderboard",
			"progress":    "/api/v1/learners/{id}/progress",
			"history":     "/api/v1/learners/{id}/history",
			"challenges":  "/api/v1/learners/{id}/challenges",
			"stats":       "/api/v1/stats",
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

	// Default health response
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

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	// Parse query parameters
	q := query.GetLeaderboardQuery{
		Limit:           getQueryParamInt(r, "limit", 20),
		Offset:          getQueryParamInt(r, "offset", 0),
		AroundLearnerID: getQueryParam(r, "around", ""),
		Radius:          getQueryParamInt(r, "radius", 2),
	}

	// Execute query
	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, err, "Failed to get leaderboard")
		return
	}

	// Build response with pagination metadata
	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		PageSize:   q.Limit,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/learners/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetProgressQuery{
		LearnerID:           learnerID,
		IncludeAchievements: getQueryParamBool(r, "include_achievements"),
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get progress", logger.Err(err), logger.String("learner_id", learnerID))
		s.writeQueryError(w, err, "Failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetXPHistory handles GET /api/v1/learners/{id}/history
func (s *Server) handleGetXPHistory(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetXPHistoryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "History handler not configured")
		return
	}

	q := query.GetXPHistoryQuery{
		LearnerID:      learnerID,
		Source:         getQueryParam(r, "source", ""),
		Since:          getQueryParamTime(r, "since"),
		Limit:          getQueryParamInt(r, "limit", 20),
		Offset:         getQueryParamInt(r, "offset", 0),
		IncludeSummary: getQueryParamBool(r, "include_summary"),
	}

	result, err := s.deps.GetXPHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get xp history", logger.Err(err), logger.String("learner_id", learnerID))
		s.writeQueryError(w, err, "Failed to get XP history")
		return
	}

	meta := &ResponseMeta{
		PageSize: q.Limit,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetActiveChallenges handles GET /api/v1/learners/{id}/challenges
func (s *Server) handleGetActiveChallenges(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.GetActiveChallengesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Challenges handler not configured")
		return
	}

	q := query.GetActiveChallengesQuery{
		LearnerID: learnerID,
		Type:      getQueryParam(r, "type", ""),
	}

	result, err := s.deps.GetActiveChallengesHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get challenges", logger.Err(err), logger.String("learner_id", learnerID))
		s.writeQueryError(w, err, "Failed to get challenges")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":  s.Uptime().String(),
			"running": s.IsRunning(),
		},
	}

	// Add leaderboard stats if handler is available
	if s.deps.GetLeaderboardHandler != nil {
		q := query.GetLeaderboardQuery{
			Limit: 1,
		}
		result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
		if err == nil {
			stats["leaderboard"] = map[string]interface{}{
				"total_learners": result.TotalCount,
			}
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleClaimChallenge handles POST /api/v1/learners/{id}/challenges/{challengeID}/claim
func (s *Server) handleClaimChallenge(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	challengeID := r.PathValue("challengeID")
	if learnerID == "" || challengeID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID and challenge ID are required")
		return
	}

	if s.deps.ClaimChallengeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Claim handler not configured")
		return
	}

	cmd := command.ClaimChallengeCommand{
		ChallengeID:   challengeID,
		LearnerID:     learnerID,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.ClaimChallengeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Warn("claim rejected",
			logger.Err(err),
			logger.String("learner_id", learnerID),
			logger.String("challenge_id", challengeID),
		)
		switch {
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", "Challenge not found")
		case shared.IsNotClaimable(err):
			writeJSONErrorWithDetails(w, http.StatusConflict, "not_claimable", "Challenge reward cannot be claimed", err.Error())
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to claim challenge")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RecordXPRequest is the body of POST /api/v1/events.
type RecordXPRequest struct {
	// EventID is the producer's idempotency key. Replays with the same
	// ID succeed without a second credit.
	EventID string `json:"event_id"`

	// LearnerID is the learner receiving the XP.
	LearnerID string `json:"learner_id"`

	// Amount is the XP awarded. Must be positive.
	Amount int `json:"amount"`

	// Source identifies what earned the XP.
	Source string `json:"source"`

	// Reference points at the originating entity. Optional.
	Reference string `json:"reference,omitempty"`

	// OccurredAt is when the underlying action happened. Defaults to now.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// handleRecordXP handles POST /api/v1/events
func (s *Server) handleRecordXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordXPHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Record XP handler not configured")
		return
	}

	var req RecordXPRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.RecordXPCommand{
		EventID:       req.EventID,
		LearnerID:     req.LearnerID,
		Amount:        req.Amount,
		Source:        req.Source,
		Reference:     req.Reference,
		OccurredAt:    req.OccurredAt,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.RecordXPHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to record xp", logger.Err(err), logger.String("learner_id", req.LearnerID))
		switch {
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", "Learner not found")
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to record XP event")
		}
		return
	}

	// Replays return the original outcome with 200, first writes get 201.
	status := http.StatusCreated
	if result.WasDuplicate {
		status = http.StatusOK
	}

	writeJSON(w, status, result)
}

// RegisterLearnerRequest is the body of POST /api/v1/learners.
type RegisterLearnerRequest struct {
	// PlatformID is the learner's ID on the EduForge platform.
	PlatformID string `json:"platform_id"`

	// DisplayName is shown on leaderboards.
	DisplayName string `json:"display_name"`

	// JoinedAt is when the learner joined the platform. Defaults to now.
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

// handleRegisterLearner handles POST /api/v1/learners
func (s *Server) handleRegisterLearner(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterLearnerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Register handler not configured")
		return
	}

	var req RegisterLearnerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.RegisterLearnerCommand{
		PlatformID:  req.PlatformID,
		DisplayName: req.DisplayName,
		JoinedAt:    req.JoinedAt,
	}

	result, err := s.deps.RegisterLearnerHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to register learner", logger.Err(err), logger.String("platform_id", req.PlatformID))
		if shared.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to register learner")
		return
	}

	status := http.StatusCreated
	if result.AlreadyRegistered {
		status = http.StatusOK
	}

	writeJSON(w, status, result)
}

// handleSyncCounters handles POST /api/v1/learners/{id}/sync
func (s *Server) handleSyncCounters(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("id")
	if learnerID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is required")
		return
	}

	if s.deps.SyncCountersHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Sync handler not configured")
		return
	}

	cmd := command.SyncCountersCommand{
		LearnerID:     learnerID,
		ForceSync:     getQueryParamBool(r, "force"),
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SyncCountersHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.logger.Error("failed to sync counters", logger.Err(err), logger.String("learner_id", learnerID))
		switch {
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", "Learner not found")
		case shared.IsFetchFailure(err):
			writeJSONError(w, http.StatusBadGateway, "platform_unavailable", "Platform API is unavailable")
		default:
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to sync counters")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handlePlatformWebhook handles POST /webhook/platform
func (s *Server) handlePlatformWebhook(w http.ResponseWriter, r *http.Request) {
	s.processPlatformWebhook(w, r, "")
}

// handlePlatformWebhookWithToken handles POST /webhook/platform/{token}
func (s *Server) handlePlatformWebhookWithToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	s.processPlatformWebhook(w, r, token)
}

// processPlatformWebhook is the internal implementation for webhook processing.
func (s *Server) processPlatformWebhook(w http.ResponseWriter, r *http.Request, token string) {
	// Validate token if configured
	if s.config.WebhookSecret != "" && token != s.config.WebhookSecret {
		s.logger.Warn("invalid webhook token", logger.String("ip", getClientIP(r)))
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid webhook token")
		return
	}

	// Read body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		s.logger.Error("failed to read webhook body", logger.Err(err))
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	// Delegate to ingest handler if configured
	if s.deps.IngestHandler != nil {
		if err := s.deps.IngestHandler.HandlePlatformEvent(r.Context(), body); err != nil {
			s.logger.Error("failed to handle platform event", logger.Err(err))
			// Still return 200 so the platform does not retry a
			// payload that will never parse.
		}
	}

	// Always return 200 to acknowledge receipt
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// writeQueryError maps a read-side error to an HTTP response.
func (s *Server) writeQueryError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Learner not found")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("query failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// decodeJSONBody reads and parses a JSON request body.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return err
	}

	return json.Unmarshal(body, dst)
}
