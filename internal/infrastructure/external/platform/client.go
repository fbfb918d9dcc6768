package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the platform API client.
type ClientConfig struct {
	// BaseURL is the platform API base URL
	BaseURL string

	// APIKey authenticates this service against the platform
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior
	RetryConfig RetryConfig

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables debug logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		Timeout:              30 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the EduForge platform API client. It satisfies the
// application layer's PlatformClient port.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	mapper         *Mapper
}

// NewClient creates a new platform API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
		mapper:         NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchLearnerCounters fetches the learner's counter snapshot.
// This is the port the sync command depends on.
func (c *Client) FetchLearnerCounters(ctx context.Context, platformID string) (progression.Counters, error) {
	path := fmt.Sprintf("/api/v1/learners/%s/counters", url.PathEscape(platformID))

	var response APIResponse[LearnerCountersDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return progression.Counters{}, fmt.Errorf("fetch counters for %s: %w", platformID, err)
	}

	if !response.Success {
		return progression.Counters{}, fmt.Errorf("api error: %s", response.Error)
	}

	return c.mapper.CountersFromDTO(&response.Data, shared.LearnerID(response.Data.LearnerID)), nil
}

// GetLearnerProfile fetches a learner account by platform ID.
func (c *Client) GetLearnerProfile(ctx context.Context, platformID string) (*LearnerProfileDTO, error) {
	path := fmt.Sprintf("/api/v1/learners/%s", url.PathEscape(platformID))

	var response APIResponse[LearnerProfileDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("get learner %s: %w", platformID, err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	return &response.Data, nil
}

// ListLearners fetches a page of learner accounts with optional filters.
func (c *Client) ListLearners(ctx context.Context, req LearnersRequestDTO) ([]LearnerProfileDTO, *Meta, error) {
	params := url.Values{}
	if req.IsActive != nil {
		params.Set("is_active", strconv.FormatBool(*req.IsActive))
	}
	if req.ModifiedSince != nil {
		params.Set("modified_since", req.ModifiedSince.Format(time.RFC3339))
	}
	if req.Search != "" {
		params.Set("search", req.Search)
	}
	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(req.PerPage))
	}

	path := "/api/v1/learners"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var response APIResponse[[]LearnerProfileDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, nil, fmt.Errorf("list learners: %w", err)
	}

	if !response.Success {
		return nil, nil, fmt.Errorf("api error: %s", response.Error)
	}

	return response.Data, response.Meta, nil
}

// GetAllLearners fetches all learner accounts, handling pagination.
func (c *Client) GetAllLearners(ctx context.Context) ([]LearnerProfileDTO, error) {
	var all []LearnerProfileDTO
	page := 1
	perPage := 100

	for {
		learners, meta, err := c.ListLearners(ctx, LearnersRequestDTO{
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			return nil, fmt.Errorf("get all learners page %d: %w", page, err)
		}

		all = append(all, learners...)

		if len(learners) < perPage || (meta != nil && page >= meta.TotalPages) {
			break
		}
		page++
	}

	return all, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG AND CHALLENGE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchAchievementCatalog fetches the platform's achievement catalog.
// Entries that fail domain validation are skipped and logged; one broken
// entry must not block the rest of the catalog.
func (c *Client) FetchAchievementCatalog(ctx context.Context) ([]*achievement.Achievement, error) {
	var response APIResponse[[]AchievementDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/achievements", nil, &response); err != nil {
		return nil, fmt.Errorf("fetch achievement catalog: %w", err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	catalog := make([]*achievement.Achievement, 0, len(response.Data))
	for i := range response.Data {
		a, err := c.mapper.AchievementFromDTO(&response.Data[i])
		if err != nil {
			c.logger.Warn("skipping invalid catalog entry",
				"achievement_id", response.Data[i].ID,
				"error", err,
			)
			continue
		}
		catalog = append(catalog, a)
	}

	return catalog, nil
}

// FetchActiveChallenges fetches platform-issued challenges for a learner.
func (c *Client) FetchActiveChallenges(ctx context.Context, platformID string) ([]*challenge.Challenge, error) {
	path := fmt.Sprintf("/api/v1/learners/%s/challenges", url.PathEscape(platformID))

	var response APIResponse[[]ChallengeDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch challenges for %s: %w", platformID, err)
	}

	if !response.Success {
		return nil, fmt.Errorf("api error: %s", response.Error)
	}

	challenges := make([]*challenge.Challenge, 0, len(response.Data))
	for i := range response.Data {
		ch, err := c.mapper.ChallengeFromDTO(&response.Data[i])
		if err != nil {
			c.logger.Warn("skipping invalid platform challenge",
				"challenge_id", response.Data[i].ID,
				"error", err,
			)
			continue
		}
		challenges = append(challenges, ch)
	}

	return challenges, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE-BACK OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// PersistXpEvent pushes a ledger event back to the platform. At-least-once:
// the platform deduplicates by event id, so callers may safely retry.
func (c *Client) PersistXpEvent(ctx context.Context, event *ledger.XpEvent) error {
	dto := c.mapper.XpEventToDTO(event)

	var response APIResponse[struct{}]
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/xp-events", dto, &response); err != nil {
		return fmt.Errorf("persist xp event %s: %w", event.ID, err)
	}

	if !response.Success {
		return fmt.Errorf("api error: %s", response.Error)
	}

	return nil
}

// PersistLevelUpdate reports the hub's recomputed level to the platform.
// Last write wins on the platform side.
func (c *Client) PersistLevelUpdate(ctx context.Context, platformID string, level int, totalXP int64) error {
	path := fmt.Sprintf("/api/v1/learners/%s/level", url.PathEscape(platformID))
	dto := LevelUpdateDTO{
		LearnerID: platformID,
		Level:     level,
		TotalXP:   totalXP,
	}

	var response APIResponse[struct{}]
	if err := c.doRequest(ctx, http.MethodPut, path, dto, &response); err != nil {
		return fmt.Errorf("persist level update for %s: %w", platformID, err)
	}

	if !response.Success {
		return fmt.Errorf("api error: %s", response.Error)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking, and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	// Check circuit breaker
	if err := c.circuitBreaker.Allow(); err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		// Wait for rate limiter
		if err := c.rateLimiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			c.circuitBreaker.RecordSuccess()
			return nil
		}

		lastErr = err

		if !c.isRetryable(err) {
			c.circuitBreaker.RecordFailure()
			return err
		}

		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
		}
	}

	c.circuitBreaker.RecordFailure()
	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryConfig.MaxRetries, lastErr)
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.logger.Debug("platform api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		var apiErr APIErrorDTO
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return &apiErr
		}
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	// Unmarshal response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// isRetryable checks if an error is retryable.
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Rate limit errors are retryable
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	// API errors - check status code
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.Code == "SERVER_ERROR" || apiErr.Code == "TEMPORARILY_UNAVAILABLE"
	}

	// Network errors are generally retryable
	errStr := err.Error()
	for _, sub := range []string{"timeout", "connection refused", "temporary", "reset", "EOF"} {
		if strings.Contains(errStr, sub) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the platform API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]interface{}]
	err := c.doSingleRequest(ctx, http.MethodGet, "/api/v1/health", nil, &response)
	return err == nil && response.Success
}

// ClientStatus contains the current status of the client.
type ClientStatus struct {
	RateLimiter    RateLimiterStatus
	CircuitBreaker CircuitBreakerStatus
	IsHealthy      bool
}

// Status returns the current status of the client.
func (c *Client) Status(ctx context.Context) ClientStatus {
	return ClientStatus{
		RateLimiter:    c.rateLimiter.Status(),
		CircuitBreaker: c.circuitBreaker.Status(),
		IsHealthy:      c.IsHealthy(ctx),
	}
}

// Reset resets the rate limiter and circuit breaker.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.circuitBreaker.Reset()
}
