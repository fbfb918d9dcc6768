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

	"github.com/eduforge/progression-hub/internal/interface/http/handlers"
)

func testServer(t *testing.T, mutate func(*Config, *Dependencies)) *Server {
	t.Helper()

	config := DefaultConfig()
	config.RateLimitPerMinute = 0

	deps := Dependencies{}
	if mutate != nil {
		mutate(&config, &deps)
	}

	return NewServer(config, deps)
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.buildMiddlewareChain(s.router).ServeHTTP(rec, req)
	return rec
}

func TestServer_Root(t *testing.T) {
	s := testServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := testServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	})

	for _, path := range []string{"/health", "/healthz", "/ready", "/live"} {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_UnhealthyCheckReturns503(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})

	s := testServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthChecker = checker
	})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_UnconfiguredHandlersReturn501(t *testing.T) {
	s := testServer(t, nil)

	paths := []string{
		"/api/v1/leaderboard",
		"/api/v1/learners/l-1/progress",
		"/api/v1/learners/l-1/history",
		"/api/v1/learners/l-1/challenges",
	}
	for _, path := range paths {
		rec := doRequest(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, path)
	}
}

func TestServer_AdminEndpointsRequireAPIKey(t *testing.T) {
	hash, err := handlers.HashKey("admin-key")
	require.NoError(t, err)

	s := testServer(t, func(config *Config, _ *Dependencies) {
		config.AdminKeyHashes = []string{hash}
	})

	body := strings.NewReader(`{"learner_id":"l-1","amount":50,"source":"module_complete"}`)

	// No key
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/api/v1/events", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid key but no handler configured
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{}`))
	req.Header.Set("X-API-Key", "admin-key")
	rec = doRequest(s, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_WebhookValidatesToken(t *testing.T) {
	s := testServer(t, func(config *Config, deps *Dependencies) {
		config.WebhookSecret = "hook-secret"
		deps.IngestHandler = handlers.NewNoopIngestHandler()
	})

	// Wrong token
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/webhook/platform/wrong", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token always acknowledges
	rec = doRequest(s, httptest.NewRequest(http.MethodPost, "/webhook/platform/hook-secret", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WebhookDeliversPayloadToIngest(t *testing.T) {
	ingest := handlers.NewPlatformIngestHandler()
	var gotType string
	ingest.Register("module.completed", func(ctx context.Context, event *handlers.PlatformEvent) error {
		gotType = event.Type
		return nil
	})

	s := testServer(t, func(_ *Config, deps *Dependencies) {
		deps.IngestHandler = ingest
	})

	payload := `{"event_id":"evt-1","type":"module.completed","learner_id":"platform-42"}`
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/webhook/platform", strings.NewReader(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "module.completed", gotType)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	s := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := doRequest(s, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_SecurityHeadersApplied(t *testing.T) {
	s := testServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_RateLimitKicksIn(t *testing.T) {
	s := testServer(t, func(config *Config, _ *Dependencies) {
		config.RateLimitPerMinute = 2
	})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := doRequest(s, req)
		last = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiter_PerKeyWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Other keys are unaffected
	assert.True(t, rl.Allow("b"))
}
