package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.APIKey = "test-key"
	// Keep retries out of unit tests
	cfg.RetryConfig.MaxRetries = 0
	cfg.RateLimiterConfig.MinInterval = 0

	return NewClient(cfg)
}

func TestClient_FetchLearnerCounters(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/learners/plt-42/counters", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(APIResponse[LearnerCountersDTO]{
			Success: true,
			Data: LearnerCountersDTO{
				LearnerID:         "11111111-1111-1111-1111-111111111111",
				CoursesCompleted:  3,
				ModulesCompleted:  27,
				StreakDays:        9,
				StudyGroupsJoined: 2,
				TotalXP:           4250,
				Level:             8,
				UpdatedAt:         time.Now().UTC(),
			},
		})
	})

	counters, err := client.FetchLearnerCounters(context.Background(), "plt-42")
	require.NoError(t, err)

	assert.Equal(t, shared.LearnerID("11111111-1111-1111-1111-111111111111"), counters.LearnerID)
	assert.Equal(t, 3, counters.CoursesCompleted)
	assert.Equal(t, 27, counters.ModulesCompleted)
	assert.Equal(t, 9, counters.StreakDays)
	assert.Equal(t, shared.XP(4250), counters.TotalXP)
	assert.False(t, counters.FetchedAt.IsZero())
}

func TestClient_FetchLearnerCounters_APIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIErrorDTO{
			Code:    "NOT_FOUND",
			Message: "learner not found",
		})
	})

	_, err := client.FetchLearnerCounters(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "learner not found")
}

func TestClient_FetchLearnerCounters_RateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchLearnerCounters(context.Background(), "plt-42")
	require.Error(t, err)

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 30*time.Second, rlErr.RetryAfter)
}

func TestClient_GetAllLearners_Paginates(t *testing.T) {
	pages := map[string][]LearnerProfileDTO{
		"1": make([]LearnerProfileDTO, 100),
		"2": {{ID: "last", DisplayName: "Last One"}},
	}

	var requested []string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		json.NewEncoder(w).Encode(APIResponse[[]LearnerProfileDTO]{
			Success: true,
			Data:    pages[page],
			Meta:    &Meta{TotalPages: 2},
		})
	})

	all, err := client.GetAllLearners(context.Background())
	require.NoError(t, err)

	assert.Len(t, all, 101)
	assert.Equal(t, []string{"1", "2"}, requested)
}

func TestMapper_CountersFromDTO_ClampsNegatives(t *testing.T) {
	mapper := NewMapper()

	counters := mapper.CountersFromDTO(&LearnerCountersDTO{
		LearnerID:        "l1",
		CoursesCompleted: -2,
		ModulesCompleted: 5,
		StreakDays:       -1,
		TotalXP:          -100,
		Level:            0,
	}, shared.LearnerID("l1"))

	assert.Equal(t, 0, counters.CoursesCompleted)
	assert.Equal(t, 5, counters.ModulesCompleted)
	assert.Equal(t, 0, counters.StreakDays)
	assert.Equal(t, shared.XP(0), counters.TotalXP)
	assert.Equal(t, 1, counters.Level)
	assert.True(t, counters.IsValid())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:   3,
		SuccessThreshold:   1,
		Timeout:            time.Minute,
		HalfOpenMaxRetries: 1,
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, cb.Allow())
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestRateLimiter_EnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       time.Millisecond,
	})

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())
}
