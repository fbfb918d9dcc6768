package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformIngestHandler_RoutesByType(t *testing.T) {
	ingest := NewPlatformIngestHandler()

	var got *PlatformEvent
	ingest.Register("module.completed", func(ctx context.Context, event *PlatformEvent) error {
		got = event
		return nil
	})

	payload := []byte(`{
		"event_id": "evt-1",
		"type": "module.completed",
		"learner_id": "platform-42",
		"occurred_at": "2026-03-01T10:00:00Z",
		"data": {"xp": 50, "module_id": "go-basics"}
	}`)

	err := ingest.HandlePlatformEvent(context.Background(), payload)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "platform-42", got.LearnerID)
	assert.Equal(t, 50, got.GetInt("xp"))
	assert.Equal(t, "go-basics", got.GetString("module_id"))
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got.OccurredAt)
}

func TestPlatformIngestHandler_UnknownTypeFallsBackToDefault(t *testing.T) {
	ingest := NewPlatformIngestHandler()

	var defaultCalled bool
	ingest.RegisterDefault(func(ctx context.Context, event *PlatformEvent) error {
		defaultCalled = true
		return nil
	})

	err := ingest.HandlePlatformEvent(context.Background(),
		[]byte(`{"event_id":"evt-2","type":"course.archived","learner_id":"platform-42"}`))
	require.NoError(t, err)
	assert.True(t, defaultCalled)
}

func TestPlatformIngestHandler_UnknownTypeWithoutDefaultIsDropped(t *testing.T) {
	ingest := NewPlatformIngestHandler()

	err := ingest.HandlePlatformEvent(context.Background(),
		[]byte(`{"event_id":"evt-3","type":"course.archived","learner_id":"platform-42"}`))
	assert.NoError(t, err)
}

func TestPlatformIngestHandler_InvalidPayload(t *testing.T) {
	ingest := NewPlatformIngestHandler()

	err := ingest.HandlePlatformEvent(context.Background(), []byte(`not json`))
	assert.Error(t, err)

	err = ingest.HandlePlatformEvent(context.Background(), []byte(`{"event_id":"evt-4"}`))
	assert.Error(t, err, "event without a type must be rejected")
}

func TestPlatformIngestHandler_ErrorHandlerObservesFailure(t *testing.T) {
	ingest := NewPlatformIngestHandler()

	handlerErr := errors.New("ledger unavailable")
	ingest.Register("quiz.passed", func(ctx context.Context, event *PlatformEvent) error {
		return handlerErr
	})

	var observed error
	ingest.SetErrorHandler(func(err error) { observed = err })

	err := ingest.HandlePlatformEvent(context.Background(),
		[]byte(`{"event_id":"evt-5","type":"quiz.passed","learner_id":"platform-42"}`))
	assert.ErrorIs(t, err, handlerErr)
	assert.ErrorIs(t, observed, handlerErr)
}
