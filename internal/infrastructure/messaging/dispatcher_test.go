package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func quietDispatcher(t *testing.T, bus shared.EventBus) *Dispatcher {
	t.Helper()

	cfg := DefaultDispatcherConfig(bus)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.RetryConfig = RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	d := NewDispatcher(cfg)
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()
	d := quietDispatcher(t, bus)

	var attempts atomic.Int64
	require.NoError(t, d.RegisterSync(shared.EventXPRecorded, "flaky", func(event shared.Event) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient failure")
		}
		return nil
	}))

	err := d.Dispatch(shared.NewXPRecordedEvent("learner-1", "evt-1", 50, 150, "quiz_pass"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), attempts.Load())
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_ParksExhaustedEventsInDeadLetterQueue(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()
	d := quietDispatcher(t, bus)

	var attempts atomic.Int64
	require.NoError(t, d.RegisterSync(shared.EventXPRecorded, "broken", func(event shared.Event) error {
		attempts.Add(1)
		return errors.New("permanent failure")
	}))

	err := d.Dispatch(shared.NewXPRecordedEvent("learner-1", "evt-1", 50, 150, "quiz_pass"))
	require.Error(t, err)
	assert.Equal(t, int64(3), attempts.Load(), "initial attempt plus two retries")

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, shared.EventXPRecorded, entries[0].Event.EventType())
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()
	d := quietDispatcher(t, bus)
	d.Use(RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))

	require.NoError(t, d.RegisterSync(shared.EventLevelUp, "panicky", func(event shared.Event) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		err := d.Dispatch(shared.NewLevelUpEvent("learner-1", 2, 3, 950))
		assert.Error(t, err)
	})
}

func TestDispatcher_StartRoutesBusEventsToHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()
	d := quietDispatcher(t, bus)

	var got atomic.Int64
	require.NoError(t, d.RegisterSync(shared.EventStreakExtended, "counter", func(event shared.Event) error {
		got.Add(1)
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("learner-1", 4, 9)))
	assert.Equal(t, int64(1), got.Load())
}

func TestDispatcher_UnmatchedEventTypeIsIgnored(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()
	d := quietDispatcher(t, bus)

	require.NoError(t, d.RegisterSync(shared.EventLevelUp, "levels-only", func(event shared.Event) error {
		t.Fatal("handler must not run for other event types")
		return nil
	}))

	assert.NoError(t, d.Dispatch(shared.NewXPRecordedEvent("learner-1", "evt-1", 10, 10, "quiz_pass")))
}
