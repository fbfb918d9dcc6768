package messaging

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func quietBusConfig(async bool) InMemoryEventBusConfig {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = async
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func TestInMemoryEventBus_DeliversToTypedAndGlobalHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()

	var typed, global int
	require.NoError(t, bus.Subscribe(shared.EventXPRecorded, func(event shared.Event) error {
		typed++
		assert.Equal(t, shared.EventXPRecorded, event.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		global++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewXPRecordedEvent("learner-1", "evt-1", 50, 150, "quiz_pass")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("learner-1", 2, 3, 950)))

	assert.Equal(t, 1, typed, "typed handler sees only its event type")
	assert.Equal(t, 2, global, "global handler sees every event")
}

func TestInMemoryEventBus_CloseWaitsForAsyncHandlers(t *testing.T) {
	// Far more events than worker slots, so most handlers are still
	// queued for a slot when Close arrives.
	cfg := quietBusConfig(true)
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var handled atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventXPRecorded, func(event shared.Event) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	}))

	const published = 20
	for i := 0; i < published; i++ {
		require.NoError(t, bus.Publish(shared.NewXPRecordedEvent("learner-1", "evt-1", 50, 150, "quiz_pass")))
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, int64(published), handled.Load(), "every accepted event is delivered before Close returns")
}

func TestInMemoryEventBus_RejectsAfterClose(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewXPRecordedEvent("learner-1", "evt-1", 50, 150, "quiz_pass"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventXPRecorded, func(event shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNilHandler(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventXPRecorded, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_PublishWithoutHandlersIsNoop(t *testing.T) {
	bus := NewInMemoryEventBus(quietBusConfig(false))
	defer bus.Close()

	assert.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("learner-1", 4, 9)))
}
