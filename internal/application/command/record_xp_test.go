package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

// pinnedClock returns a handler config whose clock is frozen at testNow,
// so timestamp validation does not depend on when the tests run.
func pinnedClock() RecordXPHandlerConfig {
	return RecordXPHandlerConfig{
		FutureTolerance: time.Minute,
		Now:             func() time.Time { return testNow },
	}
}

func newTestLearner(t *testing.T, learners *memLearners) *learner.Learner {
	t.Helper()
	lrn, err := learner.NewLearner(learner.NewLearnerParams{
		PlatformID:  "platform-" + string(shared.GenerateLearnerID()),
		DisplayName: "Test Learner",
	})
	require.NoError(t, err)
	require.NoError(t, learners.Create(context.Background(), lrn))
	return lrn
}

func TestRecordXPHandler_Handle(t *testing.T) {
	t.Run("records event and updates learner", func(t *testing.T) {
		ledgerRepo := newMemLedger()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)

		h := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())

		result, err := h.Handle(context.Background(), RecordXPCommand{
			LearnerID:  string(lrn.ID),
			Amount:     40,
			Source:     "module_complete",
			Reference:  "module-go-101",
			OccurredAt: testNow,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, result.EventID)
		assert.False(t, result.WasDuplicate)
		assert.Equal(t, int64(40), result.NewTotalXP)
		assert.Equal(t, 1, result.NewLevel)
		assert.False(t, result.LeveledUp)
		assert.Equal(t, 1, result.StreakDays)
		assert.True(t, result.StreakGrew)

		stored, err := learners.GetByID(context.Background(), lrn.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.XP(40), stored.TotalXP)

		recorded := bus.published(shared.EventXPRecorded)
		require.Len(t, recorded, 1)
	})

	t.Run("crossing a threshold emits level up", func(t *testing.T) {
		ledgerRepo := newMemLedger()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)

		h := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())

		for i := 0; i < 2; i++ {
			_, err := h.Handle(context.Background(), RecordXPCommand{
				LearnerID:  string(lrn.ID),
				Amount:     60,
				Source:     "quiz_pass",
				OccurredAt: testNow.Add(time.Duration(i) * time.Hour),
			})
			require.NoError(t, err)
		}

		stored, err := learners.GetByID(context.Background(), lrn.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Level)

		levelUps := bus.published(shared.EventLevelUp)
		require.Len(t, levelUps, 1)
	})

	t.Run("duplicate event id is an idempotent success", func(t *testing.T) {
		ledgerRepo := newMemLedger()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)

		h := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())

		eventID := string(shared.GenerateEventID())
		cmd := RecordXPCommand{
			EventID:    eventID,
			LearnerID:  string(lrn.ID),
			Amount:     25,
			Source:     "module_complete",
			OccurredAt: testNow,
		}

		first, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.False(t, first.WasDuplicate)

		second, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)
		assert.True(t, second.WasDuplicate)
		assert.Equal(t, eventID, second.EventID)

		// The replay must not double-count.
		total, err := ledgerRepo.TotalXP(context.Background(), lrn.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.XP(25), total)

		stored, err := learners.GetByID(context.Background(), lrn.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.XP(25), stored.TotalXP)
	})

	t.Run("reward sources do not extend the streak", func(t *testing.T) {
		ledgerRepo := newMemLedger()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)

		h := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())

		result, err := h.Handle(context.Background(), RecordXPCommand{
			LearnerID:  string(lrn.ID),
			Amount:     50,
			Source:     string(ledger.SourceStreakBonus),
			Reference:  "streak:7:2026-08-21",
			OccurredAt: testNow,
		})
		require.NoError(t, err)
		assert.False(t, result.StreakGrew)
		assert.Equal(t, 0, result.StreakDays)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		h := NewRecordXPHandler(newMemLedger(), newMemLearners(), &memBus{}, pinnedClock())

		_, err := h.Handle(context.Background(), RecordXPCommand{
			LearnerID: string(shared.GenerateLearnerID()),
			Amount:    -5,
			Source:    "module_complete",
		})
		require.Error(t, err)

		_, err = h.Handle(context.Background(), RecordXPCommand{
			LearnerID: string(shared.GenerateLearnerID()),
			Amount:    10,
			Source:    "unknown_source",
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("occurred_at is validated against the handler clock", func(t *testing.T) {
		ledgerRepo := newMemLedger()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)

		h := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())

		// Slightly ahead of the pinned clock, within tolerance.
		_, err := h.Handle(context.Background(), RecordXPCommand{
			LearnerID:  string(lrn.ID),
			Amount:     10,
			Source:     "quiz_pass",
			OccurredAt: testNow.Add(30 * time.Second),
		})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), RecordXPCommand{
			LearnerID:  string(lrn.ID),
			Amount:     10,
			Source:     "quiz_pass",
			OccurredAt: testNow.Add(2 * time.Minute),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrFutureTimestamp)
	})
}
