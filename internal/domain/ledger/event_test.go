package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func TestNewXpEvent(t *testing.T) {
	learnerID := shared.GenerateLearnerID()

	t.Run("valid event", func(t *testing.T) {
		event, err := NewXpEvent(NewXpEventParams{
			LearnerID: learnerID,
			Amount:    50,
			Source:    SourceModuleComplete,
			Reference: "module-101",
		})

		require.NoError(t, err)
		assert.True(t, event.ID.IsValid())
		assert.Equal(t, learnerID, event.LearnerID)
		assert.Equal(t, 50, event.Amount.Int())
		assert.Equal(t, SourceModuleComplete, event.Source)
		assert.Equal(t, "module-101", event.Reference)
		assert.False(t, event.OccurredAt.IsZero())
		assert.False(t, event.RecordedAt.IsZero())
	})

	t.Run("preserves producer-assigned id", func(t *testing.T) {
		id := shared.GenerateEventID()

		event, err := NewXpEvent(NewXpEventParams{
			ID:        id,
			LearnerID: learnerID,
			Amount:    25,
			Source:    SourceQuizPass,
		})

		require.NoError(t, err)
		assert.Equal(t, id, event.ID)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewXpEvent(NewXpEventParams{
			LearnerID: learnerID,
			Amount:    0,
			Source:    SourceQuizPass,
		})

		assert.ErrorIs(t, err, shared.ErrInvalidXpAmount)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := NewXpEvent(NewXpEventParams{
			LearnerID: learnerID,
			Amount:    -10,
			Source:    SourceQuizPass,
		})

		assert.ErrorIs(t, err, shared.ErrInvalidXpAmount)
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		_, err := NewXpEvent(NewXpEventParams{
			LearnerID: learnerID,
			Amount:    10,
			Source:    Source("login_bonus"),
		})

		assert.ErrorIs(t, err, shared.ErrInvalidXpSource)
	})

	t.Run("rejects invalid learner id", func(t *testing.T) {
		_, err := NewXpEvent(NewXpEventParams{
			LearnerID: shared.LearnerID("not-a-uuid"),
			Amount:    10,
			Source:    SourceQuizPass,
		})

		assert.ErrorIs(t, err, shared.ErrInvalidLearnerID)
	})

	t.Run("rejects future timestamp", func(t *testing.T) {
		_, err := NewXpEvent(NewXpEventParams{
			LearnerID:  learnerID,
			Amount:     10,
			Source:     SourceQuizPass,
			OccurredAt: time.Now().UTC().Add(2 * time.Hour),
		})

		assert.ErrorIs(t, err, shared.ErrFutureTimestamp)
	})

	t.Run("future check uses the supplied reference clock", func(t *testing.T) {
		ref := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

		event, err := NewXpEvent(NewXpEventParams{
			LearnerID:  learnerID,
			Amount:     10,
			Source:     SourceQuizPass,
			OccurredAt: ref.Add(30 * time.Second),
			Now:        ref,
		})
		require.NoError(t, err)
		assert.Equal(t, ref, event.RecordedAt)

		_, err = NewXpEvent(NewXpEventParams{
			LearnerID:  learnerID,
			Amount:     10,
			Source:     SourceQuizPass,
			OccurredAt: ref.Add(2 * time.Minute),
			Now:        ref,
		})
		assert.ErrorIs(t, err, shared.ErrFutureTimestamp)

		_, err = NewXpEvent(NewXpEventParams{
			LearnerID:       learnerID,
			Amount:          10,
			Source:          SourceQuizPass,
			OccurredAt:      ref.Add(2 * time.Minute),
			Now:             ref,
			FutureTolerance: 5 * time.Minute,
		})
		require.NoError(t, err)
	})
}

func TestSourceClassification(t *testing.T) {
	learnerID := shared.GenerateLearnerID()

	rewards := []Source{SourceChallengeClaim, SourceAchievementUnlock, SourceStreakBonus}
	for _, src := range rewards {
		assert.True(t, src.IsReward(), "source %s must be a reward", src)

		event, err := NewXpEvent(NewXpEventParams{LearnerID: learnerID, Amount: 10, Source: src})
		require.NoError(t, err)
		assert.True(t, event.IsReward())
		assert.False(t, event.IsLearningActivity())
	}

	activities := []Source{SourceModuleComplete, SourceQuizPass, SourcePracticalApproved}
	for _, src := range activities {
		assert.False(t, src.IsReward(), "source %s must not be a reward", src)

		event, err := NewXpEvent(NewXpEventParams{LearnerID: learnerID, Amount: 10, Source: src})
		require.NoError(t, err)
		assert.False(t, event.IsReward())
		assert.True(t, event.IsLearningActivity())
	}
}

func TestSourceIsValid(t *testing.T) {
	for _, src := range AllSources() {
		assert.True(t, src.IsValid(), "source %s", src)
	}

	assert.False(t, Source("").IsValid())
	assert.False(t, Source("unknown").IsValid())
}

func TestSummarize(t *testing.T) {
	learnerID := shared.GenerateLearnerID()
	otherID := shared.GenerateLearnerID()

	mk := func(lid shared.LearnerID, amount int, src Source, at time.Time) *XpEvent {
		event, err := NewXpEvent(NewXpEventParams{
			LearnerID:  lid,
			Amount:     amount,
			Source:     src,
			OccurredAt: at,
		})
		require.NoError(t, err)
		return event
	}

	now := time.Now().UTC()
	events := []*XpEvent{
		mk(learnerID, 100, SourceModuleComplete, now.Add(-2*time.Hour)),
		mk(learnerID, 50, SourceQuizPass, now.Add(-time.Hour)),
		mk(learnerID, 30, SourceChallengeClaim, now.Add(-30*time.Minute)),
		mk(otherID, 500, SourceModuleComplete, now), // чужое событие не учитывается
	}

	summary := Summarize(learnerID, events)

	assert.Equal(t, learnerID, summary.LearnerID)
	assert.Equal(t, int64(180), summary.TotalXP.Int64())
	assert.Equal(t, 3, summary.EventCount)
	assert.Equal(t, int64(100), summary.BySource[SourceModuleComplete])
	assert.Equal(t, int64(50), summary.BySource[SourceQuizPass])
	assert.Equal(t, int64(30), summary.BySource[SourceChallengeClaim])
	assert.Equal(t, events[2].OccurredAt, summary.LastEventAt)
}

func TestSummarizeEmpty(t *testing.T) {
	learnerID := shared.GenerateLearnerID()

	summary := Summarize(learnerID, nil)

	assert.Equal(t, int64(0), summary.TotalXP.Int64())
	assert.Equal(t, 0, summary.EventCount)
	assert.True(t, summary.LastEventAt.IsZero())
}
