package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func newTestLearner(t *testing.T, initialXP int64) *Learner {
	t.Helper()

	l, err := NewLearner(NewLearnerParams{
		PlatformID:  "pf-1001",
		DisplayName: "Aruzhan",
		InitialXP:   initialXP,
	})
	require.NoError(t, err)
	return l
}

func TestNewLearner(t *testing.T) {
	t.Run("valid learner", func(t *testing.T) {
		l := newTestLearner(t, 250)

		assert.True(t, l.ID.IsValid())
		assert.Equal(t, int64(250), l.TotalXP.Int64())
		assert.Equal(t, 3, l.Level)
		assert.Equal(t, StatusActive, l.Status)
	})

	t.Run("rejects empty display name", func(t *testing.T) {
		_, err := NewLearner(NewLearnerParams{DisplayName: "  "})
		assert.ErrorIs(t, err, ErrInvalidDisplayName)
	})

	t.Run("rejects negative initial xp", func(t *testing.T) {
		_, err := NewLearner(NewLearnerParams{DisplayName: "x", InitialXP: -1})
		assert.ErrorIs(t, err, shared.ErrNegativeValue)
	})
}

func TestLearnerApplyXP(t *testing.T) {
	l := newTestLearner(t, 250)

	leveledUp := l.ApplyXP(shared.XPAmount(30))
	assert.False(t, leveledUp)
	assert.Equal(t, int64(280), l.TotalXP.Int64())
	assert.Equal(t, 3, l.Level)

	leveledUp = l.ApplyXP(shared.XPAmount(30))
	assert.True(t, leveledUp)
	assert.Equal(t, 4, l.Level)
}

func TestLearnerSetTotalXP(t *testing.T) {
	l := newTestLearner(t, 40)

	l.SetTotalXP(shared.XP(520))

	assert.Equal(t, int64(520), l.TotalXP.Int64())
	assert.Equal(t, 6, l.Level)
}

func TestLearnerRecordActivity(t *testing.T) {
	l := newTestLearner(t, 0)
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	assert.True(t, l.RecordActivity(base))
	assert.Equal(t, 1, l.CurrentStreak)

	// Повтор в тот же день не растит серию
	assert.False(t, l.RecordActivity(base.Add(6*time.Hour)))
	assert.Equal(t, 1, l.CurrentStreak)

	assert.True(t, l.RecordActivity(base.AddDate(0, 0, 1)))
	assert.True(t, l.RecordActivity(base.AddDate(0, 0, 2)))
	assert.Equal(t, 3, l.CurrentStreak)
	assert.Equal(t, 3, l.LongestStreak)

	// Пропуск дня сбрасывает текущую серию
	assert.True(t, l.RecordActivity(base.AddDate(0, 0, 4)))
	assert.Equal(t, 1, l.CurrentStreak)
	assert.Equal(t, 3, l.LongestStreak)
}

func TestLearnerActivityReactivates(t *testing.T) {
	l := newTestLearner(t, 0)

	require.NoError(t, l.MarkInactive())
	assert.Equal(t, StatusInactive, l.Status)

	l.RecordActivity(time.Now().UTC())
	assert.Equal(t, StatusActive, l.Status)
}

func TestLearnerStatusTransitions(t *testing.T) {
	l := newTestLearner(t, 0)

	l.Suspend()
	assert.Equal(t, StatusSuspended, l.Status)
	assert.False(t, l.Status.CanEarnXP())
	assert.ErrorIs(t, l.MarkInactive(), ErrLearnerSuspended)

	require.NoError(t, l.Reinstate())
	assert.Equal(t, StatusActive, l.Status)

	assert.Error(t, l.Reinstate(), "reinstate requires suspended status")
}
