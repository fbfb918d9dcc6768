package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

var challengeNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newDailyChallenge(t *testing.T, maxProgress int) *Challenge {
	t.Helper()

	c, err := NewChallenge(NewChallengeParams{
		ID:          "ch-1",
		LearnerID:   shared.GenerateLearnerID(),
		Type:        TypeDaily,
		Title:       "Complete 3 modules",
		Difficulty:  DifficultyMedium,
		XPReward:    75,
		MaxProgress: maxProgress,
		IssuedAt:    challengeNow.Add(-12 * time.Hour),
		ExpiresAt:   challengeNow.Add(12 * time.Hour),
	})
	require.NoError(t, err)
	return c
}

func TestNewChallenge(t *testing.T) {
	t.Run("valid challenge starts in progress", func(t *testing.T) {
		c := newDailyChallenge(t, 3)

		assert.Equal(t, 0, c.Progress)
		assert.Equal(t, StatusInProgress, c.StatusAt(challengeNow))
		assert.False(t, c.IsCompleted())
		assert.False(t, c.IsClaimed())
	})

	t.Run("generates an id when none is given", func(t *testing.T) {
		c, err := NewChallenge(NewChallengeParams{
			LearnerID:   shared.GenerateLearnerID(),
			Type:        TypeDaily,
			Title:       "Generated",
			XPReward:    10,
			MaxProgress: 1,
			IssuedAt:    challengeNow,
			ExpiresAt:   challengeNow.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
	})

	t.Run("rejects invalid type", func(t *testing.T) {
		_, err := NewChallenge(NewChallengeParams{
			ID:          "ch-bad",
			LearnerID:   shared.GenerateLearnerID(),
			Type:        Type("monthly"),
			Title:       "x",
			XPReward:    10,
			MaxProgress: 1,
			IssuedAt:    challengeNow,
			ExpiresAt:   challengeNow.Add(time.Hour),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidChallengeType)
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		_, err := NewChallenge(NewChallengeParams{
			ID:          "ch-bad",
			LearnerID:   shared.GenerateLearnerID(),
			Type:        TypeDaily,
			Title:       "x",
			XPReward:    10,
			MaxProgress: 1,
			IssuedAt:    challengeNow,
			ExpiresAt:   challengeNow.Add(-time.Hour),
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestChallengeAdvance(t *testing.T) {
	t.Run("progress clamped to max", func(t *testing.T) {
		c := newDailyChallenge(t, 3)

		assert.True(t, c.Advance(2, challengeNow))
		assert.Equal(t, 2, c.Progress)

		assert.True(t, c.Advance(5, challengeNow))
		assert.Equal(t, 3, c.Progress)
		assert.Equal(t, StatusClaimable, c.StatusAt(challengeNow))

		// Дальше двигаться некуда
		assert.False(t, c.Advance(1, challengeNow))
		assert.Equal(t, 3, c.Progress)
	})

	t.Run("advancing expired challenge is a no-op", func(t *testing.T) {
		c := newDailyChallenge(t, 3)
		afterExpiry := c.ExpiresAt.Add(time.Minute)

		assert.False(t, c.Advance(1, afterExpiry))
		assert.Equal(t, 0, c.Progress)
		assert.Equal(t, StatusExpired, c.StatusAt(afterExpiry))
	})

	t.Run("non-positive increment is a no-op", func(t *testing.T) {
		c := newDailyChallenge(t, 3)

		assert.False(t, c.Advance(0, challengeNow))
		assert.False(t, c.Advance(-2, challengeNow))
		assert.Equal(t, 0, c.Progress)
	})
}

func TestChallengeClaim(t *testing.T) {
	t.Run("claim before completion fails", func(t *testing.T) {
		c := newDailyChallenge(t, 3)
		c.Advance(2, challengeNow)

		err := c.Claim(challengeNow)
		assert.ErrorIs(t, err, shared.ErrChallengeNotClaimable)
		assert.True(t, shared.IsNotClaimable(err))
		assert.False(t, c.IsClaimed())
	})

	t.Run("completed challenge claims once", func(t *testing.T) {
		c := newDailyChallenge(t, 3)
		c.Advance(3, challengeNow)

		require.NoError(t, c.Claim(challengeNow))
		assert.True(t, c.IsClaimed())
		assert.Equal(t, StatusClaimed, c.StatusAt(challengeNow))

		err := c.Claim(challengeNow.Add(time.Minute))
		assert.ErrorIs(t, err, shared.ErrChallengeClaimed)
		assert.True(t, shared.IsNotClaimable(err))
	})

	t.Run("expired challenge is not claimable", func(t *testing.T) {
		c := newDailyChallenge(t, 3)
		c.Advance(3, challengeNow)
		afterExpiry := c.ExpiresAt.Add(time.Minute)

		err := c.Claim(afterExpiry)
		assert.ErrorIs(t, err, shared.ErrChallengeExpired)
		assert.True(t, shared.IsNotClaimable(err))
	})

	t.Run("claimed challenge never expires", func(t *testing.T) {
		c := newDailyChallenge(t, 3)
		c.Advance(3, challengeNow)
		require.NoError(t, c.Claim(challengeNow))

		afterExpiry := c.ExpiresAt.Add(time.Hour)
		assert.Equal(t, StatusClaimed, c.StatusAt(afterExpiry))
		assert.False(t, c.IsExpired(afterExpiry))
	})
}

func TestChallengeStatusTransitions(t *testing.T) {
	c := newDailyChallenge(t, 2)

	assert.Equal(t, StatusInProgress, c.StatusAt(challengeNow))
	assert.True(t, c.StatusAt(challengeNow).IsActive())

	c.Advance(2, challengeNow)
	assert.Equal(t, StatusClaimable, c.StatusAt(challengeNow))
	assert.True(t, c.StatusAt(challengeNow).IsActive())

	afterExpiry := c.ExpiresAt.Add(time.Second)
	assert.Equal(t, StatusExpired, c.StatusAt(afterExpiry))
	assert.True(t, c.StatusAt(afterExpiry).IsTerminal())
}

func TestChallengeHelpers(t *testing.T) {
	c := newDailyChallenge(t, 4)
	c.Advance(1, challengeNow)

	assert.Equal(t, 25, c.ProgressPercent())
	assert.Equal(t, 12*time.Hour, c.TimeLeft(challengeNow))
	assert.Equal(t, time.Duration(0), c.TimeLeft(c.ExpiresAt.Add(time.Hour)))
}
