package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func newTestChallenge(t *testing.T, challenges *memChallenges, lrn *learner.Learner) *challenge.Challenge {
	t.Helper()
	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		LearnerID:   lrn.ID,
		Type:        challenge.TypeDaily,
		Title:       "Разминка",
		Description: "Завершите 2 учебных действия сегодня",
		Difficulty:  challenge.DifficultyEasy,
		XPReward:    30,
		MaxProgress: 2,
		IssuedAt:    testNow.Add(-6 * time.Hour),
		ExpiresAt:   testNow.Add(18 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, challenges.Create(context.Background(), ch))
	return ch
}

func newClaimFixture(t *testing.T) (*ClaimChallengeHandler, *memChallenges, *memLedger, *memBus, *learner.Learner) {
	t.Helper()
	ledgerRepo := newMemLedger()
	learners := newMemLearners()
	challenges := newMemChallenges()
	bus := &memBus{}
	lrn := newTestLearner(t, learners)
	recorder := NewRecordXPHandler(ledgerRepo, learners, bus, pinnedClock())
	h := NewClaimChallengeHandler(challenges, ledgerRepo, recorder, bus)
	return h, challenges, ledgerRepo, bus, lrn
}

func TestClaimChallengeHandler_Handle(t *testing.T) {
	t.Run("claiming a completed challenge mints the reward", func(t *testing.T) {
		h, challenges, ledgerRepo, bus, lrn := newClaimFixture(t)
		ch := newTestChallenge(t, challenges, lrn)

		loaded, err := challenges.GetByID(context.Background(), ch.ID)
		require.NoError(t, err)
		loaded.Advance(2, testNow)
		require.NoError(t, challenges.Update(context.Background(), loaded))

		result, err := h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			Now:         testNow,
		})
		require.NoError(t, err)

		assert.Equal(t, 30, result.RewardXP)
		assert.NotEmpty(t, result.LedgerEventID)
		assert.Equal(t, int64(30), result.NewTotalXP)

		exists, err := ledgerRepo.ExistsBySourceRef(context.Background(), lrn.ID, ledger.SourceChallengeClaim, ch.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		claimed := bus.published(shared.EventChallengeClaimed)
		require.Len(t, claimed, 1)
	})

	t.Run("claiming twice yields an error and no second event", func(t *testing.T) {
		h, challenges, ledgerRepo, _, lrn := newClaimFixture(t)
		ch := newTestChallenge(t, challenges, lrn)

		loaded, err := challenges.GetByID(context.Background(), ch.ID)
		require.NoError(t, err)
		loaded.Advance(2, testNow)
		require.NoError(t, challenges.Update(context.Background(), loaded))

		_, err = h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			Now:         testNow,
		})
		require.NoError(t, err)

		_, err = h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			Now:         testNow.Add(time.Minute),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrChallengeClaimed)
		assert.True(t, shared.IsNotClaimable(err))

		count, err := ledgerRepo.CountBySource(context.Background(), lrn.ID, ledger.SourceChallengeClaim)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("claiming before completion fails", func(t *testing.T) {
		h, challenges, _, _, lrn := newClaimFixture(t)
		ch := newTestChallenge(t, challenges, lrn)

		_, err := h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			Now:         testNow,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrChallengeNotClaimable)
	})

	t.Run("claiming after expiry fails", func(t *testing.T) {
		h, challenges, _, _, lrn := newClaimFixture(t)
		ch := newTestChallenge(t, challenges, lrn)

		loaded, err := challenges.GetByID(context.Background(), ch.ID)
		require.NoError(t, err)
		loaded.Advance(2, testNow)
		require.NoError(t, challenges.Update(context.Background(), loaded))

		_, err = h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			Now:         testNow.Add(48 * time.Hour),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrChallengeExpired)
	})

	t.Run("another learner cannot claim the challenge", func(t *testing.T) {
		h, challenges, _, _, lrn := newClaimFixture(t)
		ch := newTestChallenge(t, challenges, lrn)

		_, err := h.Handle(context.Background(), ClaimChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(shared.GenerateLearnerID()),
			Now:         testNow,
		})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestAdvanceChallengesHandler(t *testing.T) {
	t.Run("advancing an expired challenge is a no-op", func(t *testing.T) {
		challenges := newMemChallenges()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)
		ch := newTestChallenge(t, challenges, lrn)

		h := NewAdvanceChallengesHandler(challenges, bus)

		result, err := h.Handle(context.Background(), AdvanceChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			IncrementBy: 1,
			Now:         testNow.Add(48 * time.Hour),
		})
		require.NoError(t, err)
		assert.False(t, result.Advanced)
		assert.Equal(t, 0, result.Progress)
		assert.Empty(t, bus.events)
	})

	t.Run("hitting the target makes the challenge claimable", func(t *testing.T) {
		challenges := newMemChallenges()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)
		ch := newTestChallenge(t, challenges, lrn)

		h := NewAdvanceChallengesHandler(challenges, bus)

		result, err := h.Handle(context.Background(), AdvanceChallengeCommand{
			ChallengeID: ch.ID,
			LearnerID:   string(lrn.ID),
			IncrementBy: 5, // clamps to the target
			Now:         testNow,
		})
		require.NoError(t, err)
		assert.True(t, result.Advanced)
		assert.True(t, result.BecameClaimable)
		assert.Equal(t, 2, result.Progress)

		require.Len(t, bus.published(shared.EventChallengeCompleted), 1)
	})

	t.Run("reward sources never advance challenges", func(t *testing.T) {
		challenges := newMemChallenges()
		learners := newMemLearners()
		bus := &memBus{}
		lrn := newTestLearner(t, learners)
		newTestChallenge(t, challenges, lrn)

		h := NewAdvanceChallengesHandler(challenges, bus)

		updated, err := h.AdvanceForAction(context.Background(), string(lrn.ID), string(ledger.SourceChallengeClaim), testNow)
		require.NoError(t, err)
		assert.Empty(t, updated)

		updated, err = h.AdvanceForAction(context.Background(), string(lrn.ID), string(ledger.SourceModuleComplete), testNow)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, 1, updated[0].Progress)
	})
}
