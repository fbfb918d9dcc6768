package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

var queryNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

// stubChallenges serves a fixed challenge list. ListActive deliberately
// applies no window filter so the tests can prove the handler relies on
// the entity's lazy status rather than the storage filter.
type stubChallenges struct {
	challenges []*challenge.Challenge
}

func (s *stubChallenges) Create(context.Context, *challenge.Challenge) error { return nil }
func (s *stubChallenges) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	for _, c := range s.challenges {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrChallengeNotFound
}
func (s *stubChallenges) Update(context.Context, *challenge.Challenge) error { return nil }
func (s *stubChallenges) ListActive(_ context.Context, learnerID shared.LearnerID, _ time.Time) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	for _, c := range s.challenges {
		if c.LearnerID == learnerID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (s *stubChallenges) ListByLearner(context.Context, shared.LearnerID, time.Time, time.Time) ([]*challenge.Challenge, error) {
	return nil, nil
}
func (s *stubChallenges) HasActiveOfType(context.Context, shared.LearnerID, challenge.Type, time.Time) (bool, error) {
	return false, nil
}
func (s *stubChallenges) ListExpiredUnclaimed(context.Context, time.Time, int) ([]*challenge.Challenge, error) {
	return nil, nil
}
func (s *stubChallenges) MarkExpiryNotified(context.Context, string) error { return nil }

func buildChallenge(t *testing.T, learnerID shared.LearnerID, title string, challengeType challenge.Type, expiresAt time.Time, progress int) *challenge.Challenge {
	t.Helper()
	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		LearnerID:   learnerID,
		Type:        challengeType,
		Title:       title,
		Description: "test",
		Difficulty:  challenge.DifficultyEasy,
		XPReward:    30,
		MaxProgress: 3,
		IssuedAt:    expiresAt.Add(-24 * time.Hour),
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
	if progress > 0 {
		ch.Advance(progress, ch.IssuedAt.Add(time.Hour))
	}
	return ch
}

func TestGetActiveChallengesHandler_Handle(t *testing.T) {
	learnerID := shared.GenerateLearnerID()

	t.Run("expired challenges are filtered lazily", func(t *testing.T) {
		repo := &stubChallenges{challenges: []*challenge.Challenge{
			buildChallenge(t, learnerID, "Живой", challenge.TypeDaily, queryNow.Add(6*time.Hour), 1),
			buildChallenge(t, learnerID, "Истёкший", challenge.TypeDaily, queryNow.Add(-time.Hour), 1),
		}}
		h := NewGetActiveChallengesHandler(repo)

		result, err := h.Handle(context.Background(), GetActiveChallengesQuery{
			LearnerID: string(learnerID),
			Now:       queryNow,
		})
		require.NoError(t, err)

		require.Len(t, result.Challenges, 1)
		assert.Equal(t, "Живой", result.Challenges[0].Title)
		assert.Equal(t, string(challenge.StatusInProgress), result.Challenges[0].Status)
	})

	t.Run("claimable challenges sort first", func(t *testing.T) {
		repo := &stubChallenges{challenges: []*challenge.Challenge{
			buildChallenge(t, learnerID, "В процессе", challenge.TypeDaily, queryNow.Add(2*time.Hour), 1),
			buildChallenge(t, learnerID, "Готов", challenge.TypeWeekly, queryNow.Add(72*time.Hour), 3),
		}}
		h := NewGetActiveChallengesHandler(repo)

		result, err := h.Handle(context.Background(), GetActiveChallengesQuery{
			LearnerID: string(learnerID),
			Now:       queryNow,
		})
		require.NoError(t, err)

		require.Len(t, result.Challenges, 2)
		assert.Equal(t, "Готов", result.Challenges[0].Title)
		assert.Equal(t, string(challenge.StatusClaimable), result.Challenges[0].Status)
		assert.Equal(t, 1, result.ClaimableCount)
	})

	t.Run("type filter narrows the result", func(t *testing.T) {
		repo := &stubChallenges{challenges: []*challenge.Challenge{
			buildChallenge(t, learnerID, "Дневной", challenge.TypeDaily, queryNow.Add(6*time.Hour), 0),
			buildChallenge(t, learnerID, "Недельный", challenge.TypeWeekly, queryNow.Add(72*time.Hour), 0),
		}}
		h := NewGetActiveChallengesHandler(repo)

		result, err := h.Handle(context.Background(), GetActiveChallengesQuery{
			LearnerID: string(learnerID),
			Type:      "weekly",
			Now:       queryNow,
		})
		require.NoError(t, err)

		require.Len(t, result.Challenges, 1)
		assert.Equal(t, "Недельный", result.Challenges[0].Title)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		h := NewGetActiveChallengesHandler(&stubChallenges{})

		_, err := h.Handle(context.Background(), GetActiveChallengesQuery{})
		require.Error(t, err)

		_, err = h.Handle(context.Background(), GetActiveChallengesQuery{
			LearnerID: string(learnerID),
			Type:      "monthly",
		})
		require.Error(t, err)
	})
}
