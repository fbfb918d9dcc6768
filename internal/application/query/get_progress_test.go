package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubLearnerRepo struct {
	learner *learner.Learner
}

func (s *stubLearnerRepo) Create(context.Context, *learner.Learner) error { return nil }
func (s *stubLearnerRepo) GetByID(_ context.Context, id shared.LearnerID) (*learner.Learner, error) {
	if s.learner == nil || s.learner.ID != id {
		return nil, shared.ErrLearnerNotFound
	}
	return s.learner.Clone(), nil
}
func (s *stubLearnerRepo) GetByPlatformID(context.Context, string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}
func (s *stubLearnerRepo) Update(context.Context, *learner.Learner) error { return nil }
func (s *stubLearnerRepo) GetAll(context.Context, shared.Pagination) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearnerRepo) GetByIDs(context.Context, []shared.LearnerID) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearnerRepo) Count(context.Context) (int, error) { return 1, nil }
func (s *stubLearnerRepo) FindStale(context.Context, time.Duration, int) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearnerRepo) FindActiveYesterday(context.Context, time.Time) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearnerRepo) Exists(context.Context, shared.LearnerID) (bool, error) { return true, nil }

type stubLedgerRepo struct {
	totalXP shared.XP
}

func (s *stubLedgerRepo) Append(context.Context, *ledger.XpEvent) error { return nil }
func (s *stubLedgerRepo) GetByID(context.Context, shared.EventID) (*ledger.XpEvent, error) {
	return nil, shared.ErrEventNotFound
}
func (s *stubLedgerRepo) ListByLearner(context.Context, shared.LearnerID, ledger.ListOptions) ([]*ledger.XpEvent, error) {
	return nil, nil
}
func (s *stubLedgerRepo) ListByLearnerSince(context.Context, shared.LearnerID, time.Time) ([]*ledger.XpEvent, error) {
	return nil, nil
}
func (s *stubLedgerRepo) TotalXP(context.Context, shared.LearnerID) (shared.XP, error) {
	return s.totalXP, nil
}
func (s *stubLedgerRepo) Summarize(_ context.Context, id shared.LearnerID) (ledger.Summary, error) {
	return ledger.Summary{LearnerID: id, TotalXP: s.totalXP}, nil
}
func (s *stubLedgerRepo) CountBySource(context.Context, shared.LearnerID, ledger.Source) (int, error) {
	return 0, nil
}
func (s *stubLedgerRepo) ActivityDates(context.Context, shared.LearnerID, time.Time) ([]time.Time, error) {
	return nil, nil
}
func (s *stubLedgerRepo) Exists(context.Context, shared.EventID) (bool, error) { return false, nil }
func (s *stubLedgerRepo) ExistsBySourceRef(context.Context, shared.LearnerID, ledger.Source, string) (bool, error) {
	return false, nil
}

type stubCatalogRepo struct {
	achievements []*achievement.Achievement
}

func (s *stubCatalogRepo) GetAll(context.Context) ([]*achievement.Achievement, error) {
	return s.achievements, nil
}
func (s *stubCatalogRepo) GetByID(_ context.Context, id string) (*achievement.Achievement, error) {
	for _, a := range s.achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrAchievementNotFound
}
func (s *stubCatalogRepo) GetByRequirementType(_ context.Context, rt achievement.RequirementType) ([]*achievement.Achievement, error) {
	var out []*achievement.Achievement
	for _, a := range s.achievements {
		if a.RequirementType == rt {
			out = append(out, a)
		}
	}
	return out, nil
}
func (s *stubCatalogRepo) Upsert(context.Context, *achievement.Achievement) error { return nil }

type stubUnlockRepo struct {
	unlocked map[string]bool
}

func (s *stubUnlockRepo) Save(context.Context, *achievement.Unlock) error { return nil }
func (s *stubUnlockRepo) GetByLearner(context.Context, shared.LearnerID) ([]*achievement.Unlock, error) {
	return nil, nil
}
func (s *stubUnlockRepo) UnlockedIDs(context.Context, shared.LearnerID) (map[string]bool, error) {
	return s.unlocked, nil
}
func (s *stubUnlockRepo) IsUnlocked(_ context.Context, _ shared.LearnerID, id string) (bool, error) {
	return s.unlocked[id], nil
}
func (s *stubUnlockRepo) CountByLearner(context.Context, shared.LearnerID) (int, error) {
	return len(s.unlocked), nil
}

type stubCountersRead struct {
	counters progression.Counters
	err      error
}

func (s *stubCountersRead) Get(context.Context, shared.LearnerID) (progression.Counters, error) {
	if s.err != nil {
		return progression.Counters{}, s.err
	}
	return s.counters, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func mustCatalogEntry(t *testing.T, id string, rt achievement.RequirementType, value, reward int) *achievement.Achievement {
	t.Helper()
	a, err := achievement.NewAchievement(achievement.NewAchievementParams{
		ID:               id,
		Name:             "Achievement " + id,
		Description:      "test",
		RequirementType:  rt,
		RequirementValue: value,
		XPReward:         reward,
	})
	require.NoError(t, err)
	return a
}

func TestGetProgressHandler_Handle(t *testing.T) {
	lrn, err := learner.NewLearner(learner.NewLearnerParams{
		PlatformID:  "pf-1",
		DisplayName: "Test Learner",
	})
	require.NoError(t, err)

	catalog := []*achievement.Achievement{
		mustCatalogEntry(t, "first-course", achievement.RequirementCoursesCompleted, 1, 100),
		mustCatalogEntry(t, "ten-modules", achievement.RequirementModulesCompleted, 10, 50),
	}
	counters := progression.Counters{
		CoursesCompleted: 1,
		ModulesCompleted: 7,
		FetchedAt:        queryNow,
	}

	newHandler := func(unlocked map[string]bool) *GetProgressHandler {
		return NewGetProgressHandler(
			&stubLearnerRepo{learner: lrn},
			&stubLedgerRepo{totalXP: shared.XP(250)},
			&stubCatalogRepo{achievements: catalog},
			&stubUnlockRepo{unlocked: unlocked},
			&stubCountersRead{counters: counters},
		)
	}

	t.Run("level section derives from the ledger total", func(t *testing.T) {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(), GetProgressQuery{
			LearnerID: string(lrn.ID),
			Now:       queryNow,
		})
		require.NoError(t, err)

		assert.Equal(t, string(lrn.ID), result.LearnerID)
		assert.Equal(t, int64(250), result.Level.TotalXP)
		assert.Equal(t, 3, result.Level.Level)
		assert.Equal(t, int64(50), result.Level.XPIntoLevel)
		assert.Empty(t, result.Achievements, "achievements are opt-in")
		assert.Equal(t, 0, result.Streak.CurrentStreak)
		assert.False(t, result.Streak.ActiveToday)
	})

	t.Run("achievement section carries reward and unlock state", func(t *testing.T) {
		h := newHandler(map[string]bool{"first-course": true})

		result, err := h.Handle(context.Background(), GetProgressQuery{
			LearnerID:           string(lrn.ID),
			IncludeAchievements: true,
			Now:                 queryNow,
		})
		require.NoError(t, err)
		require.Len(t, result.Achievements, 2)

		byID := make(map[string]AchievementProgressDTO, len(result.Achievements))
		for _, dto := range result.Achievements {
			byID[dto.AchievementID] = dto
		}

		first := byID["first-course"]
		assert.Equal(t, 100, first.RewardXP)
		assert.True(t, first.IsCompleted)
		assert.True(t, first.IsUnlocked)
		assert.Equal(t, 1, first.Current)
		assert.Equal(t, 1, first.Target)

		modules := byID["ten-modules"]
		assert.Equal(t, 50, modules.RewardXP)
		assert.False(t, modules.IsCompleted)
		assert.False(t, modules.IsUnlocked)
		assert.Equal(t, 7, modules.Current)
		assert.Equal(t, 10, modules.Target)
		assert.Equal(t, 70, modules.Percent)

		assert.Equal(t, 1, result.UnlockedCount)
	})

	t.Run("unknown learner fails", func(t *testing.T) {
		h := newHandler(nil)

		_, err := h.Handle(context.Background(), GetProgressQuery{
			LearnerID: string(shared.GenerateLearnerID()),
			Now:       queryNow,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrLearnerNotFound)
	})
}
