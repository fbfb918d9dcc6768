package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func mustAchievement(t *testing.T, id string, reqType RequirementType, reqValue, reward int) *Achievement {
	t.Helper()

	a, err := NewAchievement(NewAchievementParams{
		ID:               id,
		Name:             id,
		RequirementType:  reqType,
		RequirementValue: reqValue,
		XPReward:         reward,
	})
	require.NoError(t, err)
	return a
}

func TestNewAchievement(t *testing.T) {
	t.Run("defaults badge to bronze", func(t *testing.T) {
		a := mustAchievement(t, "first-module", RequirementModulesCompleted, 1, 50)
		assert.Equal(t, BadgeBronze, a.BadgeColor)
	})

	t.Run("rejects unknown requirement", func(t *testing.T) {
		_, err := NewAchievement(NewAchievementParams{
			ID:               "bad",
			Name:             "bad",
			RequirementType:  RequirementType("quizzes_aced"),
			RequirementValue: 1,
			XPReward:         10,
		})
		assert.ErrorIs(t, err, shared.ErrUnknownRequirement)
	})

	t.Run("rejects non-positive requirement value", func(t *testing.T) {
		_, err := NewAchievement(NewAchievementParams{
			ID:               "bad",
			Name:             "bad",
			RequirementType:  RequirementStreakDays,
			RequirementValue: 0,
			XPReward:         10,
		})
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	})
}

func TestProgressFor(t *testing.T) {
	learnerID := shared.GenerateLearnerID()
	a := mustAchievement(t, "module-explorer", RequirementModulesCompleted, 5, 100)

	t.Run("below threshold", func(t *testing.T) {
		p, err := ProgressFor(a, learnerID, progression.Counters{ModulesCompleted: 3})

		require.NoError(t, err)
		assert.Equal(t, 3, p.Current)
		assert.False(t, p.IsCompleted)
		assert.Equal(t, 60, p.Percent())
		assert.Equal(t, 2, p.Remaining())
	})

	t.Run("at threshold", func(t *testing.T) {
		p, err := ProgressFor(a, learnerID, progression.Counters{ModulesCompleted: 5})

		require.NoError(t, err)
		assert.Equal(t, 5, p.Current)
		assert.True(t, p.IsCompleted)
	})

	t.Run("progress clamped to requirement", func(t *testing.T) {
		p, err := ProgressFor(a, learnerID, progression.Counters{ModulesCompleted: 42})

		require.NoError(t, err)
		assert.Equal(t, 5, p.Current)
		assert.True(t, p.IsCompleted)
		assert.Equal(t, 100, p.Percent())
	})
}

func TestEvaluatorEvaluate(t *testing.T) {
	learnerID := shared.GenerateLearnerID()
	evaluator := NewEvaluator()

	catalog := []*Achievement{
		mustAchievement(t, "course-finisher", RequirementCoursesCompleted, 1, 200),
		mustAchievement(t, "module-explorer", RequirementModulesCompleted, 5, 100),
		mustAchievement(t, "week-of-fire", RequirementStreakDays, 7, 150),
		mustAchievement(t, "team-player", RequirementStudyGroupsJoined, 1, 50),
	}

	counters := progression.Counters{
		LearnerID:         learnerID,
		CoursesCompleted:  1,
		ModulesCompleted:  3,
		StreakDays:        7,
		StudyGroupsJoined: 0,
	}

	t.Run("first evaluation grants completed only", func(t *testing.T) {
		eval, err := evaluator.Evaluate(learnerID, counters, catalog, map[string]bool{})

		require.NoError(t, err)
		assert.Len(t, eval.All, 4)
		assert.Equal(t, 2, eval.CompletedCount())

		require.Len(t, eval.NewlyCompleted, 2)
		assert.Equal(t, "course-finisher", eval.NewlyCompleted[0].ID)
		assert.Equal(t, "week-of-fire", eval.NewlyCompleted[1].ID)
	})

	t.Run("re-evaluation grants nothing new", func(t *testing.T) {
		unlocked := map[string]bool{"course-finisher": true, "week-of-fire": true}

		eval, err := evaluator.Evaluate(learnerID, counters, catalog, unlocked)

		require.NoError(t, err)
		assert.Empty(t, eval.NewlyCompleted)
		assert.Equal(t, 2, eval.CompletedCount())
	})

	t.Run("counter crossing threshold completes once", func(t *testing.T) {
		unlocked := map[string]bool{"course-finisher": true, "week-of-fire": true}

		grown := counters
		grown.ModulesCompleted = 5

		eval, err := evaluator.Evaluate(learnerID, grown, catalog, unlocked)
		require.NoError(t, err)
		require.Len(t, eval.NewlyCompleted, 1)
		assert.Equal(t, "module-explorer", eval.NewlyCompleted[0].ID)

		unlocked["module-explorer"] = true
		eval, err = evaluator.Evaluate(learnerID, grown, catalog, unlocked)
		require.NoError(t, err)
		assert.Empty(t, eval.NewlyCompleted)
	})
}
