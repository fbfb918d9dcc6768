package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func TestCountersMerge(t *testing.T) {
	earlier := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	local := Counters{
		LearnerID:         "learner-1",
		CoursesCompleted:  2,
		ModulesCompleted:  14,
		StreakDays:        5,
		StudyGroupsJoined: 1,
		TotalXP:           shared.XP(1250),
		Level:             13,
		FetchedAt:         later,
	}
	remote := Counters{
		LearnerID:         "learner-1",
		CoursesCompleted:  3,
		ModulesCompleted:  12,
		StreakDays:        0,
		StudyGroupsJoined: 1,
		TotalXP:           shared.XP(1200),
		Level:             13,
		FetchedAt:         earlier,
	}

	merged := local.Merge(remote)

	// Монотонные счётчики сходятся к максимуму
	assert.Equal(t, 3, merged.CoursesCompleted)
	assert.Equal(t, 14, merged.ModulesCompleted)
	assert.Equal(t, shared.XP(1250), merged.TotalXP)

	// Серия берётся из более свежего снимка
	assert.Equal(t, 5, merged.StreakDays)
	assert.Equal(t, later, merged.FetchedAt)
}

func TestCountersLevelState(t *testing.T) {
	c := Counters{TotalXP: shared.XP(250), Level: 2}

	state := c.LevelState()

	// Уровень выводится из TotalXP, а не из поля источника
	assert.Equal(t, 3, state.Level)
	assert.Equal(t, 50, state.XPIntoLevel)
}

func TestCountersStale(t *testing.T) {
	assert.True(t, Counters{}.IsStale(time.Minute))

	fresh := Counters{FetchedAt: time.Now().UTC()}
	assert.False(t, fresh.IsStale(time.Minute))

	old := Counters{FetchedAt: time.Now().UTC().Add(-2 * time.Minute)}
	assert.True(t, old.IsStale(time.Minute))
}
