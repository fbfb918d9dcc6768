package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name           string
		totalXP        int64
		level          int
		xpIntoLevel    int
		xpForNextLevel int
	}{
		{"zero xp", 0, 1, 0, 100},
		{"mid first level", 50, 1, 50, 100},
		{"boundary to level 2", 100, 2, 0, 200},
		{"just past boundary", 101, 2, 1, 200},
		{"reference scenario", 250, 3, 50, 300},
		{"boundary to level 4", 300, 4, 0, 400},
		{"large total", 12345, 124, 45, 12400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := LevelFor(shared.XP(tt.totalXP))

			assert.Equal(t, tt.level, state.Level)
			assert.Equal(t, tt.xpIntoLevel, state.XPIntoLevel)
			assert.Equal(t, tt.xpForNextLevel, state.XPForNextLevel)
			assert.Equal(t, tt.totalXP, state.TotalXP)
		})
	}
}

func TestLevelForNegativeTreatedAsZero(t *testing.T) {
	state := LevelFor(shared.XP(-5))

	assert.Equal(t, 1, state.Level)
	assert.Equal(t, 0, state.XPIntoLevel)
	assert.Equal(t, int64(0), state.TotalXP)
}

func TestLevelForMonotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 5000; xp += 7 {
		state := LevelFor(shared.XP(xp))

		assert.GreaterOrEqual(t, state.Level, 1)
		assert.GreaterOrEqual(t, state.Level, prev, "level regressed at xp=%d", xp)
		prev = state.Level
	}
}

func TestLevelStateProgress(t *testing.T) {
	t.Run("zero progress at level start", func(t *testing.T) {
		state := LevelFor(shared.XP(200))
		assert.Equal(t, 0.0, state.Progress())
		assert.Equal(t, 0, state.ProgressPercent())
	})

	t.Run("fraction stays below one", func(t *testing.T) {
		for xp := int64(0); xp <= 2000; xp += 13 {
			p := LevelFor(shared.XP(xp)).Progress()
			assert.GreaterOrEqual(t, p, 0.0)
			assert.Less(t, p, 1.0, "fraction out of range at xp=%d", xp)
		}
	})

	t.Run("xp to next level", func(t *testing.T) {
		state := LevelFor(shared.XP(250))
		assert.Equal(t, 50, state.XPToNextLevel())
	})
}
