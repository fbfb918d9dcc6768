package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testToday = time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

func day(daysAgo int) time.Time {
	return testToday.AddDate(0, 0, -daysAgo)
}

func TestStreakDays(t *testing.T) {
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"empty set", nil, 0},
		{"only today", []time.Time{day(0)}, 1},
		{"only yesterday keeps live streak", []time.Time{day(1)}, 1},
		{"three consecutive days", []time.Time{day(0), day(1), day(2)}, 3},
		{"gap resets run", []time.Time{day(0), day(3)}, 1},
		{"run ends before gap", []time.Time{day(0), day(1), day(2), day(4), day(5)}, 3},
		{"streak ending two days ago is dead", []time.Time{day(2), day(3), day(4)}, 0},
		{"yesterday-anchored run", []time.Time{day(1), day(2), day(3)}, 3},
		{"duplicate timestamps same day", []time.Time{day(0), day(0).Add(-3 * time.Hour), day(1)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreakDays(tt.dates, testToday))
		})
	}
}

func TestStreakDaysIgnoresFutureAnchor(t *testing.T) {
	// Дата позже "сегодня" означает рассинхронизацию часов - серия не считается
	assert.Equal(t, 0, StreakDays([]time.Time{day(-1)}, testToday))
}

func TestStreakRecordActivity(t *testing.T) {
	s := NewStreak("learner-1")

	grew := s.RecordActivity(day(4))
	assert.True(t, grew)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 1, s.LongestStreak)

	// Повтор в тот же день ничего не меняет
	grew = s.RecordActivity(day(4).Add(5 * time.Hour))
	assert.False(t, grew)
	assert.Equal(t, 1, s.CurrentStreak)

	s.RecordActivity(day(3))
	s.RecordActivity(day(2))
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)

	// Пропуск дня сбрасывает текущую серию, лучшая остаётся
	s.RecordActivity(day(0))
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
}

func TestStreakLiveStreak(t *testing.T) {
	s := NewStreak("learner-1")
	s.RecordActivity(day(2))
	s.RecordActivity(day(1))

	assert.Equal(t, 2, s.LiveStreak(testToday), "active yesterday keeps streak live")
	assert.False(t, s.IsBroken(testToday))

	assert.Equal(t, 0, s.LiveStreak(testToday.AddDate(0, 0, 1)))
	assert.True(t, s.IsBroken(testToday.AddDate(0, 0, 1)))
	assert.Equal(t, 1, s.DaysMissed(testToday.AddDate(0, 0, 1)))
}

func TestStreakEmptyState(t *testing.T) {
	s := NewStreak("learner-1")

	assert.Equal(t, 0, s.LiveStreak(testToday))
	assert.False(t, s.IsBroken(testToday))
	assert.False(t, s.ActiveToday(testToday))
	assert.Equal(t, 0, s.DaysMissed(testToday))
}
