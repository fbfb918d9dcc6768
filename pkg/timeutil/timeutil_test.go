package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2026, 8, 28, 17, 45, 12, 999, time.UTC)
	got := StartOfDay(in)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfDay_NonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 02:30 on Aug 29 in UTC+5 is still Aug 28 in UTC.
	in := time.Date(2026, 8, 29, 2, 30, 0, 0, loc)
	got := StartOfDay(in)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", Date(2026, 8, 26), Date(2026, 8, 24)},
		{"monday", Date(2026, 8, 24), Date(2026, 8, 24)},
		{"sunday", Date(2026, 8, 30), Date(2026, 8, 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.in))
		})
	}
}

func TestNextMidnight(t *testing.T) {
	in := time.Date(2026, 8, 28, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, Date(2026, 8, 29), NextMidnight(in))
}

func TestNextWeekStart(t *testing.T) {
	assert.Equal(t, Date(2026, 8, 31), NextWeekStart(Date(2026, 8, 28)))
	assert.Equal(t, Date(2026, 8, 31), NextWeekStart(Date(2026, 8, 24)))
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 8, 28, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", Date(2026, 8, 28), DateTime(2026, 8, 28, 23, 0, 0), 0},
		{"adjacent days", DateTime(2026, 8, 27, 23, 59, 0), DateTime(2026, 8, 28, 0, 1, 0), 1},
		{"a week apart", Date(2026, 8, 21), Date(2026, 8, 28), 7},
		{"reversed", Date(2026, 8, 28), Date(2026, 8, 27), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestWeekKey(t *testing.T) {
	assert.Equal(t, "2026-W35", WeekKey(Date(2026, 8, 28)))
	// ISO week years roll over around January 1st.
	assert.Equal(t, "2020-W53", WeekKey(Date(2021, 1, 1)))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-08-28")
	assert.NoError(t, err)
	assert.Equal(t, Date(2026, 8, 28), got)

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "2d 4h", HumanDuration(52*time.Hour))
	assert.Equal(t, "3h 30m", HumanDuration(3*time.Hour+30*time.Minute))
	assert.Equal(t, "45m", HumanDuration(45*time.Minute))
	assert.Equal(t, "0m", HumanDuration(-time.Minute))
}
