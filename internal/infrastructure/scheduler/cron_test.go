package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"too few fields", "0 0 * *"},
		{"too many fields", "0 0 * * * *"},
		{"minute out of range", "60 0 * * *"},
		{"hour out of range", "0 24 * * *"},
		{"weekday out of range", "0 0 * * 7"},
		{"garbage value", "x 0 * * *"},
		{"zero step", "*/0 0 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestCronExpression_Next(t *testing.T) {
	// Wednesday, 2026-03-11 15:42 UTC.
	from := time.Date(2026, 3, 11, 15, 42, 30, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			"daily midnight rolls to next day",
			EveryDayMidnight,
			time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			"weekly rotation waits for Monday",
			EveryMondayMidnight,
			time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			"streak bonus grant runs shortly after midnight",
			ShortlyAfterMidnight,
			time.Date(2026, 3, 12, 0, 5, 0, 0, time.UTC),
		},
		{
			"same day when the slot is still ahead",
			"30 16 * * *",
			time.Date(2026, 3, 11, 16, 30, 0, 0, time.UTC),
		},
		{
			"step field fires on the next quarter hour",
			"*/15 * * * *",
			time.Date(2026, 3, 11, 15, 45, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(from))
		})
	}
}

func TestCronExpression_NextFromExactMatchSkipsToFollowingSlot(t *testing.T) {
	ce := MustParseCronExpression(EveryDayMidnight)

	midnight := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight.AddDate(0, 0, 1), ce.Next(midnight))
}

func TestMustParseCronExpression_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustParseCronExpression("not a cron")
	})
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)

	from := time.Date(2026, 3, 11, 15, 42, 0, 0, time.UTC)
	assert.Equal(t, from.Add(5*time.Minute), s.Next(from))
	assert.Equal(t, "@every 5m0s", s.String())
}
