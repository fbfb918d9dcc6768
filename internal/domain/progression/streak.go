package progression

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// Серия считается по календарным дням UTC. Серия "живая", если последний
// активный день - сегодня или вчера; пропуск более одного дня обнуляет её.
// ══════════════════════════════════════════════════════════════════════════════

// dateOnly обрезает время до начала календарного дня UTC.
func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysDiff возвращает разницу между двумя датами в календарных днях.
func daysDiff(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours() / 24)
}

// StreakDays подсчитывает длину серии последовательных активных дней,
// заканчивающейся сегодня или вчера. Пустое множество дат даёт 0.
// Функция чистая: "сегодня" передаётся явно.
func StreakDays(activityDates []time.Time, today time.Time) int {
	if len(activityDates) == 0 {
		return 0
	}

	// Дедупликация по календарному дню
	seen := make(map[time.Time]bool, len(activityDates))
	days := make([]time.Time, 0, len(activityDates))
	for _, d := range activityDates {
		day := dateOnly(d)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})

	// Серия должна заканчиваться сегодня или вчера
	latest := days[0]
	gap := daysDiff(latest, today)
	if gap < 0 || gap > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if daysDiff(days[i], days[i-1]) != 1 {
			break
		}
		streak++
	}

	return streak
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK ENTITY (инкрементальный трекер)
// ══════════════════════════════════════════════════════════════════════════════

// Streak представляет сохранённое состояние серии ученика.
// Инкрементальная альтернатива пересчёту StreakDays по всей истории.
type Streak struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// CurrentStreak - текущая серия дней.
	CurrentStreak int

	// LongestStreak - лучшая серия дней за всё время.
	LongestStreak int

	// LastActiveDate - дата последней активности (начало дня UTC).
	LastActiveDate time.Time

	// StreakStartDate - дата начала текущей серии.
	StreakStartDate time.Time
}

// NewStreak создаёт новый трекер серии.
func NewStreak(learnerID string) *Streak {
	return &Streak{
		LearnerID: learnerID,
	}
}

// RecordActivity записывает активность и обновляет серию.
// Возвращает true, если серия выросла (новый активный день).
func (s *Streak) RecordActivity(at time.Time) bool {
	day := dateOnly(at)

	if s.LastActiveDate.IsZero() {
		s.CurrentStreak = 1
		s.LongestStreak = 1
		s.LastActiveDate = day
		s.StreakStartDate = day
		return true
	}

	switch daysDiff(s.LastActiveDate, day) {
	case 0:
		// Тот же день - серия не меняется
		return false
	case 1:
		s.CurrentStreak++
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
	default:
		// Пропущены дни - серия начинается заново
		s.CurrentStreak = 1
		s.StreakStartDate = day
	}

	s.LastActiveDate = day
	return true
}

// LiveStreak возвращает текущую серию с учётом того, не сломана ли она.
// Ученик, активный вчера, но ещё не сегодня, сохраняет живую серию.
func (s *Streak) LiveStreak(today time.Time) int {
	if s.LastActiveDate.IsZero() {
		return 0
	}

	gap := daysDiff(s.LastActiveDate, today)
	if gap < 0 || gap > 1 {
		return 0
	}
	return s.CurrentStreak
}

// IsBroken проверяет, сломана ли серия на указанную дату.
func (s *Streak) IsBroken(today time.Time) bool {
	if s.LastActiveDate.IsZero() || s.CurrentStreak == 0 {
		return false
	}
	return daysDiff(s.LastActiveDate, today) > 1
}

// DaysMissed возвращает количество пропущенных дней на указанную дату.
func (s *Streak) DaysMissed(today time.Time) int {
	if s.LastActiveDate.IsZero() {
		return 0
	}
	missed := daysDiff(s.LastActiveDate, today) - 1
	if missed < 0 {
		return 0
	}
	return missed
}

// ActiveToday возвращает true, если сегодня уже была активность.
func (s *Streak) ActiveToday(today time.Time) bool {
	return !s.LastActiveDate.IsZero() && daysDiff(s.LastActiveDate, today) == 0
}
