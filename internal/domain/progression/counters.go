package progression

import (
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER COUNTERS
// Агрегатные счётчики ученика. Ими владеют внешние подсистемы
// (курсы, группы), движок прогрессии их только читает.
// ══════════════════════════════════════════════════════════════════════════════

// Counters - снимок агрегатных счётчиков ученика.
// Счётчики монотонно неубывающие: завершённый курс не "раззавершается".
type Counters struct {
	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// CoursesCompleted - завершено курсов.
	CoursesCompleted int

	// ModulesCompleted - завершено модулей.
	ModulesCompleted int

	// StreakDays - текущая серия активных дней.
	StreakDays int

	// StudyGroupsJoined - учебных групп, к которым присоединился.
	StudyGroupsJoined int

	// TotalXP - суммарный XP по данным источника.
	TotalXP shared.XP

	// Level - уровень по данным источника (может отставать от TotalXP).
	Level int

	// FetchedAt - когда снимок был получен.
	FetchedAt time.Time
}

// IsValid проверяет, что все счётчики неотрицательные.
func (c Counters) IsValid() bool {
	return c.CoursesCompleted >= 0 &&
		c.ModulesCompleted >= 0 &&
		c.StreakDays >= 0 &&
		c.StudyGroupsJoined >= 0 &&
		c.TotalXP.IsValid()
}

// IsZero возвращает true для пустого снимка.
func (c Counters) IsZero() bool {
	return c.CoursesCompleted == 0 &&
		c.ModulesCompleted == 0 &&
		c.StreakDays == 0 &&
		c.StudyGroupsJoined == 0 &&
		c.TotalXP == 0
}

// LevelState вычисляет состояние уровня из снимка.
// Уровень всегда выводится из TotalXP, поле Level источника
// используется только для сверки.
func (c Counters) LevelState() LevelState {
	return LevelFor(c.TotalXP)
}

// IsStale возвращает true, если снимок старше указанного срока.
func (c Counters) IsStale(maxAge time.Duration) bool {
	if c.FetchedAt.IsZero() {
		return true
	}
	return time.Since(c.FetchedAt) > maxAge
}

// Merge выбирает более свежий и полный снимок из двух.
// Счётчики монотонные, поэтому при конфликте берётся максимум:
// производное состояние никогда не пересчитывается из полуобновлённого набора.
func (c Counters) Merge(other Counters) Counters {
	merged := c

	if other.CoursesCompleted > merged.CoursesCompleted {
		merged.CoursesCompleted = other.CoursesCompleted
	}
	if other.ModulesCompleted > merged.ModulesCompleted {
		merged.ModulesCompleted = other.ModulesCompleted
	}
	if other.StudyGroupsJoined > merged.StudyGroupsJoined {
		merged.StudyGroupsJoined = other.StudyGroupsJoined
	}
	if other.TotalXP > merged.TotalXP {
		merged.TotalXP = other.TotalXP
	}
	if other.Level > merged.Level {
		merged.Level = other.Level
	}
	// Серия не монотонна - берём значение более свежего снимка
	if other.FetchedAt.After(merged.FetchedAt) {
		merged.StreakDays = other.StreakDays
		merged.FetchedAt = other.FetchedAt
	}

	return merged
}
