// Package progression содержит чистые функции прогрессии ученика:
// вычисление уровня из суммарного XP и подсчёт серии активных дней.
// Здесь нет внешних зависимостей и состояния - все функции детерминированы.
package progression

import (
	"fmt"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL FUNCTION
// ══════════════════════════════════════════════════════════════════════════════

// XPPerBucket определяет размер корзины XP для вычисления уровня.
// Правило уровня: level = totalXp/100 + 1, стоимость завершения
// уровня N равна N*100 XP. Правило зафиксировано одно, альтернативная
// кумулятивная формула не используется.
const XPPerBucket = 100

// LevelState - производное состояние уровня ученика.
// Не хранится: всегда вычисляется заново из суммарного XP.
type LevelState struct {
	// Level - текущий уровень (>= 1).
	Level int

	// XPIntoLevel - XP, набранный внутри текущего уровня.
	XPIntoLevel int

	// XPForNextLevel - XP, необходимый для завершения текущего уровня.
	XPForNextLevel int

	// TotalXP - суммарный XP, из которого вычислено состояние.
	TotalXP int64
}

// LevelFor вычисляет состояние уровня из суммарного XP.
// Функция чистая, детерминированная и монотонная по totalXp.
// Отрицательный вход трактуется как ноль.
func LevelFor(totalXP shared.XP) LevelState {
	total := totalXP.Int64()
	if total < 0 {
		total = 0
	}

	level := int(total/XPPerBucket) + 1

	return LevelState{
		Level:          level,
		XPIntoLevel:    int(total % XPPerBucket),
		XPForNextLevel: level * XPPerBucket,
		TotalXP:        total,
	}
}

// Progress возвращает долю прохождения текущего уровня в диапазоне [0, 1).
func (s LevelState) Progress() float64 {
	if s.XPForNextLevel <= 0 {
		return 0
	}

	fraction := float64(s.XPIntoLevel) / float64(s.XPForNextLevel)
	if fraction < 0 {
		return 0
	}
	if fraction >= 1 {
		// Инвариант XPIntoLevel < XPPerBucket <= XPForNextLevel делает
		// это недостижимым, но долю всё равно зажимаем.
		return 0.999999
	}
	return fraction
}

// ProgressPercent возвращает прогресс уровня в процентах (0-99).
func (s LevelState) ProgressPercent() int {
	return int(s.Progress() * 100)
}

// XPToNextLevel возвращает, сколько XP осталось до следующего уровня.
func (s LevelState) XPToNextLevel() int {
	remaining := XPPerBucket - s.XPIntoLevel
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Title возвращает человекочитаемое звание для уровня.
func (s LevelState) Title() string {
	switch {
	case s.Level < 3:
		return "Новичок"
	case s.Level < 6:
		return "Ученик"
	case s.Level < 10:
		return "Практик"
	case s.Level < 20:
		return "Специалист"
	case s.Level < 40:
		return "Эксперт"
	default:
		return "Мастер"
	}
}

// String возвращает строковое представление для логирования.
func (s LevelState) String() string {
	return fmt.Sprintf(
		"LevelState{Level: %d, Into: %d, ForNext: %d, Total: %d}",
		s.Level, s.XPIntoLevel, s.XPForNextLevel, s.TotalXP,
	)
}
