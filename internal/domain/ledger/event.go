// Package ledger содержит доменную модель журнала XP.
// Журнал является append-only: события неизменяемы после записи,
// суммарный XP ученика равен сумме amount всех его событий.
package ledger

import (
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Source определяет источник начисления XP.
type Source string

const (
	// SourceModuleComplete - завершение модуля курса.
	SourceModuleComplete Source = "module_complete"
	// SourceQuizPass - успешное прохождение теста.
	SourceQuizPass Source = "quiz_pass"
	// SourceChallengeClaim - получение награды за челлендж.
	SourceChallengeClaim Source = "challenge_claim"
	// SourcePracticalApproved - одобрение практической работы.
	SourcePracticalApproved Source = "practical_approved"
	// SourceStreakBonus - бонус за серию активных дней.
	SourceStreakBonus Source = "streak_bonus"
	// SourceAchievementUnlock - награда за разблокированное достижение.
	SourceAchievementUnlock Source = "achievement_unlock"
)

// IsValid проверяет, что источник корректен.
func (s Source) IsValid() bool {
	switch s {
	case SourceModuleComplete, SourceQuizPass, SourceChallengeClaim,
		SourcePracticalApproved, SourceStreakBonus, SourceAchievementUnlock:
		return true
	default:
		return false
	}
}

// IsReward возвращает true для источников-наград (челлендж, достижение,
// бонус за серию), которые не являются прямой учебной активностью.
func (s Source) IsReward() bool {
	switch s {
	case SourceChallengeClaim, SourceAchievementUnlock, SourceStreakBonus:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление источника.
func (s Source) String() string {
	return string(s)
}

// AllSources возвращает все допустимые источники XP.
func AllSources() []Source {
	return []Source{
		SourceModuleComplete,
		SourceQuizPass,
		SourceChallengeClaim,
		SourcePracticalApproved,
		SourceStreakBonus,
		SourceAchievementUnlock,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: XP EVENT
// ══════════════════════════════════════════════════════════════════════════════

// XpEvent - одна неизменяемая запись о начислении XP.
// Идентификатор назначается производителем события, что делает
// запись в журнал идемпотентной при повторной доставке.
type XpEvent struct {
	// ID - уникальный идентификатор события (UUID).
	ID shared.EventID

	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// Amount - количество начисленных очков (строго положительное).
	Amount shared.XPAmount

	// Source - источник начисления.
	Source Source

	// Reference - ссылка на породивший объект (модуль, тест, челлендж).
	Reference string

	// OccurredAt - время события.
	OccurredAt time.Time

	// RecordedAt - время записи в журнал.
	RecordedAt time.Time
}

// NewXpEventParams содержит параметры для создания события XP.
type NewXpEventParams struct {
	ID         shared.EventID
	LearnerID  shared.LearnerID
	Amount     int
	Source     Source
	Reference  string
	OccurredAt time.Time

	// Now - опорное время для валидации OccurredAt.
	// По умолчанию текущее время.
	Now time.Time

	// FutureTolerance - допустимое опережение OccurredAt относительно Now.
	// По умолчанию одна минута.
	FutureTolerance time.Duration
}

// NewXpEvent создаёт новое событие XP с валидацией всех полей.
func NewXpEvent(params NewXpEventParams) (*XpEvent, error) {
	id := params.ID
	if id.IsEmpty() {
		id = shared.GenerateEventID()
	}
	if !id.IsValid() {
		return nil, shared.NewDomainError("ledger", "NewXpEvent", shared.ErrInvalidID, "invalid event ID format")
	}

	if !params.LearnerID.IsValid() {
		return nil, shared.ErrInvalidLearnerID
	}

	amount, err := shared.NewXPAmount(params.Amount)
	if err != nil {
		return nil, err
	}

	if !params.Source.IsValid() {
		return nil, shared.ErrInvalidXpSource
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tolerance := params.FutureTolerance
	if tolerance <= 0 {
		tolerance = time.Minute
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if occurredAt.After(now.Add(tolerance)) {
		return nil, shared.NewDomainError("ledger", "NewXpEvent", shared.ErrFutureTimestamp, "event occurred_at is in the future")
	}

	return &XpEvent{
		ID:         id,
		LearnerID:  params.LearnerID,
		Amount:     amount,
		Source:     params.Source,
		Reference:  params.Reference,
		OccurredAt: occurredAt.UTC(),
		RecordedAt: now,
	}, nil
}

// IsReward возвращает true, если событие является наградой.
func (e *XpEvent) IsReward() bool {
	return e.Source.IsReward()
}

// IsLearningActivity возвращает true, если событие засчитывается
// в дневную активность для серии.
func (e *XpEvent) IsLearningActivity() bool {
	return !e.IsReward()
}

// String возвращает строковое представление события для логирования.
func (e *XpEvent) String() string {
	return fmt.Sprintf(
		"XpEvent{ID: %s, Learner: %s, Amount: %d, Source: %s}",
		e.ID, e.LearnerID, e.Amount.Int(), e.Source,
	)
}

// Clone создаёт копию события.
func (e *XpEvent) Clone() *XpEvent {
	if e == nil {
		return nil
	}

	clone := *e
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// Summary - агрегированное состояние журнала одного ученика.
type Summary struct {
	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// TotalXP - суммарный XP (сумма amount всех событий).
	TotalXP shared.XP

	// EventCount - количество событий в журнале.
	EventCount int

	// BySource - разбивка суммарного XP по источникам.
	BySource map[Source]int64

	// LastEventAt - время последнего события.
	LastEventAt time.Time
}

// Summarize вычисляет агрегат по списку событий одного ученика.
func Summarize(learnerID shared.LearnerID, events []*XpEvent) Summary {
	s := Summary{
		LearnerID: learnerID,
		BySource:  make(map[Source]int64),
	}

	for _, e := range events {
		if e == nil || e.LearnerID != learnerID {
			continue
		}
		s.TotalXP = s.TotalXP.Add(e.Amount)
		s.EventCount++
		s.BySource[e.Source] += int64(e.Amount.Int())
		if e.OccurredAt.After(s.LastEventAt) {
			s.LastEventAt = e.OccurredAt
		}
	}

	return s
}
