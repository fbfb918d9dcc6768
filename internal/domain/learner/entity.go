// Package learner содержит доменную модель ученика маркетплейса.
// Ученик хранит кешированные агрегаты (XP, уровень, серия),
// источником истины для которых остаётся журнал XP и внешняя платформа.
package learner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущий статус ученика.
type Status string

const (
	// StatusActive - ученик активно учится.
	StatusActive Status = "active"
	// StatusInactive - ученик давно не проявлял активности.
	StatusInactive Status = "inactive"
	// StatusSuspended - ученик временно заблокирован.
	StatusSuspended Status = "suspended"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}

// CanEarnXP возвращает true, если ученику можно начислять XP.
func (s Status) CanEarnXP() bool {
	return s == StatusActive || s == StatusInactive
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")

	// ErrLearnerSuspended - ученик заблокирован, операция недоступна.
	ErrLearnerSuspended = errors.New("learner is suspended")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEARNER
// ══════════════════════════════════════════════════════════════════════════════

// Learner - центральная сущность движка прогрессии.
type Learner struct {
	// ID - внутренний уникальный идентификатор (UUID).
	ID shared.LearnerID

	// PlatformID - идентификатор ученика на платформе eduforge.
	PlatformID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalXP - кешированный суммарный XP (источник истины - журнал).
	TotalXP shared.XP

	// Level - кешированный уровень, выводится из TotalXP.
	Level int

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// LongestStreak - лучшая серия за всё время.
	LongestStreak int

	// LastActiveDate - дата последней учебной активности (начало дня UTC).
	LastActiveDate time.Time

	// Status - текущий статус.
	Status Status

	// LastSyncedAt - время последней синхронизации счётчиков с платформой.
	LastSyncedAt time.Time

	// JoinedAt - время регистрации в движке прогрессии.
	JoinedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewLearnerParams содержит параметры для создания ученика.
type NewLearnerParams struct {
	ID          shared.LearnerID
	PlatformID  string
	DisplayName string
	InitialXP   int64
}

// NewLearner создаёт нового ученика с валидацией всех полей.
func NewLearner(params NewLearnerParams) (*Learner, error) {
	id := params.ID
	if id.IsEmpty() {
		id = shared.GenerateLearnerID()
	}
	if !id.IsValid() {
		return nil, shared.ErrInvalidLearnerID
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	totalXP, err := shared.NewXP(params.InitialXP)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Learner{
		ID:           id,
		PlatformID:   strings.TrimSpace(params.PlatformID),
		DisplayName:  displayName,
		TotalXP:      totalXP,
		Level:        progression.LevelFor(totalXP).Level,
		Status:       StatusActive,
		LastSyncedAt: now,
		JoinedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// LevelState возвращает текущее состояние уровня.
func (l *Learner) LevelState() progression.LevelState {
	return progression.LevelFor(l.TotalXP)
}

// ApplyXP прибавляет начисление к кешированному итогу и пересчитывает
// уровень. Возвращает true, если уровень вырос.
func (l *Learner) ApplyXP(amount shared.XPAmount) (leveledUp bool) {
	oldLevel := l.Level

	l.TotalXP = l.TotalXP.Add(amount)
	l.Level = progression.LevelFor(l.TotalXP).Level
	l.UpdatedAt = time.Now().UTC()

	return l.Level > oldLevel
}

// SetTotalXP заменяет кешированный итог значением из журнала.
// Используется сверкой, когда кеш разошёлся с источником истины.
func (l *Learner) SetTotalXP(total shared.XP) {
	l.TotalXP = total
	l.Level = progression.LevelFor(total).Level
	l.UpdatedAt = time.Now().UTC()
}

// RecordActivity отмечает учебную активность и обновляет серию.
// Возвращает true, если день зачтён как новый активный день.
func (l *Learner) RecordActivity(at time.Time) bool {
	streak := &progression.Streak{
		LearnerID:      l.ID.String(),
		CurrentStreak:  l.CurrentStreak,
		LongestStreak:  l.LongestStreak,
		LastActiveDate: l.LastActiveDate,
	}

	grew := streak.RecordActivity(at)
	if !grew {
		return false
	}

	l.CurrentStreak = streak.CurrentStreak
	l.LongestStreak = streak.LongestStreak
	l.LastActiveDate = streak.LastActiveDate
	l.UpdatedAt = time.Now().UTC()

	// Возврат после перерыва возвращает активный статус
	if l.Status == StatusInactive {
		l.Status = StatusActive
	}

	return true
}

// LiveStreak возвращает живую серию на указанную дату.
func (l *Learner) LiveStreak(today time.Time) int {
	streak := &progression.Streak{
		CurrentStreak:  l.CurrentStreak,
		LastActiveDate: l.LastActiveDate,
	}
	return streak.LiveStreak(today)
}

// MarkInactive помечает ученика как неактивного.
func (l *Learner) MarkInactive() error {
	if l.Status == StatusSuspended {
		return ErrLearnerSuspended
	}

	l.Status = StatusInactive
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// Suspend блокирует ученика.
func (l *Learner) Suspend() {
	l.Status = StatusSuspended
	l.UpdatedAt = time.Now().UTC()
}

// Reinstate снимает блокировку.
func (l *Learner) Reinstate() error {
	if l.Status != StatusSuspended {
		return errors.New("can only reinstate suspended learners")
	}

	l.Status = StatusActive
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// SyncedWith обновляет время последней синхронизации.
func (l *Learner) SyncedWith(syncTime time.Time) {
	l.LastSyncedAt = syncTime
	l.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление ученика для логирования.
func (l *Learner) String() string {
	return fmt.Sprintf(
		"Learner{ID: %s, XP: %d, Level: %d, Streak: %d, Status: %s}",
		l.ID, l.TotalXP.Int64(), l.Level, l.CurrentStreak, l.Status,
	)
}

// Clone создаёт копию ученика.
func (l *Learner) Clone() *Learner {
	if l == nil {
		return nil
	}

	clone := *l
	return &clone
}
