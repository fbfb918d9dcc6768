// Package challenge содержит доменную модель временных челленджей.
// Челлендж живёт в окне daily или weekly; истечение окна вычисляется
// лениво при каждом чтении, фоновый таймер не требуется.
package challenge

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет период челленджа.
type Type string

const (
	// TypeDaily - дневной челлендж, истекает в полночь UTC.
	TypeDaily Type = "daily"
	// TypeWeekly - недельный челлендж, истекает в начале следующей недели.
	TypeWeekly Type = "weekly"
)

// IsValid проверяет корректность периода.
func (t Type) IsValid() bool {
	return t == TypeDaily || t == TypeWeekly
}

// String возвращает строковое представление периода.
func (t Type) String() string {
	return string(t)
}

// Difficulty определяет сложность челленджа.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid проверяет корректность сложности.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// Status - состояние челленджа в машине состояний.
// Active(inProgress) -> Active(claimable) -> Claimed; Active(*) -> Expired.
// Claimed и Expired терминальны.
type Status string

const (
	// StatusInProgress - активен, цель ещё не достигнута.
	StatusInProgress Status = "in_progress"
	// StatusClaimable - цель достигнута, награда не получена.
	StatusClaimable Status = "claimable"
	// StatusClaimed - награда получена (терминальное).
	StatusClaimed Status = "claimed"
	// StatusExpired - окно закрылось без получения награды (терминальное).
	StatusExpired Status = "expired"
)

// IsTerminal возвращает true для терминальных состояний.
func (s Status) IsTerminal() bool {
	return s == StatusClaimed || s == StatusExpired
}

// IsActive возвращает true, если челлендж ещё в активном множестве.
func (s Status) IsActive() bool {
	return s == StatusInProgress || s == StatusClaimable
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge - временная мини-цель ученика с собственным счётчиком прогресса.
type Challenge struct {
	// ID - уникальный идентификатор челленджа.
	ID string

	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// Type - период (daily/weekly).
	Type Type

	// Title - название.
	Title string

	// Description - описание.
	Description string

	// Difficulty - сложность.
	Difficulty Difficulty

	// XPReward - награда в XP за выполнение.
	XPReward shared.XPAmount

	// Progress - текущий прогресс, всегда в [0, MaxProgress].
	Progress int

	// MaxProgress - целевое значение счётчика.
	MaxProgress int

	// IssuedAt - начало окна.
	IssuedAt time.Time

	// ExpiresAt - конец окна.
	ExpiresAt time.Time

	// ClaimedAt - время получения награды (нулевое, пока не получена).
	ClaimedAt time.Time
}

// NewChallengeParams содержит параметры создания челленджа.
type NewChallengeParams struct {
	ID          string
	LearnerID   shared.LearnerID
	Type        Type
	Title       string
	Description string
	Difficulty  Difficulty
	XPReward    int
	MaxProgress int
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// NewChallenge создаёт челлендж с валидацией всех полей.
func NewChallenge(params NewChallengeParams) (*Challenge, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}

	if !params.LearnerID.IsValid() {
		return nil, shared.ErrInvalidLearnerID
	}

	if !params.Type.IsValid() {
		return nil, shared.ErrInvalidChallengeType
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrEmptyValue, "challenge title is required")
	}

	difficulty := params.Difficulty
	if difficulty == "" {
		difficulty = DifficultyEasy
	}
	if !difficulty.IsValid() {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrInvalidInput, "invalid difficulty")
	}

	reward, err := shared.NewXPAmount(params.XPReward)
	if err != nil {
		return nil, err
	}

	if params.MaxProgress <= 0 {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrValueOutOfRange, "max progress must be positive")
	}

	if params.IssuedAt.IsZero() || params.ExpiresAt.IsZero() || !params.ExpiresAt.After(params.IssuedAt) {
		return nil, shared.NewDomainError("challenge", "NewChallenge", shared.ErrInvalidInput, "challenge window is invalid")
	}

	return &Challenge{
		ID:          id,
		LearnerID:   params.LearnerID,
		Type:        params.Type,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Difficulty:  difficulty,
		XPReward:    reward,
		Progress:    0,
		MaxProgress: params.MaxProgress,
		IssuedAt:    params.IssuedAt.UTC(),
		ExpiresAt:   params.ExpiresAt.UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// IsCompleted возвращает true, если цель достигнута.
func (c *Challenge) IsCompleted() bool {
	return c.Progress >= c.MaxProgress
}

// IsClaimed возвращает true, если награда уже получена.
func (c *Challenge) IsClaimed() bool {
	return !c.ClaimedAt.IsZero()
}

// IsExpired проверяет, закрылось ли окно к указанному моменту.
// Полученный челлендж не считается истёкшим.
func (c *Challenge) IsExpired(now time.Time) bool {
	return !c.IsClaimed() && now.After(c.ExpiresAt)
}

// StatusAt возвращает состояние челленджа на указанный момент.
// Истечение вычисляется лениво, сохранённого поля статуса нет.
func (c *Challenge) StatusAt(now time.Time) Status {
	if c.IsClaimed() {
		return StatusClaimed
	}
	if now.After(c.ExpiresAt) {
		return StatusExpired
	}
	if c.IsCompleted() {
		return StatusClaimable
	}
	return StatusInProgress
}

// Advance увеличивает прогресс на incrementBy, зажимая его в MaxProgress.
// Попытка продвинуть истёкший или полученный челлендж - no-op, не ошибка.
// Возвращает true, если прогресс изменился.
func (c *Challenge) Advance(incrementBy int, now time.Time) bool {
	if incrementBy <= 0 {
		return false
	}
	if !c.StatusAt(now).IsActive() {
		return false
	}

	before := c.Progress
	c.Progress += incrementBy
	if c.Progress > c.MaxProgress {
		c.Progress = c.MaxProgress
	}

	return c.Progress != before
}

// Claim отмечает награду полученной.
// Возвращает ErrChallengeExpired для истёкшего окна, ErrChallengeClaimed
// для повторной попытки и ErrChallengeNotClaimable, пока цель не достигнута.
// Все три ошибки удовлетворяют shared.IsNotClaimable.
func (c *Challenge) Claim(now time.Time) error {
	switch c.StatusAt(now) {
	case StatusClaimed:
		return shared.ErrChallengeClaimed
	case StatusExpired:
		return shared.ErrChallengeExpired
	case StatusInProgress:
		return shared.ErrChallengeNotClaimable
	}

	c.ClaimedAt = now.UTC()
	return nil
}

// TimeLeft возвращает, сколько времени осталось до конца окна.
func (c *Challenge) TimeLeft(now time.Time) time.Duration {
	left := c.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ProgressPercent возвращает прогресс в процентах (0-100).
func (c *Challenge) ProgressPercent() int {
	if c.MaxProgress <= 0 {
		return 0
	}
	return c.Progress * 100 / c.MaxProgress
}

// String возвращает строковое представление для логирования.
func (c *Challenge) String() string {
	return fmt.Sprintf(
		"Challenge{ID: %s, Type: %s, Progress: %d/%d, Reward: %d}",
		c.ID, c.Type, c.Progress, c.MaxProgress, c.XPReward.Int(),
	)
}

// Clone создаёт копию челленджа.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}
