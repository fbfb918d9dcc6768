// Package achievement содержит каталог достижений и вычисление прогресса
// ученика по ним. Разблокировка одноразовая: награда за достижение
// выдаётся не более одного раза на пару (ученик, достижение).
package achievement

import (
	"fmt"
	"strings"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// RequirementType определяет счётчик, к которому привязано достижение.
type RequirementType string

const (
	// RequirementModulesCompleted - завершено модулей.
	RequirementModulesCompleted RequirementType = "modules_completed"
	// RequirementCoursesCompleted - завершено курсов.
	RequirementCoursesCompleted RequirementType = "courses_completed"
	// RequirementStreakDays - серия активных дней.
	RequirementStreakDays RequirementType = "streak_days"
	// RequirementStudyGroupsJoined - учебных групп, к которым присоединился.
	RequirementStudyGroupsJoined RequirementType = "study_groups_joined"
)

// IsValid проверяет, что тип требования корректен.
func (r RequirementType) IsValid() bool {
	switch r {
	case RequirementModulesCompleted, RequirementCoursesCompleted,
		RequirementStreakDays, RequirementStudyGroupsJoined:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа требования.
func (r RequirementType) String() string {
	return string(r)
}

// CounterFor извлекает значение соответствующего счётчика из снимка.
// Возвращает ErrUnknownRequirement для неизвестного типа.
func (r RequirementType) CounterFor(counters progression.Counters) (int, error) {
	switch r {
	case RequirementModulesCompleted:
		return counters.ModulesCompleted, nil
	case RequirementCoursesCompleted:
		return counters.CoursesCompleted, nil
	case RequirementStreakDays:
		return counters.StreakDays, nil
	case RequirementStudyGroupsJoined:
		return counters.StudyGroupsJoined, nil
	default:
		return 0, shared.ErrUnknownRequirement
	}
}

// BadgeColor определяет цвет значка достижения.
type BadgeColor string

const (
	BadgeBronze BadgeColor = "bronze"
	BadgeSilver BadgeColor = "silver"
	BadgeGold   BadgeColor = "gold"
)

// IsValid проверяет корректность цвета значка.
func (b BadgeColor) IsValid() bool {
	switch b {
	case BadgeBronze, BadgeSilver, BadgeGold:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - запись каталога достижений. Каталог практически
// статичен: записи не меняют требования после публикации.
type Achievement struct {
	// ID - уникальный идентификатор достижения.
	ID string

	// Name - название.
	Name string

	// Description - описание.
	Description string

	// RequirementType - счётчик, к которому привязано достижение.
	RequirementType RequirementType

	// RequirementValue - пороговое значение счётчика.
	RequirementValue int

	// XPReward - награда в XP за разблокировку.
	XPReward shared.XPAmount

	// BadgeColor - цвет значка.
	BadgeColor BadgeColor
}

// NewAchievementParams содержит параметры записи каталога.
type NewAchievementParams struct {
	ID               string
	Name             string
	Description      string
	RequirementType  RequirementType
	RequirementValue int
	XPReward         int
	BadgeColor       BadgeColor
}

// NewAchievement создаёт запись каталога с валидацией.
func NewAchievement(params NewAchievementParams) (*Achievement, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, shared.NewDomainError("achievement", "NewAchievement", shared.ErrEmptyValue, "achievement id is required")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.NewDomainError("achievement", "NewAchievement", shared.ErrEmptyValue, "achievement name is required")
	}

	if !params.RequirementType.IsValid() {
		return nil, shared.ErrUnknownRequirement
	}

	if params.RequirementValue <= 0 {
		return nil, shared.NewDomainError("achievement", "NewAchievement", shared.ErrValueOutOfRange, "requirement value must be positive")
	}

	reward, err := shared.NewXPAmount(params.XPReward)
	if err != nil {
		return nil, err
	}

	badge := params.BadgeColor
	if badge == "" {
		badge = BadgeBronze
	}
	if !badge.IsValid() {
		return nil, shared.NewDomainError("achievement", "NewAchievement", shared.ErrInvalidInput, "invalid badge color")
	}

	return &Achievement{
		ID:               id,
		Name:             name,
		Description:      strings.TrimSpace(params.Description),
		RequirementType:  params.RequirementType,
		RequirementValue: params.RequirementValue,
		XPReward:         reward,
		BadgeColor:       badge,
	}, nil
}

// String возвращает строковое представление для логирования.
func (a *Achievement) String() string {
	return fmt.Sprintf(
		"Achievement{ID: %s, Requirement: %s >= %d, Reward: %d}",
		a.ID, a.RequirementType, a.RequirementValue, a.XPReward.Int(),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS (производное состояние на ученика)
// ══════════════════════════════════════════════════════════════════════════════

// Progress - прогресс ученика по одному достижению.
// Производное состояние: вычисляется из снимка счётчиков.
type Progress struct {
	// Achievement - запись каталога.
	Achievement *Achievement

	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// Current - прогресс, зажатый в [0, RequirementValue].
	Current int

	// IsCompleted - достигнут ли порог.
	IsCompleted bool
}

// Percent возвращает процент выполнения (0-100).
func (p Progress) Percent() int {
	if p.Achievement == nil || p.Achievement.RequirementValue <= 0 {
		return 0
	}
	return p.Current * 100 / p.Achievement.RequirementValue
}

// Remaining возвращает, сколько осталось до порога.
func (p Progress) Remaining() int {
	if p.Achievement == nil {
		return 0
	}
	remaining := p.Achievement.RequirementValue - p.Current
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ProgressFor вычисляет прогресс ученика по одному достижению.
// Прогресс никогда не превышает порог; завершённость монотонна,
// потому что счётчики в этом домене не убывают.
func ProgressFor(a *Achievement, learnerID shared.LearnerID, counters progression.Counters) (Progress, error) {
	counter, err := a.RequirementType.CounterFor(counters)
	if err != nil {
		return Progress{}, err
	}

	current := counter
	if current < 0 {
		current = 0
	}
	if current > a.RequirementValue {
		current = a.RequirementValue
	}

	return Progress{
		Achievement: a,
		LearnerID:   learnerID,
		Current:     current,
		IsCompleted: current >= a.RequirementValue,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Unlock - факт разблокировки достижения учеником.
// Хранится как признак "награда уже выдана": повторная оценка
// того же достижения не порождает новых событий XP.
type Unlock struct {
	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// AchievementID - идентификатор достижения.
	AchievementID string

	// RewardEventID - ID события XP, которым выдана награда.
	RewardEventID shared.EventID

	// UnlockedAt - время разблокировки.
	UnlockedAt time.Time
}

// NewUnlock создаёт запись о разблокировке.
func NewUnlock(learnerID shared.LearnerID, achievementID string, rewardEventID shared.EventID) *Unlock {
	return &Unlock{
		LearnerID:     learnerID,
		AchievementID: achievementID,
		RewardEventID: rewardEventID,
		UnlockedAt:    time.Now().UTC(),
	}
}
