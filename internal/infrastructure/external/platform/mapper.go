package platform

import (
	"time"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// Mapper converts platform DTOs into domain types.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// CountersFromDTO converts a counter snapshot into the domain form.
// Negative counters from the platform are clamped to zero; they show up
// occasionally after account merges on the platform side.
func (m *Mapper) CountersFromDTO(dto *LearnerCountersDTO, learnerID shared.LearnerID) progression.Counters {
	fetchedAt := time.Now().UTC()

	return progression.Counters{
		LearnerID:         learnerID,
		CoursesCompleted:  clampNonNegative(dto.CoursesCompleted),
		ModulesCompleted:  clampNonNegative(dto.ModulesCompleted),
		StreakDays:        clampNonNegative(dto.StreakDays),
		StudyGroupsJoined: clampNonNegative(dto.StudyGroupsJoined),
		TotalXP:           shared.XP(max64(dto.TotalXP, 0)),
		Level:             clampLevel(dto.Level),
		FetchedAt:         fetchedAt,
	}
}

// AchievementFromDTO converts a catalog entry into the domain form.
// Entries that fail domain validation are rejected, not silently fixed:
// a catalog with a broken entry should be noticed, not half-imported.
func (m *Mapper) AchievementFromDTO(dto *AchievementDTO) (*achievement.Achievement, error) {
	return achievement.NewAchievement(achievement.NewAchievementParams{
		ID:               dto.ID,
		Name:             dto.Name,
		Description:      dto.Description,
		RequirementType:  achievement.RequirementType(dto.RequirementType),
		RequirementValue: dto.RequirementValue,
		XPReward:         dto.XPReward,
		BadgeColor:       achievement.BadgeColor(dto.BadgeColor),
	})
}

// ChallengeFromDTO converts a platform-issued challenge into the domain
// form. Progress already made on the platform side is carried over.
func (m *Mapper) ChallengeFromDTO(dto *ChallengeDTO) (*challenge.Challenge, error) {
	c, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:          dto.ID,
		LearnerID:   shared.LearnerID(dto.LearnerID),
		Type:        challenge.Type(dto.Type),
		Title:       dto.Title,
		Description: dto.Description,
		Difficulty:  challenge.Difficulty(dto.Difficulty),
		XPReward:    dto.XPReward,
		MaxProgress: dto.MaxProgress,
		IssuedAt:    dto.IssuedAt,
		ExpiresAt:   dto.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	if dto.Progress > 0 {
		p := clampNonNegative(dto.Progress)
		if p > c.MaxProgress {
			p = c.MaxProgress
		}
		c.Progress = p
	}

	return c, nil
}

// XpEventToDTO converts a ledger event into the write-back wire form.
func (m *Mapper) XpEventToDTO(e *ledger.XpEvent) XpEventDTO {
	return XpEventDTO{
		EventID:    string(e.ID),
		LearnerID:  string(e.LearnerID),
		Amount:     e.Amount.Int(),
		Source:     string(e.Source),
		Reference:  e.Reference,
		OccurredAt: e.OccurredAt,
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampLevel(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
