package platform

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse is the standard envelope returned by the platform API.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	TotalCount int `json:"total_count"`
}

// APIErrorDTO is the error body the platform returns for 4xx/5xx.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// LearnerProfileDTO represents a learner account on the platform.
type LearnerProfileDTO struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email,omitempty"`
	IsActive       bool      `json:"is_active"`
	EnrolledAt     time.Time `json:"enrolled_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// LearnerCountersDTO is the learner's counter snapshot. The platform is
// the source of truth for completion counts; XP and level here are the
// platform's own reckoning and may lag behind the hub's ledger.
type LearnerCountersDTO struct {
	LearnerID         string    `json:"learner_id"`
	CoursesCompleted  int       `json:"courses_completed"`
	ModulesCompleted  int       `json:"modules_completed"`
	StreakDays        int       `json:"streak_days"`
	StudyGroupsJoined int       `json:"study_groups_joined"`
	TotalXP           int64     `json:"total_xp"`
	Level             int       `json:"level"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LearnersRequestDTO contains filters for listing learners.
type LearnersRequestDTO struct {
	IsActive      *bool
	ModifiedSince *time.Time
	Search        string
	Page          int
	PerPage       int
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG AND CHALLENGE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AchievementDTO is a catalog entry as published by the platform.
type AchievementDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	RequirementType  string `json:"requirement_type"`
	RequirementValue int    `json:"requirement_value"`
	XPReward         int    `json:"xp_reward"`
	BadgeColor       string `json:"badge_color"`
}

// ChallengeDTO is a platform-issued challenge for a learner.
type ChallengeDTO struct {
	ID          string    `json:"id"`
	LearnerID   string    `json:"learner_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"`
	XPReward    int       `json:"xp_reward"`
	Progress    int       `json:"progress"`
	MaxProgress int       `json:"max_progress"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE-BACK DTOs
// ══════════════════════════════════════════════════════════════════════════════

// XpEventDTO is the wire form of a ledger event pushed back to the
// platform. The platform deduplicates by event_id, so redelivery of the
// same event is harmless.
type XpEventDTO struct {
	EventID    string    `json:"event_id"`
	LearnerID  string    `json:"learner_id"`
	Amount     int       `json:"amount"`
	Source     string    `json:"source"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LevelUpdateDTO reports the hub's recomputed level to the platform.
type LevelUpdateDTO struct {
	LearnerID string `json:"learner_id"`
	Level     int    `json:"level"`
	TotalXP   int64  `json:"total_xp"`
}
