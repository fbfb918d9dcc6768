package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N учеников по суммарному XP с возможностью показать
// окрестность конкретного ученика.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int

	// AroundLearnerID - если задан, вернуть окрестность этого ученика
	// вместо топа.
	AroundLearnerID string

	// Radius - размер окрестности в каждую сторону (по умолчанию 2).
	Radius int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	if q.Radius <= 0 {
		q.Radius = 2
	}
	return nil
}

// LeaderboardEntryDTO - DTO для записи лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1, с разделением мест).
	Rank int `json:"rank"`

	// LearnerID - внутренний ID ученика.
	LearnerID string `json:"learner_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// TotalXP - суммарный XP.
	TotalXP int64 `json:"total_xp"`

	// Level - уровень ученика.
	Level int `json:"level"`

	// StreakDays - живая серия активных дней.
	StreakDays int `json:"streak_days"`

	// IsRequested - это ученик, вокруг которого строилась окрестность.
	IsRequested bool `json:"is_requested,omitempty"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество учеников в рейтинге.
	TotalCount int `json:"total_count"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	leaderboardRepo leaderboard.Repository
	learnerRepo     learner.Repository
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(
	leaderboardRepo leaderboard.Repository,
	learnerRepo learner.Repository,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		leaderboardRepo: leaderboardRepo,
		learnerRepo:     learnerRepo,
	}
}

// Handle executes the get leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	now := time.Now().UTC()

	var scored []leaderboard.ScoredLearner
	var err error
	if q.AroundLearnerID != "" {
		lid, idErr := shared.NewLearnerID(q.AroundLearnerID)
		if idErr != nil {
			return nil, fmt.Errorf("get_leaderboard: %w", idErr)
		}
		scored, err = h.leaderboardRepo.Around(ctx, lid, q.Radius)
	} else {
		scored, err = h.leaderboardRepo.Top(ctx, q.Offset, q.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to read ranking: %w", err)
	}

	total, err := h.leaderboardRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to count ranking: %w", err)
	}

	// Hydrate display data from the learner store in one batch.
	ids := make([]shared.LearnerID, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.LearnerID)
	}
	learners, err := h.learnerRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to load learners: %w", err)
	}
	byID := make(map[shared.LearnerID]*learner.Learner, len(learners))
	for _, l := range learners {
		byID[l.ID] = l
	}

	entries := make([]LeaderboardEntryDTO, 0, len(scored))
	for _, s := range scored {
		dto := LeaderboardEntryDTO{
			Rank:        int(s.Rank),
			LearnerID:   string(s.LearnerID),
			TotalXP:     s.TotalXP.Int64(),
			IsRequested: q.AroundLearnerID != "" && string(s.LearnerID) == q.AroundLearnerID,
		}
		if l, ok := byID[s.LearnerID]; ok {
			dto.DisplayName = l.DisplayName
			dto.Level = l.Level
			dto.StreakDays = l.LiveStreak(now)
		}
		entries = append(entries, dto)
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		TotalCount:  total,
		GeneratedAt: now,
	}, nil
}
