package leaderboard

import (
	"context"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Рейтинг живёт в Redis sorted set: score = TotalXP, member = LearnerID.
// Реализация находится в infrastructure/persistence/redis.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над рейтингом учеников.
type Repository interface {
	// UpdateScore устанавливает суммарный XP ученика в рейтинге.
	UpdateScore(ctx context.Context, learnerID shared.LearnerID, totalXP shared.XP) error

	// GetRank возвращает позицию ученика (1 = первое место).
	// Возвращает shared.Unranked, если ученика нет в рейтинге.
	GetRank(ctx context.Context, learnerID shared.LearnerID) (shared.Rank, error)

	// GetScore возвращает XP ученика по данным рейтинга.
	GetScore(ctx context.Context, learnerID shared.LearnerID) (shared.XP, error)

	// Top возвращает срез рейтинга по убыванию XP, начиная с offset.
	Top(ctx context.Context, offset, limit int) ([]ScoredLearner, error)

	// Around возвращает учеников вокруг указанного (±rangeSize позиций).
	Around(ctx context.Context, learnerID shared.LearnerID, rangeSize int) ([]ScoredLearner, error)

	// Count возвращает количество учеников в рейтинге.
	Count(ctx context.Context) (int, error)

	// Remove удаляет ученика из рейтинга.
	Remove(ctx context.Context, learnerID shared.LearnerID) error

	// SnapshotRanks возвращает текущие ранги всех учеников.
	// Используется для вычисления RankChange между пересчётами.
	SnapshotRanks(ctx context.Context) (map[shared.LearnerID]shared.Rank, error)
}

// ScoredLearner - пара (ученик, XP) из рейтинга.
type ScoredLearner struct {
	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// TotalXP - суммарный XP по данным рейтинга.
	TotalXP shared.XP

	// Rank - позиция в рейтинге.
	Rank shared.Rank
}
