// Package service contains small adapters that bridge application layer
// ports to infrastructure implementations.
package service

import (
	"context"

	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// RankingService adapts the leaderboard repository to the application
// layer's RankingService and ScoreUpdater ports, which speak primitive
// types rather than domain ones.
type RankingService struct {
	repo leaderboard.Repository
}

// NewRankingService creates a new RankingService.
func NewRankingService(repo leaderboard.Repository) *RankingService {
	return &RankingService{repo: repo}
}

// GetLearnerRank returns the current 1-based rank of a learner,
// or 0 when the learner is not ranked yet.
func (s *RankingService) GetLearnerRank(ctx context.Context, learnerID string) (int, error) {
	rank, err := s.repo.GetRank(ctx, shared.LearnerID(learnerID))
	if err != nil {
		return 0, err
	}
	return int(rank), nil
}

// UpdateScore sets the learner's leaderboard score to their total XP.
func (s *RankingService) UpdateScore(ctx context.Context, learnerID string, totalXP int64) error {
	return s.repo.UpdateScore(ctx, shared.LearnerID(learnerID), shared.XP(totalXP))
}
