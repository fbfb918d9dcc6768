package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	"github.com/redis/go-redis/v9"
)

// leaderboardKey is the sorted set holding the global ranking.
// Score = total XP, member = learner ID.
const leaderboardKey = PrefixLeaderboard + "xp"

// LeaderboardRepository implements leaderboard.Repository on a Redis
// sorted set. Ties are broken lexicographically by member, which keeps
// ranks stable between reads.
type LeaderboardRepository struct {
	cache *Cache
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(cache *Cache) *LeaderboardRepository {
	return &LeaderboardRepository{cache: cache}
}

// UpdateScore sets the learner's total XP in the ranking.
func (r *LeaderboardRepository) UpdateScore(ctx context.Context, learnerID shared.LearnerID, totalXP shared.XP) error {
	err := r.cache.Client().ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(totalXP.Int64()),
		Member: string(learnerID),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update leaderboard score: %w", err)
	}
	return nil
}

// GetRank returns the learner's position, 1 being first place.
// Returns shared.Unranked if the learner is not in the ranking.
func (r *LeaderboardRepository) GetRank(ctx context.Context, learnerID shared.LearnerID) (shared.Rank, error) {
	// ZRevRank is 0-based, highest score first
	rank, err := r.cache.Client().ZRevRank(ctx, leaderboardKey, string(learnerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Unranked, nil
		}
		return shared.Unranked, fmt.Errorf("failed to get rank: %w", err)
	}
	return shared.Rank(rank + 1), nil
}

// GetScore returns the learner's XP according to the ranking.
func (r *LeaderboardRepository) GetScore(ctx context.Context, learnerID shared.LearnerID) (shared.XP, error) {
	score, err := r.cache.Client().ZScore(ctx, leaderboardKey, string(learnerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get score: %w", err)
	}
	return shared.XP(int64(score)), nil
}

// Top returns a slice of the ranking in descending XP order starting at offset.
func (r *LeaderboardRepository) Top(ctx context.Context, offset, limit int) ([]leaderboard.ScoredLearner, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	start := int64(offset)
	stop := start + int64(limit) - 1

	return r.rangeWithScores(ctx, start, stop)
}

// Around returns the learners within rangeSize positions of the given one.
func (r *LeaderboardRepository) Around(ctx context.Context, learnerID shared.LearnerID, rangeSize int) ([]leaderboard.ScoredLearner, error) {
	rank, err := r.cache.Client().ZRevRank(ctx, leaderboardKey, string(learnerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to locate learner in ranking: %w", err)
	}

	start := rank - int64(rangeSize)
	if start < 0 {
		start = 0
	}
	stop := rank + int64(rangeSize)

	return r.rangeWithScores(ctx, start, stop)
}

// Count returns the number of learners in the ranking.
func (r *LeaderboardRepository) Count(ctx context.Context) (int, error) {
	count, err := r.cache.Client().ZCard(ctx, leaderboardKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	return int(count), nil
}

// Remove removes a learner from the ranking.
func (r *LeaderboardRepository) Remove(ctx context.Context, learnerID shared.LearnerID) error {
	if err := r.cache.Client().ZRem(ctx, leaderboardKey, string(learnerID)).Err(); err != nil {
		return fmt.Errorf("failed to remove from leaderboard: %w", err)
	}
	return nil
}

// SnapshotRanks returns the current rank of every learner in the ranking.
// Used to compute rank changes between recalculations.
func (r *LeaderboardRepository) SnapshotRanks(ctx context.Context) (map[shared.LearnerID]shared.Rank, error) {
	members, err := r.cache.Client().ZRevRangeWithScores(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot ranks: %w", err)
	}

	snapshot := make(map[shared.LearnerID]shared.Rank, len(members))
	for i, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		snapshot[shared.LearnerID(id)] = shared.Rank(i + 1)
	}

	return snapshot, nil
}

func (r *LeaderboardRepository) rangeWithScores(ctx context.Context, start, stop int64) ([]leaderboard.ScoredLearner, error) {
	members, err := r.cache.Client().ZRevRangeWithScores(ctx, leaderboardKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard range: %w", err)
	}

	scored := make([]leaderboard.ScoredLearner, 0, len(members))
	for i, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		scored = append(scored, leaderboard.ScoredLearner{
			LearnerID: shared.LearnerID(id),
			TotalXP:   shared.XP(int64(m.Score)),
			Rank:      shared.Rank(start + int64(i) + 1),
		})
	}

	return scored, nil
}
