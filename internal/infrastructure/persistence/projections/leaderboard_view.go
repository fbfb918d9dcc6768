// Package projections implements in-memory read models. They back the
// Redis-based implementations in single-instance deployments where Redis
// is disabled, and double as fast fakes in tests.
package projections

import (
	"context"
	"sort"
	"sync"

	"github.com/eduforge/progression-hub/internal/domain/leaderboard"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD VIEW
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardView implements leaderboard.Repository on an in-process map.
// Ordering matches the Redis sorted set: descending XP, ties broken by
// learner ID so ranks stay stable between reads.
type LeaderboardView struct {
	mu     sync.RWMutex
	scores map[shared.LearnerID]shared.XP
}

// NewLeaderboardView creates an empty in-memory leaderboard.
func NewLeaderboardView() *LeaderboardView {
	return &LeaderboardView{
		scores: make(map[shared.LearnerID]shared.XP),
	}
}

// UpdateScore sets the learner's total XP in the ranking.
func (v *LeaderboardView) UpdateScore(ctx context.Context, learnerID shared.LearnerID, totalXP shared.XP) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scores[learnerID] = totalXP
	return nil
}

// GetRank returns the learner's position, 1 being first place.
// Returns shared.Unranked if the learner is not in the ranking.
func (v *LeaderboardView) GetRank(ctx context.Context, learnerID shared.LearnerID) (shared.Rank, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, ok := v.scores[learnerID]; !ok {
		return shared.Unranked, nil
	}

	for i, s := range v.sortedLocked() {
		if s.LearnerID == learnerID {
			return shared.Rank(i + 1), nil
		}
	}
	return shared.Unranked, nil
}

// GetScore returns the learner's XP according to the ranking.
func (v *LeaderboardView) GetScore(ctx context.Context, learnerID shared.LearnerID) (shared.XP, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scores[learnerID], nil
}

// Top returns a slice of the ranking in descending XP order starting at offset.
func (v *LeaderboardView) Top(ctx context.Context, offset, limit int) ([]leaderboard.ScoredLearner, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	all := v.sortedLocked()
	if offset >= len(all) {
		return nil, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return append([]leaderboard.ScoredLearner(nil), all[offset:end]...), nil
}

// Around returns the learners within rangeSize positions of the given one.
func (v *LeaderboardView) Around(ctx context.Context, learnerID shared.LearnerID, rangeSize int) ([]leaderboard.ScoredLearner, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	all := v.sortedLocked()
	center := -1
	for i, s := range all {
		if s.LearnerID == learnerID {
			center = i
			break
		}
	}
	if center < 0 {
		return nil, nil
	}

	start := center - rangeSize
	if start < 0 {
		start = 0
	}
	end := center + rangeSize + 1
	if end > len(all) {
		end = len(all)
	}

	return append([]leaderboard.ScoredLearner(nil), all[start:end]...), nil
}

// Count returns the number of learners in the ranking.
func (v *LeaderboardView) Count(ctx context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.scores), nil
}

// Remove removes a learner from the ranking.
func (v *LeaderboardView) Remove(ctx context.Context, learnerID shared.LearnerID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.scores, learnerID)
	return nil
}

// SnapshotRanks returns the current rank of every learner in the ranking.
func (v *LeaderboardView) SnapshotRanks(ctx context.Context) (map[shared.LearnerID]shared.Rank, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	all := v.sortedLocked()
	snapshot := make(map[shared.LearnerID]shared.Rank, len(all))
	for i, s := range all {
		snapshot[s.LearnerID] = shared.Rank(i + 1)
	}
	return snapshot, nil
}

// sortedLocked returns the full ranking in order. Callers must hold at
// least a read lock.
func (v *LeaderboardView) sortedLocked() []leaderboard.ScoredLearner {
	all := make([]leaderboard.ScoredLearner, 0, len(v.scores))
	for id, xp := range v.scores {
		all = append(all, leaderboard.ScoredLearner{LearnerID: id, TotalXP: xp})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalXP != all[j].TotalXP {
			return all[i].TotalXP > all[j].TotalXP
		}
		return all[i].LearnerID < all[j].LearnerID
	})

	for i := range all {
		all[i].Rank = shared.Rank(i + 1)
	}
	return all
}
