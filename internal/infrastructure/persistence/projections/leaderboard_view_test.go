package projections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func TestLeaderboardView_RanksByXPDescending(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	require.NoError(t, v.UpdateScore(ctx, "learner-a", 100))
	require.NoError(t, v.UpdateScore(ctx, "learner-b", 300))
	require.NoError(t, v.UpdateScore(ctx, "learner-c", 200))

	top, err := v.Top(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, shared.LearnerID("learner-b"), top[0].LearnerID)
	assert.Equal(t, shared.Rank(1), top[0].Rank)
	assert.Equal(t, shared.LearnerID("learner-c"), top[1].LearnerID)
	assert.Equal(t, shared.LearnerID("learner-a"), top[2].LearnerID)

	rank, err := v.GetRank(ctx, "learner-c")
	require.NoError(t, err)
	assert.Equal(t, shared.Rank(2), rank)
}

func TestLeaderboardView_TiesBrokenByLearnerID(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	require.NoError(t, v.UpdateScore(ctx, "learner-b", 100))
	require.NoError(t, v.UpdateScore(ctx, "learner-a", 100))

	top, err := v.Top(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, shared.LearnerID("learner-a"), top[0].LearnerID)
	assert.Equal(t, shared.LearnerID("learner-b"), top[1].LearnerID)
}

func TestLeaderboardView_UnrankedLearner(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	rank, err := v.GetRank(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, shared.Unranked, rank)

	around, err := v.Around(ctx, "ghost", 2)
	require.NoError(t, err)
	assert.Empty(t, around)
}

func TestLeaderboardView_TopPagination(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	for i, id := range []shared.LearnerID{"a", "b", "c", "d", "e"} {
		require.NoError(t, v.UpdateScore(ctx, id, shared.XP(500-i*100)))
	}

	page, err := v.Top(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, shared.LearnerID("c"), page[0].LearnerID)
	assert.Equal(t, shared.Rank(3), page[0].Rank)

	empty, err := v.Top(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLeaderboardView_Around(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	for i, id := range []shared.LearnerID{"a", "b", "c", "d", "e"} {
		require.NoError(t, v.UpdateScore(ctx, id, shared.XP(500-i*100)))
	}

	around, err := v.Around(ctx, "c", 1)
	require.NoError(t, err)
	require.Len(t, around, 3)
	assert.Equal(t, shared.LearnerID("b"), around[0].LearnerID)
	assert.Equal(t, shared.LearnerID("c"), around[1].LearnerID)
	assert.Equal(t, shared.LearnerID("d"), around[2].LearnerID)
}

func TestLeaderboardView_RemoveAndSnapshot(t *testing.T) {
	ctx := context.Background()
	v := NewLeaderboardView()

	require.NoError(t, v.UpdateScore(ctx, "a", 200))
	require.NoError(t, v.UpdateScore(ctx, "b", 100))
	require.NoError(t, v.Remove(ctx, "a"))

	count, err := v.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	snapshot, err := v.SnapshotRanks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[shared.LearnerID]shared.Rank{"b": 1}, snapshot)
}

func TestCountersView_SetGet(t *testing.T) {
	ctx := context.Background()
	v := NewCountersView(0)

	_, err := v.Get(ctx, "learner-1")
	assert.ErrorIs(t, err, ErrSnapshotMissing)

	counters := progression.Counters{
		LearnerID:        "learner-1",
		ModulesCompleted: 4,
		TotalXP:          250,
		Level:            3,
		FetchedAt:        time.Now().UTC(),
	}
	require.NoError(t, v.Set(ctx, "learner-1", counters))

	got, err := v.Get(ctx, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.ModulesCompleted)
	assert.Equal(t, 1, v.Len())
}

func TestCountersView_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	v := NewCountersView(time.Minute)

	stale := progression.Counters{
		LearnerID: "learner-1",
		FetchedAt: time.Now().Add(-2 * time.Minute),
	}
	require.NoError(t, v.Set(ctx, "learner-1", stale))

	_, err := v.Get(ctx, "learner-1")
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestCountersView_Invalidate(t *testing.T) {
	ctx := context.Background()
	v := NewCountersView(0)

	require.NoError(t, v.Set(ctx, "learner-1", progression.Counters{LearnerID: "learner-1", FetchedAt: time.Now()}))
	require.NoError(t, v.Invalidate(ctx, "learner-1"))

	_, err := v.Get(ctx, "learner-1")
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}
