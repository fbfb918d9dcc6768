package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

func addEntry(t *testing.T, r *Ranking, name string, xp int64) shared.LearnerID {
	t.Helper()

	id := shared.GenerateLearnerID()
	entry, err := NewEntry(shared.Rank(1), id, name, shared.XP(xp), 1)
	require.NoError(t, err)
	require.NoError(t, r.Add(entry))
	return id
}

func TestRankingSortByXP(t *testing.T) {
	r := NewRanking()
	aID := addEntry(t, r, "Aliya", 300)
	bID := addEntry(t, r, "Bekzat", 500)
	cID := addEntry(t, r, "Camila", 300)
	dID := addEntry(t, r, "Dias", 100)

	r.SortByXP()

	assert.Equal(t, 1, r.GetByID(bID).Rank.Int())
	// Равный XP делит ранг
	assert.Equal(t, 2, r.GetByID(aID).Rank.Int())
	assert.Equal(t, 2, r.GetByID(cID).Rank.Int())
	// Следующий ранг учитывает пропуск
	assert.Equal(t, 4, r.GetByID(dID).Rank.Int())
}

func TestRankingRejectsDuplicates(t *testing.T) {
	r := NewRanking()
	id := addEntry(t, r, "Aliya", 300)

	dup, err := NewEntry(shared.Rank(1), id, "Aliya", shared.XP(300), 1)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Add(dup), ErrDuplicateLearner)
}

func TestRankingTopAndNeighbors(t *testing.T) {
	r := NewRanking()
	ids := make([]shared.LearnerID, 0, 5)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, addEntry(t, r, name, int64(500-i*100)))
	}
	r.SortByXP()

	top := r.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, ids[0], top[0].LearnerID)

	neighbors := r.Neighbors(ids[2], 1)
	require.Len(t, neighbors, 3)
	assert.Equal(t, ids[1], neighbors[0].LearnerID)
	assert.Equal(t, ids[2], neighbors[1].LearnerID)
	assert.Equal(t, ids[3], neighbors[2].LearnerID)

	assert.Nil(t, r.Neighbors(shared.GenerateLearnerID(), 1))
}

func TestRankingApplyPrevious(t *testing.T) {
	r := NewRanking()
	aID := addEntry(t, r, "Aliya", 600)
	bID := addEntry(t, r, "Bekzat", 400)
	r.SortByXP()

	previous := map[shared.LearnerID]shared.Rank{
		aID: shared.Rank(3),
		bID: shared.Rank(1),
	}
	r.ApplyPrevious(previous)

	assert.Equal(t, RankChange(2), r.GetByID(aID).RankChange)
	assert.True(t, r.GetByID(aID).HasImproved())
	assert.Equal(t, RankDirectionUp, r.GetByID(aID).RankChange.Direction())

	assert.Equal(t, RankChange(-1), r.GetByID(bID).RankChange)
	assert.Equal(t, RankDirectionDown, r.GetByID(bID).RankChange.Direction())
}

func TestEntryXPToNext(t *testing.T) {
	entry, err := NewEntry(shared.Rank(2), shared.GenerateLearnerID(), "x", shared.XP(300), 4)
	require.NoError(t, err)

	assert.Equal(t, shared.XP(201), entry.XPToNext(shared.XP(500)))
	assert.Equal(t, shared.XP(0), entry.XPToNext(shared.XP(300)))
}
