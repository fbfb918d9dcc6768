// Package leaderboard содержит доменную модель рейтинга учеников.
// Рейтинг строится по суммарному XP; ученики с равным XP делят ранг.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// RankChange представляет изменение позиции в рейтинге.
// Положительное значение = подъём, отрицательное = падение.
type RankChange int

// RankDirection определяет направление изменения ранга.
type RankDirection string

const (
	// RankDirectionUp - ученик поднялся в рейтинге.
	RankDirectionUp RankDirection = "up"
	// RankDirectionDown - ученик опустился в рейтинге.
	RankDirectionDown RankDirection = "down"
	// RankDirectionStable - позиция не изменилась.
	RankDirectionStable RankDirection = "stable"
)

// Direction возвращает направление изменения.
func (rc RankChange) Direction() RankDirection {
	switch {
	case rc > 0:
		return RankDirectionUp
	case rc < 0:
		return RankDirectionDown
	default:
		return RankDirectionStable
	}
}

// Abs возвращает абсолютное значение изменения.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// String возвращает строковое представление изменения.
func (rc RankChange) String() string {
	switch {
	case rc > 0:
		return fmt.Sprintf("+%d", int(rc))
	case rc < 0:
		return fmt.Sprintf("%d", int(rc))
	default:
		return "0"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись в рейтинге.
type Entry struct {
	// Rank - текущая позиция в рейтинге.
	Rank shared.Rank

	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalXP - суммарный XP.
	TotalXP shared.XP

	// Level - уровень ученика.
	Level int

	// StreakDays - текущая серия активных дней.
	StreakDays int

	// RankChange - изменение позиции с прошлого пересчёта.
	RankChange RankChange

	// UpdatedAt - время последнего обновления XP.
	UpdatedAt time.Time
}

// NewEntry создаёт запись рейтинга с валидацией.
func NewEntry(rank shared.Rank, learnerID shared.LearnerID, displayName string, totalXP shared.XP, level int) (*Entry, error) {
	if !rank.IsValid() {
		return nil, ErrInvalidRank
	}
	if learnerID.IsEmpty() {
		return nil, shared.ErrInvalidLearnerID
	}
	if !totalXP.IsValid() {
		return nil, ErrInvalidXP
	}

	return &Entry{
		Rank:        rank,
		LearnerID:   learnerID,
		DisplayName: displayName,
		TotalXP:     totalXP,
		Level:       level,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// HasImproved возвращает true, если ученик поднялся в рейтинге.
func (e *Entry) HasImproved() bool {
	return e.RankChange > 0
}

// XPToNext возвращает, сколько XP нужно, чтобы обойти следующую позицию.
func (e *Entry) XPToNext(nextXP shared.XP) shared.XP {
	if nextXP <= e.TotalXP {
		return 0
	}
	return nextXP - e.TotalXP + 1
}

// Clone создаёт копию записи.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry{Rank: %d, Learner: %s, XP: %d, Change: %s}",
		e.Rank.Int(), e.LearnerID, e.TotalXP.Int64(), e.RankChange.String(),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking представляет полный отсортированный список учеников.
type Ranking struct {
	entries []*Entry
	byID    map[shared.LearnerID]*Entry
}

// NewRanking создаёт пустой Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.LearnerID]*Entry),
	}
}

// Add добавляет запись в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if _, exists := r.byID[entry.LearnerID]; exists {
		return ErrDuplicateLearner
	}

	r.entries = append(r.entries, entry)
	r.byID[entry.LearnerID] = entry
	return nil
}

// SortByXP сортирует записи по XP (по убыванию) и присваивает ранги.
// Равный XP даёт одинаковый ранг.
func (r *Ranking) SortByXP() {
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].TotalXP != r.entries[j].TotalXP {
			return r.entries[i].TotalXP > r.entries[j].TotalXP
		}
		return r.entries[i].DisplayName < r.entries[j].DisplayName
	})

	for i, entry := range r.entries {
		if i > 0 && entry.TotalXP == r.entries[i-1].TotalXP {
			entry.Rank = r.entries[i-1].Rank
		} else {
			entry.Rank = shared.Rank(i + 1)
		}
	}
}

// GetByID возвращает запись по ID ученика.
func (r *Ranking) GetByID(learnerID shared.LearnerID) *Entry {
	return r.byID[learnerID]
}

// Top возвращает топ-N записей.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]*Entry, n)
	copy(result, r.entries[:n])
	return result
}

// Slice возвращает срез записей [from:to).
func (r *Ranking) Slice(from, to int) []*Entry {
	if from < 0 {
		from = 0
	}
	if to > len(r.entries) {
		to = len(r.entries)
	}
	if from >= to {
		return nil
	}
	result := make([]*Entry, to-from)
	copy(result, r.entries[from:to])
	return result
}

// Neighbors возвращает соседей ученика по рангу (±rangeSize),
// включая самого ученика.
func (r *Ranking) Neighbors(learnerID shared.LearnerID, rangeSize int) []*Entry {
	if r.GetByID(learnerID) == nil {
		return nil
	}

	var idx int
	for i, e := range r.entries {
		if e.LearnerID == learnerID {
			idx = i
			break
		}
	}

	return r.Slice(idx-rangeSize, idx+rangeSize+1)
}

// ApplyPrevious вычисляет RankChange относительно прошлого пересчёта.
func (r *Ranking) ApplyPrevious(previous map[shared.LearnerID]shared.Rank) {
	for _, entry := range r.entries {
		oldRank, ok := previous[entry.LearnerID]
		if !ok || oldRank.IsUnranked() {
			entry.RankChange = 0
			continue
		}
		entry.RankChange = RankChange(oldRank.Int() - entry.Rank.Int())
	}
}

// Count возвращает общее количество записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All возвращает все записи.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidRank - невалидный ранг (должен быть положительным).
	ErrInvalidRank = errors.New("invalid rank: must be positive")

	// ErrInvalidXP - невалидное значение XP.
	ErrInvalidXP = errors.New("invalid xp: must be non-negative")

	// ErrNilEntry - попытка добавить nil запись.
	ErrNilEntry = errors.New("cannot add nil entry")

	// ErrDuplicateLearner - ученик уже есть в рейтинге.
	ErrDuplicateLearner = errors.New("learner already exists in ranking")

	// ErrEmptyLeaderboard - рейтинг пуст.
	ErrEmptyLeaderboard = errors.New("leaderboard is empty")
)
