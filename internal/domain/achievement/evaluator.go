package achievement

import (
	"sort"

	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluation - результат оценки каталога для одного ученика.
type Evaluation struct {
	// LearnerID - идентификатор ученика.
	LearnerID shared.LearnerID

	// All - прогресс по каждому достижению каталога.
	All []Progress

	// NewlyCompleted - достижения, завершённые этой оценкой
	// и ещё не отмеченные как разблокированные. Именно для них
	// нужно выдать награду, ровно один раз.
	NewlyCompleted []*Achievement
}

// CompletedCount возвращает количество завершённых достижений.
func (e Evaluation) CompletedCount() int {
	count := 0
	for _, p := range e.All {
		if p.IsCompleted {
			count++
		}
	}
	return count
}

// Evaluator вычисляет прогресс ученика по каталогу достижений.
// Оценка чистая: множество уже разблокированных достижений
// передаётся снаружи, запись наград выполняет вызывающий слой.
type Evaluator struct{}

// NewEvaluator создаёт оценщик достижений.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate вычисляет прогресс по всем достижениям каталога.
// unlocked содержит ID достижений, награда за которые уже выдана:
// они никогда не попадают в NewlyCompleted, сколько бы раз
// оценка ни повторялась.
func (ev *Evaluator) Evaluate(
	learnerID shared.LearnerID,
	counters progression.Counters,
	catalog []*Achievement,
	unlocked map[string]bool,
) (Evaluation, error) {
	result := Evaluation{
		LearnerID: learnerID,
		All:       make([]Progress, 0, len(catalog)),
	}

	for _, a := range catalog {
		if a == nil {
			continue
		}

		progress, err := ProgressFor(a, learnerID, counters)
		if err != nil {
			return Evaluation{}, err
		}

		result.All = append(result.All, progress)

		if progress.IsCompleted && !unlocked[a.ID] {
			result.NewlyCompleted = append(result.NewlyCompleted, a)
		}
	}

	// Стабильный порядок выдачи наград
	sort.Slice(result.NewlyCompleted, func(i, j int) bool {
		return result.NewlyCompleted[i].ID < result.NewlyCompleted[j].ID
	})

	return result, nil
}
