package ledger

import (
	"context"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем журнала.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над append-only журналом XP.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Append & Read
	// ─────────────────────────────────────────────────────────────────────────

	// Append записывает событие в журнал.
	// Запись идемпотентна по ID события: повторная доставка того же
	// события возвращает ErrDuplicateEvent, журнал не меняется.
	Append(ctx context.Context, event *XpEvent) error

	// GetByID возвращает событие по идентификатору.
	// Возвращает ErrEventNotFound, если событие не найдено.
	GetByID(ctx context.Context, id shared.EventID) (*XpEvent, error)

	// ListByLearner возвращает события ученика (от новых к старым).
	ListByLearner(ctx context.Context, learnerID shared.LearnerID, opts ListOptions) ([]*XpEvent, error)

	// ListByLearnerSince возвращает события ученика начиная с указанного времени.
	ListByLearnerSince(ctx context.Context, learnerID shared.LearnerID, since time.Time) ([]*XpEvent, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregates
	// ─────────────────────────────────────────────────────────────────────────

	// TotalXP возвращает суммарный XP ученика (сумма amount всех событий).
	TotalXP(ctx context.Context, learnerID shared.LearnerID) (shared.XP, error)

	// Summarize возвращает агрегированное состояние журнала ученика.
	Summarize(ctx context.Context, learnerID shared.LearnerID) (Summary, error)

	// CountBySource возвращает количество событий ученика по источнику.
	CountBySource(ctx context.Context, learnerID shared.LearnerID, source Source) (int, error)

	// ActivityDates возвращает множество календарных дат (UTC, без времени),
	// в которые у ученика была учебная активность. Награды не учитываются.
	ActivityDates(ctx context.Context, learnerID shared.LearnerID, since time.Time) ([]time.Time, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет существование события по ID.
	Exists(ctx context.Context, id shared.EventID) (bool, error)

	// ExistsBySourceRef проверяет, было ли уже событие с данным
	// источником и ссылкой у данного ученика. Используется для
	// защиты от повторного начисления наград.
	ExistsBySourceRef(ctx context.Context, learnerID shared.LearnerID, source Source, reference string) (bool, error)
}

// ListOptions содержит параметры для пагинации выборки событий.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// Sources - фильтр по источникам (пустой список = все).
	Sources []Source

	// From - нижняя граница occurred_at (опционально).
	From time.Time

	// To - верхняя граница occurred_at (опционально).
	To time.Time
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSources устанавливает фильтр по источникам.
func (o ListOptions) WithSources(sources ...Source) ListOptions {
	o.Sources = sources
	return o
}

// WithRange устанавливает границы по времени события.
func (o ListOptions) WithRange(from, to time.Time) ListOptions {
	o.From = from
	o.To = to
	return o
}
