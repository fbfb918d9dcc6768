package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP HISTORY QUERY
// Возвращает страницу журнала XP ученика, от новых событий к старым,
// вместе с агрегированной сводкой по источникам.
// ══════════════════════════════════════════════════════════════════════════════

// GetXPHistoryQuery содержит параметры запроса журнала.
type GetXPHistoryQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// Source - фильтр по источнику (пусто = все).
	Source string

	// Since - нижняя граница по времени события (нулевое = без границы).
	Since time.Time

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int

	// IncludeSummary - включать агрегированную сводку.
	IncludeSummary bool
}

// Validate проверяет корректность параметров запроса.
func (q *GetXPHistoryQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id is required")
	}
	if q.Source != "" && !ledger.Source(q.Source).IsValid() {
		return errors.New("unknown source")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return errors.New("limit and offset cannot be negative")
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	return nil
}

// XPEventDTO - DTO события журнала.
type XPEventDTO struct {
	// ID - идентификатор события.
	ID string `json:"id"`

	// Amount - начисленный XP.
	Amount int `json:"amount"`

	// Source - источник начисления.
	Source string `json:"source"`

	// Reference - ссылка на исходную сущность.
	Reference string `json:"reference,omitempty"`

	// OccurredAt - когда произошло исходное действие.
	OccurredAt time.Time `json:"occurred_at"`
}

// XPSummaryDTO - агрегированная сводка журнала.
type XPSummaryDTO struct {
	// TotalXP - суммарный XP за всё время.
	TotalXP int64 `json:"total_xp"`

	// EventCount - количество событий.
	EventCount int `json:"event_count"`

	// BySource - суммы по источникам.
	BySource map[string]int64 `json:"by_source"`

	// LastEventAt - время последнего события.
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

// GetXPHistoryResult содержит результат запроса журнала.
type GetXPHistoryResult struct {
	// Events - страница журнала, от новых к старым.
	Events []XPEventDTO `json:"events"`

	// Summary - сводка (если запрошена).
	Summary *XPSummaryDTO `json:"summary,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetXPHistoryHandler handles the GetXPHistoryQuery.
type GetXPHistoryHandler struct {
	ledgerRepo ledger.Repository
}

// NewGetXPHistoryHandler creates a new GetXPHistoryHandler.
func NewGetXPHistoryHandler(ledgerRepo ledger.Repository) *GetXPHistoryHandler {
	return &GetXPHistoryHandler{ledgerRepo: ledgerRepo}
}

// Handle executes the get XP history query.
func (h *GetXPHistoryHandler) Handle(ctx context.Context, q GetXPHistoryQuery) (*GetXPHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_xp_history: %w", err)
	}

	lid, err := shared.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_xp_history: %w", err)
	}

	opts := ledger.ListOptions{
		Limit:  q.Limit,
		Offset: q.Offset,
		From:   q.Since,
	}
	if q.Source != "" {
		opts.Sources = []ledger.Source{ledger.Source(q.Source)}
	}

	events, err := h.ledgerRepo.ListByLearner(ctx, lid, opts)
	if err != nil {
		return nil, fmt.Errorf("get_xp_history: failed to list events: %w", err)
	}

	result := &GetXPHistoryResult{
		Events:      make([]XPEventDTO, 0, len(events)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, ev := range events {
		result.Events = append(result.Events, XPEventDTO{
			ID:         string(ev.ID),
			Amount:     int(ev.Amount),
			Source:     string(ev.Source),
			Reference:  ev.Reference,
			OccurredAt: ev.OccurredAt,
		})
	}

	if q.IncludeSummary {
		summary, err := h.ledgerRepo.Summarize(ctx, lid)
		if err != nil {
			return nil, fmt.Errorf("get_xp_history: failed to summarize: %w", err)
		}
		dto := &XPSummaryDTO{
			TotalXP:    summary.TotalXP.Int64(),
			EventCount: summary.EventCount,
			BySource:   make(map[string]int64, len(summary.BySource)),
		}
		for src, total := range summary.BySource {
			dto.BySource[string(src)] = total
		}
		if !summary.LastEventAt.IsZero() {
			t := summary.LastEventAt
			dto.LastEventAt = &t
		}
		result.Summary = dto
	}

	return result, nil
}
