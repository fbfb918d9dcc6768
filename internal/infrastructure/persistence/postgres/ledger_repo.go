// Package postgres implements the PostgreSQL persistence layer for the
// progression hub.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// rewardSources lists the sources that do not count as learning activity.
// Kept in one place so ActivityDates stays in sync with the domain rule.
var rewardSources = []string{
	string(ledger.SourceChallengeClaim),
	string(ledger.SourceStreakBonus),
	string(ledger.SourceAchievementUnlock),
}

// LedgerRepository implements ledger.Repository for PostgreSQL.
// The xp_events table is append-only; the producer-assigned event ID is the
// primary key, so the insert itself is the idempotency check.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Append & Read
// ─────────────────────────────────────────────────────────────────────────────

// Append records an XP event. A redelivered event ID returns
// shared.ErrDuplicateEvent and leaves the ledger unchanged.
func (r *LedgerRepository) Append(ctx context.Context, event *ledger.XpEvent) error {
	query := `
		INSERT INTO xp_events (id, learner_id, amount, source, reference, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		string(event.ID),
		string(event.LearnerID),
		event.Amount.Int(),
		string(event.Source),
		event.Reference,
		event.OccurredAt,
		event.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append xp event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrDuplicateEvent
	}

	return nil
}

// GetByID returns an event by ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id shared.EventID) (*ledger.XpEvent, error) {
	query := `
		SELECT id, learner_id, amount, source, reference, occurred_at, recorded_at
		FROM xp_events
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, string(id))
	return r.scanEvent(row)
}

// ListByLearner returns a learner's events, newest first.
func (r *LedgerRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID, opts ledger.ListOptions) ([]*ledger.XpEvent, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, learner_id, amount, source, reference, occurred_at, recorded_at
		FROM xp_events
		WHERE learner_id = $1
	`)

	args := []interface{}{string(learnerID)}

	if len(opts.Sources) > 0 {
		sources := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			sources[i] = string(s)
		}
		args = append(args, sources)
		fmt.Fprintf(&sb, " AND source = ANY($%d)", len(args))
	}

	if !opts.From.IsZero() {
		args = append(args, opts.From)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}

	if !opts.To.IsZero() {
		args = append(args, opts.To)
		fmt.Fprintf(&sb, " AND occurred_at < $%d", len(args))
	}

	sb.WriteString(" ORDER BY occurred_at DESC, recorded_at DESC")

	limit := opts.Limit
	if limit <= 0 {
		limit = ledger.DefaultListOptions().Limit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list xp events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListByLearnerSince returns a learner's events from the given time onward.
func (r *LedgerRepository) ListByLearnerSince(ctx context.Context, learnerID shared.LearnerID, since time.Time) ([]*ledger.XpEvent, error) {
	query := `
		SELECT id, learner_id, amount, source, reference, occurred_at, recorded_at
		FROM xp_events
		WHERE learner_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC, recorded_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list xp events since: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates
// ─────────────────────────────────────────────────────────────────────────────

// TotalXP returns the sum of all event amounts for a learner.
func (r *LedgerRepository) TotalXP(ctx context.Context, learnerID shared.LearnerID) (shared.XP, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM xp_events
		WHERE learner_id = $1
	`

	var total int64
	row := r.conn.QueryRow(ctx, query, string(learnerID))
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum xp events: %w", err)
	}

	return shared.XP(total), nil
}

// Summarize returns the aggregated ledger state for a learner.
func (r *LedgerRepository) Summarize(ctx context.Context, learnerID shared.LearnerID) (ledger.Summary, error) {
	summary := ledger.Summary{
		LearnerID: learnerID,
		BySource:  make(map[ledger.Source]int64),
	}

	query := `
		SELECT source, COALESCE(SUM(amount), 0), COUNT(*), MAX(occurred_at)
		FROM xp_events
		WHERE learner_id = $1
		GROUP BY source
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID))
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var total int64
		var count int
		var lastAt time.Time

		if err := rows.Scan(&source, &total, &count, &lastAt); err != nil {
			return ledger.Summary{}, fmt.Errorf("failed to scan summary row: %w", err)
		}

		summary.BySource[ledger.Source(source)] = total
		summary.TotalXP += shared.XP(total)
		summary.EventCount += count
		if lastAt.After(summary.LastEventAt) {
			summary.LastEventAt = lastAt
		}
	}

	return summary, rows.Err()
}

// CountBySource returns the number of a learner's events for a source.
func (r *LedgerRepository) CountBySource(ctx context.Context, learnerID shared.LearnerID, source ledger.Source) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM xp_events
		WHERE learner_id = $1 AND source = $2
	`

	var count int
	row := r.conn.QueryRow(ctx, query, string(learnerID), string(source))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count xp events: %w", err)
	}

	return count, nil
}

// ActivityDates returns the distinct UTC calendar days on which the learner
// had learning activity. Reward events are excluded.
func (r *LedgerRepository) ActivityDates(ctx context.Context, learnerID shared.LearnerID, since time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT (occurred_at AT TIME ZONE 'UTC')::date AS day
		FROM xp_events
		WHERE learner_id = $1
		  AND occurred_at >= $2
		  AND NOT (source = ANY($3))
		ORDER BY day
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID), since, rewardSources)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan activity date: %w", err)
		}
		dates = append(dates, time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC))
	}

	return dates, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether an event with this ID is already recorded.
func (r *LedgerRepository) Exists(ctx context.Context, id shared.EventID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM xp_events WHERE id = $1)`

	var exists bool
	row := r.conn.QueryRow(ctx, query, string(id))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}

	return exists, nil
}

// ExistsBySourceRef checks whether the learner already has an event with the
// given source and reference. Used as the reward replay guard.
func (r *LedgerRepository) ExistsBySourceRef(ctx context.Context, learnerID shared.LearnerID, source ledger.Source, reference string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM xp_events
			WHERE learner_id = $1 AND source = $2 AND reference = $3
		)
	`

	var exists bool
	row := r.conn.QueryRow(ctx, query, string(learnerID), string(source), reference)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check source ref existence: %w", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *LedgerRepository) scanEvent(row pgx.Row) (*ledger.XpEvent, error) {
	var (
		id         string
		learnerID  string
		amount     int
		source     string
		reference  string
		occurredAt time.Time
		recordedAt time.Time
	)

	err := row.Scan(&id, &learnerID, &amount, &source, &reference, &occurredAt, &recordedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan xp event: %w", err)
	}

	return &ledger.XpEvent{
		ID:         shared.EventID(id),
		LearnerID:  shared.LearnerID(learnerID),
		Amount:     shared.XPAmount(amount),
		Source:     ledger.Source(source),
		Reference:  reference,
		OccurredAt: occurredAt,
		RecordedAt: recordedAt,
	}, nil
}

func (r *LedgerRepository) scanEvents(rows pgx.Rows) ([]*ledger.XpEvent, error) {
	var events []*ledger.XpEvent
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
