// Package postgres implements the PostgreSQL persistence layer for the
// progression hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const learnerColumns = `
	id, platform_id, display_name, total_xp, level,
	current_streak, longest_streak, last_active_date, status,
	last_synced_at, joined_at, created_at, updated_at
`

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *learner.Learner) error {
	query := `
		INSERT INTO learners (
			id, platform_id, display_name, total_xp, level,
			current_streak, longest_streak, last_active_date, status,
			last_synced_at, joined_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		string(l.ID),
		l.PlatformID,
		l.DisplayName,
		l.TotalXP.Int64(),
		l.Level,
		l.CurrentStreak,
		l.LongestStreak,
		nullableTime(l.LastActiveDate),
		string(l.Status),
		l.LastSyncedAt,
		l.JoinedAt,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns a learner by internal ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id shared.LearnerID) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, string(id))
	return r.scanLearner(row)
}

// GetByPlatformID returns a learner by platform identifier.
func (r *LearnerRepository) GetByPlatformID(ctx context.Context, platformID string) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE platform_id = $1`

	row := r.conn.QueryRow(ctx, query, platformID)
	return r.scanLearner(row)
}

// Update updates a learner.
func (r *LearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	query := `
		UPDATE learners SET
			platform_id = $1,
			display_name = $2,
			total_xp = $3,
			level = $4,
			current_streak = $5,
			longest_streak = $6,
			last_active_date = $7,
			status = $8,
			last_synced_at = $9,
			updated_at = $10
		WHERE id = $11
	`

	result, err := r.conn.Exec(ctx, query,
		l.PlatformID,
		l.DisplayName,
		l.TotalXP.Int64(),
		l.Level,
		l.CurrentStreak,
		l.LongestStreak,
		nullableTime(l.LastActiveDate),
		string(l.Status),
		l.LastSyncedAt,
		time.Now().UTC(),
		string(l.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns learners ordered by total XP descending.
func (r *LearnerRepository) GetAll(ctx context.Context, p shared.Pagination) ([]*learner.Learner, error) {
	query := `
		SELECT ` + learnerColumns + `
		FROM learners
		ORDER BY total_xp DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, p.Limit(), p.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// GetByIDs returns learners matching the given IDs.
func (r *LearnerRepository) GetByIDs(ctx context.Context, ids []shared.LearnerID) ([]*learner.Learner, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = ANY($1)`

	rows, err := r.conn.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get learners by ids: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// Count returns the total number of learners.
func (r *LearnerRepository) Count(ctx context.Context) (int, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM learners`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count learners: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Background Jobs
// ─────────────────────────────────────────────────────────────────────────────

// FindStale returns learners whose counters have not been synced for longer
// than the given duration. Oldest first, so the sync loop drains fairly.
func (r *LearnerRepository) FindStale(ctx context.Context, olderThan time.Duration, limit int) ([]*learner.Learner, error) {
	query := `
		SELECT ` + learnerColumns + `
		FROM learners
		WHERE last_synced_at < $1 AND status = 'active'
		ORDER BY last_synced_at ASC
		LIMIT $2
	`

	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := r.conn.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale learners: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// FindActiveYesterday returns learners whose last learning activity fell on
// the given UTC day.
func (r *LearnerRepository) FindActiveYesterday(ctx context.Context, day time.Time) ([]*learner.Learner, error) {
	query := `
		SELECT ` + learnerColumns + `
		FROM learners
		WHERE last_active_date = $1::date
	`

	rows, err := r.conn.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("failed to find learners active on day: %w", err)
	}
	defer rows.Close()

	return r.scanLearners(rows)
}

// Exists checks whether a learner with this ID exists.
func (r *LearnerRepository) Exists(ctx context.Context, id shared.LearnerID) (bool, error) {
	var exists bool
	row := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM learners WHERE id = $1)`, string(id))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check learner existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *LearnerRepository) scanLearner(row pgx.Row) (*learner.Learner, error) {
	var (
		id            string
		platformID    string
		displayName   string
		totalXP       int64
		level         int
		currentStreak int
		longestStreak int
		lastActive    *time.Time
		status        string
		lastSyncedAt  time.Time
		joinedAt      time.Time
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(
		&id, &platformID, &displayName, &totalXP, &level,
		&currentStreak, &longestStreak, &lastActive, &status,
		&lastSyncedAt, &joinedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to scan learner: %w", err)
	}

	l := &learner.Learner{
		ID:            shared.LearnerID(id),
		PlatformID:    platformID,
		DisplayName:   displayName,
		TotalXP:       shared.XP(totalXP),
		Level:         level,
		CurrentStreak: currentStreak,
		LongestStreak: longestStreak,
		Status:        learner.Status(status),
		LastSyncedAt:  lastSyncedAt,
		JoinedAt:      joinedAt,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}

	if lastActive != nil {
		d := lastActive.UTC()
		l.LastActiveDate = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}

	return l, nil
}

func (r *LearnerRepository) scanLearners(rows pgx.Rows) ([]*learner.Learner, error) {
	var learners []*learner.Learner
	for rows.Next() {
		l, err := r.scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
