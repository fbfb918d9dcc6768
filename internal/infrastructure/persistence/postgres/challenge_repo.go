// Package postgres implements the PostgreSQL persistence layer for the
// progression hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const challengeColumns = `
	id, learner_id, type, title, description, difficulty,
	xp_reward, progress, max_progress, issued_at, expires_at, claimed_at
`

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (
			id, learner_id, type, title, description, difficulty,
			xp_reward, progress, max_progress, issued_at, expires_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		string(c.LearnerID),
		string(c.Type),
		c.Title,
		c.Description,
		string(c.Difficulty),
		c.XPReward.Int(),
		c.Progress,
		c.MaxProgress,
		c.IssuedAt,
		c.ExpiresAt,
		nullableTime(c.ClaimedAt),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrChallengeAlreadyExists
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetByID returns a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanChallenge(row)
}

// Update saves a modified challenge (progress, claim).
func (r *ChallengeRepository) Update(ctx context.Context, c *challenge.Challenge) error {
	query := `
		UPDATE challenges SET
			progress = $1,
			claimed_at = $2
		WHERE id = $3
	`

	result, err := r.conn.Exec(ctx, query,
		c.Progress,
		nullableTime(c.ClaimedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Active Set
// ─────────────────────────────────────────────────────────────────────────────

// ListActive returns the learner's challenges whose window has not closed
// and whose reward has not been claimed.
func (r *ChallengeRepository) ListActive(ctx context.Context, learnerID shared.LearnerID, now time.Time) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE learner_id = $1
		  AND expires_at > $2
		  AND claimed_at IS NULL
		ORDER BY expires_at ASC
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}
	defer rows.Close()

	return r.scanChallenges(rows)
}

// ListByLearner returns all of a learner's challenges issued in the period.
func (r *ChallengeRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID, from, to time.Time) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE learner_id = $1
		  AND issued_at >= $2
		  AND issued_at < $3
		ORDER BY issued_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	return r.scanChallenges(rows)
}

// HasActiveOfType checks whether the learner already has an active challenge
// of the given period.
func (r *ChallengeRepository) HasActiveOfType(ctx context.Context, learnerID shared.LearnerID, challengeType challenge.Type, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM challenges
			WHERE learner_id = $1
			  AND type = $2
			  AND expires_at > $3
			  AND claimed_at IS NULL
		)
	`

	var exists bool
	row := r.conn.QueryRow(ctx, query, string(learnerID), string(challengeType), now)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active challenge: %w", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Expiry Sweep
// ─────────────────────────────────────────────────────────────────────────────

// ListExpiredUnclaimed returns challenges whose window closed without a claim
// and whose expiry has not been announced yet.
func (r *ChallengeRepository) ListExpiredUnclaimed(ctx context.Context, before time.Time, limit int) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE expires_at <= $1
		  AND claimed_at IS NULL
		  AND expiry_notified = FALSE
		ORDER BY expires_at ASC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired challenges: %w", err)
	}
	defer rows.Close()

	return r.scanChallenges(rows)
}

// MarkExpiryNotified records that the expiry event has been published.
func (r *ChallengeRepository) MarkExpiryNotified(ctx context.Context, challengeID string) error {
	result, err := r.conn.Exec(ctx,
		`UPDATE challenges SET expiry_notified = TRUE WHERE id = $1`,
		challengeID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark expiry notified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrChallengeNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ChallengeRepository) scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var (
		id          string
		learnerID   string
		typ         string
		title       string
		description string
		difficulty  string
		xpReward    int
		progress    int
		maxProgress int
		issuedAt    time.Time
		expiresAt   time.Time
		claimedAt   *time.Time
	)

	err := row.Scan(
		&id, &learnerID, &typ, &title, &description, &difficulty,
		&xpReward, &progress, &maxProgress, &issuedAt, &expiresAt, &claimedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to scan challenge: %w", err)
	}

	c := &challenge.Challenge{
		ID:          id,
		LearnerID:   shared.LearnerID(learnerID),
		Type:        challenge.Type(typ),
		Title:       title,
		Description: description,
		Difficulty:  challenge.Difficulty(difficulty),
		XPReward:    shared.XPAmount(xpReward),
		Progress:    progress,
		MaxProgress: maxProgress,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}

	if claimedAt != nil {
		c.ClaimedAt = claimedAt.UTC()
	}

	return c, nil
}

func (r *ChallengeRepository) scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	var challenges []*challenge.Challenge
	for rows.Next() {
		c, err := r.scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}
