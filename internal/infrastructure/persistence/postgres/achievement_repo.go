// Package postgres implements the PostgreSQL persistence layer for the
// progression hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.CatalogRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// GetAll returns the full achievement catalog.
func (r *AchievementRepository) GetAll(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `
		SELECT id, name, description, requirement_type, requirement_value, xp_reward, badge_color
		FROM achievements
		ORDER BY requirement_type, requirement_value
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	return r.scanAchievements(rows)
}

// GetByID returns a catalog entry by ID.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	query := `
		SELECT id, name, description, requirement_type, requirement_value, xp_reward, badge_color
		FROM achievements
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanAchievement(row)
}

// GetByRequirementType returns achievements bound to the given counter.
func (r *AchievementRepository) GetByRequirementType(ctx context.Context, requirementType achievement.RequirementType) ([]*achievement.Achievement, error) {
	query := `
		SELECT id, name, description, requirement_type, requirement_value, xp_reward, badge_color
		FROM achievements
		WHERE requirement_type = $1
		ORDER BY requirement_value
	`

	rows, err := r.conn.Query(ctx, query, string(requirementType))
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements by requirement: %w", err)
	}
	defer rows.Close()

	return r.scanAchievements(rows)
}

// Upsert creates or updates a catalog entry.
func (r *AchievementRepository) Upsert(ctx context.Context, a *achievement.Achievement) error {
	query := `
		INSERT INTO achievements (id, name, description, requirement_type, requirement_value, xp_reward, badge_color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			requirement_type = EXCLUDED.requirement_type,
			requirement_value = EXCLUDED.requirement_value,
			xp_reward = EXCLUDED.xp_reward,
			badge_color = EXCLUDED.badge_color
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Description,
		string(a.RequirementType),
		a.RequirementValue,
		a.XPReward.Int(),
		string(a.BadgeColor),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert achievement: %w", err)
	}

	return nil
}

func (r *AchievementRepository) scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var (
		id               string
		name             string
		description      string
		requirementType  string
		requirementValue int
		xpReward         int
		badgeColor       string
	)

	err := row.Scan(&id, &name, &description, &requirementType, &requirementValue, &xpReward, &badgeColor)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to scan achievement: %w", err)
	}

	return &achievement.Achievement{
		ID:               id,
		Name:             name,
		Description:      description,
		RequirementType:  achievement.RequirementType(requirementType),
		RequirementValue: requirementValue,
		XPReward:         shared.XPAmount(xpReward),
		BadgeColor:       achievement.BadgeColor(badgeColor),
	}, nil
}

func (r *AchievementRepository) scanAchievements(rows pgx.Rows) ([]*achievement.Achievement, error) {
	var achievements []*achievement.Achievement
	for rows.Next() {
		a, err := r.scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UnlockRepository implements achievement.UnlockRepository for PostgreSQL.
// The (learner_id, achievement_id) primary key makes Save the idempotency
// barrier for achievement rewards.
type UnlockRepository struct {
	conn *Connection
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(conn *Connection) *UnlockRepository {
	return &UnlockRepository{conn: conn}
}

// Save records an unlock. A repeated (learner, achievement) pair returns
// shared.ErrRewardAlreadyGranted and leaves storage unchanged.
func (r *UnlockRepository) Save(ctx context.Context, unlock *achievement.Unlock) error {
	query := `
		INSERT INTO achievement_unlocks (learner_id, achievement_id, reward_event_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (learner_id, achievement_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		string(unlock.LearnerID),
		unlock.AchievementID,
		string(unlock.RewardEventID),
		unlock.UnlockedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save unlock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrRewardAlreadyGranted
	}

	return nil
}

// GetByLearner returns all of a learner's unlocks.
func (r *UnlockRepository) GetByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*achievement.Unlock, error) {
	query := `
		SELECT learner_id, achievement_id, reward_event_id, unlocked_at
		FROM achievement_unlocks
		WHERE learner_id = $1
		ORDER BY unlocked_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(learnerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []*achievement.Unlock
	for rows.Next() {
		var (
			lid           string
			achievementID string
			rewardEventID string
			unlockedAt    time.Time
		)

		if err := rows.Scan(&lid, &achievementID, &rewardEventID, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}

		unlocks = append(unlocks, &achievement.Unlock{
			LearnerID:     shared.LearnerID(lid),
			AchievementID: achievementID,
			RewardEventID: shared.EventID(rewardEventID),
			UnlockedAt:    unlockedAt,
		})
	}

	return unlocks, rows.Err()
}

// UnlockedIDs returns the set of achievement IDs the learner has unlocked.
func (r *UnlockRepository) UnlockedIDs(ctx context.Context, learnerID shared.LearnerID) (map[string]bool, error) {
	query := `SELECT achievement_id FROM achievement_unlocks WHERE learner_id = $1`

	rows, err := r.conn.Query(ctx, query, string(learnerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked ids: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unlocked id: %w", err)
		}
		unlocked[id] = true
	}

	return unlocked, rows.Err()
}

// IsUnlocked checks whether the learner has unlocked the achievement.
func (r *UnlockRepository) IsUnlocked(ctx context.Context, learnerID shared.LearnerID, achievementID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM achievement_unlocks
			WHERE learner_id = $1 AND achievement_id = $2
		)
	`

	var exists bool
	row := r.conn.QueryRow(ctx, query, string(learnerID), achievementID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}

	return exists, nil
}

// CountByLearner returns the number of achievements the learner has unlocked.
func (r *UnlockRepository) CountByLearner(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	var count int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM achievement_unlocks WHERE learner_id = $1`, string(learnerID))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unlocks: %w", err)
	}
	return count, nil
}
