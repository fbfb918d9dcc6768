package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT STREAK BONUSES JOB
// ══════════════════════════════════════════════════════════════════════════════

// GrantStreakBonusesJob runs the daily streak milestone pass. It is
// scheduled shortly after midnight UTC so the milestone is judged on
// a completed calendar day. The underlying handler dedupes through the
// ledger, so an extra run (or a retried one) never double-grants.
type GrantStreakBonusesJob struct {
	handler *command.GrantStreakBonusHandler
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrantStreakBonusesJob creates a new streak bonus job.
func NewGrantStreakBonusesJob(handler *command.GrantStreakBonusHandler, logger *slog.Logger) *GrantStreakBonusesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &GrantStreakBonusesJob{
		handler: handler,
		timeout: 10 * time.Minute,
		logger:  logger,
	}
}

// Name returns the job name.
func (j *GrantStreakBonusesJob) Name() string {
	return "grant_streak_bonuses"
}

// Description returns a human-readable description.
func (j *GrantStreakBonusesJob) Description() string {
	return "Awards bonus XP to learners whose streak reached a milestone yesterday"
}

// Run executes one milestone pass.
func (j *GrantStreakBonusesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.GrantStreakBonusCommand{})
	if err != nil {
		return fmt.Errorf("streak bonus pass failed: %w", err)
	}

	j.logger.Info("streak bonus pass completed",
		"learners_seen", result.LearnersSeen,
		"granted", result.Granted,
		"total_bonus_xp", result.TotalBonusXP,
	)

	return nil
}
