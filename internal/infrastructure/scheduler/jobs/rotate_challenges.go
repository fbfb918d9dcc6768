// Package jobs contains the scheduled jobs of the progression hub.
// Each job is a thin adapter: the actual behavior lives in the
// application layer command handlers, the job only owns cadence,
// timeouts and run logging.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROTATE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// RotateChallengesJob issues fresh challenges for one period type.
// Register it twice: once for the daily rotation and once for the weekly.
type RotateChallengesJob struct {
	handler *command.RotateChallengesHandler
	period  challenge.Type
	timeout time.Duration
	logger  *slog.Logger
}

// NewRotateChallengesJob creates a rotation job for the given period.
func NewRotateChallengesJob(
	handler *command.RotateChallengesHandler,
	period challenge.Type,
	logger *slog.Logger,
) *RotateChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RotateChallengesJob{
		handler: handler,
		period:  period,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// Name returns the job name.
func (j *RotateChallengesJob) Name() string {
	return fmt.Sprintf("rotate_%s_challenges", j.period)
}

// Description returns a human-readable description.
func (j *RotateChallengesJob) Description() string {
	return fmt.Sprintf("Issues fresh %s challenges to every active learner", j.period)
}

// Run executes one rotation pass.
func (j *RotateChallengesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.RotateChallengesCommand{Period: j.period})
	if err != nil {
		return fmt.Errorf("rotation failed: %w", err)
	}

	j.logger.Info("challenge rotation completed",
		"period", j.period,
		"learners_seen", result.LearnersSeen,
		"issued", result.Issued,
		"skipped", result.Skipped,
		"window_end", result.WindowEnd.Format(time.RFC3339),
	)

	return nil
}
