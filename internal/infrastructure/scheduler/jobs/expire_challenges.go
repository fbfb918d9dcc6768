package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireChallengesJob sweeps challenges whose window closed without a
// claim and publishes their terminal events. Expiry itself is computed
// lazily from ExpiresAt on every read, so the sweep cadence only affects
// how quickly the events go out, not correctness.
type ExpireChallengesJob struct {
	handler   *command.ExpireChallengesHandler
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewExpireChallengesJob creates a new expiry sweep job.
func NewExpireChallengesJob(handler *command.ExpireChallengesHandler, logger *slog.Logger) *ExpireChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ExpireChallengesJob{
		handler:   handler,
		batchSize: 500,
		timeout:   2 * time.Minute,
		logger:    logger,
	}
}

// Name returns the job name.
func (j *ExpireChallengesJob) Name() string {
	return "expire_challenges"
}

// Description returns a human-readable description.
func (j *ExpireChallengesJob) Description() string {
	return "Publishes expiry events for unclaimed challenges past their deadline"
}

// Run executes one sweep.
func (j *ExpireChallengesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.ExpireChallengesCommand{Limit: j.batchSize})
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}

	if result.Expired > 0 {
		j.logger.Info("expiry sweep completed", "expired", result.Expired)
	}

	return nil
}
