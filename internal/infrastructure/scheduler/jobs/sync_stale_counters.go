package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/domain/learner"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC STALE COUNTERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SyncStaleCountersJob refreshes platform counters for learners whose
// snapshot has gone stale. The platform stays the source of truth for
// course and module completion counts; this job keeps the local copy
// close enough for achievement evaluation and challenge progress.
type SyncStaleCountersJob struct {
	learnerRepo learner.Repository
	handler     *command.SyncCountersHandler
	logger      *slog.Logger

	config SyncStaleCountersConfig

	// State (for metrics)
	lastStats atomic.Value // *SyncRunStats
}

// SyncStaleCountersConfig contains configuration for the sync job.
type SyncStaleCountersConfig struct {
	// Concurrency is the number of learners to sync in parallel.
	Concurrency int

	// BatchSize caps how many stale learners one run picks up.
	BatchSize int

	// StaleAfter is how old a snapshot must be to qualify.
	StaleAfter time.Duration

	// Timeout is the maximum duration for the entire run.
	Timeout time.Duration
}

// DefaultSyncStaleCountersConfig returns sensible defaults.
func DefaultSyncStaleCountersConfig() SyncStaleCountersConfig {
	return SyncStaleCountersConfig{
		Concurrency: 5,
		BatchSize:   200,
		StaleAfter:  30 * time.Minute,
		Timeout:     10 * time.Minute,
	}
}

// SyncRunStats contains statistics from one sync run.
type SyncRunStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	TotalStale   int
	SyncedCount  int
	UpdatedCount int
	FailedCount  int
	Errors       []SyncRunError
}

// SyncRunError records a per-learner failure.
type SyncRunError struct {
	LearnerID  string
	Error      error
	OccurredAt time.Time
}

// NewSyncStaleCountersJob creates a new sync job.
func NewSyncStaleCountersJob(
	learnerRepo learner.Repository,
	handler *command.SyncCountersHandler,
	logger *slog.Logger,
	config SyncStaleCountersConfig,
) *SyncStaleCountersJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 30 * time.Minute
	}

	return &SyncStaleCountersJob{
		learnerRepo: learnerRepo,
		handler:     handler,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *SyncStaleCountersJob) Name() string {
	return "sync_stale_counters"
}

// Description returns a human-readable description.
func (j *SyncStaleCountersJob) Description() string {
	return "Refreshes platform counter snapshots for learners whose data went stale"
}

// Run executes one sync run.
func (j *SyncStaleCountersJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SyncRunStats{
		StartedAt: startedAt,
		Errors:    make([]SyncRunError, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stale, err := j.learnerRepo.FindStale(ctx, j.config.StaleAfter, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to find stale learners: %w", err)
	}

	stats.TotalStale = len(stale)
	if stats.TotalStale == 0 {
		j.finalize(stats)
		return nil
	}

	j.logger.Info("found stale learners", "count", stats.TotalStale)

	j.syncConcurrently(ctx, stale, stats)
	j.finalize(stats)

	j.logger.Info("sync_stale_counters completed",
		"duration", stats.Duration.String(),
		"total", stats.TotalStale,
		"synced", stats.SyncedCount,
		"updated", stats.UpdatedCount,
		"failed", stats.FailedCount,
	)

	// A stale batch is retried next run anyway; only escalate when most
	// of the batch failed, which points at the platform being down.
	if stats.FailedCount*2 > stats.TotalStale {
		return fmt.Errorf("sync failed for more than half of the batch (%d/%d)",
			stats.FailedCount, stats.TotalStale)
	}

	return nil
}

// syncConcurrently syncs learners using a worker pool.
func (j *SyncStaleCountersJob) syncConcurrently(ctx context.Context, learners []*learner.Learner, stats *SyncRunStats) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, l := range learners {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{} // Acquire

		go func(l *learner.Learner) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			result, err := j.handler.Handle(ctx, command.SyncCountersCommand{
				LearnerID: string(l.ID),
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				stats.FailedCount++
				stats.Errors = append(stats.Errors, SyncRunError{
					LearnerID:  string(l.ID),
					Error:      err,
					OccurredAt: time.Now(),
				})
				j.logger.Error("failed to sync learner",
					"learner_id", l.ID,
					"error", err,
				)
				return
			}

			stats.SyncedCount++
			if result.WasUpdated {
				stats.UpdatedCount++
			}
		}(l)
	}

	wg.Wait()
}

func (j *SyncStaleCountersJob) finalize(stats *SyncRunStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastStats.Store(stats)
}

// LastStats returns statistics from the last run, or nil before the first one.
func (j *SyncStaleCountersJob) LastStats() *SyncRunStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SyncRunStats)
}
