package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeFetcher fetches platform-issued challenges for a learner.
// Satisfied by platform.Client.
type ChallengeFetcher interface {
	FetchActiveChallenges(ctx context.Context, platformID string) ([]*challenge.Challenge, error)
}

// ImportChallengesJob pulls challenges the platform issued on its own
// (course-specific events, sponsored goals) into the local store, so
// they advance and expire under the same rules as rotated ones.
// Challenges already present locally are left untouched; local progress
// is authoritative once a challenge is imported.
type ImportChallengesJob struct {
	learnerRepo   learner.Repository
	challengeRepo challenge.Repository
	fetcher       ChallengeFetcher
	pageSize      int
	timeout       time.Duration
	logger        *slog.Logger
}

// NewImportChallengesJob creates a challenge import job.
func NewImportChallengesJob(
	learnerRepo learner.Repository,
	challengeRepo challenge.Repository,
	fetcher ChallengeFetcher,
	logger *slog.Logger,
) *ImportChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ImportChallengesJob{
		learnerRepo:   learnerRepo,
		challengeRepo: challengeRepo,
		fetcher:       fetcher,
		pageSize:      shared.MaxPageSize,
		timeout:       10 * time.Minute,
		logger:        logger,
	}
}

// Name returns the job name.
func (j *ImportChallengesJob) Name() string {
	return "import_platform_challenges"
}

// Description returns a human-readable description.
func (j *ImportChallengesJob) Description() string {
	return "Imports platform-issued challenges into the local store"
}

// Run executes one import pass over all learners.
func (j *ImportChallengesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	seen := 0
	imported := 0
	failed := 0
	pageNum := 1

	for {
		page, err := j.learnerRepo.GetAll(ctx, shared.Pagination{Page: pageNum, PageSize: j.pageSize})
		if err != nil {
			return fmt.Errorf("list learners: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, lrn := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			seen++
			n, err := j.importForLearner(ctx, lrn)
			if err != nil {
				failed++
				j.logger.Warn("challenge import failed for learner",
					"learner_id", string(lrn.ID),
					"error", err,
				)
				continue
			}
			imported += n
		}

		if len(page) < j.pageSize {
			break
		}
		pageNum++
	}

	j.logger.Info("platform challenge import completed",
		"learners_seen", seen,
		"imported", imported,
		"failed", failed,
	)

	return nil
}

// importForLearner stores the learner's platform challenges that are not
// known locally yet. Returns the number of newly imported challenges.
func (j *ImportChallengesJob) importForLearner(ctx context.Context, lrn *learner.Learner) (int, error) {
	fetched, err := j.fetcher.FetchActiveChallenges(ctx, lrn.PlatformID)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, ch := range fetched {
		// The platform keys challenges by its learner ID; rebind to ours.
		ch.LearnerID = lrn.ID

		err := j.challengeRepo.Create(ctx, ch)
		if err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				continue
			}
			return imported, err
		}
		imported++
	}

	return imported, nil
}
