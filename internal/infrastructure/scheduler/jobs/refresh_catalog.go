package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH CATALOG JOB
// ══════════════════════════════════════════════════════════════════════════════

// CatalogFetcher fetches the achievement catalog from the platform.
// Satisfied by platform.Client.
type CatalogFetcher interface {
	FetchAchievementCatalog(ctx context.Context) ([]*achievement.Achievement, error)
}

// RefreshCatalogJob pulls the achievement catalog from the platform and
// upserts it into the local store. The platform owns catalog content;
// the hub only evaluates it, so a periodic one-way sync is enough.
type RefreshCatalogJob struct {
	fetcher     CatalogFetcher
	catalogRepo achievement.CatalogRepository
	timeout     time.Duration
	logger      *slog.Logger
}

// NewRefreshCatalogJob creates a catalog refresh job.
func NewRefreshCatalogJob(
	fetcher CatalogFetcher,
	catalogRepo achievement.CatalogRepository,
	logger *slog.Logger,
) *RefreshCatalogJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshCatalogJob{
		fetcher:     fetcher,
		catalogRepo: catalogRepo,
		timeout:     2 * time.Minute,
		logger:      logger,
	}
}

// Name returns the job name.
func (j *RefreshCatalogJob) Name() string {
	return "refresh_achievement_catalog"
}

// Description returns a human-readable description.
func (j *RefreshCatalogJob) Description() string {
	return "Syncs the achievement catalog from the platform into the local store"
}

// Run executes one refresh pass.
func (j *RefreshCatalogJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	catalog, err := j.fetcher.FetchAchievementCatalog(ctx)
	if err != nil {
		return fmt.Errorf("catalog fetch failed: %w", err)
	}

	// Catalog entries are never deleted locally: an entry removed from the
	// platform must keep resolving for learners who already unlocked it.
	upserted := 0
	for _, a := range catalog {
		if err := j.catalogRepo.Upsert(ctx, a); err != nil {
			j.logger.Warn("failed to upsert catalog entry",
				"achievement_id", a.ID,
				"error", err,
			)
			continue
		}
		upserted++
	}

	j.logger.Info("achievement catalog refreshed",
		"fetched", len(catalog),
		"upserted", upserted,
	)

	return nil
}
