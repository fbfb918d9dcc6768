package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC COUNTERS COMMAND
// Synchronizes a learner's counters with the EduForge platform API.
// The platform is the source of truth for course and module completion
// counts; the progression hub owns XP, levels, streaks and rewards.
// ══════════════════════════════════════════════════════════════════════════════

// SyncCountersCommand contains the data needed to sync a learner.
type SyncCountersCommand struct {
	// LearnerID is the internal ID of the learner to sync.
	// If empty, PlatformID must be provided.
	LearnerID string

	// PlatformID is the learner's ID on the EduForge platform.
	PlatformID string

	// ForceSync bypasses the sync interval check.
	ForceSync bool

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c SyncCountersCommand) Validate() error {
	if c.LearnerID == "" && c.PlatformID == "" {
		return errors.New("sync_counters: either learner_id or platform_id must be provided")
	}
	return nil
}

// SyncCountersResult contains the result of synchronization.
type SyncCountersResult struct {
	// LearnerID is the internal ID of the synced learner.
	LearnerID string

	// WasUpdated indicates if any data was changed.
	WasUpdated bool

	// Counters is the snapshot fetched from the platform.
	Counters progression.Counters

	// FromCache is true when the platform was unreachable and the
	// snapshot came from the last-known cached state.
	FromCache bool

	// OldRank and NewRank bracket the leaderboard movement (0 if unknown).
	OldRank int
	NewRank int

	// SyncedAt is when the sync was performed.
	SyncedAt time.Time

	// Events contains domain events generated during sync.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// PlatformClient defines the interface for the EduForge platform API.
type PlatformClient interface {
	// FetchLearnerCounters fetches the learner's counter snapshot.
	FetchLearnerCounters(ctx context.Context, platformID string) (progression.Counters, error)
}

// CountersCache stores the last successfully fetched snapshot so reads
// can degrade gracefully when the platform is down.
type CountersCache interface {
	Get(ctx context.Context, learnerID shared.LearnerID) (progression.Counters, error)
	Set(ctx context.Context, learnerID shared.LearnerID, c progression.Counters) error
}

// RankingService provides leaderboard positions and score updates.
type RankingService interface {
	// GetLearnerRank returns the current rank of a learner.
	GetLearnerRank(ctx context.Context, learnerID string) (int, error)

	// UpdateScore sets the learner's leaderboard score to their total XP.
	UpdateScore(ctx context.Context, learnerID string, totalXP int64) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncCountersHandler handles the SyncCountersCommand.
type SyncCountersHandler struct {
	learnerRepo    learner.Repository
	platformClient PlatformClient
	countersCache  CountersCache
	rankingService RankingService
	eventPublisher shared.EventPublisher

	// Configuration
	minSyncInterval time.Duration
}

// SyncCountersHandlerConfig contains configuration for the handler.
type SyncCountersHandlerConfig struct {
	MinSyncInterval time.Duration
}

// DefaultSyncCountersHandlerConfig returns default configuration.
func DefaultSyncCountersHandlerConfig() SyncCountersHandlerConfig {
	return SyncCountersHandlerConfig{
		MinSyncInterval: 5 * time.Minute,
	}
}

// NewSyncCountersHandler creates a new SyncCountersHandler.
func NewSyncCountersHandler(
	learnerRepo learner.Repository,
	platformClient PlatformClient,
	countersCache CountersCache,
	rankingService RankingService,
	eventPublisher shared.EventPublisher,
	config SyncCountersHandlerConfig,
) *SyncCountersHandler {
	if config.MinSyncInterval == 0 {
		config = DefaultSyncCountersHandlerConfig()
	}

	return &SyncCountersHandler{
		learnerRepo:     learnerRepo,
		platformClient:  platformClient,
		countersCache:   countersCache,
		rankingService:  rankingService,
		eventPublisher:  eventPublisher,
		minSyncInterval: config.MinSyncInterval,
	}
}

// Handle executes the sync counters command.
func (h *SyncCountersHandler) Handle(ctx context.Context, cmd SyncCountersCommand) (*SyncCountersResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("sync_counters: validation failed: %w", err)
	}

	// Find the learner
	lrn, err := h.findLearner(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("sync_counters: failed to find learner: %w", err)
	}

	// Check sync interval (unless forced)
	if !cmd.ForceSync && !h.shouldSync(lrn) {
		return &SyncCountersResult{
			LearnerID:  string(lrn.ID),
			WasUpdated: false,
			SyncedAt:   lrn.LastSyncedAt,
		}, nil
	}

	syncedAt := time.Now().UTC()
	result := &SyncCountersResult{
		LearnerID: string(lrn.ID),
		SyncedAt:  syncedAt,
		Events:    make([]shared.Event, 0, 2),
	}

	// Fetch the snapshot from the platform. On failure fall back to the
	// cached snapshot so the rest of the pipeline still has data to
	// evaluate achievements against.
	counters, err := h.platformClient.FetchLearnerCounters(ctx, lrn.PlatformID)
	if err != nil {
		cached, cacheErr := h.countersCache.Get(ctx, lrn.ID)
		if cacheErr != nil {
			return nil, fmt.Errorf("sync_counters: platform fetch failed and no cached snapshot: %w", err)
		}
		result.Counters = cached
		result.FromCache = true
		return result, nil
	}
	counters.FetchedAt = syncedAt
	result.Counters = counters

	if err := h.countersCache.Set(ctx, lrn.ID, counters); err != nil {
		// Cache write failures are non-fatal. The next successful fetch
		// refreshes it.
	}

	// Get current rank before sync
	oldRank, _ := h.rankingService.GetLearnerRank(ctx, string(lrn.ID))
	result.OldRank = oldRank

	// Reconcile cached totals with the ledger-derived snapshot.
	hasChanges := false
	if int64(counters.TotalXP) != int64(lrn.TotalXP) && counters.TotalXP >= 0 {
		oldLevel := lrn.Level
		lrn.SetTotalXP(counters.TotalXP)
		hasChanges = true

		if lrn.Level > oldLevel {
			levelEvent := shared.NewLevelUpEvent(string(lrn.ID), oldLevel, lrn.Level, int(lrn.TotalXP))
			if cmd.CorrelationID != "" {
				levelEvent.BaseEvent = levelEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			}
			result.Events = append(result.Events, levelEvent)
		}
	}

	lrn.SyncedWith(syncedAt)

	if err := h.learnerRepo.Update(ctx, lrn); err != nil {
		return nil, fmt.Errorf("sync_counters: failed to update learner: %w", err)
	}

	// Push the fresh score to the leaderboard and observe the movement.
	if err := h.rankingService.UpdateScore(ctx, string(lrn.ID), int64(lrn.TotalXP)); err == nil {
		newRank, rankErr := h.rankingService.GetLearnerRank(ctx, string(lrn.ID))
		if rankErr == nil {
			result.NewRank = newRank
			if oldRank != 0 && newRank != 0 && newRank != oldRank {
				rankEvent := shared.NewRankChangedEvent(string(lrn.ID), oldRank, newRank)
				if cmd.CorrelationID != "" {
					rankEvent.BaseEvent = rankEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
				}
				result.Events = append(result.Events, rankEvent)
			}
		}
	}

	result.WasUpdated = hasChanges

	// Publish domain events
	for _, ev := range result.Events {
		if err := h.eventPublisher.Publish(ev); err != nil {
			// Log error but don't fail the sync.
			continue
		}
	}

	return result, nil
}

// findLearner finds the learner by internal ID or platform ID.
func (h *SyncCountersHandler) findLearner(ctx context.Context, cmd SyncCountersCommand) (*learner.Learner, error) {
	if cmd.LearnerID != "" {
		lid, err := shared.NewLearnerID(cmd.LearnerID)
		if err != nil {
			return nil, err
		}
		return h.learnerRepo.GetByID(ctx, lid)
	}
	return h.learnerRepo.GetByPlatformID(ctx, cmd.PlatformID)
}

// shouldSync determines if a sync should be performed based on the interval.
func (h *SyncCountersHandler) shouldSync(l *learner.Learner) bool {
	if l.LastSyncedAt.IsZero() {
		return true
	}
	return time.Since(l.LastSyncedAt) >= h.minSyncInterval
}
