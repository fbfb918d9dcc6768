package command

import (
	"context"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT STREAK BONUS COMMAND
// Daily pass that awards bonus XP when a streak reaches a milestone.
// Runs after midnight UTC over learners who were active the previous day,
// so the milestone is judged on a completed calendar day.
// ══════════════════════════════════════════════════════════════════════════════

// StreakMilestone pairs a streak length with its bonus.
type StreakMilestone struct {
	Days    int
	BonusXP int
}

// DefaultStreakMilestones returns the built-in milestone ladder.
func DefaultStreakMilestones() []StreakMilestone {
	return []StreakMilestone{
		{Days: 7, BonusXP: 50},
		{Days: 30, BonusXP: 250},
		{Days: 100, BonusXP: 1000},
	}
}

// GrantStreakBonusCommand runs one milestone pass.
type GrantStreakBonusCommand struct {
	// Now overrides the clock. Defaults to time.Now.
	Now time.Time
}

// GrantStreakBonusResult contains the result of a milestone pass.
type GrantStreakBonusResult struct {
	// LearnersSeen is how many active learners were considered.
	LearnersSeen int

	// Granted is how many bonuses were awarded.
	Granted int

	// TotalBonusXP is the sum of all awarded bonuses.
	TotalBonusXP int
}

// GrantStreakBonusHandler handles the GrantStreakBonusCommand.
type GrantStreakBonusHandler struct {
	learnerRepo learner.Repository
	ledgerRepo  ledger.Repository
	xpRecorder  XPRecorder

	// Configuration
	milestones []StreakMilestone
}

// GrantStreakBonusHandlerConfig contains configuration for the handler.
type GrantStreakBonusHandlerConfig struct {
	Milestones []StreakMilestone
}

// NewGrantStreakBonusHandler creates a new GrantStreakBonusHandler.
func NewGrantStreakBonusHandler(
	learnerRepo learner.Repository,
	ledgerRepo ledger.Repository,
	xpRecorder XPRecorder,
	config GrantStreakBonusHandlerConfig,
) *GrantStreakBonusHandler {
	milestones := config.Milestones
	if len(milestones) == 0 {
		milestones = DefaultStreakMilestones()
	}

	return &GrantStreakBonusHandler{
		learnerRepo: learnerRepo,
		ledgerRepo:  ledgerRepo,
		xpRecorder:  xpRecorder,
		milestones:  milestones,
	}
}

// Handle executes one milestone pass.
func (h *GrantStreakBonusHandler) Handle(ctx context.Context, cmd GrantStreakBonusCommand) (*GrantStreakBonusResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	yesterday := timeutil.StartOfDay(now.AddDate(0, 0, -1))

	learners, err := h.learnerRepo.FindActiveYesterday(ctx, yesterday)
	if err != nil {
		return nil, fmt.Errorf("grant_streak_bonus: failed to list active learners: %w", err)
	}

	result := &GrantStreakBonusResult{}
	for _, lrn := range learners {
		result.LearnersSeen++

		milestone, ok := h.milestoneFor(lrn.CurrentStreak)
		if !ok {
			continue
		}

		// The reference names the milestone, not the date, so a streak
		// that breaks and climbs back to the same milestone pays again
		// only after a reset (the streak start date disambiguates runs).
		reference := fmt.Sprintf("streak:%d:%s", milestone.Days, lrn.LastActiveDate.AddDate(0, 0, 1-lrn.CurrentStreak).Format("2006-01-02"))

		granted, err := h.ledgerRepo.ExistsBySourceRef(ctx, lrn.ID, ledger.SourceStreakBonus, reference)
		if err != nil {
			return result, fmt.Errorf("grant_streak_bonus: failed to check ledger: %w", err)
		}
		if granted {
			continue
		}

		if _, err := h.xpRecorder.Handle(ctx, RecordXPCommand{
			LearnerID:  string(lrn.ID),
			Amount:     milestone.BonusXP,
			Source:     string(ledger.SourceStreakBonus),
			Reference:  reference,
			OccurredAt: now,
		}); err != nil {
			return result, fmt.Errorf("grant_streak_bonus: failed to grant bonus to %s: %w", lrn.ID, err)
		}

		result.Granted++
		result.TotalBonusXP += milestone.BonusXP
	}

	return result, nil
}

// milestoneFor returns the milestone matching the exact streak length.
func (h *GrantStreakBonusHandler) milestoneFor(streak int) (StreakMilestone, bool) {
	for _, m := range h.milestones {
		if m.Days == streak {
			return m, true
		}
	}
	return StreakMilestone{}, false
}
