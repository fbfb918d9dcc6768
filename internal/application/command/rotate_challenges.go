package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
	"github.com/eduforge/progression-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROTATE CHALLENGES COMMAND
// Issues fresh daily and weekly challenges at period boundaries.
// Expired unclaimed challenges of the previous period are left in place;
// the expiry sweep publishes their terminal events separately.
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeTemplate describes a challenge the rotation can issue.
type ChallengeTemplate struct {
	Title       string
	Description string
	Difficulty  challenge.Difficulty
	XPReward    int
	MaxProgress int
}

// DefaultDailyTemplates returns the built-in daily challenge pool.
func DefaultDailyTemplates() []ChallengeTemplate {
	return []ChallengeTemplate{
		{Title: "Разминка", Description: "Завершите 1 учебное действие сегодня", Difficulty: challenge.DifficultyEasy, XPReward: 15, MaxProgress: 1},
		{Title: "Три подхода", Description: "Завершите 3 учебных действия сегодня", Difficulty: challenge.DifficultyMedium, XPReward: 40, MaxProgress: 3},
		{Title: "Марафонец", Description: "Завершите 5 учебных действий сегодня", Difficulty: challenge.DifficultyHard, XPReward: 80, MaxProgress: 5},
	}
}

// DefaultWeeklyTemplates returns the built-in weekly challenge pool.
func DefaultWeeklyTemplates() []ChallengeTemplate {
	return []ChallengeTemplate{
		{Title: "Стабильная неделя", Description: "Завершите 10 учебных действий за неделю", Difficulty: challenge.DifficultyMedium, XPReward: 150, MaxProgress: 10},
		{Title: "Неделя на максимум", Description: "Завершите 20 учебных действий за неделю", Difficulty: challenge.DifficultyHard, XPReward: 350, MaxProgress: 20},
	}
}

// RotateChallengesCommand issues challenges for one period type.
type RotateChallengesCommand struct {
	// Period is "daily" or "weekly".
	Period challenge.Type

	// Now overrides the clock. Defaults to time.Now.
	Now time.Time
}

// Validate validates the command.
func (c RotateChallengesCommand) Validate() error {
	if !c.Period.IsValid() {
		return errors.New("rotate_challenges: period must be daily or weekly")
	}
	return nil
}

// RotateChallengesResult contains the result of a rotation pass.
type RotateChallengesResult struct {
	// Period that was rotated.
	Period challenge.Type

	// LearnersSeen is how many learners were considered.
	LearnersSeen int

	// Issued is how many new challenges were created.
	Issued int

	// Skipped is how many learners already had an active challenge
	// of this period type.
	Skipped int

	// WindowStart and WindowEnd bound the issued challenges.
	WindowStart time.Time
	WindowEnd   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RotateChallengesHandler handles the RotateChallengesCommand.
type RotateChallengesHandler struct {
	challengeRepo  challenge.Repository
	learnerRepo    learner.Repository
	eventPublisher shared.EventPublisher

	// Configuration
	dailyTemplates  []ChallengeTemplate
	weeklyTemplates []ChallengeTemplate
	pageSize        int
	rng             *rand.Rand
}

// RotateChallengesHandlerConfig contains configuration for the handler.
type RotateChallengesHandlerConfig struct {
	DailyTemplates  []ChallengeTemplate
	WeeklyTemplates []ChallengeTemplate
	PageSize        int

	// Seed makes template selection deterministic in tests. Zero means
	// seed from the clock.
	Seed int64
}

// DefaultRotateChallengesHandlerConfig returns default configuration.
func DefaultRotateChallengesHandlerConfig() RotateChallengesHandlerConfig {
	return RotateChallengesHandlerConfig{
		DailyTemplates:  DefaultDailyTemplates(),
		WeeklyTemplates: DefaultWeeklyTemplates(),
		PageSize:        shared.MaxPageSize,
	}
}

// NewRotateChallengesHandler creates a new RotateChallengesHandler.
func NewRotateChallengesHandler(
	challengeRepo challenge.Repository,
	learnerRepo learner.Repository,
	eventPublisher shared.EventPublisher,
	config RotateChallengesHandlerConfig,
) *RotateChallengesHandler {
	if len(config.DailyTemplates) == 0 {
		config.DailyTemplates = DefaultDailyTemplates()
	}
	if len(config.WeeklyTemplates) == 0 {
		config.WeeklyTemplates = DefaultWeeklyTemplates()
	}
	if config.PageSize <= 0 {
		config.PageSize = shared.MaxPageSize
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &RotateChallengesHandler{
		challengeRepo:   challengeRepo,
		learnerRepo:     learnerRepo,
		eventPublisher:  eventPublisher,
		dailyTemplates:  config.DailyTemplates,
		weeklyTemplates: config.WeeklyTemplates,
		pageSize:        config.PageSize,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// Handle executes a rotation pass over all learners.
func (h *RotateChallengesHandler) Handle(ctx context.Context, cmd RotateChallengesCommand) (*RotateChallengesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("rotate_challenges: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	windowStart, windowEnd := h.window(cmd.Period, now)

	result := &RotateChallengesResult{
		Period:      cmd.Period,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	page := shared.Pagination{Page: 1, PageSize: h.pageSize}
	for {
		learners, err := h.learnerRepo.GetAll(ctx, page)
		if err != nil {
			return result, fmt.Errorf("rotate_challenges: failed to list learners: %w", err)
		}
		if len(learners) == 0 {
			break
		}

		for _, lrn := range learners {
			result.LearnersSeen++

			// Suspended learners get no challenges until reinstated.
			if !lrn.Status.CanEarnXP() {
				continue
			}

			hasActive, err := h.challengeRepo.HasActiveOfType(ctx, lrn.ID, cmd.Period, now)
			if err != nil {
				return result, fmt.Errorf("rotate_challenges: failed to check active challenges: %w", err)
			}
			if hasActive {
				result.Skipped++
				continue
			}

			tmpl := h.pick(cmd.Period)
			ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
				LearnerID:   lrn.ID,
				Type:        cmd.Period,
				Title:       tmpl.Title,
				Description: tmpl.Description,
				Difficulty:  tmpl.Difficulty,
				XPReward:    tmpl.XPReward,
				MaxProgress: tmpl.MaxProgress,
				IssuedAt:    windowStart,
				ExpiresAt:   windowEnd,
			})
			if err != nil {
				return result, fmt.Errorf("rotate_challenges: invalid template %q: %w", tmpl.Title, err)
			}

			if err := h.challengeRepo.Create(ctx, ch); err != nil {
				if shared.IsAlreadyExists(err) {
					result.Skipped++
					continue
				}
				return result, fmt.Errorf("rotate_challenges: failed to create challenge: %w", err)
			}
			result.Issued++
		}

		if len(learners) < h.pageSize {
			break
		}
		page.Page++
	}

	rotatedEvent := shared.NewChallengesRotatedEvent(string(cmd.Period), result.Issued, windowStart, windowEnd)
	// Publish failure is non-fatal: the challenges are already issued.
	_ = h.eventPublisher.Publish(rotatedEvent)

	return result, nil
}

// window computes the challenge validity window for the period containing now.
func (h *RotateChallengesHandler) window(period challenge.Type, now time.Time) (time.Time, time.Time) {
	if period == challenge.TypeWeekly {
		start := timeutil.StartOfWeek(now)
		return start, start.AddDate(0, 0, 7)
	}
	start := timeutil.StartOfDay(now)
	return start, start.AddDate(0, 0, 1)
}

// pick selects a template for the period.
func (h *RotateChallengesHandler) pick(period challenge.Type) ChallengeTemplate {
	pool := h.dailyTemplates
	if period == challenge.TypeWeekly {
		pool = h.weeklyTemplates
	}
	return pool[h.rng.Intn(len(pool))]
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE CHALLENGES COMMAND
// Terminal sweep for challenges whose window closed without a claim.
// Expiry itself is lazy (computed from ExpiresAt on every read); this
// sweep only publishes the terminal events exactly once per challenge.
// ══════════════════════════════════════════════════════════════════════════════

// ExpireChallengesCommand sweeps expired unclaimed challenges.
type ExpireChallengesCommand struct {
	// Now overrides the clock. Defaults to time.Now.
	Now time.Time

	// Limit caps how many challenges one sweep processes.
	Limit int
}

// ExpireChallengesResult contains the result of an expiry sweep.
type ExpireChallengesResult struct {
	// Expired is how many challenges were marked and announced.
	Expired int
}

// ExpireChallengesHandler handles the ExpireChallengesCommand.
type ExpireChallengesHandler struct {
	challengeRepo  challenge.Repository
	eventPublisher shared.EventPublisher
}

// NewExpireChallengesHandler creates a new ExpireChallengesHandler.
func NewExpireChallengesHandler(
	challengeRepo challenge.Repository,
	eventPublisher shared.EventPublisher,
) *ExpireChallengesHandler {
	return &ExpireChallengesHandler{
		challengeRepo:  challengeRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes one expiry sweep.
func (h *ExpireChallengesHandler) Handle(ctx context.Context, cmd ExpireChallengesCommand) (*ExpireChallengesResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = 500
	}

	expired, err := h.challengeRepo.ListExpiredUnclaimed(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expire_challenges: failed to list expired challenges: %w", err)
	}

	result := &ExpireChallengesResult{}
	for _, ch := range expired {
		ev := shared.NewChallengeExpiredEvent(
			string(ch.LearnerID),
			ch.ID,
			ch.Progress,
			ch.MaxProgress,
			ch.ExpiresAt,
		)
		if err := h.eventPublisher.Publish(ev); err != nil {
			// Leave the challenge unmarked so the next sweep retries.
			continue
		}
		if err := h.challengeRepo.MarkExpiryNotified(ctx, ch.ID); err != nil {
			return result, fmt.Errorf("expire_challenges: failed to mark challenge %s: %w", ch.ID, err)
		}
		result.Expired++
	}

	return result, nil
}
