package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE CHALLENGES COMMAND
// Moves challenge progress forward in response to learner actions.
// Advancing never awards XP by itself: completion only flips the challenge
// to claimable, and the reward is minted when the learner claims it.
// ══════════════════════════════════════════════════════════════════════════════

// AdvanceChallengeCommand advances a single challenge by an explicit amount.
type AdvanceChallengeCommand struct {
	// ChallengeID identifies the challenge to advance.
	ChallengeID string

	// LearnerID must match the challenge owner.
	LearnerID string

	// IncrementBy is the number of progress units to add.
	IncrementBy int

	// Now overrides the clock (used by the worker). Defaults to time.Now.
	Now time.Time

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c AdvanceChallengeCommand) Validate() error {
	if c.ChallengeID == "" {
		return errors.New("advance_challenge: challenge_id is required")
	}
	if c.LearnerID == "" {
		return errors.New("advance_challenge: learner_id is required")
	}
	return nil
}

// AdvanceChallengeResult contains the outcome of advancing a challenge.
type AdvanceChallengeResult struct {
	// ChallengeID is the challenge that was advanced.
	ChallengeID string

	// Advanced is false when the advance was a no-op: the challenge was
	// already claimable, claimed or expired, or the increment was not
	// positive. A no-op is not an error.
	Advanced bool

	// Progress and Target describe the state after the advance.
	Progress int
	Target   int

	// BecameClaimable is true if this advance hit the target.
	BecameClaimable bool

	// Events contains domain events generated during the advance.
	Events []shared.Event
}

// AdvanceChallengesHandler advances challenges, either one at a time or in
// bulk for every active challenge that qualifies for a learner action.
type AdvanceChallengesHandler struct {
	challengeRepo  challenge.Repository
	eventPublisher shared.EventPublisher
}

// NewAdvanceChallengesHandler creates a new AdvanceChallengesHandler.
func NewAdvanceChallengesHandler(
	challengeRepo challenge.Repository,
	eventPublisher shared.EventPublisher,
) *AdvanceChallengesHandler {
	return &AdvanceChallengesHandler{
		challengeRepo:  challengeRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the advance challenge command for a single challenge.
func (h *AdvanceChallengesHandler) Handle(ctx context.Context, cmd AdvanceChallengeCommand) (*AdvanceChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("advance_challenge: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: failed to load challenge: %w", err)
	}
	if string(ch.LearnerID) != cmd.LearnerID {
		return nil, fmt.Errorf("advance_challenge: %w", shared.ErrChallengeNotFound)
	}

	result := h.advance(ch, cmd.IncrementBy, now, cmd.CorrelationID)

	if result.Advanced {
		if err := h.challengeRepo.Update(ctx, ch); err != nil {
			return nil, fmt.Errorf("advance_challenge: failed to persist progress: %w", err)
		}
		h.publish(result.Events)
	}

	return result, nil
}

// AdvanceForAction advances every active challenge of the learner that
// qualifies for the given XP source by one unit. Reward sources never
// advance challenges, otherwise claiming one challenge could complete
// another and reward loops become possible.
func (h *AdvanceChallengesHandler) AdvanceForAction(ctx context.Context, learnerID string, source string, now time.Time) ([]*challenge.Challenge, error) {
	if !ledger.Source(source).IsValid() || ledger.Source(source).IsReward() {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	lid, err := shared.NewLearnerID(learnerID)
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: %w", err)
	}

	active, err := h.challengeRepo.ListActive(ctx, lid, now)
	if err != nil {
		return nil, fmt.Errorf("advance_challenge: failed to list active challenges: %w", err)
	}

	var updated []*challenge.Challenge
	for _, ch := range active {
		result := h.advance(ch, 1, now, "")
		if !result.Advanced {
			continue
		}
		if err := h.challengeRepo.Update(ctx, ch); err != nil {
			return updated, fmt.Errorf("advance_challenge: failed to persist progress: %w", err)
		}
		h.publish(result.Events)
		updated = append(updated, ch)
	}

	return updated, nil
}

// advance applies the increment to the entity and collects the events.
func (h *AdvanceChallengesHandler) advance(ch *challenge.Challenge, incrementBy int, now time.Time, correlationID string) *AdvanceChallengeResult {
	result := &AdvanceChallengeResult{
		ChallengeID: ch.ID,
		Target:      ch.MaxProgress,
	}

	wasClaimable := ch.StatusAt(now) == challenge.StatusClaimable

	result.Advanced = ch.Advance(incrementBy, now)
	result.Progress = ch.Progress

	if !result.Advanced {
		return result
	}

	progressed := shared.NewChallengeProgressedEvent(
		string(ch.LearnerID),
		ch.ID,
		ch.Progress,
		ch.MaxProgress,
	)
	if correlationID != "" {
		progressed.BaseEvent = progressed.BaseEvent.WithCorrelationID(correlationID)
	}
	result.Events = append(result.Events, progressed)

	if !wasClaimable && ch.StatusAt(now) == challenge.StatusClaimable {
		result.BecameClaimable = true
		completed := shared.NewChallengeCompletedEvent(
			string(ch.LearnerID),
			ch.ID,
			int(ch.XPReward),
		)
		if correlationID != "" {
			completed.BaseEvent = completed.BaseEvent.WithCorrelationID(correlationID)
		}
		result.Events = append(result.Events, completed)
	}

	return result
}

func (h *AdvanceChallengesHandler) publish(events []shared.Event) {
	for _, ev := range events {
		// Publish failures are non-fatal: progress is already persisted.
		_ = h.eventPublisher.Publish(ev)
	}
}
