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
// CLAIM CHALLENGE COMMAND
// Converts a completed challenge into an XP reward.
// Flow: Load Challenge → Verify Owner → Claim → Mint Ledger Event →
// Persist Claim → Publish Event
// The claim state machine guarantees a challenge pays out at most once.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimChallengeCommand contains the data needed to claim a challenge reward.
type ClaimChallengeCommand struct {
	// ChallengeID identifies the challenge being claimed.
	ChallengeID string

	// LearnerID must match the challenge owner.
	LearnerID string

	// Now overrides the clock. Defaults to time.Now.
	Now time.Time

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c ClaimChallengeCommand) Validate() error {
	if c.ChallengeID == "" {
		return errors.New("claim_challenge: challenge_id is required")
	}
	if c.LearnerID == "" {
		return errors.New("claim_challenge: learner_id is required")
	}
	return nil
}

// ClaimChallengeResult contains the result of a claim.
type ClaimChallengeResult struct {
	// ChallengeID is the claimed challenge.
	ChallengeID string

	// RewardXP is the amount credited to the ledger.
	RewardXP int

	// LedgerEventID is the XP event minted for this claim.
	LedgerEventID string

	// NewTotalXP is the learner's lifetime XP after the reward.
	NewTotalXP int64

	// LeveledUp is true if the reward pushed the learner over a threshold.
	LeveledUp bool

	// ClaimedAt is when the claim was registered.
	ClaimedAt time.Time
}

// XPRecorder mints ledger events. Satisfied by RecordXPHandler.
type XPRecorder interface {
	Handle(ctx context.Context, cmd RecordXPCommand) (*RecordXPResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ClaimChallengeHandler handles the ClaimChallengeCommand.
type ClaimChallengeHandler struct {
	challengeRepo  challenge.Repository
	ledgerRepo     ledger.Repository
	xpRecorder     XPRecorder
	eventPublisher shared.EventPublisher
}

// NewClaimChallengeHandler creates a new ClaimChallengeHandler.
func NewClaimChallengeHandler(
	challengeRepo challenge.Repository,
	ledgerRepo ledger.Repository,
	xpRecorder XPRecorder,
	eventPublisher shared.EventPublisher,
) *ClaimChallengeHandler {
	return &ClaimChallengeHandler{
		challengeRepo:  challengeRepo,
		ledgerRepo:     ledgerRepo,
		xpRecorder:     xpRecorder,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the claim challenge command.
func (h *ClaimChallengeHandler) Handle(ctx context.Context, cmd ClaimChallengeCommand) (*ClaimChallengeResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("claim_challenge: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("claim_challenge: failed to load challenge: %w", err)
	}

	// A learner can only claim their own challenges. Report NotFound
	// rather than a permission error so challenge IDs cannot be probed.
	if string(ch.LearnerID) != cmd.LearnerID {
		return nil, fmt.Errorf("claim_challenge: %w", shared.ErrChallengeNotFound)
	}

	// The state machine rejects claims on in_progress, expired and
	// already-claimed challenges with distinct errors.
	if err := ch.Claim(now); err != nil {
		return nil, fmt.Errorf("claim_challenge: %w", err)
	}

	// Mint the reward before persisting the claim. If a previous attempt
	// crashed after minting, the ledger already holds a challenge_claim
	// event for this reference and we must not mint a second one.
	alreadyMinted, err := h.ledgerRepo.ExistsBySourceRef(ctx, ch.LearnerID, ledger.SourceChallengeClaim, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("claim_challenge: failed to check reward ledger: %w", err)
	}

	result := &ClaimChallengeResult{
		ChallengeID: ch.ID,
		RewardXP:    int(ch.XPReward),
		ClaimedAt:   ch.ClaimedAt,
	}

	if !alreadyMinted {
		xpResult, err := h.xpRecorder.Handle(ctx, RecordXPCommand{
			LearnerID:     cmd.LearnerID,
			Amount:        int(ch.XPReward),
			Source:        string(ledger.SourceChallengeClaim),
			Reference:     ch.ID,
			OccurredAt:    now,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			// The claim was not persisted, so the challenge is still
			// claimable and the learner can simply retry.
			return nil, fmt.Errorf("claim_challenge: failed to mint reward: %w", err)
		}
		result.LedgerEventID = xpResult.EventID
		result.NewTotalXP = xpResult.NewTotalXP
		result.LeveledUp = xpResult.LeveledUp
	}

	if err := h.challengeRepo.Update(ctx, ch); err != nil {
		return nil, fmt.Errorf("claim_challenge: failed to persist claim: %w", err)
	}

	claimedEvent := shared.NewChallengeClaimedEvent(
		cmd.LearnerID,
		ch.ID,
		int(ch.XPReward),
		result.LedgerEventID,
	)
	if cmd.CorrelationID != "" {
		claimedEvent.BaseEvent = claimedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	// Publish failure is non-fatal: the claim and the reward are durable.
	_ = h.eventPublisher.Publish(claimedEvent)

	return result, nil
}
