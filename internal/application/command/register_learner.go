package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER LEARNER COMMAND
// Creates the local progression record for a platform learner.
// Registration is idempotent on the platform ID: re-registering an
// existing learner returns the existing record.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterLearnerCommand contains the data needed to register a learner.
type RegisterLearnerCommand struct {
	// PlatformID is the learner's ID on the EduForge platform.
	PlatformID string

	// DisplayName is shown on leaderboards.
	DisplayName string

	// JoinedAt is when the learner joined the platform.
	// Defaults to now if zero.
	JoinedAt time.Time
}

// Validate validates the command.
func (c RegisterLearnerCommand) Validate() error {
	if c.PlatformID == "" {
		return errors.New("register_learner: platform_id is required")
	}
	if c.DisplayName == "" {
		return errors.New("register_learner: display_name is required")
	}
	return nil
}

// RegisterLearnerResult contains the result of registration.
type RegisterLearnerResult struct {
	// LearnerID is the internal ID (existing one if already registered).
	LearnerID string

	// AlreadyRegistered is true when the platform ID was known.
	AlreadyRegistered bool
}

// RegisterLearnerHandler handles the RegisterLearnerCommand.
type RegisterLearnerHandler struct {
	learnerRepo learner.Repository
}

// NewRegisterLearnerHandler creates a new RegisterLearnerHandler.
func NewRegisterLearnerHandler(learnerRepo learner.Repository) *RegisterLearnerHandler {
	return &RegisterLearnerHandler{learnerRepo: learnerRepo}
}

// Handle executes the register learner command.
func (h *RegisterLearnerHandler) Handle(ctx context.Context, cmd RegisterLearnerCommand) (*RegisterLearnerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_learner: validation failed: %w", err)
	}

	existing, err := h.learnerRepo.GetByPlatformID(ctx, cmd.PlatformID)
	if err == nil {
		return &RegisterLearnerResult{
			LearnerID:         string(existing.ID),
			AlreadyRegistered: true,
		}, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("register_learner: failed to look up platform id: %w", err)
	}

	lrn, err := learner.NewLearner(learner.NewLearnerParams{
		PlatformID:  cmd.PlatformID,
		DisplayName: cmd.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}
	if !cmd.JoinedAt.IsZero() {
		lrn.JoinedAt = cmd.JoinedAt.UTC()
	}

	if err := h.learnerRepo.Create(ctx, lrn); err != nil {
		// Concurrent registration of the same platform ID loses the race
		// but still succeeds from the caller's point of view.
		if shared.IsAlreadyExists(err) {
			existing, lookupErr := h.learnerRepo.GetByPlatformID(ctx, cmd.PlatformID)
			if lookupErr != nil {
				return nil, fmt.Errorf("register_learner: %w", lookupErr)
			}
			return &RegisterLearnerResult{
				LearnerID:         string(existing.ID),
				AlreadyRegistered: true,
			}, nil
		}
		return nil, fmt.Errorf("register_learner: failed to create learner: %w", err)
	}

	return &RegisterLearnerResult{LearnerID: string(lrn.ID)}, nil
}
