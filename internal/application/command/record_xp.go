// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
// Every XP mutation flows through a command so the ledger stays append-only.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD XP COMMAND
// Appends an XP event to the learner's ledger and recomputes derived state.
// This is the single entry point for all XP mutations: module completions,
// quiz passes, practical approvals and bonus awards all arrive here.
// ══════════════════════════════════════════════════════════════════════════════

// RecordXPCommand contains the data needed to record an XP event.
type RecordXPCommand struct {
	// EventID is the producer-assigned idempotency key.
	// If empty, a new ID is generated (the caller loses replay protection).
	EventID string

	// LearnerID is the learner receiving the XP.
	LearnerID string

	// Amount is the XP awarded. Must be positive.
	Amount int

	// Source identifies what earned the XP (module_complete, quiz_pass, ...).
	Source string

	// Reference points at the originating entity: module ID, quiz ID,
	// challenge ID. Optional for bonus sources.
	Reference string

	// OccurredAt is when the underlying action happened.
	// Defaults to now if zero.
	OccurredAt time.Time

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RecordXPCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("record_xp: learner_id is required")
	}
	if c.Amount <= 0 {
		return errors.New("record_xp: amount must be positive")
	}
	if c.Source == "" {
		return errors.New("record_xp: source is required")
	}
	return nil
}

// RecordXPResult contains the result of recording an XP event.
type RecordXPResult struct {
	// EventID is the ID of the ledger event (existing one on replay).
	EventID string

	// WasDuplicate is true if the event ID was already in the ledger.
	// Duplicates are a success: the ledger state is exactly as requested.
	WasDuplicate bool

	// NewTotalXP is the learner's lifetime XP after this event.
	NewTotalXP int64

	// OldLevel and NewLevel bracket the level change (equal if none).
	OldLevel int
	NewLevel int

	// LeveledUp is true if the event pushed the learner over a threshold.
	LeveledUp bool

	// StreakDays is the current streak after this event.
	StreakDays int

	// StreakGrew is true if this event extended the streak.
	StreakGrew bool

	// Events contains domain events generated while handling the command.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordXPHandler handles the RecordXPCommand.
type RecordXPHandler struct {
	ledgerRepo     ledger.Repository
	learnerRepo    learner.Repository
	eventPublisher shared.EventPublisher

	// Configuration
	futureTolerance time.Duration
	now             func() time.Time
}

// RecordXPHandlerConfig contains configuration for the handler.
type RecordXPHandlerConfig struct {
	// FutureTolerance is how far ahead of the clock an event
	// timestamp may be before it is rejected.
	FutureTolerance time.Duration

	// Now supplies the reference clock for timestamp validation.
	// Defaults to time.Now; tests pin it for determinism.
	Now func() time.Time
}

// DefaultRecordXPHandlerConfig returns default configuration.
func DefaultRecordXPHandlerConfig() RecordXPHandlerConfig {
	return RecordXPHandlerConfig{
		FutureTolerance: time.Minute,
	}
}

// NewRecordXPHandler creates a new RecordXPHandler.
func NewRecordXPHandler(
	ledgerRepo ledger.Repository,
	learnerRepo learner.Repository,
	eventPublisher shared.EventPublisher,
	config RecordXPHandlerConfig,
) *RecordXPHandler {
	if config.FutureTolerance == 0 {
		config.FutureTolerance = DefaultRecordXPHandlerConfig().FutureTolerance
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}

	return &RecordXPHandler{
		ledgerRepo:      ledgerRepo,
		learnerRepo:     learnerRepo,
		eventPublisher:  eventPublisher,
		futureTolerance: config.FutureTolerance,
		now:             config.Now,
	}
}

// Handle executes the record XP command.
func (h *RecordXPHandler) Handle(ctx context.Context, cmd RecordXPCommand) (*RecordXPResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_xp: validation failed: %w", err)
	}

	// Default timestamp
	now := h.now()
	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	// Build the domain event. All validation of IDs, amount bounds and
	// source names happens inside the factory.
	event, err := ledger.NewXpEvent(ledger.NewXpEventParams{
		ID:              shared.EventID(cmd.EventID),
		LearnerID:       shared.LearnerID(cmd.LearnerID),
		Amount:          cmd.Amount,
		Source:          ledger.Source(cmd.Source),
		Reference:       cmd.Reference,
		OccurredAt:      occurredAt,
		Now:             now,
		FutureTolerance: h.futureTolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("record_xp: %w", err)
	}

	// Append to the ledger. A duplicate event ID means a replayed
	// delivery: the first append already produced every observable
	// effect, so we report success without touching anything else.
	if err := h.ledgerRepo.Append(ctx, event); err != nil {
		if shared.IsAlreadyExists(err) {
			return &RecordXPResult{
				EventID:      string(event.ID),
				WasDuplicate: true,
			}, nil
		}
		return nil, fmt.Errorf("record_xp: failed to append event: %w", err)
	}

	result := &RecordXPResult{
		EventID: string(event.ID),
		Events:  make([]shared.Event, 0, 3),
	}

	// Load the learner and apply the derived-state changes.
	lrn, err := h.learnerRepo.GetByID(ctx, event.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("record_xp: failed to load learner: %w", err)
	}

	result.OldLevel = lrn.Level

	leveledUp := lrn.ApplyXP(event.Amount)

	result.NewTotalXP = int64(lrn.TotalXP)
	result.NewLevel = lrn.Level
	result.LeveledUp = leveledUp

	// Learning activity counts towards the streak; bonus and reward
	// sources do not, otherwise claiming a reward would keep a streak
	// alive without any actual studying.
	if event.IsLearningActivity() {
		grew := lrn.RecordActivity(occurredAt)
		result.StreakGrew = grew
		if grew {
			streakEvent := shared.NewStreakExtendedEvent(
				string(lrn.ID),
				lrn.CurrentStreak,
				lrn.LongestStreak,
			)
			result.Events = append(result.Events, h.correlate(streakEvent, cmd.CorrelationID))
		}
	}
	result.StreakDays = lrn.CurrentStreak

	if err := h.learnerRepo.Update(ctx, lrn); err != nil {
		return nil, fmt.Errorf("record_xp: failed to update learner: %w", err)
	}

	xpEvent := shared.NewXPRecordedEvent(
		string(lrn.ID),
		string(event.ID),
		int(event.Amount),
		int(lrn.TotalXP),
		string(event.Source),
	)
	if event.Reference != "" {
		xpEvent = xpEvent.WithReference(event.Reference)
	}
	result.Events = append(result.Events, h.correlate(xpEvent, cmd.CorrelationID))

	if leveledUp {
		levelEvent := shared.NewLevelUpEvent(
			string(lrn.ID),
			result.OldLevel,
			result.NewLevel,
			int(lrn.TotalXP),
		)
		result.Events = append(result.Events, h.correlate(levelEvent, cmd.CorrelationID))
	}

	// Publish domain events
	for _, ev := range result.Events {
		if err := h.eventPublisher.Publish(ev); err != nil {
			// Log error but don't fail the command.
			// The ledger append already succeeded; subscribers catch up
			// on the next sync pass.
			continue
		}
	}

	return result, nil
}

// correlate attaches the correlation ID to an event when one is present.
func (h *RecordXPHandler) correlate(ev shared.Event, correlationID string) shared.Event {
	if correlationID == "" {
		return ev
	}
	switch e := ev.(type) {
	case shared.XPRecordedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.LevelUpEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.StreakExtendedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	default:
		return ev
	}
}
