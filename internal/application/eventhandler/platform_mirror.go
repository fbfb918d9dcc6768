package eventhandler

import (
	"context"

	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
	"github.com/eduforge/progression-hub/pkg/logger"
	"github.com/eduforge/progression-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// PLATFORM MIRROR
//
// Платформа - источник истины для счётчиков, а хаб - для журнала XP.
// Этот обработчик зеркалирует записи журнала и пересчитанные уровни
// обратно на платформу. Доставка at-least-once: платформа дедуплицирует
// по event id, поэтому повтор после сбоя безопасен.
// ═══════════════════════════════════════════════════════════════════════════

// PlatformWriter записывает события XP и уровни на платформу.
// Реализуется platform.Client.
type PlatformWriter interface {
	PersistXpEvent(ctx context.Context, event *ledger.XpEvent) error
	PersistLevelUpdate(ctx context.Context, platformID string, level int, totalXP int64) error
}

// PlatformMirrorHandler зеркалирует события прогрессии на платформу.
type PlatformMirrorHandler struct {
	learnerRepo learner.Repository
	writer      PlatformWriter
	retrier     *retry.Retrier
	logger      *logger.Logger
}

// NewPlatformMirrorHandler создаёт новый обработчик.
func NewPlatformMirrorHandler(
	learnerRepo learner.Repository,
	writer PlatformWriter,
	log *logger.Logger,
) *PlatformMirrorHandler {
	if log == nil {
		log = logger.Default()
	}

	return &PlatformMirrorHandler{
		learnerRepo: learnerRepo,
		writer:      writer,
		retrier:     retry.PersistEventRetrier(),
		logger:      log.With(logger.Component("platform_mirror")),
	}
}

// HandleXPRecorded зеркалирует запись журнала XP.
// Реализует shared.EventHandler.
func (h *PlatformMirrorHandler) HandleXPRecorded(event shared.Event) error {
	ctx := context.Background()

	xpEvent, ok := event.(shared.XPRecordedEvent)
	if !ok {
		h.logger.Warn("received non-XPRecordedEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	platformID, err := h.resolvePlatformID(ctx, xpEvent.LearnerID)
	if err != nil {
		return err
	}

	mirrored := &ledger.XpEvent{
		ID:         shared.EventID(xpEvent.LedgerEvent),
		LearnerID:  shared.LearnerID(platformID),
		Amount:     shared.XPAmount(xpEvent.Amount),
		Source:     ledger.Source(xpEvent.Source),
		Reference:  xpEvent.Reference,
		OccurredAt: xpEvent.OccurredAt(),
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.writer.PersistXpEvent(ctx, mirrored)
	})
	if err != nil {
		h.logger.Error("failed to mirror xp event",
			logger.LearnerID(xpEvent.LearnerID),
			logger.EventID(xpEvent.LedgerEvent),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("xp event mirrored",
		logger.EventID(xpEvent.LedgerEvent),
		logger.XPAmount(xpEvent.Amount),
	)

	return nil
}

// HandleLevelUp зеркалирует пересчитанный уровень.
// Реализует shared.EventHandler.
func (h *PlatformMirrorHandler) HandleLevelUp(event shared.Event) error {
	ctx := context.Background()

	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	platformID, err := h.resolvePlatformID(ctx, levelEvent.LearnerID)
	if err != nil {
		return err
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.writer.PersistLevelUpdate(ctx, platformID, levelEvent.NewLevel, int64(levelEvent.TotalXP))
	})
	if err != nil {
		h.logger.Error("failed to mirror level update",
			logger.LearnerID(levelEvent.LearnerID),
			logger.LevelNumber(levelEvent.NewLevel),
			logger.Err(err),
		)
		return err
	}

	return nil
}

// resolvePlatformID переводит внутренний ID ученика в ID платформы.
func (h *PlatformMirrorHandler) resolvePlatformID(ctx context.Context, learnerID string) (string, error) {
	lrn, err := h.learnerRepo.GetByID(ctx, shared.LearnerID(learnerID))
	if err != nil {
		h.logger.Error("failed to resolve learner for mirroring",
			logger.LearnerID(learnerID),
			logger.Err(err),
		)
		return "", err
	}
	return lrn.PlatformID, nil
}
