// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/shared"
	"github.com/eduforge/progression-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP RECORDED HANDLER
// Обрабатывает событие записи XP в журнал.
//
// Ключевые функции:
// 1. Продвижение активных челленджей - учебные действия двигают счётчики
// 2. Обновление рейтинга - новый суммарный XP попадает в sorted set
//
// Наградные источники (challenge_claim, achievement_unlock, streak_bonus)
// не продвигают челленджи: иначе получение одной награды могло бы
// завершить другой челлендж и породить цепочку наград.
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeAdvancer продвигает активные челленджи ученика.
// Реализуется command.AdvanceChallengesHandler.
type ChallengeAdvancer interface {
	AdvanceForAction(ctx context.Context, learnerID string, source string, now time.Time) ([]*challenge.Challenge, error)
}

// ScoreUpdater обновляет счёт ученика в рейтинге.
type ScoreUpdater interface {
	UpdateScore(ctx context.Context, learnerID string, totalXP int64) error
}

// OnXPRecordedHandler обрабатывает событие записи XP.
type OnXPRecordedHandler struct {
	advancer ChallengeAdvancer
	scores   ScoreUpdater
	logger   *logger.Logger
}

// NewOnXPRecordedHandler создаёт новый обработчик.
func NewOnXPRecordedHandler(
	advancer ChallengeAdvancer,
	scores ScoreUpdater,
	log *logger.Logger,
) *OnXPRecordedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnXPRecordedHandler{
		advancer: advancer,
		scores:   scores,
		logger:   log.With(logger.Component("on_xp_recorded")),
	}
}

// Handle обрабатывает событие записи XP.
// Реализует shared.EventHandler.
func (h *OnXPRecordedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	xpEvent, ok := event.(shared.XPRecordedEvent)
	if !ok {
		h.logger.Warn("received non-XPRecordedEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	h.logger.Info("processing xp recorded event",
		logger.LearnerID(xpEvent.LearnerID),
		logger.XPAmount(xpEvent.Amount),
		logger.XPSource(xpEvent.Source),
	)

	// 1. Продвигаем челленджи, которым это действие засчитывается.
	if _, err := h.advancer.AdvanceForAction(ctx, xpEvent.LearnerID, xpEvent.Source, xpEvent.OccurredAt()); err != nil {
		h.logger.Error("failed to advance challenges",
			logger.LearnerID(xpEvent.LearnerID),
			logger.Err(err),
		)
		// Челленджи не критичны для записи XP, продолжаем.
	}

	// 2. Обновляем счёт в рейтинге.
	if err := h.scores.UpdateScore(ctx, xpEvent.LearnerID, int64(xpEvent.NewTotal)); err != nil {
		h.logger.Error("failed to update leaderboard score",
			logger.LearnerID(xpEvent.LearnerID),
			logger.Err(err),
		)
	}

	return nil
}
