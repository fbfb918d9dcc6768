package eventhandler

import (
	"context"

	"github.com/eduforge/progression-hub/internal/application/saga"
	"github.com/eduforge/progression-hub/internal/domain/shared"
	"github.com/eduforge/progression-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Запускает переоценку достижений, когда ученик повышает уровень.
//
// Повышение уровня - дешёвый триггер: счётчики платформы к этому моменту
// почти наверняка изменились, а частота событий ограничена самой
// механикой уровней. Оценка идемпотентна, поэтому лишний запуск
// безопасен.
// ═══════════════════════════════════════════════════════════════════════════

// RewardEvaluator запускает один проход оценки достижений.
// Реализуется saga.RewardFlowSaga.
type RewardEvaluator interface {
	Execute(ctx context.Context, input saga.RewardFlowInput) (*saga.RewardFlowResult, error)
}

// OnLevelUpHandler обрабатывает событие повышения уровня.
type OnLevelUpHandler struct {
	rewards RewardEvaluator
	logger  *logger.Logger
}

// NewOnLevelUpHandler создаёт новый обработчик.
func NewOnLevelUpHandler(rewards RewardEvaluator, log *logger.Logger) *OnLevelUpHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnLevelUpHandler{
		rewards: rewards,
		logger:  log.With(logger.Component("on_level_up")),
	}
}

// Handle обрабатывает событие повышения уровня.
// Реализует shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	h.logger.Info("processing level up event",
		logger.LearnerID(levelEvent.LearnerID),
		logger.LevelNumber(levelEvent.NewLevel),
	)

	result, err := h.rewards.Execute(ctx, saga.RewardFlowInput{
		LearnerID:     levelEvent.LearnerID,
		Trigger:       "level_up",
		CorrelationID: levelEvent.CorrelationID,
	})
	if err != nil {
		h.logger.Error("reward evaluation failed",
			logger.LearnerID(levelEvent.LearnerID),
			logger.Err(err),
		)
		return err
	}

	if result.HasNewUnlocks() {
		h.logger.Info("achievements unlocked",
			logger.LearnerID(levelEvent.LearnerID),
			logger.Int("unlocks", len(result.NewUnlocks)),
			logger.XPAmount(result.TotalRewardXP),
		)
	}

	return nil
}
