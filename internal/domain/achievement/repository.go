package achievement

import (
	"context"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository определяет операции над каталогом достижений.
type CatalogRepository interface {
	// GetAll возвращает весь каталог достижений.
	GetAll(ctx context.Context) ([]*Achievement, error)

	// GetByID возвращает запись каталога по ID.
	// Возвращает ErrAchievementNotFound, если запись не найдена.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// GetByRequirementType возвращает достижения с указанным типом требования.
	GetByRequirementType(ctx context.Context, requirementType RequirementType) ([]*Achievement, error)

	// Upsert создаёт или обновляет запись каталога.
	Upsert(ctx context.Context, a *Achievement) error
}

// UnlockRepository определяет операции над разблокировками.
// Разблокировка служит признаком "награда уже выдана", поэтому
// запись должна быть идемпотентной по паре (ученик, достижение).
type UnlockRepository interface {
	// Save сохраняет разблокировку.
	// Возвращает ErrRewardAlreadyGranted, если пара (ученик, достижение)
	// уже записана; хранилище при этом не меняется.
	Save(ctx context.Context, unlock *Unlock) error

	// GetByLearner возвращает все разблокировки ученика.
	GetByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*Unlock, error)

	// UnlockedIDs возвращает множество ID разблокированных достижений ученика.
	UnlockedIDs(ctx context.Context, learnerID shared.LearnerID) (map[string]bool, error)

	// IsUnlocked проверяет, разблокировано ли достижение у ученика.
	IsUnlocked(ctx context.Context, learnerID shared.LearnerID, achievementID string) (bool, error)

	// CountByLearner возвращает количество разблокировок ученика.
	CountByLearner(ctx context.Context, learnerID shared.LearnerID) (int, error)
}
