package learner

import (
	"context"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции над учениками.
type Repository interface {
	// Create создаёт нового ученика.
	// Возвращает ErrAlreadyExists, если ученик уже существует.
	Create(ctx context.Context, l *Learner) error

	// GetByID возвращает ученика по внутреннему ID.
	// Возвращает ErrLearnerNotFound, если ученик не найден.
	GetByID(ctx context.Context, id shared.LearnerID) (*Learner, error)

	// GetByPlatformID возвращает ученика по идентификатору платформы.
	// Возвращает ErrLearnerNotFound, если ученик не найден.
	GetByPlatformID(ctx context.Context, platformID string) (*Learner, error)

	// Update обновляет данные ученика.
	// Возвращает ErrLearnerNotFound, если ученик не найден.
	Update(ctx context.Context, l *Learner) error

	// GetAll возвращает учеников с пагинацией, по убыванию TotalXP.
	GetAll(ctx context.Context, p shared.Pagination) ([]*Learner, error)

	// GetByIDs возвращает учеников по списку ID.
	GetByIDs(ctx context.Context, ids []shared.LearnerID) ([]*Learner, error)

	// Count возвращает общее количество учеников.
	Count(ctx context.Context) (int, error)

	// FindStale возвращает учеников, счётчики которых не синхронизировались
	// дольше указанного срока. Используется фоновой синхронизацией.
	FindStale(ctx context.Context, olderThan time.Duration, limit int) ([]*Learner, error)

	// FindActiveYesterday возвращает учеников, чья последняя активность
	// пришлась на указанный день. Используется выдачей бонуса за серию.
	FindActiveYesterday(ctx context.Context, day time.Time) ([]*Learner, error)

	// Exists проверяет существование ученика по ID.
	Exists(ctx context.Context, id shared.LearnerID) (bool, error)
}

// Cache определяет операции кеширования снимков прогресса ученика.
// Кеш служит последним известным состоянием при недоступности платформы.
type Cache interface {
	// Get получает ученика из кеша.
	Get(ctx context.Context, id shared.LearnerID) (*Learner, error)

	// Set сохраняет ученика в кеш.
	Set(ctx context.Context, l *Learner, ttl time.Duration) error

	// Invalidate удаляет записи ученика из кеша.
	Invalidate(ctx context.Context, id shared.LearnerID) error
}
