package challenge

import (
	"context"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над челленджами учеников.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт новый челлендж.
	// Возвращает ErrAlreadyExists, если челлендж с таким ID уже есть.
	Create(ctx context.Context, c *Challenge) error

	// GetByID возвращает челлендж по ID.
	// Возвращает ErrChallengeNotFound, если челлендж не найден.
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// Update сохраняет изменённый челлендж (прогресс, получение награды).
	// Возвращает ErrChallengeNotFound, если челлендж не найден.
	Update(ctx context.Context, c *Challenge) error

	// ─────────────────────────────────────────────────────────────────────────
	// Active Set
	// ─────────────────────────────────────────────────────────────────────────

	// ListActive возвращает активные челленджи ученика: окно не истекло
	// к моменту now и награда не получена. Полученные и истёкшие в
	// активное множество не входят.
	ListActive(ctx context.Context, learnerID shared.LearnerID, now time.Time) ([]*Challenge, error)

	// ListByLearner возвращает все челленджи ученика за период.
	ListByLearner(ctx context.Context, learnerID shared.LearnerID, from, to time.Time) ([]*Challenge, error)

	// HasActiveOfType проверяет, есть ли у ученика активный челлендж
	// данного периода. Используется ротацией, чтобы не выдавать дубликаты.
	HasActiveOfType(ctx context.Context, learnerID shared.LearnerID, challengeType Type, now time.Time) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Expiry Sweep
	// ─────────────────────────────────────────────────────────────────────────

	// ListExpiredUnclaimed возвращает челленджи, чьё окно закрылось
	// без получения награды, для публикации событий истечения.
	ListExpiredUnclaimed(ctx context.Context, before time.Time, limit int) ([]*Challenge, error)

	// MarkExpiryNotified отмечает, что событие истечения опубликовано,
	// чтобы обход не возвращал челлендж повторно.
	MarkExpiryNotified(ctx context.Context, challengeID string) error
}
