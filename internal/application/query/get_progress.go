// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Собирает полную картину прогресса ученика: уровень, XP до следующего
// уровня, серию активных дней и прогресс по достижениям.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// IncludeAchievements - включать прогресс по достижениям.
	IncludeAchievements bool

	// Now переопределяет часы (для тестов). По умолчанию time.Now.
	Now time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *GetProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id is required")
	}
	return nil
}

// LevelDTO - DTO состояния уровня.
type LevelDTO struct {
	// Level - текущий уровень (начиная с 1).
	Level int `json:"level"`

	// XPIntoLevel - XP, набранный внутри текущего уровня.
	XPIntoLevel int64 `json:"xp_into_level"`

	// XPForNextLevel - суммарный XP, необходимый для следующего уровня.
	XPForNextLevel int64 `json:"xp_for_next_level"`

	// TotalXP - суммарный XP за всё время.
	TotalXP int64 `json:"total_xp"`

	// ProgressPercent - прогресс внутри уровня (0-100).
	ProgressPercent int `json:"progress_percent"`

	// Title - название уровня.
	Title string `json:"title"`
}

// StreakDTO - DTO серии активных дней.
type StreakDTO struct {
	// CurrentStreak - живая серия на момент запроса.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - рекордная серия за всё время.
	LongestStreak int `json:"longest_streak"`

	// ActiveToday - была ли активность сегодня.
	ActiveToday bool `json:"active_today"`

	// LastActiveDate - дата последней активности (UTC).
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// AchievementProgressDTO - DTO прогресса по достижению.
type AchievementProgressDTO struct {
	// AchievementID - идентификатор достижения.
	AchievementID string `json:"achievement_id"`

	// Title - название достижения.
	Title string `json:"title"`

	// Description - описание условия.
	Description string `json:"description"`

	// BadgeColor - цвет значка: "bronze", "silver", "gold".
	BadgeColor string `json:"badge_color"`

	// Current - текущее значение счётчика (обрезано до цели).
	Current int `json:"current"`

	// Target - целевое значение счётчика.
	Target int `json:"target"`

	// Percent - процент выполнения (0-100).
	Percent int `json:"percent"`

	// IsCompleted - достигнута ли цель.
	IsCompleted bool `json:"is_completed"`

	// IsUnlocked - выдана ли награда.
	IsUnlocked bool `json:"is_unlocked"`

	// RewardXP - награда за достижение.
	RewardXP int `json:"reward_xp"`
}

// GetProgressResult содержит результат запроса прогресса.
type GetProgressResult struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string `json:"learner_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// Level - состояние уровня.
	Level LevelDTO `json:"level"`

	// Streak - состояние серии.
	Streak StreakDTO `json:"streak"`

	// Achievements - прогресс по достижениям (если запрошен).
	Achievements []AchievementProgressDTO `json:"achievements,omitempty"`

	// UnlockedCount - количество полученных достижений.
	UnlockedCount int `json:"unlocked_count"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	learnerRepo   learner.Repository
	ledgerRepo    ledger.Repository
	catalogRepo   achievement.CatalogRepository
	unlockRepo    achievement.UnlockRepository
	countersCache CountersRead
}

// CountersRead reads the last cached platform snapshot.
// The achievements section degrades to ledger-derived data when no
// snapshot is available.
type CountersRead interface {
	Get(ctx context.Context, learnerID shared.LearnerID) (progression.Counters, error)
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	learnerRepo learner.Repository,
	ledgerRepo ledger.Repository,
	catalogRepo achievement.CatalogRepository,
	unlockRepo achievement.UnlockRepository,
	countersCache CountersRead,
) *GetProgressHandler {
	return &GetProgressHandler{
		learnerRepo:   learnerRepo,
		ledgerRepo:    ledgerRepo,
		catalogRepo:   catalogRepo,
		unlockRepo:    unlockRepo,
		countersCache: countersCache,
	}
}

// Handle executes the get progress query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*GetProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	lid, err := shared.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	lrn, err := h.learnerRepo.GetByID(ctx, lid)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to load learner: %w", err)
	}

	// The ledger is the source of truth for XP. The cached total on the
	// learner row may trail it between syncs.
	totalXP, err := h.ledgerRepo.TotalXP(ctx, lid)
	if err != nil {
		return nil, fmt.Errorf("get_progress: failed to sum ledger: %w", err)
	}
	state := progression.LevelFor(totalXP)

	result := &GetProgressResult{
		LearnerID:   string(lrn.ID),
		DisplayName: lrn.DisplayName,
		Level: LevelDTO{
			Level:           state.Level,
			XPIntoLevel:     int64(state.XPIntoLevel),
			XPForNextLevel:  int64(state.XPForNextLevel),
			TotalXP:         state.TotalXP,
			ProgressPercent: state.ProgressPercent(),
			Title:           state.Title(),
		},
		Streak: StreakDTO{
			CurrentStreak: lrn.LiveStreak(now),
			LongestStreak: lrn.LongestStreak,
			ActiveToday:   !lrn.LastActiveDate.IsZero() && sameDay(lrn.LastActiveDate, now),
		},
		GeneratedAt: now,
	}
	if !lrn.LastActiveDate.IsZero() {
		d := lrn.LastActiveDate
		result.Streak.LastActiveDate = &d
	}

	if !q.IncludeAchievements {
		return result, nil
	}

	achievements, unlockedCount, err := h.achievementProgress(ctx, lrn, int64(totalXP), now)
	if err != nil {
		return nil, err
	}
	result.Achievements = achievements
	result.UnlockedCount = unlockedCount

	return result, nil
}

// achievementProgress assembles the learner's progress across the catalog.
func (h *GetProgressHandler) achievementProgress(ctx context.Context, lrn *learner.Learner, totalXP int64, now time.Time) ([]AchievementProgressDTO, int, error) {
	catalog, err := h.catalogRepo.GetAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("get_progress: failed to load catalog: %w", err)
	}

	unlocked, err := h.unlockRepo.UnlockedIDs(ctx, lrn.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("get_progress: failed to load unlocks: %w", err)
	}

	counters := h.countersFor(ctx, lrn, totalXP, now)

	dtos := make([]AchievementProgressDTO, 0, len(catalog))
	for _, a := range catalog {
		progress, err := achievement.ProgressFor(a, lrn.ID, counters)
		if err != nil {
			// Unknown requirement types in the catalog are skipped
			// rather than failing the whole progress page.
			continue
		}
		dtos = append(dtos, AchievementProgressDTO{
			AchievementID: a.ID,
			Title:         a.Name,
			Description:   a.Description,
			BadgeColor:    string(a.BadgeColor),
			Current:       progress.Current,
			Target:        a.RequirementValue,
			Percent:       progress.Percent(),
			IsCompleted:   progress.IsCompleted,
			IsUnlocked:    unlocked[a.ID],
			RewardXP:      a.XPReward.Int(),
		})
	}

	unlockedCount := 0
	for _, isUnlocked := range unlocked {
		if isUnlocked {
			unlockedCount++
		}
	}

	return dtos, unlockedCount, nil
}

// countersFor returns the freshest counters snapshot available, falling
// back to locally derivable values when the cache is empty.
func (h *GetProgressHandler) countersFor(ctx context.Context, lrn *learner.Learner, totalXP int64, now time.Time) progression.Counters {
	if h.countersCache != nil {
		if cached, err := h.countersCache.Get(ctx, lrn.ID); err == nil && !cached.IsZero() {
			// Streak days are owned by this service, not the platform.
			cached.StreakDays = lrn.LiveStreak(now)
			return cached
		}
	}
	return progression.Counters{
		StreakDays: lrn.LiveStreak(now),
		TotalXP:    shared.XP(totalXP),
		Level:      lrn.Level,
		FetchedAt:  now,
	}
}

// sameDay reports whether two instants fall on the same UTC calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
