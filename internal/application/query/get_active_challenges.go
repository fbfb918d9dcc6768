package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE CHALLENGES QUERY
// Возвращает активные челленджи ученика: окно не истекло, награда не
// получена. Статус вычисляется лениво на момент запроса, поэтому
// челлендж с истёкшим окном никогда не попадёт в ответ, даже если
// фоновая зачистка ещё не прошла.
// ══════════════════════════════════════════════════════════════════════════════

// GetActiveChallengesQuery содержит параметры запроса.
type GetActiveChallengesQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// Type - фильтр по типу ("daily", "weekly", пусто = все).
	Type string

	// Now переопределяет часы (для тестов). По умолчанию time.Now.
	Now time.Time
}

// Validate проверяет корректность параметров запроса.
func (q *GetActiveChallengesQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner_id is required")
	}
	if q.Type != "" && !challenge.Type(q.Type).IsValid() {
		return errors.New("type must be daily or weekly")
	}
	return nil
}

// ChallengeDTO - DTO для челленджа.
type ChallengeDTO struct {
	// ID - идентификатор челленджа.
	ID string `json:"id"`

	// Type - тип: "daily" или "weekly".
	Type string `json:"type"`

	// Title - название.
	Title string `json:"title"`

	// Description - описание условия.
	Description string `json:"description"`

	// Difficulty - сложность: "easy", "medium", "hard".
	Difficulty string `json:"difficulty"`

	// Status - статус на момент запроса.
	Status string `json:"status"`

	// Progress - текущий прогресс.
	Progress int `json:"progress"`

	// Target - целевое значение.
	Target int `json:"target"`

	// ProgressPercent - процент выполнения (0-100).
	ProgressPercent int `json:"progress_percent"`

	// XPReward - награда за выполнение.
	XPReward int `json:"xp_reward"`

	// ExpiresAt - конец окна действия.
	ExpiresAt time.Time `json:"expires_at"`

	// TimeLeft - оставшееся время окна.
	TimeLeft time.Duration `json:"time_left"`
}

// GetActiveChallengesResult содержит результат запроса.
type GetActiveChallengesResult struct {
	// Challenges - активные челленджи, claimable первыми.
	Challenges []ChallengeDTO `json:"challenges"`

	// ClaimableCount - сколько наград готово к получению.
	ClaimableCount int `json:"claimable_count"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetActiveChallengesHandler handles the GetActiveChallengesQuery.
type GetActiveChallengesHandler struct {
	challengeRepo challenge.Repository
}

// NewGetActiveChallengesHandler creates a new GetActiveChallengesHandler.
func NewGetActiveChallengesHandler(challengeRepo challenge.Repository) *GetActiveChallengesHandler {
	return &GetActiveChallengesHandler{challengeRepo: challengeRepo}
}

// Handle executes the get active challenges query.
func (h *GetActiveChallengesHandler) Handle(ctx context.Context, q GetActiveChallengesQuery) (*GetActiveChallengesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_active_challenges: %w", err)
	}

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	lid, err := shared.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("get_active_challenges: %w", err)
	}

	active, err := h.challengeRepo.ListActive(ctx, lid, now)
	if err != nil {
		return nil, fmt.Errorf("get_active_challenges: failed to list challenges: %w", err)
	}

	result := &GetActiveChallengesResult{
		Challenges:  make([]ChallengeDTO, 0, len(active)),
		GeneratedAt: now,
	}

	for _, ch := range active {
		if q.Type != "" && string(ch.Type) != q.Type {
			continue
		}
		status := ch.StatusAt(now)
		// The repository filter and the lazy status check can disagree
		// around the window boundary. The entity wins.
		if !status.IsActive() {
			continue
		}
		if status == challenge.StatusClaimable {
			result.ClaimableCount++
		}
		result.Challenges = append(result.Challenges, ChallengeDTO{
			ID:              ch.ID,
			Type:            string(ch.Type),
			Title:           ch.Title,
			Description:     ch.Description,
			Difficulty:      string(ch.Difficulty),
			Status:          string(status),
			Progress:        ch.Progress,
			Target:          ch.MaxProgress,
			ProgressPercent: ch.ProgressPercent(),
			XPReward:        int(ch.XPReward),
			ExpiresAt:       ch.ExpiresAt,
			TimeLeft:        ch.TimeLeft(now),
		})
	}

	// Claimable first, then by soonest expiry.
	sort.SliceStable(result.Challenges, func(i, j int) bool {
		a, b := result.Challenges[i], result.Challenges[j]
		if a.Status != b.Status {
			return a.Status == string(challenge.StatusClaimable)
		}
		return a.ExpiresAt.Before(b.ExpiresAt)
	})

	return result, nil
}
