// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Ledger events
	EventXPRecorded EventType = "ledger.xp_recorded"

	// Progression events
	EventLevelUp        EventType = "progression.level_up"
	EventStreakExtended EventType = "progression.streak_extended"
	EventStreakBroken   EventType = "progression.streak_broken"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventRewardGranted       EventType = "achievement.reward_granted"

	// Challenge events
	EventChallengeProgressed EventType = "challenge.progressed"
	EventChallengeCompleted  EventType = "challenge.completed"
	EventChallengeClaimed    EventType = "challenge.claimed"
	EventChallengeExpired    EventType = "challenge.expired"
	EventChallengesRotated   EventType = "challenge.rotated"

	// Leaderboard events
	EventRankChanged EventType = "leaderboard.rank_changed"

	// System events
	EventSyncCompleted EventType = "system.sync_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// XPRecordedEvent is emitted when an XP event is appended to a learner's ledger.
type XPRecordedEvent struct {
	BaseEvent
	LearnerID   string `json:"learner_id"`
	LedgerEvent string `json:"ledger_event_id"`
	Amount      int    `json:"amount"`
	NewTotal    int    `json:"new_total"`
	Source      string `json:"source"` // e.g., "module_complete", "quiz_pass"
	Reference   string `json:"reference,omitempty"`
}

// Payload implements Event interface.
func (e XPRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"ledger_event_id": e.LedgerEvent,
		"amount":          e.Amount,
		"new_total":       e.NewTotal,
		"source":          e.Source,
		"reference":       e.Reference,
	}
}

// NewXPRecordedEvent creates a new XPRecordedEvent.
func NewXPRecordedEvent(learnerID, ledgerEventID string, amount, newTotal int, source string) XPRecordedEvent {
	return XPRecordedEvent{
		BaseEvent:   NewBaseEvent(EventXPRecorded, learnerID),
		LearnerID:   learnerID,
		LedgerEvent: ledgerEventID,
		Amount:      amount,
		NewTotal:    newTotal,
		Source:      source,
	}
}

// WithReference attaches the originating content reference (module, quiz, challenge).
func (e XPRecordedEvent) WithReference(ref string) XPRecordedEvent {
	e.Reference = ref
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpEvent is emitted when a learner's total XP crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	LearnerID string `json:"learner_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id": e.LearnerID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"total_xp":   e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(learnerID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, learnerID),
		LearnerID: learnerID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakExtendedEvent is emitted when a learner's daily streak grows.
type StreakExtendedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	IsRecord      bool   `json:"is_record"`
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"is_record":      e.IsRecord,
	}
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(learnerID string, current, longest int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:     NewBaseEvent(EventStreakExtended, learnerID),
		LearnerID:     learnerID,
		CurrentStreak: current,
		LongestStreak: longest,
		IsRecord:      current >= longest,
	}
}

// StreakBrokenEvent is emitted when a learner misses a day and the streak resets.
type StreakBrokenEvent struct {
	BaseEvent
	LearnerID      string `json:"learner_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(learnerID string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, learnerID),
		LearnerID:      learnerID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a learner satisfies an achievement requirement.
type AchievementUnlockedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	RewardXP      int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"achievement_id": e.AchievementID,
		"title":          e.Title,
		"reward_xp":      e.RewardXP,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(learnerID, achievementID, title string, rewardXP int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, learnerID),
		LearnerID:     learnerID,
		AchievementID: achievementID,
		Title:         title,
		RewardXP:      rewardXP,
	}
}

// RewardGrantedEvent is emitted exactly once per (learner, achievement)
// when the unlock reward lands in the ledger.
type RewardGrantedEvent struct {
	BaseEvent
	LearnerID     string `json:"learner_id"`
	AchievementID string `json:"achievement_id"`
	RewardXP      int    `json:"reward_xp"`
	LedgerEvent   string `json:"ledger_event_id"`
}

// Payload implements Event interface.
func (e RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"achievement_id":  e.AchievementID,
		"reward_xp":       e.RewardXP,
		"ledger_event_id": e.LedgerEvent,
	}
}

// NewRewardGrantedEvent creates a new RewardGrantedEvent.
func NewRewardGrantedEvent(learnerID, achievementID string, rewardXP int, ledgerEventID string) RewardGrantedEvent {
	return RewardGrantedEvent{
		BaseEvent:     NewBaseEvent(EventRewardGranted, learnerID),
		LearnerID:     learnerID,
		AchievementID: achievementID,
		RewardXP:      rewardXP,
		LedgerEvent:   ledgerEventID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeProgressedEvent is emitted when a learner advances a challenge counter.
type ChallengeProgressedEvent struct {
	BaseEvent
	LearnerID   string `json:"learner_id"`
	ChallengeID string `json:"challenge_id"`
	Progress    int    `json:"progress"`
	Target      int    `json:"target"`
}

// Payload implements Event interface.
func (e ChallengeProgressedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":   e.LearnerID,
		"challenge_id": e.ChallengeID,
		"progress":     e.Progress,
		"target":       e.Target,
	}
}

// NewChallengeProgressedEvent creates a new ChallengeProgressedEvent.
func NewChallengeProgressedEvent(learnerID, challengeID string, progress, target int) ChallengeProgressedEvent {
	return ChallengeProgressedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeProgressed, challengeID),
		LearnerID:   learnerID,
		ChallengeID: challengeID,
		Progress:    progress,
		Target:      target,
	}
}

// ChallengeCompletedEvent is emitted when progress reaches the target and the
// challenge becomes claimable.
type ChallengeCompletedEvent struct {
	BaseEvent
	LearnerID   string `json:"learner_id"`
	ChallengeID string `json:"challenge_id"`
	RewardXP    int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":   e.LearnerID,
		"challenge_id": e.ChallengeID,
		"reward_xp":    e.RewardXP,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(learnerID, challengeID string, rewardXP int) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeCompleted, challengeID),
		LearnerID:   learnerID,
		ChallengeID: challengeID,
		RewardXP:    rewardXP,
	}
}

// ChallengeClaimedEvent is emitted when a learner claims a completed challenge reward.
type ChallengeClaimedEvent struct {
	BaseEvent
	LearnerID   string `json:"learner_id"`
	ChallengeID string `json:"challenge_id"`
	RewardXP    int    `json:"reward_xp"`
	LedgerEvent string `json:"ledger_event_id"`
}

// Payload implements Event interface.
func (e ChallengeClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":      e.LearnerID,
		"challenge_id":    e.ChallengeID,
		"reward_xp":       e.RewardXP,
		"ledger_event_id": e.LedgerEvent,
	}
}

// NewChallengeClaimedEvent creates a new ChallengeClaimedEvent.
func NewChallengeClaimedEvent(learnerID, challengeID string, rewardXP int, ledgerEventID string) ChallengeClaimedEvent {
	return ChallengeClaimedEvent{
		BaseEvent:   NewBaseEvent(EventChallengeClaimed, challengeID),
		LearnerID:   learnerID,
		ChallengeID: challengeID,
		RewardXP:    rewardXP,
		LedgerEvent: ledgerEventID,
	}
}

// ChallengeExpiredEvent is emitted when a challenge window closes without a claim.
type ChallengeExpiredEvent struct {
	BaseEvent
	LearnerID     string    `json:"learner_id"`
	ChallengeID   string    `json:"challenge_id"`
	FinalProgress int       `json:"final_progress"`
	Target        int       `json:"target"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// Payload implements Event interface.
func (e ChallengeExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":     e.LearnerID,
		"challenge_id":   e.ChallengeID,
		"final_progress": e.FinalProgress,
		"target":         e.Target,
		"expired_at":     e.ExpiredAt.Format(time.RFC3339),
	}
}

// NewChallengeExpiredEvent creates a new ChallengeExpiredEvent.
func NewChallengeExpiredEvent(learnerID, challengeID string, finalProgress, target int, expiredAt time.Time) ChallengeExpiredEvent {
	return ChallengeExpiredEvent{
		BaseEvent:     NewBaseEvent(EventChallengeExpired, challengeID),
		LearnerID:     learnerID,
		ChallengeID:   challengeID,
		FinalProgress: finalProgress,
		Target:        target,
		ExpiredAt:     expiredAt,
	}
}

// ChallengesRotatedEvent is emitted after the scheduler issues a fresh set
// of daily or weekly challenges.
type ChallengesRotatedEvent struct {
	BaseEvent
	Period      string    `json:"period"` // "daily" or "weekly"
	IssuedCount int       `json:"issued_count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// Payload implements Event interface.
func (e ChallengesRotatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period":       e.Period,
		"issued_count": e.IssuedCount,
		"window_start": e.WindowStart.Format(time.RFC3339),
		"window_end":   e.WindowEnd.Format(time.RFC3339),
	}
}

// NewChallengesRotatedEvent creates a new ChallengesRotatedEvent.
func NewChallengesRotatedEvent(period string, issuedCount int, windowStart, windowEnd time.Time) ChallengesRotatedEvent {
	return ChallengesRotatedEvent{
		BaseEvent:   NewBaseEvent(EventChallengesRotated, period),
		Period:      period,
		IssuedCount: issuedCount,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a learner's leaderboard rank changes.
type RankChangedEvent struct {
	BaseEvent
	LearnerID  string `json:"learner_id"`
	OldRank    int    `json:"old_rank"`
	NewRank    int    `json:"new_rank"`
	RankChange int    `json:"rank_change"` // Positive = moved up, Negative = moved down
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":  e.LearnerID,
		"old_rank":    e.OldRank,
		"new_rank":    e.NewRank,
		"rank_change": e.RankChange,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(learnerID string, oldRank, newRank int) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:  NewBaseEvent(EventRankChanged, learnerID),
		LearnerID:  learnerID,
		OldRank:    oldRank,
		NewRank:    newRank,
		RankChange: oldRank - newRank, // Positive means moved up
	}
}

// MovedUp returns true if the learner moved up in rank.
func (e RankChangedEvent) MovedUp() bool {
	return e.RankChange > 0
}

// MovedDown returns true if the learner moved down in rank.
func (e RankChangedEvent) MovedDown() bool {
	return e.RankChange < 0
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncCompletedEvent is emitted after a counter sync against the Platform API.
type SyncCompletedEvent struct {
	BaseEvent
	LearnersSynced int           `json:"learners_synced"`
	Failures       int           `json:"failures"`
	Duration       time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learners_synced": e.LearnersSynced,
		"failures":        e.Failures,
		"duration":        e.Duration.String(),
	}
}

// NewSyncCompletedEvent creates a new SyncCompletedEvent.
func NewSyncCompletedEvent(learnersSynced, failures int, duration time.Duration) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent:      NewBaseEvent(EventSyncCompleted, "sync"),
		LearnersSynced: learnersSynced,
		Failures:       failures,
		Duration:       duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
