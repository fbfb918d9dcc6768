// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// LearnerID represents a unique learner identifier (UUID format).
type LearnerID string

// IsValid checks if the learner ID is a valid UUID.
func (l LearnerID) IsValid() bool {
	_, err := uuid.Parse(string(l))
	return err == nil
}

// String returns the string representation.
func (l LearnerID) String() string {
	return string(l)
}

// IsEmpty checks if the ID is empty.
func (l LearnerID) IsEmpty() bool {
	return l == ""
}

// NewLearnerID creates a new LearnerID with validation.
func NewLearnerID(id string) (LearnerID, error) {
	lid := LearnerID(strings.ToLower(strings.TrimSpace(id)))
	if !lid.IsValid() {
		return "", ErrInvalidLearnerID
	}
	return lid, nil
}

// GenerateLearnerID creates a fresh random LearnerID.
func GenerateLearnerID() LearnerID {
	return LearnerID(uuid.NewString())
}

// EventID represents a unique XP event identifier (UUID format).
// Producers assign it, which makes ledger writes idempotent.
type EventID string

// IsValid checks if the event ID is a valid UUID.
func (e EventID) IsValid() bool {
	_, err := uuid.Parse(string(e))
	return err == nil
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// IsEmpty checks if the ID is empty.
func (e EventID) IsEmpty() bool {
	return e == ""
}

// NewEventID creates a new EventID with validation.
func NewEventID(id string) (EventID, error) {
	eid := EventID(strings.ToLower(strings.TrimSpace(id)))
	if !eid.IsValid() {
		return "", NewDomainError("shared", "NewEventID", ErrInvalidID, "invalid event ID format")
	}
	return eid, nil
}

// GenerateEventID creates a fresh random EventID.
func GenerateEventID() EventID {
	return EventID(uuid.NewString())
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents an accumulated experience point total.
// Totals only grow; individual awards are validated separately as XPAmount.
type XP int64

// MinXP is the floor for any XP total.
const MinXP XP = 0

// IsValid checks if the XP total is valid.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int returns the underlying value as int.
func (x XP) Int() int {
	return int(x)
}

// Int64 returns the underlying int64 value.
func (x XP) Int64() int64 {
	return int64(x)
}

// Add adds an award and returns the new total, floored at MinXP.
func (x XP) Add(amount XPAmount) XP {
	result := x + XP(amount)
	if result < MinXP {
		return MinXP
	}
	return result
}

// NewXP creates a new XP total with validation.
func NewXP(total int64) (XP, error) {
	if total < int64(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP total cannot be negative")
	}
	return XP(total), nil
}

// XPAmount represents a single XP award. Awards are strictly positive.
type XPAmount int

// MaxXPAward caps a single award. Nothing in the catalog grants more,
// so a larger value indicates a producer bug.
const MaxXPAward XPAmount = 10000

// IsValid checks if the award amount is within valid range.
func (a XPAmount) IsValid() bool {
	return a > 0 && a <= MaxXPAward
}

// Int returns the underlying int value.
func (a XPAmount) Int() int {
	return int(a)
}

// NewXPAmount creates a new XPAmount with validation.
func NewXPAmount(amount int) (XPAmount, error) {
	a := XPAmount(amount)
	if !a.IsValid() {
		return 0, ErrInvalidXpAmount
	}
	return a, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a learner's position in the leaderboard.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // Not yet ranked
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the learner is not yet ranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// Compare returns the difference between two ranks.
// Positive value means improvement (moved up), negative means dropped.
func (r Rank) Compare(other Rank) int {
	return int(other) - int(r)
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return Unranked, NewDomainError("shared", "NewRank", ErrNegativeValue, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: DefaultPageSize}
}
