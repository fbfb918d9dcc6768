// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")
	ErrNotClaimable     = errors.New("not claimable")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "achievement", "challenge"
	Op      string // Operation that failed, e.g., "Record", "Claim"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Create", ErrAlreadyExists, "learner already exists")
	ErrInvalidLearnerID     = NewDomainError("learner", "Validate", ErrInvalidID, "invalid learner ID")
)

// Ledger domain errors
var (
	ErrInvalidXpAmount = NewDomainError("ledger", "Record", ErrValueOutOfRange, "xp amount must be positive")
	ErrInvalidXpSource = NewDomainError("ledger", "Record", ErrInvalidInput, "unknown xp source")
	ErrEventNotFound   = NewDomainError("ledger", "Find", ErrNotFound, "xp event not found")
	ErrDuplicateEvent  = NewDomainError("ledger", "Record", ErrAlreadyExists, "xp event already recorded")
)

// Achievement domain errors
var (
	ErrAchievementNotFound  = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrUnknownRequirement   = NewDomainError("achievement", "Evaluate", ErrInvalidInput, "unknown requirement type")
	ErrRewardAlreadyGranted = NewDomainError("achievement", "GrantReward", ErrAlreadyProcessed, "achievement reward already granted")
)

// Challenge domain errors
var (
	ErrChallengeNotFound      = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeAlreadyExists = NewDomainError("challenge", "Create", ErrAlreadyExists, "challenge already exists")
	ErrChallengeNotClaimable  = NewDomainError("challenge", "Claim", ErrNotClaimable, "challenge is not claimable")
	ErrChallengeExpired       = NewDomainError("challenge", "Claim", ErrExpired, "challenge has expired")
	ErrChallengeClaimed       = NewDomainError("challenge", "Claim", ErrAlreadyProcessed, "challenge already claimed")
	ErrInvalidChallengeType   = NewDomainError("challenge", "Validate", ErrInvalidInput, "invalid challenge type")
)

// Leaderboard domain errors
var (
	ErrLeaderboardNotFound = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard not found")
	ErrInvalidRank         = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid rank")
)

// External service errors
var (
	ErrPlatformUnavailable     = NewDomainError("platform", "Request", ErrServiceUnavailable, "Platform API is unavailable")
	ErrPlatformRateLimited     = NewDomainError("platform", "Request", ErrRateLimited, "Platform API rate limit exceeded")
	ErrPlatformTimeout         = NewDomainError("platform", "Request", ErrTimeout, "Platform API request timeout")
	ErrPlatformInvalidResponse = NewDomainError("platform", "Parse", ErrInvalidFormat, "invalid response from Platform API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotClaimable checks if the error is a claim business-rule violation.
// Covers unfinished progress, expiry, and repeated claims: all three surface
// to the client as a disabled claim action, not an exception path.
func IsNotClaimable(err error) bool {
	return errors.Is(err, ErrNotClaimable) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsFetchFailure checks if the error is a recoverable external fetch failure.
// Callers recover by serving the last successfully fetched snapshot.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
