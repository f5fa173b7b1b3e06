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
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Cache errors
	ErrCacheUnavailable = errors.New("cache unavailable")

	// Degraded results: the computation succeeded but with partial upstream
	// data. Callers must label such responses as degraded, never fail them.
	ErrDegraded = errors.New("degraded result")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "graph", "analytics", "cache"
	Op      string // Operation that failed, e.g., "Neighbors", "Classify"
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

// Graph domain errors
var (
	ErrUserNotFound       = NewDomainError("graph", "Lookup", ErrNotFound, "user not found in graph")
	ErrInvalidUserID      = NewDomainError("graph", "Validate", ErrInvalidID, "invalid user ID")
	ErrFriendshipNotFound = NewDomainError("graph", "FindFriendship", ErrNotFound, "friendship not found")
	ErrFriendshipExists   = NewDomainError("graph", "CreateFriendship", ErrAlreadyExists, "friendship already exists")
	ErrSelfFriendship     = NewDomainError("graph", "CreateFriendship", ErrInvalidInput, "cannot befriend self")

	ErrInvalidInteractionKind = NewDomainError("interaction", "Validate", ErrInvalidInput, "invalid interaction kind")
)

// Analytics domain errors
var (
	ErrInvalidMaxDistance   = NewDomainError("analytics", "Validate", ErrValueOutOfRange, "max distance out of range")
	ErrSelfRelationship     = NewDomainError("analytics", "Score", ErrInvalidInput, "cannot score relationship with self")
	ErrInvalidScoreWeights  = NewDomainError("analytics", "Configure", ErrInvalidInput, "score weights must be non-negative and not both zero")
	ErrInvalidThresholds    = NewDomainError("analytics", "Configure", ErrInvalidInput, "circle thresholds must satisfy 0 < distant < close < 1")
	ErrDegradedComputation  = NewDomainError("analytics", "Compute", ErrDegraded, "computed with partial interaction data")
	ErrRecommendationFailed = NewDomainError("analytics", "Recommend", ErrExternalService, "recommendation candidate source failed")
)

// Cache domain errors
var (
	ErrCacheMiss        = NewDomainError("cache", "Get", ErrNotFound, "cache miss")
	ErrCacheClosed      = NewDomainError("cache", "Access", ErrInvalidState, "cache is closed")
	ErrCacheUnreachable = NewDomainError("cache", "Access", ErrCacheUnavailable, "cache layer unavailable")
	ErrInvalidPeriod    = NewDomainError("metrics", "Validate", ErrValueOutOfRange, "invalid history period")
)

// Upstream collaborator errors
var (
	ErrGraphStoreTimeout       = NewDomainError("graph", "Query", ErrTimeout, "graph store request timeout")
	ErrGraphStoreUnavailable   = NewDomainError("graph", "Query", ErrServiceUnavailable, "graph store is unavailable")
	ErrInteractionStoreTimeout = NewDomainError("interaction", "Count", ErrTimeout, "interaction signal request timeout")
	ErrPrivacyCheckUnavailable = NewDomainError("privacy", "Check", ErrServiceUnavailable, "privacy check service unavailable")
	ErrRequestStateUnavailable = NewDomainError("friendrequest", "Status", ErrServiceUnavailable, "friend request state unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
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

// IsDegraded checks if the error marks a degraded-but-usable result.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrDegraded)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
