// Package common defines shared constants and sentinel errors used across
// the billing service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed credentials).
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// Refund precondition failures. These are reported before any gateway side
// effect occurs; gateway and storage failures after the lock is taken are
// wrapped and propagated as-is instead of being folded into this set.
var (
	// ErrNotFound means the account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrNotEligible covers wrong tier, a missing payment reference, or a
	// prior partial failure that needs manual intervention.
	ErrNotEligible = errors.New("refund not eligible")

	// ErrAlreadyProcessed means a refund was already issued for the account.
	ErrAlreadyProcessed = errors.New("refund already processed")

	// ErrWindowExpired means the self-service refund window has passed.
	ErrWindowExpired = errors.New("refund window expired")

	// ErrConcurrency means another refund attempt holds the lock, or the
	// conditional status update lost a race.
	ErrConcurrency = errors.New("concurrent refund in progress")
)
