// Package models contains the billing domain records shared by
// repositories, services, and transports.
package models

import "time"

// Tier is the product plan an account is on.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus mirrors the payment provider's subscription state.
// The empty string means the account never had a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// RefundStatus is the refund state machine's current state. It only ever
// advances along the transition table in the refund service; nothing else
// writes it.
type RefundStatus string

const (
	// RefundNone: no checkout has completed yet.
	RefundNone RefundStatus = ""

	// RefundEligible: pro-tier account inside the refund window, no refund yet.
	RefundEligible RefundStatus = "eligible"

	// RefundRequested: the lock is held, cancellation/refund in progress.
	RefundRequested RefundStatus = "requested"

	// RefundIssued: terminal success. Refund issued, subscription canceled,
	// tier downgraded.
	RefundIssued RefundStatus = "issued"

	// RefundCancelCompletedRefundFailed: terminal failure needing manual
	// intervention. The subscription was canceled but the refund call failed.
	RefundCancelCompletedRefundFailed RefundStatus = "cancel_completed_refund_failed"

	// RefundExpired: the window passed, or the tier never qualified.
	RefundExpired RefundStatus = "expired"
)

// Terminal reports whether the state admits no further automated transition.
func (s RefundStatus) Terminal() bool {
	switch s {
	case RefundIssued, RefundCancelCompletedRefundFailed, RefundExpired:
		return true
	}
	return false
}

// Account is the single shared mutable record of the billing core. It is
// owned by the account store and mutated through narrow field patches.
type Account struct {
	ID    string
	Email string
	Tier  Tier

	// External payment-provider references.
	PaymentCustomerID     *string
	PaymentSubscriptionID *string

	SubscriptionStatus      SubscriptionStatus
	SubscriptionActivatedAt *time.Time
	SubscriptionEndsAt      *time.Time

	// References used to target a refund.
	LastPaymentRef *string
	LastInvoiceRef *string

	// Deadline for self-service refund eligibility. Set once at checkout
	// completion, never mutated afterwards except by tier change.
	RefundWindowExpiresAt *time.Time

	RefundStatus RefundStatus

	// Audit fields, set only on terminal refund success.
	RefundIssuedAt *time.Time
	RefundReason   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
