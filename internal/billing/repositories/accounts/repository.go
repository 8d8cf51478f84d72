// Package accounts implements the account store. Every mutation is a
// narrow field patch; the refund status transition is a conditional update
// so that concurrent refund attempts cannot both take the lock.
package accounts

import (
	"context"
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

// SubscriptionPatch enumerates the subscription/refund fields a caller may
// update. Nil pointers leave the column untouched.
type SubscriptionPatch struct {
	Tier                    *models.Tier
	PaymentCustomerID       *string
	PaymentSubscriptionID   *string
	SubscriptionStatus      *models.SubscriptionStatus
	SubscriptionActivatedAt *time.Time
	SubscriptionEndsAt      *time.Time
	LastPaymentRef          *string
	LastInvoiceRef          *string
	RefundWindowExpiresAt   *time.Time
	RefundStatus            *models.RefundStatus
	RefundIssuedAt          *time.Time
	RefundReason            *string

	// ClearPaymentSubscriptionID sets payment_subscription_id to NULL.
	// Distinct from the pointer above, which cannot express NULL.
	ClearPaymentSubscriptionID bool
}

// Empty reports whether the patch would change nothing.
func (p SubscriptionPatch) Empty() bool {
	return p.Tier == nil && p.PaymentCustomerID == nil && p.PaymentSubscriptionID == nil &&
		p.SubscriptionStatus == nil && p.SubscriptionActivatedAt == nil && p.SubscriptionEndsAt == nil &&
		p.LastPaymentRef == nil && p.LastInvoiceRef == nil && p.RefundWindowExpiresAt == nil &&
		p.RefundStatus == nil && p.RefundIssuedAt == nil && p.RefundReason == nil &&
		!p.ClearPaymentSubscriptionID
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByPaymentCustomerID(ctx context.Context, customerID string) (*models.Account, error)

	// UpdateSubscriptionFields applies the patch unconditionally.
	UpdateSubscriptionFields(ctx context.Context, id string, patch SubscriptionPatch) error

	// TransitionRefundStatus performs the compare-and-swap
	//
	//	UPDATE ... SET refund_status = to WHERE id = $1 AND refund_status = from
	//
	// and returns common.ErrConcurrency when no row was updated.
	TransitionRefundStatus(ctx context.Context, id string, from, to models.RefundStatus) error

	// ListStuckRefunds returns accounts sitting in `requested` or
	// `cancel_completed_refund_failed` longer than olderThan, oldest first.
	ListStuckRefunds(ctx context.Context, olderThan time.Duration) ([]*models.Account, error)
}
