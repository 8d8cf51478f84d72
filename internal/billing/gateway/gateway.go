// Package gateway abstracts the payment provider. The refund orchestrator
// only ever talks to the PaymentGateway interface; the Stripe implementation
// and the call-recording mock both live here.
package gateway

import (
	"context"

	"github.com/weskerllc/cronicorn-billing/internal/billing/events"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

// RefundParams identifies the payment to refund.
type RefundParams struct {
	// PaymentRef is the provider payment reference (payment intent id).
	PaymentRef string
	Reason     string
	Metadata   map[string]string
}

// RefundResult is the provider's answer to a refund request.
type RefundResult struct {
	RefundID string
	Status   string
}

// PaymentGateway is the narrow surface of the payment provider that the
// billing core consumes.
type PaymentGateway interface {
	// CancelSubscriptionNow cancels the subscription immediately, not at
	// period end. Reversible from the account's point of view: on failure
	// the refund flow can be retried from the top.
	CancelSubscriptionNow(ctx context.Context, subscriptionID string) error

	// IssueRefund refunds the payment. Irreversible once it succeeds.
	IssueRefund(ctx context.Context, params RefundParams) (*RefundResult, error)

	// TierFromSubscription classifies a provider price id into a plan tier.
	// Unknown price ids classify as the free tier.
	TierFromSubscription(priceID string) models.Tier
}

// WebhookVerifier validates inbound provider webhooks and translates them
// into the closed event union. Kept separate from PaymentGateway because
// the orchestrator never needs it.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (events.Event, error)
}
