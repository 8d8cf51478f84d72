package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/weskerllc/cronicorn-billing/internal/billing/events"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

// StripePriceTiers maps Stripe price ids to internal tiers. The mapping must
// match the price objects configured in the Stripe dashboard.
type StripePriceTiers map[string]models.Tier

// StripeGateway implements PaymentGateway and WebhookVerifier on top of the
// Stripe API.
type StripeGateway struct {
	apiKey        string
	webhookSecret string
	priceTiers    StripePriceTiers
}

// NewStripeGateway creates a StripeGateway with the given API key, webhook
// signing secret, and price-to-tier mapping.
func NewStripeGateway(apiKey, webhookSecret string, priceTiers StripePriceTiers) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		priceTiers:    priceTiers,
	}
}

// CancelSubscriptionNow cancels the Stripe subscription immediately.
// subscription.Cancel ends it right away, unlike the cancel_at_period_end
// update used by the regular downgrade path.
func (g *StripeGateway) CancelSubscriptionNow(_ context.Context, subscriptionID string) error {
	if _, err := subscription.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{}); err != nil {
		return fmt.Errorf("gateway: cancel stripe subscription: %w", err)
	}
	return nil
}

// IssueRefund refunds the payment intent behind params.PaymentRef.
func (g *StripeGateway) IssueRefund(_ context.Context, params RefundParams) (*RefundResult, error) {
	p := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.PaymentRef),
	}
	if params.Reason != "" {
		p.Reason = stripe.String(params.Reason)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	r, err := refund.New(p)
	if err != nil {
		return nil, fmt.Errorf("gateway: issue stripe refund: %w", err)
	}

	return &RefundResult{RefundID: r.ID, Status: string(r.Status)}, nil
}

// TierFromSubscription classifies a Stripe price id into a plan tier.
func (g *StripeGateway) TierFromSubscription(priceID string) models.Tier {
	if tier, ok := g.priceTiers[priceID]; ok {
		return tier
	}
	return models.TierFree
}

// invoicePayload pulls the few invoice fields the sync needs. Parsed by hand
// because payment_intent moved between Stripe API versions and the typed
// struct no longer carries it.
type invoicePayload struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	PaymentIntent string `json:"payment_intent"`
}

// VerifyWebhook checks the Stripe signature and translates the event into
// the closed event union. Event types outside the handled set come back as
// events.Unknown rather than an error.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (events.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("gateway: webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("gateway: parse checkout session event: %w", err)
		}
		ev := events.CheckoutCompleted{
			EventID:     event.ID,
			AccountID:   session.ClientReferenceID,
			PriceID:     session.Metadata["price_id"],
			CompletedAt: time.Unix(event.Created, 0).UTC(),
		}
		if session.Customer != nil {
			ev.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			ev.SubscriptionID = session.Subscription.ID
		}
		if session.PaymentIntent != nil {
			ev.PaymentRef = session.PaymentIntent.ID
		}
		if session.Invoice != nil {
			ev.InvoiceRef = session.Invoice.ID
		}
		return ev, nil

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("gateway: parse subscription updated event: %w", err)
		}
		ev := events.SubscriptionUpdated{
			EventID: event.ID,
			Status:  subscriptionStatus(sub.Status),
		}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			if item.Price != nil {
				ev.PriceID = item.Price.ID
			}
			if item.CurrentPeriodEnd > 0 {
				end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
				ev.PeriodEnd = &end
			}
		}
		return ev, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("gateway: parse subscription deleted event: %w", err)
		}
		ev := events.SubscriptionDeleted{EventID: event.ID}
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		return ev, nil

	case "invoice.payment_succeeded":
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("gateway: parse invoice event: %w", err)
		}
		return events.PaymentSucceeded{
			EventID:    event.ID,
			CustomerID: inv.Customer,
			PaymentRef: inv.PaymentIntent,
			InvoiceRef: inv.ID,
		}, nil

	case "invoice.payment_failed":
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("gateway: parse invoice event: %w", err)
		}
		return events.PaymentFailed{EventID: event.ID, CustomerID: inv.Customer}, nil

	default:
		return events.Unknown{EventID: event.ID, Type: string(event.Type)}, nil
	}
}

// subscriptionStatus folds Stripe's subscription states into the internal
// three. Trialing counts as active; everything incomplete or unpaid counts
// as past_due until the provider resolves it.
func subscriptionStatus(s stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	default:
		return models.SubscriptionPastDue
	}
}
