// Package events defines the closed set of payment-provider events the
// billing core reacts to. Provider payloads are translated into these
// variants at the transport boundary; everything past that point does an
// exhaustive type switch, with Unknown as the logged fallback, so a new
// provider event type never disappears silently.
package events

import (
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

// Event is the sealed union of inbound provider events.
type Event interface {
	// ID returns the provider's event id, used for archiving and log
	// correlation.
	ID() string

	isEvent()
}

// CheckoutCompleted fires when a customer finishes checkout. It carries
// everything needed to initialize the subscription and refund-window fields.
type CheckoutCompleted struct {
	EventID        string
	AccountID      string
	CustomerID     string
	SubscriptionID string
	PriceID        string
	PaymentRef     string
	InvoiceRef     string
	CompletedAt    time.Time
}

// SubscriptionUpdated mirrors a provider-side status or plan change.
type SubscriptionUpdated struct {
	EventID    string
	CustomerID string
	Status     models.SubscriptionStatus
	PriceID    string
	PeriodEnd  *time.Time
}

// SubscriptionDeleted fires when the provider subscription ends.
type SubscriptionDeleted struct {
	EventID    string
	CustomerID string
}

// PaymentSucceeded carries the references a later refund is targeted at.
type PaymentSucceeded struct {
	EventID    string
	CustomerID string
	PaymentRef string
	InvoiceRef string
}

// PaymentFailed fires when an invoice payment attempt fails.
type PaymentFailed struct {
	EventID    string
	CustomerID string
}

// Unknown wraps a provider event type the core does not handle.
type Unknown struct {
	EventID string
	Type    string
}

func (e CheckoutCompleted) ID() string   { return e.EventID }
func (e SubscriptionUpdated) ID() string { return e.EventID }
func (e SubscriptionDeleted) ID() string { return e.EventID }
func (e PaymentSucceeded) ID() string    { return e.EventID }
func (e PaymentFailed) ID() string       { return e.EventID }
func (e Unknown) ID() string             { return e.EventID }

func (CheckoutCompleted) isEvent()   {}
func (SubscriptionUpdated) isEvent() {}
func (SubscriptionDeleted) isEvent() {}
func (PaymentSucceeded) isEvent()    {}
func (PaymentFailed) isEvent()       {}
func (Unknown) isEvent()             {}
