package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

// MockGateway is a test double that records calls and returns configurable
// results. Also usable as a local-dev gateway when no Stripe key is set.
type MockGateway struct {
	mu sync.Mutex

	// CancelCalls collects subscription ids passed to CancelSubscriptionNow.
	CancelCalls []string
	// RefundCalls collects the params of every IssueRefund call.
	RefundCalls []RefundParams

	// Error fields allow tests to inject failures.
	CancelErr error
	RefundErr error

	// RefundResult overrides the generated result when set.
	RefundResult *RefundResult

	// PriceTiers backs TierFromSubscription; defaults to the plan catalog.
	PriceTiers map[string]models.Tier

	nextRefundSeq int
}

// NewMockGateway creates a MockGateway ready for use.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) CancelSubscriptionNow(_ context.Context, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelErr != nil {
		return m.CancelErr
	}

	m.CancelCalls = append(m.CancelCalls, subscriptionID)
	return nil
}

func (m *MockGateway) IssueRefund(_ context.Context, params RefundParams) (*RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RefundErr != nil {
		return nil, m.RefundErr
	}

	m.RefundCalls = append(m.RefundCalls, params)

	if m.RefundResult != nil {
		return m.RefundResult, nil
	}

	m.nextRefundSeq++
	return &RefundResult{
		RefundID: fmt.Sprintf("re_mock_%d", m.nextRefundSeq),
		Status:   "succeeded",
	}, nil
}

func (m *MockGateway) TierFromSubscription(priceID string) models.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PriceTiers != nil {
		if tier, ok := m.PriceTiers[priceID]; ok {
			return tier
		}
		return models.TierFree
	}
	return models.TierByStripePriceID(priceID)
}
