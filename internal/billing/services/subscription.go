package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/repomanager"
	"github.com/weskerllc/cronicorn-billing/internal/common"
	"github.com/weskerllc/cronicorn-billing/internal/logging"
)

// SubscriptionView is the read-model the API exposes for an account's
// billing state. It is computed from the account record on every read, so
// RefundableNow is always evaluated against the current clock rather than a
// stale stored flag.
type SubscriptionView struct {
	AccountID string
	Tier      models.Tier
	PlanName  string

	Status      models.SubscriptionStatus
	ActivatedAt *time.Time
	EndsAt      *time.Time

	RefundStatus          models.RefundStatus
	RefundableNow         bool
	RefundWindowExpiresAt *time.Time
}

// SubscriptionService serves read-only billing projections.
type SubscriptionService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	now    func() time.Time
}

func NewSubscriptionService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *SubscriptionService {
	return &SubscriptionService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "subscriptions"),
		now:    time.Now,
	}
}

// GetSubscriptionStatus returns the billing projection for the account.
func (s *SubscriptionService) GetSubscriptionStatus(ctx context.Context, accountID string) (*SubscriptionView, error) {
	account, err := s.repos.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	view := &SubscriptionView{
		AccountID:             account.ID,
		Tier:                  account.Tier,
		Status:                account.SubscriptionStatus,
		ActivatedAt:           account.SubscriptionActivatedAt,
		EndsAt:                account.SubscriptionEndsAt,
		RefundStatus:          account.RefundStatus,
		RefundWindowExpiresAt: account.RefundWindowExpiresAt,
	}

	if plan := models.PlanByTier(account.Tier); plan != nil {
		view.PlanName = plan.Name
	}

	view.RefundableNow = account.RefundStatus == models.RefundEligible &&
		account.RefundWindowExpiresAt != nil &&
		account.RefundWindowExpiresAt.After(s.now())

	return view, nil
}
