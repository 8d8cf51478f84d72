// Package services contains the billing business logic. This file implements
// RefundService, the orchestrator that drives a self-service refund through
// its ordered side effects: lock, cancel, refund, persist.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/gateway"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/accounts"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/repomanager"
	"github.com/weskerllc/cronicorn-billing/internal/common"
	"github.com/weskerllc/cronicorn-billing/internal/logging"
)

// DefaultRefundReason is recorded when the caller supplies no reason. The
// value matches the provider's vocabulary so it can be passed through.
const DefaultRefundReason = "requested_by_customer"

// RefundReceipt is the caller-visible result of a successful refund.
type RefundReceipt struct {
	RefundID string
	Status   string
}

// RefundService orchestrates subscription refunds.
//
// The ordering is deliberate: the reversible side effect (cancel) happens
// before the irreversible one (refund), and every failure branch lands the
// account in a status from which an operator can read exactly which external
// actions already took effect:
//
//	eligible  -> requested                        lock taken
//	requested -> requested                        cancel failed, safe to retry
//	requested -> cancel_completed_refund_failed   refund failed, manual fix
//	requested -> issued                           done
type RefundService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	gw     gateway.PaymentGateway
	logger logging.Logger
	now    func() time.Time
}

// NewRefundService constructs a RefundService. now may be nil, in which case
// time.Now is used.
func NewRefundService(db *sql.DB, repos repomanager.RepositoryManager, gw gateway.PaymentGateway, logger logging.Logger) *RefundService {
	return &RefundService{
		db:     db,
		repos:  repos,
		gw:     gw,
		logger: logger.With("module", "refunds"),
		now:    time.Now,
	}
}

// RequestRefund validates eligibility, takes the refund lock, cancels the
// provider subscription, issues the refund, and records the terminal state.
//
// Precondition failures come back as the sentinels in common (ErrNotFound,
// ErrNotEligible, ErrAlreadyProcessed, ErrWindowExpired, ErrConcurrency),
// all raised before any gateway call. Failures after the lock is taken are
// propagated unchanged, after the account's refund status has been updated
// to record which side effects completed. Retrying is the caller's call; the
// service never retries on its own.
func (s *RefundService) RequestRefund(ctx context.Context, accountID, reason string) (*RefundReceipt, error) {
	repo := s.repos.Accounts(s.db)

	account, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	if err := s.checkEligibility(account); err != nil {
		return nil, err
	}

	// Take the lock. The conditional update is the only concurrency
	// mechanism: it succeeds for exactly one concurrent caller.
	if err := repo.TransitionRefundStatus(ctx, accountID, models.RefundEligible, models.RefundRequested); err != nil {
		if errors.Is(err, common.ErrConcurrency) {
			return nil, common.ErrConcurrency
		}
		return nil, fmt.Errorf("acquiring refund lock: %w", err)
	}

	if account.PaymentSubscriptionID != nil {
		if err := s.gw.CancelSubscriptionNow(ctx, *account.PaymentSubscriptionID); err != nil {
			// Nothing irreversible happened. The status stays `requested`
			// so a later attempt can be let through by an operator, and the
			// caller sees the real cause.
			s.logger.Error(ctx, "subscription cancel failed, refund left in requested",
				"account_id", accountID, "error", err.Error())
			return nil, fmt.Errorf("canceling subscription: %w", err)
		}
	}

	if reason == "" {
		reason = DefaultRefundReason
	}

	result, err := s.gw.IssueRefund(ctx, gateway.RefundParams{
		PaymentRef: *account.LastPaymentRef,
		Reason:     reason,
		Metadata:   map[string]string{"account_id": accountID},
	})
	if err != nil {
		// The subscription is already canceled and the refund was not
		// confirmed. Cancellation cannot be safely repeated and the refund
		// cannot be safely reissued, so this account needs a human.
		s.markCancelCompletedRefundFailed(ctx, repo, accountID)
		return nil, fmt.Errorf("issuing refund: %w", err)
	}

	if err := s.persistIssued(ctx, repo, accountID, reason); err != nil {
		// The refund already happened. Force the status so a retry cannot
		// refund twice, then surface the persistence error.
		s.forceIssued(ctx, repo, accountID)
		return nil, err
	}

	s.logger.Info(ctx, "refund issued",
		"account_id", accountID, "refund_id", result.RefundID, "status", result.Status)

	return &RefundReceipt{RefundID: result.RefundID, Status: result.Status}, nil
}

// checkEligibility enforces the precondition set, in order. No side effects.
func (s *RefundService) checkEligibility(account *models.Account) error {
	if account.Tier != models.TierPro {
		return common.ErrNotEligible
	}

	switch account.RefundStatus {
	case models.RefundIssued:
		return common.ErrAlreadyProcessed
	case models.RefundRequested:
		return common.ErrConcurrency
	case models.RefundCancelCompletedRefundFailed:
		return common.ErrNotEligible
	}

	if account.RefundWindowExpiresAt == nil || !account.RefundWindowExpiresAt.After(s.now()) {
		return common.ErrWindowExpired
	}

	if account.LastPaymentRef == nil {
		return common.ErrNotEligible
	}

	return nil
}

// persistIssued records the terminal success state in one patch.
func (s *RefundService) persistIssued(ctx context.Context, repo accounts.Repository, accountID, reason string) error {
	tier := models.TierFree
	status := models.SubscriptionCanceled
	refundStatus := models.RefundIssued
	issuedAt := s.now()

	err := repo.UpdateSubscriptionFields(ctx, accountID, accounts.SubscriptionPatch{
		Tier:                       &tier,
		SubscriptionStatus:         &status,
		ClearPaymentSubscriptionID: true,
		RefundStatus:               &refundStatus,
		RefundIssuedAt:             &issuedAt,
		RefundReason:               &reason,
	})
	if err != nil {
		return fmt.Errorf("persisting refund result: %w", err)
	}
	return nil
}

// markCancelCompletedRefundFailed records the partial-failure terminal state.
// The write itself is best effort: if it fails too, the account stays in
// `requested`, which still blocks a concurrent retry and still shows up in
// the stuck-refunds report.
func (s *RefundService) markCancelCompletedRefundFailed(ctx context.Context, repo accounts.Repository, accountID string) {
	refundStatus := models.RefundCancelCompletedRefundFailed
	err := repo.UpdateSubscriptionFields(ctx, accountID, accounts.SubscriptionPatch{
		RefundStatus: &refundStatus,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to record cancel_completed_refund_failed",
			"account_id", accountID, "error", err.Error())
		return
	}
	s.logger.Error(ctx, "refund failed after cancel, manual intervention required",
		"account_id", accountID)
}

// forceIssued sets refund_status = issued regardless of the failed full
// patch, purely to prevent a duplicate refund on retry.
func (s *RefundService) forceIssued(ctx context.Context, repo accounts.Repository, accountID string) {
	refundStatus := models.RefundIssued
	err := repo.UpdateSubscriptionFields(ctx, accountID, accounts.SubscriptionPatch{
		RefundStatus: &refundStatus,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to force refund status to issued",
			"account_id", accountID, "error", err.Error())
	}
}
