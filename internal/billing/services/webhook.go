package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weskerllc/cronicorn-billing/internal/billing/archive"
	"github.com/weskerllc/cronicorn-billing/internal/billing/events"
	"github.com/weskerllc/cronicorn-billing/internal/billing/gateway"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/accounts"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/repomanager"
	"github.com/weskerllc/cronicorn-billing/internal/common"
	"github.com/weskerllc/cronicorn-billing/internal/dbx"
	"github.com/weskerllc/cronicorn-billing/internal/logging"
)

// WebhookService projects inbound provider events onto account records.
// Handlers are idempotent field updates, not a state machine: replaying an
// event applies the same patch again. The refund state machine is never
// written here except for the initial eligible/expired seeding at checkout,
// which happens at most once per account. Each handler runs its
// read-then-patch sequence inside a transaction.
type WebhookService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	gw      gateway.PaymentGateway
	archive archive.EventArchive
	logger  logging.Logger
}

func NewWebhookService(db *sql.DB, repos repomanager.RepositoryManager, gw gateway.PaymentGateway, arc archive.EventArchive, logger logging.Logger) *WebhookService {
	return &WebhookService{
		db:      db,
		repos:   repos,
		gw:      gw,
		archive: arc,
		logger:  logger.With("module", "webhooks"),
	}
}

// Apply dispatches the event to its handler and archives the raw payload.
// A missing account is a warning, not an error: the provider will not
// redeliver forever, and an event for an unknown customer usually means the
// account was deleted.
func (s *WebhookService) Apply(ctx context.Context, ev events.Event, rawPayload []byte) error {
	var err error

	switch e := ev.(type) {
	case events.CheckoutCompleted:
		err = s.applyCheckoutCompleted(ctx, e)
	case events.SubscriptionUpdated:
		err = s.applySubscriptionUpdated(ctx, e)
	case events.SubscriptionDeleted:
		err = s.applySubscriptionDeleted(ctx, e)
	case events.PaymentSucceeded:
		err = s.applyPaymentSucceeded(ctx, e)
	case events.PaymentFailed:
		err = s.applyPaymentFailed(ctx, e)
	case events.Unknown:
		s.logger.Warn(ctx, "unhandled provider event", "event_id", e.EventID, "type", e.Type)
	default:
		// The union is sealed; reaching this means a new variant was added
		// without a handler.
		s.logger.Warn(ctx, "event variant without handler", "event_id", ev.ID())
	}

	if err != nil {
		return err
	}

	if archErr := s.archive.Store(ctx, ev.ID(), rawPayload); archErr != nil {
		s.logger.Error(ctx, "failed to archive webhook payload",
			"event_id", ev.ID(), "error", archErr.Error())
	}

	return nil
}

func (s *WebhookService) applyCheckoutCompleted(ctx context.Context, e events.CheckoutCompleted) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		account, err := repo.GetByID(ctx, e.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Warn(ctx, "checkout completed for unknown account",
					"event_id", e.EventID, "account_id", e.AccountID)
				return nil
			}
			return fmt.Errorf("loading account: %w", err)
		}

		// A redelivered checkout event must not undo a refund: once the
		// refund reached its terminal success state the account stays
		// downgraded, and re-seeding eligibility would let the same payment
		// be refunded twice.
		if account.RefundStatus == models.RefundIssued {
			s.logger.Info(ctx, "ignoring checkout event after refund",
				"event_id", e.EventID, "account_id", account.ID)
			return nil
		}

		tier := s.gw.TierFromSubscription(e.PriceID)
		status := models.SubscriptionActive
		activatedAt := e.CompletedAt

		patch := accounts.SubscriptionPatch{
			Tier:                    &tier,
			SubscriptionStatus:      &status,
			SubscriptionActivatedAt: &activatedAt,
		}
		if e.CustomerID != "" {
			patch.PaymentCustomerID = &e.CustomerID
		}
		if e.SubscriptionID != "" {
			patch.PaymentSubscriptionID = &e.SubscriptionID
		}
		if e.PaymentRef != "" {
			patch.LastPaymentRef = &e.PaymentRef
		}
		if e.InvoiceRef != "" {
			patch.LastInvoiceRef = &e.InvoiceRef
		}

		// Refund eligibility is fixed here, once, on the first checkout
		// event. A replay while the refund is eligible, requested, or
		// failed leaves the refund fields exactly as they are.
		if account.RefundStatus == models.RefundNone {
			refundStatus := models.RefundExpired
			if tier == models.TierPro {
				refundStatus = models.RefundEligible
				windowExpiry := activatedAt.Add(models.RefundWindow)
				patch.RefundWindowExpiresAt = &windowExpiry
			}
			patch.RefundStatus = &refundStatus
		}

		if err := repo.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
			return fmt.Errorf("applying checkout completed: %w", err)
		}

		s.logger.Info(ctx, "checkout completed",
			"event_id", e.EventID, "account_id", account.ID, "tier", string(tier))
		return nil
	})
}

func (s *WebhookService) applySubscriptionUpdated(ctx context.Context, e events.SubscriptionUpdated) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		account, ok, err := s.lookupByCustomer(ctx, repo, e.EventID, e.CustomerID)
		if err != nil || !ok {
			return err
		}

		tier := s.gw.TierFromSubscription(e.PriceID)
		patch := accounts.SubscriptionPatch{
			Tier:               &tier,
			SubscriptionStatus: &e.Status,
			SubscriptionEndsAt: e.PeriodEnd,
		}

		if err := repo.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
			return fmt.Errorf("applying subscription updated: %w", err)
		}
		return nil
	})
}

func (s *WebhookService) applySubscriptionDeleted(ctx context.Context, e events.SubscriptionDeleted) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		account, ok, err := s.lookupByCustomer(ctx, repo, e.EventID, e.CustomerID)
		if err != nil || !ok {
			return err
		}

		// Refund fields stay untouched: a deletion initiated by the refund
		// flow already wrote them, and an unrelated deletion must not
		// reopen the window.
		tier := models.TierFree
		status := models.SubscriptionCanceled
		patch := accounts.SubscriptionPatch{
			Tier:                       &tier,
			SubscriptionStatus:         &status,
			ClearPaymentSubscriptionID: true,
		}

		if err := repo.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
			return fmt.Errorf("applying subscription deleted: %w", err)
		}
		return nil
	})
}

func (s *WebhookService) applyPaymentSucceeded(ctx context.Context, e events.PaymentSucceeded) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		account, ok, err := s.lookupByCustomer(ctx, repo, e.EventID, e.CustomerID)
		if err != nil || !ok {
			return err
		}

		// Late-arriving payment events after a refund must not resurrect
		// the payment references and invite a second refund.
		if account.RefundStatus == models.RefundIssued {
			s.logger.Info(ctx, "ignoring payment event after refund",
				"event_id", e.EventID, "account_id", account.ID)
			return nil
		}

		status := models.SubscriptionActive
		patch := accounts.SubscriptionPatch{SubscriptionStatus: &status}
		if e.PaymentRef != "" {
			patch.LastPaymentRef = &e.PaymentRef
		}
		if e.InvoiceRef != "" {
			patch.LastInvoiceRef = &e.InvoiceRef
		}

		if err := repo.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
			return fmt.Errorf("applying payment succeeded: %w", err)
		}
		return nil
	})
}

func (s *WebhookService) applyPaymentFailed(ctx context.Context, e events.PaymentFailed) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		account, ok, err := s.lookupByCustomer(ctx, repo, e.EventID, e.CustomerID)
		if err != nil || !ok {
			return err
		}

		status := models.SubscriptionPastDue
		if err := repo.UpdateSubscriptionFields(ctx, account.ID, accounts.SubscriptionPatch{SubscriptionStatus: &status}); err != nil {
			return fmt.Errorf("applying payment failed: %w", err)
		}
		return nil
	})
}

func (s *WebhookService) lookupByCustomer(ctx context.Context, repo accounts.Repository, eventID, customerID string) (*models.Account, bool, error) {
	if customerID == "" {
		s.logger.Warn(ctx, "event without customer id", "event_id", eventID)
		return nil, false, nil
	}

	account, err := repo.GetByPaymentCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "event for unknown customer",
				"event_id", eventID, "customer_id", customerID)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("loading account by customer: %w", err)
	}

	return account, true, nil
}
