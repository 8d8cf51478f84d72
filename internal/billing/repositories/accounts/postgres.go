package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/common"
	"github.com/weskerllc/cronicorn-billing/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, tier, payment_customer_id, payment_subscription_id,
	subscription_status, subscription_activated_at, subscription_ends_at,
	last_payment_ref, last_invoice_ref, refund_window_expires_at,
	refund_status, refund_issued_at, refund_reason, created_at, updated_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByPaymentCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE payment_customer_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, customerID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Account, error) {
	var (
		a            models.Account
		custID       sql.NullString
		subID        sql.NullString
		activatedAt  sql.NullTime
		endsAt       sql.NullTime
		paymentRef   sql.NullString
		invoiceRef   sql.NullString
		windowExpiry sql.NullTime
		issuedAt     sql.NullTime
		reason       sql.NullString
	)

	err := row.Scan(&a.ID, &a.Email, &a.Tier, &custID, &subID,
		&a.SubscriptionStatus, &activatedAt, &endsAt,
		&paymentRef, &invoiceRef, &windowExpiry,
		&a.RefundStatus, &issuedAt, &reason, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.PaymentCustomerID = nullStringPtr(custID)
	a.PaymentSubscriptionID = nullStringPtr(subID)
	a.SubscriptionActivatedAt = nullTimePtr(activatedAt)
	a.SubscriptionEndsAt = nullTimePtr(endsAt)
	a.LastPaymentRef = nullStringPtr(paymentRef)
	a.LastInvoiceRef = nullStringPtr(invoiceRef)
	a.RefundWindowExpiresAt = nullTimePtr(windowExpiry)
	a.RefundIssuedAt = nullTimePtr(issuedAt)
	a.RefundReason = nullStringPtr(reason)

	return &a, nil
}

func (r *PostgresRepository) UpdateSubscriptionFields(ctx context.Context, id string, patch SubscriptionPatch) error {
	if patch.Empty() {
		return nil
	}

	set := make([]string, 0, 13)
	args := make([]any, 0, 14)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Tier != nil {
		add("tier", *patch.Tier)
	}
	if patch.PaymentCustomerID != nil {
		add("payment_customer_id", *patch.PaymentCustomerID)
	}
	if patch.ClearPaymentSubscriptionID {
		set = append(set, "payment_subscription_id = NULL")
	} else if patch.PaymentSubscriptionID != nil {
		add("payment_subscription_id", *patch.PaymentSubscriptionID)
	}
	if patch.SubscriptionStatus != nil {
		add("subscription_status", *patch.SubscriptionStatus)
	}
	if patch.SubscriptionActivatedAt != nil {
		add("subscription_activated_at", *patch.SubscriptionActivatedAt)
	}
	if patch.SubscriptionEndsAt != nil {
		add("subscription_ends_at", *patch.SubscriptionEndsAt)
	}
	if patch.LastPaymentRef != nil {
		add("last_payment_ref", *patch.LastPaymentRef)
	}
	if patch.LastInvoiceRef != nil {
		add("last_invoice_ref", *patch.LastInvoiceRef)
	}
	if patch.RefundWindowExpiresAt != nil {
		add("refund_window_expires_at", *patch.RefundWindowExpiresAt)
	}
	if patch.RefundStatus != nil {
		add("refund_status", *patch.RefundStatus)
	}
	if patch.RefundIssuedAt != nil {
		add("refund_issued_at", *patch.RefundIssuedAt)
	}
	if patch.RefundReason != nil {
		add("refund_reason", *patch.RefundReason)
	}

	set = append(set, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) TransitionRefundStatus(ctx context.Context, id string, from, to models.RefundStatus) error {
	query := `UPDATE accounts SET refund_status = $1, updated_at = now()
		 WHERE id = $2 AND refund_status = $3`

	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer won the race. The caller
		// already loaded the account, so report the race.
		return common.ErrConcurrency
	}

	return nil
}

func (r *PostgresRepository) ListStuckRefunds(ctx context.Context, olderThan time.Duration) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		 WHERE refund_status IN ($1, $2) AND updated_at <= $3
		 ORDER BY updated_at`

	cutoff := time.Now().Add(-olderThan)

	rows, err := r.db.QueryContext(ctx, query,
		models.RefundRequested, models.RefundCancelCompletedRefundFailed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func scanAccountRow(rows *sql.Rows) (*models.Account, error) {
	var (
		a            models.Account
		custID       sql.NullString
		subID        sql.NullString
		activatedAt  sql.NullTime
		endsAt       sql.NullTime
		paymentRef   sql.NullString
		invoiceRef   sql.NullString
		windowExpiry sql.NullTime
		issuedAt     sql.NullTime
		reason       sql.NullString
	)

	err := rows.Scan(&a.ID, &a.Email, &a.Tier, &custID, &subID,
		&a.SubscriptionStatus, &activatedAt, &endsAt,
		&paymentRef, &invoiceRef, &windowExpiry,
		&a.RefundStatus, &issuedAt, &reason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.PaymentCustomerID = nullStringPtr(custID)
	a.PaymentSubscriptionID = nullStringPtr(subID)
	a.SubscriptionActivatedAt = nullTimePtr(activatedAt)
	a.SubscriptionEndsAt = nullTimePtr(endsAt)
	a.LastPaymentRef = nullStringPtr(paymentRef)
	a.LastInvoiceRef = nullStringPtr(invoiceRef)
	a.RefundWindowExpiresAt = nullTimePtr(windowExpiry)
	a.RefundIssuedAt = nullTimePtr(issuedAt)
	a.RefundReason = nullStringPtr(reason)

	return &a, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
