package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "tier", "payment_customer_id", "payment_subscription_id",
		"subscription_status", "subscription_activated_at", "subscription_ends_at",
		"last_payment_ref", "last_invoice_ref", "refund_window_expires_at",
		"refund_status", "refund_issued_at", "refund_reason", "created_at", "updated_at",
	})
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := accountRows().AddRow(
		"acc-1", "pro@example.com", "pro", "cus_1", "sub_1",
		"active", now, nil,
		"pi_1", "in_1", now.Add(9*24*time.Hour),
		"eligible", nil, nil, now, now,
	)

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("acc-1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Tier != models.TierPro || got.RefundStatus != models.RefundEligible {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.PaymentCustomerID == nil || *got.PaymentCustomerID != "cus_1" {
		t.Fatalf("expected payment customer id, got %+v", got.PaymentCustomerID)
	}
	if got.SubscriptionEndsAt != nil || got.RefundIssuedAt != nil {
		t.Fatalf("expected unset nullable fields to stay nil")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByPaymentCustomerID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := accountRows().AddRow(
		"acc-1", "pro@example.com", "pro", "cus_1", nil,
		"", nil, nil, nil, nil, nil, "", nil, nil, now, now,
	)

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+payment_customer_id\s*=\s*\$1$`).
		WithArgs("cus_1").
		WillReturnRows(rows)

	got, err := repo.GetByPaymentCustomerID(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("GetByPaymentCustomerID error: %v", err)
	}
	if got.ID != "acc-1" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestTransitionRefundStatus_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+refund_status\s*=\s*\$1,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$2\s+AND\s+refund_status\s*=\s*\$3$`).
		WithArgs(models.RefundRequested, "acc-1", models.RefundEligible).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionRefundStatus(context.Background(), "acc-1", models.RefundEligible, models.RefundRequested)
	if err != nil {
		t.Fatalf("TransitionRefundStatus error: %v", err)
	}
}

func TestTransitionRefundStatus_LostRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+accounts\s+SET\s+refund_status`).
		WithArgs(models.RefundRequested, "acc-1", models.RefundEligible).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionRefundStatus(context.Background(), "acc-1", models.RefundEligible, models.RefundRequested)
	if !errors.Is(err, common.ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency, got %v", err)
	}
}

func TestTransitionRefundStatus_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+accounts\s+SET\s+refund_status`).
		WillReturnError(errors.New("db down"))

	err := repo.TransitionRefundStatus(context.Background(), "acc-1", models.RefundEligible, models.RefundRequested)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdateSubscriptionFields_BuildsPatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tier := models.TierFree
	status := models.SubscriptionCanceled
	refund := models.RefundIssued
	issuedAt := time.Now()
	reason := "requested_by_customer"

	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+tier\s*=\s*\$1,\s*payment_subscription_id\s*=\s*NULL,\s*subscription_status\s*=\s*\$2,\s*refund_status\s*=\s*\$3,\s*refund_issued_at\s*=\s*\$4,\s*refund_reason\s*=\s*\$5,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$6$`).
		WithArgs(tier, status, refund, issuedAt, reason, "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSubscriptionFields(context.Background(), "acc-1", SubscriptionPatch{
		Tier:                       &tier,
		SubscriptionStatus:         &status,
		RefundStatus:               &refund,
		RefundIssuedAt:             &issuedAt,
		RefundReason:               &reason,
		ClearPaymentSubscriptionID: true,
	})
	if err != nil {
		t.Fatalf("UpdateSubscriptionFields error: %v", err)
	}
}

func TestUpdateSubscriptionFields_EmptyPatchIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.UpdateSubscriptionFields(context.Background(), "acc-1", SubscriptionPatch{}); err != nil {
		t.Fatalf("empty patch should be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no SQL expected: %v", err)
	}
}

func TestUpdateSubscriptionFields_MissingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tier := models.TierFree
	mock.ExpectExec(`UPDATE\s+accounts\s+SET\s+tier`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateSubscriptionFields(context.Background(), "missing", SubscriptionPatch{Tier: &tier})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestListStuckRefunds(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := accountRows().
		AddRow("acc-1", "a@example.com", "pro", "cus_1", "sub_1",
			"active", now, nil, "pi_1", nil, now,
			"requested", nil, nil, now, now.Add(-2*time.Hour)).
		AddRow("acc-2", "b@example.com", "pro", "cus_2", nil,
			"canceled", now, nil, "pi_2", nil, now,
			"cancel_completed_refund_failed", nil, nil, now, now.Add(-time.Hour))

	mock.ExpectQuery(`(?s)^SELECT\s+.*FROM\s+accounts\s+WHERE\s+refund_status\s+IN\s*\(\$1,\s*\$2\)\s+AND\s+updated_at\s*<=\s*\$3\s+ORDER\s+BY\s+updated_at$`).
		WithArgs(models.RefundRequested, models.RefundCancelCompletedRefundFailed, sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.ListStuckRefunds(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ListStuckRefunds error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
	if got[0].RefundStatus != models.RefundRequested || got[1].RefundStatus != models.RefundCancelCompletedRefundFailed {
		t.Fatalf("unexpected statuses: %v %v", got[0].RefundStatus, got[1].RefundStatus)
	}
}
