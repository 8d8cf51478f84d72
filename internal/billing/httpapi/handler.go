// Package httpapi exposes the billing core over HTTP: the refund and
// subscription endpoints behind auth middleware, and the unauthenticated
// webhook endpoint where the provider signature is the authenticator.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/weskerllc/cronicorn-billing/internal/billing/events"
	"github.com/weskerllc/cronicorn-billing/internal/billing/gateway"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/apikeys"
	"github.com/weskerllc/cronicorn-billing/internal/billing/services"
	"github.com/weskerllc/cronicorn-billing/internal/common"
	"github.com/weskerllc/cronicorn-billing/internal/logging"
)

// RefundRequester is the slice of RefundService the handler consumes.
type RefundRequester interface {
	RequestRefund(ctx context.Context, accountID, reason string) (*services.RefundReceipt, error)
}

// SubscriptionReader serves the billing read model.
type SubscriptionReader interface {
	GetSubscriptionStatus(ctx context.Context, accountID string) (*services.SubscriptionView, error)
}

// WebhookApplier applies a verified provider event.
type WebhookApplier interface {
	Apply(ctx context.Context, ev events.Event, rawPayload []byte) error
}

// Handler exposes billing endpoints over HTTP.
type Handler struct {
	refunds  RefundRequester
	subs     SubscriptionReader
	webhooks WebhookApplier
	verifier gateway.WebhookVerifier

	keys      apikeys.Repository
	secretKey []byte

	logger logging.Logger
}

// NewHandler creates a new billing HTTP handler.
func NewHandler(refunds RefundRequester, subs SubscriptionReader, webhooks WebhookApplier, verifier gateway.WebhookVerifier, keys apikeys.Repository, secretKey []byte, logger logging.Logger) *Handler {
	return &Handler{
		refunds:   refunds,
		subs:      subs,
		webhooks:  webhooks,
		verifier:  verifier,
		keys:      keys,
		secretKey: secretKey,
		logger:    logger.With("module", "httpapi"),
	}
}

// RegisterRoutes registers billing endpoints on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/billing/refund", h.withAuth(h.handleRefund))
	mux.HandleFunc("GET /api/v1/billing/subscription", h.withAuth(h.handleGetSubscription))
	mux.HandleFunc("POST /api/v1/billing/webhook", h.handleWebhook)
}

// ---------- POST /api/v1/billing/refund ----------

type refundRequest struct {
	Reason string `json:"reason,omitempty"`
}

type refundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())

	var req refundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}

	receipt, err := h.refunds.RequestRefund(r.Context(), accountID, req.Reason)
	if err != nil {
		h.writeRefundError(w, r, accountID, err)
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{
		RefundID: receipt.RefundID,
		Status:   receipt.Status,
	})
}

// writeRefundError maps the refund error taxonomy onto status codes.
// Anything outside the precondition set means side effects may have
// happened; those come back as 502 so clients know to check state instead
// of blindly retrying.
func (h *Handler) writeRefundError(w http.ResponseWriter, r *http.Request, accountID string, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
	case errors.Is(err, common.ErrAlreadyProcessed):
		http.Error(w, `{"error":"refund already processed"}`, http.StatusConflict)
	case errors.Is(err, common.ErrConcurrency):
		http.Error(w, `{"error":"refund already in progress"}`, http.StatusConflict)
	case errors.Is(err, common.ErrWindowExpired):
		http.Error(w, `{"error":"refund window expired"}`, http.StatusBadRequest)
	case errors.Is(err, common.ErrNotEligible):
		http.Error(w, `{"error":"refund not eligible"}`, http.StatusBadRequest)
	default:
		h.logger.Error(r.Context(), "refund request failed",
			"account_id", accountID, "error", err.Error())
		http.Error(w, `{"error":"refund failed"}`, http.StatusBadGateway)
	}
}

// ---------- GET /api/v1/billing/subscription ----------

type subscriptionResponse struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier"`
	PlanName  string `json:"plan_name"`

	Status      string     `json:"status,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`

	RefundStatus          string     `json:"refund_status,omitempty"`
	RefundableNow         bool       `json:"refundable_now"`
	RefundWindowExpiresAt *time.Time `json:"refund_window_expires_at,omitempty"`
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())

	view, err := h.subs.GetSubscriptionStatus(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error(r.Context(), "subscription lookup failed",
			"account_id", accountID, "error", err.Error())
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{
		AccountID:             view.AccountID,
		Tier:                  string(view.Tier),
		PlanName:              view.PlanName,
		Status:                string(view.Status),
		ActivatedAt:           view.ActivatedAt,
		EndsAt:                view.EndsAt,
		RefundStatus:          string(view.RefundStatus),
		RefundableNow:         view.RefundableNow,
		RefundWindowExpiresAt: view.RefundWindowExpiresAt,
	})
}

// ---------- POST /api/v1/billing/webhook ----------

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	ev, err := h.verifier.VerifyWebhook(body, signature)
	if err != nil {
		h.logger.Warn(r.Context(), "webhook signature rejected", "error", err.Error())
		http.Error(w, `{"error":"invalid signature"}`, http.StatusBadRequest)
		return
	}

	if err := h.webhooks.Apply(r.Context(), ev, body); err != nil {
		// Non-2xx makes the provider redeliver; the handlers are idempotent
		// so a replay is safe.
		h.logger.Error(r.Context(), "webhook apply failed",
			"event_id", ev.ID(), "error", err.Error())
		http.Error(w, `{"error":"webhook processing failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
