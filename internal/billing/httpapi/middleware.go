package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/weskerllc/cronicorn-billing/internal/billing/auth"
	"github.com/weskerllc/cronicorn-billing/internal/common"
)

type contextKey string

const accountIDContextKey contextKey = "account_id"

func accountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountIDContextKey).(string)
	return id
}

// withAuth authenticates the request and stores the account id in the
// request context. Two credential forms are accepted:
//
//	Authorization: Bearer <jwt>   browser sessions
//	X-Api-Key: <id>.<secret>      agent and MCP callers
func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if authz := r.Header.Get(common.AuthorizationHeaderName); authz != "" {
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}

			accountID, err := auth.GetAccountIDFromToken(token, h.secretKey)
			if err != nil {
				unauthorized(w)
				return
			}

			next(w, r.WithContext(withAccountID(r.Context(), accountID)))
			return
		}

		if raw := r.Header.Get(common.APIKeyHeaderName); raw != "" {
			keyID, secret, err := auth.SplitAPIKey(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			key, err := h.keys.GetByID(r.Context(), keyID)
			if err != nil {
				unauthorized(w)
				return
			}

			if err := auth.VerifyAPIKeySecret(key.SecretHash, secret); err != nil {
				unauthorized(w)
				return
			}

			// Best effort; auth already succeeded.
			if err := h.keys.Touch(r.Context(), key.ID); err != nil {
				h.logger.Warn(r.Context(), "failed to touch api key", "key_id", key.ID)
			}

			next(w, r.WithContext(withAccountID(r.Context(), key.AccountID)))
			return
		}

		unauthorized(w)
	}
}

func withAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDContextKey, accountID)
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}
