package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/common"
)

func TestWithAuthNoCredentials(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWithAuthInvalidBearer(t *testing.T) {
	f := newFixture()

	tests := []string{
		"Bearer not.a.jwt",
		"Basic dXNlcjpwYXNz",
		"Bearer ",
	}
	for _, header := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscription", nil)
		req.Header.Set(common.AuthorizationHeaderName, header)
		rr := httptest.NewRecorder()
		f.mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
}

func TestWithAuthAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	f := newFixture()
	f.keys.key = &models.APIKey{ID: "key_1", AccountID: "acc_42", SecretHash: hash}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/refund", nil)
	req.Header.Set(common.APIKeyHeaderName, "key_1.topsecret")
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rr.Code, rr.Body.String())
	}
	if f.refunds.gotAccountID != "acc_42" {
		t.Errorf("expected the key's account, got %q", f.refunds.gotAccountID)
	}
	if len(f.keys.touched) != 1 || f.keys.touched[0] != "key_1" {
		t.Errorf("expected the key to be touched, got %v", f.keys.touched)
	}
}

func TestWithAuthAPIKeyRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong secret", header: "key_1.wrong"},
		{name: "unknown key id", header: "key_other.topsecret"},
		{name: "malformed", header: "key_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.keys.key = &models.APIKey{ID: "key_1", AccountID: "acc_42", SecretHash: hash}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/refund", nil)
			req.Header.Set(common.APIKeyHeaderName, tt.header)
			rr := httptest.NewRecorder()
			f.mux.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
			if len(f.keys.touched) != 0 {
				t.Errorf("a rejected key must not be touched: %v", f.keys.touched)
			}
		})
	}
}
