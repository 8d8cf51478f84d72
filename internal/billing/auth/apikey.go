package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/weskerllc/cronicorn-billing/internal/common"
)

// HashAPIKeySecret returns the bcrypt hash to store for a freshly generated
// key secret.
func HashAPIKeySecret(secret string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing api key secret: %w", err)
	}
	return hash, nil
}

// VerifyAPIKeySecret compares a presented secret against the stored hash.
func VerifyAPIKeySecret(hash []byte, secret string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return common.ErrInvalidAPIKey
	}
	return nil
}

// SplitAPIKey parses the wire form `<id>.<secret>` of the X-Api-Key header.
// The secret may itself contain dots, so only the first one splits.
func SplitAPIKey(raw string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" {
		return "", "", common.ErrInvalidAPIKey
	}
	return id, secret, nil
}
