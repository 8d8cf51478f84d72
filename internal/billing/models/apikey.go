package models

import "time"

// APIKey authenticates agent and MCP callers. The secret is only ever
// stored as a bcrypt hash; the plaintext is shown once at creation.
type APIKey struct {
	ID         string
	AccountID  string
	Name       string
	SecretHash []byte
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
