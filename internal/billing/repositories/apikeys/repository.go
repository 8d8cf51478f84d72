// Package apikeys stores API-key credentials for agent and MCP callers.
package apikeys

import (
	"context"

	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	GetByID(ctx context.Context, id string) (*models.APIKey, error)

	// Touch records a successful use of the key.
	Touch(ctx context.Context, id string) error
}
