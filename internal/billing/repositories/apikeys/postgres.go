package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	query :=
		`INSERT INTO api_keys (id, account_id, name, secret_hash)
         VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		key.ID, key.AccountID, key.Name, key.SecretHash).Scan(&key.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return key, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	query :=
		`SELECT id, account_id, name, secret_hash, created_at, last_used_at FROM api_keys
		 WHERE id = $1
		 `

	key := &models.APIKey{}
	var lastUsed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&key.ID, &key.AccountID, &key.Name, &key.SecretHash, &key.CreatedAt, &lastUsed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsedAt = &t
	}

	return key, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used_at = now() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
