package repomanager

import (
	"context"
	"database/sql"

	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/accounts"
	"github.com/weskerllc/cronicorn-billing/internal/billing/repositories/apikeys"
	"github.com/weskerllc/cronicorn-billing/internal/dbx"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repository code on a plain connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
}
