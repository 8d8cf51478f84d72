package billingctl

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weskerllc/cronicorn-billing/internal/billing/auth"
	"github.com/weskerllc/cronicorn-billing/internal/billing/models"
	"github.com/weskerllc/cronicorn-billing/internal/common"
)

const apiKeySecretBytes = 32

func newAPIKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikeys",
		Short: "Manage API keys for agent and MCP callers",
	}
	cmd.AddCommand(newAPIKeysCreateCmd(a))
	return cmd
}

func newAPIKeysCreateCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create <account-id>",
		Short: "Create an API key, printing the secret once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			// The account must exist before we mint a credential for it.
			if _, err := a.repos.Accounts(db).GetByID(cmd.Context(), args[0]); err != nil {
				return err
			}

			secret, err := common.MakeRandHexString(apiKeySecretBytes)
			if err != nil {
				return fmt.Errorf("generate secret: %w", err)
			}

			hash, err := auth.HashAPIKeySecret(secret)
			if err != nil {
				return err
			}

			key, err := a.repos.APIKeys(db).Create(cmd.Context(), &models.APIKey{
				ID:         uuid.NewString(),
				AccountID:  args[0],
				Name:       name,
				SecretHash: hash,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "api key created\n")
			fmt.Fprintf(cmd.OutOrStdout(), "id:      %s\n", key.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "header:  %s: %s.%s\n", common.APIKeyHeaderName, key.ID, secret)
			fmt.Fprintf(cmd.OutOrStdout(), "the secret is not stored and cannot be shown again\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "human-readable key name")
	return cmd
}
