package billingctl

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect billing accounts",
	}
	cmd.AddCommand(newAccountsShowCmd(a))
	return cmd
}

func newAccountsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Print the full billing record for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			account, err := a.repos.Accounts(db).GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(account)
		},
	}
}
