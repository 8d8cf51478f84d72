// Package billingctl implements the operator CLI: stuck-refund reporting,
// account inspection, and API key management, straight against the billing
// database.
package billingctl

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "billingctl: operator tooling for the billing database",
		Long:          "billingctl inspects accounts, reports refunds stuck in non-terminal states, and manages API keys. It connects directly to PostgreSQL using the DSN from config or the --dsn flag.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app := wireApp(rootCmd)

	rootCmd.AddCommand(
		newConfigCmd(app),
		newAccountsCmd(app),
		newRefundsCmd(app),
		newAPIKeysCmd(app),
	)

	return rootCmd
}
