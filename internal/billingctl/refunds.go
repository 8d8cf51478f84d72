package billingctl

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRefundsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refunds",
		Short: "Inspect refund state",
	}
	cmd.AddCommand(newRefundsStuckCmd(a))
	return cmd
}

// newRefundsStuckCmd lists accounts whose refund never reached a terminal
// state: either the lock is still held (`requested`, cancel failed or the
// process died) or the refund failed after cancellation and needs a manual
// fix.
func newRefundsStuckCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "stuck",
		Short: "List refunds stuck in a non-terminal state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			stuck, err := a.repos.Accounts(db).ListStuckRefunds(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			if len(stuck) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stuck refunds")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tEMAIL\tREFUND STATUS\tSTUCK FOR")
			for _, account := range stuck {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					account.ID,
					account.Email,
					account.RefundStatus,
					a.now().Sub(account.UpdatedAt).Round(time.Minute),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "ignore refunds younger than this")
	return cmd
}
