package cmd

import (
	"fmt"

	"crowdfund/internal/service"

	"github.com/spf13/cobra"
)

var repair bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare cached balances and campaign totals with the transaction log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(svc *service.Services) error {
			report, err := svc.Reconciler.Reconcile(cmd.Context(), repair)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Divergences) > 0 && !repair {
				return fmt.Errorf("%d divergences found, rerun with --repair to fix", len(report.Divergences))
			}
			return nil
		})
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&repair, "repair", false, "rewrite diverging rows from the log")
	rootCmd.AddCommand(reconcileCmd)
}
