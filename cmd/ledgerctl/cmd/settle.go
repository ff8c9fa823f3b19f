package cmd

import (
	"crowdfund/internal/service"

	"github.com/spf13/cobra"
)

var settleCmd = &cobra.Command{
	Use:   "settle <entry_no>",
	Short: "Mark a withdrawal as paid out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(svc *service.Services) error {
			settlement, err := svc.Settlements.MarkSettled(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settlement)
		})
	},
}

var pendingLimit int

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List withdrawals waiting for payout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(svc *service.Services) error {
			settlements, err := svc.Settlements.ListPending(cmd.Context(), pendingLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), settlements)
		})
	},
}

func init() {
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 100, "maximum rows")
	rootCmd.AddCommand(settleCmd, pendingCmd)
}
