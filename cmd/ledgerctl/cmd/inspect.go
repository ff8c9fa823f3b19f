package cmd

import (
	"fmt"

	"crowdfund/internal/model"
	"crowdfund/internal/service"

	"github.com/spf13/cobra"
)

var (
	entryKind  string
	entryLimit int
)

var balancesCmd = &cobra.Command{
	Use:   "balances <account>",
	Short: "Show the cached balances of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(svc *service.Services) error {
			account, err := svc.Ledger.GetAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), account)
		})
	},
}

var entriesCmd = &cobra.Command{
	Use:   "entries <account>",
	Short: "List the log entries of an account, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := model.EntryKind(entryKind)
		if kind != "" && !kind.Valid() {
			return fmt.Errorf("unknown kind %q", entryKind)
		}
		return withServices(func(svc *service.Services) error {
			entries, err := svc.TxLog.EntriesFor(args[0], kind).Collect(cmd.Context(), entryLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	entriesCmd.Flags().StringVar(&entryKind, "kind", "", "only entries of this kind")
	entriesCmd.Flags().IntVar(&entryLimit, "limit", 0, "stop after this many entries (0 = all)")
	rootCmd.AddCommand(balancesCmd, entriesCmd)
}
