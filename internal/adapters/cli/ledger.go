package cli

import (
	"fmt"
	"strconv"

	"bookkeeper/internal/app"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger [customer|supplier] [id]",
	Short: "Print a party ledger with running balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		partyID, err := strconv.Atoi(args[1])
		if err != nil || partyID <= 0 {
			return fmt.Errorf("invalid party id %q", args[1])
		}

		ctx := cmd.Context()
		pool, svc, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var result *app.LedgerResult
		switch args[0] {
		case "customer":
			result, err = svc.CustomerLedger(ctx, flagUserID, partyID, flagFrom, flagTo)
		case "supplier":
			result, err = svc.SupplierLedger(ctx, flagUserID, partyID, flagFrom, flagTo)
		default:
			return fmt.Errorf("unknown party kind %q, want customer or supplier", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Printf("%-12s %-40s %12s %12s %12s\n", "Date", "Description", "Debit", "Credit", "Balance")
		for _, e := range result.Entries {
			fmt.Printf("%-12s %-40s %12s %12s %12s\n",
				e.Date.Format("2006-01-02"), e.Description,
				e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Balance.StringFixed(2))
		}
		fmt.Printf("%-53s %12s %12s %12s\n", "Totals",
			result.TotalDebit.StringFixed(2), result.TotalCredit.StringFixed(2),
			result.FinalBalance.StringFixed(2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}
