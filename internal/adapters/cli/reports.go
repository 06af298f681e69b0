package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var plCmd = &cobra.Command{
	Use:   "pl",
	Short: "Print a profit and loss statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, svc, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := svc.ProfitLoss(ctx, flagUserID, flagFrom, flagTo)
		if err != nil {
			return err
		}

		fmt.Printf("Profit & Loss  %s to %s\n",
			report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
		fmt.Printf("  Revenue             %12s\n", report.Revenue.StringFixed(2))
		fmt.Printf("  Other Income        %12s\n", report.OtherIncome.StringFixed(2))
		fmt.Printf("  Cost of Goods Sold  %12s\n", report.CostOfGoodsSold.StringFixed(2))
		fmt.Printf("  Gross Profit        %12s\n", report.GrossProfit.StringFixed(2))

		categories := make([]string, 0, len(report.ExpenseBreakdown))
		for c := range report.ExpenseBreakdown {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Printf("    %-18s%12s\n", c, report.ExpenseBreakdown[c].StringFixed(2))
		}
		fmt.Printf("  Operating Expenses  %12s\n", report.OperatingExpenses.StringFixed(2))
		fmt.Printf("  Net Profit          %12s\n", report.NetProfit.StringFixed(2))
		return nil
	},
}

var cashFlowCmd = &cobra.Command{
	Use:   "cashflow",
	Short: "Print a cash flow statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, svc, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := svc.CashFlow(ctx, flagUserID, flagFrom, flagTo)
		if err != nil {
			return err
		}

		fmt.Printf("Cash Flow  %s to %s\n",
			report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
		fmt.Printf("  Cash From Customers %12s\n", report.CashFromCustomers.StringFixed(2))
		fmt.Printf("  Other Income        %12s\n", report.OtherIncome.StringFixed(2))
		fmt.Printf("  Cash From Operations%12s\n", report.CashFromOperations.StringFixed(2))
		fmt.Printf("  Paid To Suppliers   %12s\n", report.CashPaidToSuppliers.StringFixed(2))
		fmt.Printf("  Operating Expenses  %12s\n", report.OperatingExpensesPaid.StringFixed(2))
		fmt.Printf("  Net Cash Flow       %12s\n", report.NetCashFlow.StringFixed(2))
		fmt.Printf("  Opening Cash        %12s\n", report.OpeningCash.StringFixed(2))
		fmt.Printf("  Closing Cash        %12s\n", report.ClosingCash.StringFixed(2))
		return nil
	},
}

var balanceSheetCmd = &cobra.Command{
	Use:   "balance-sheet",
	Short: "Print a balance sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, svc, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		report, err := svc.BalanceSheet(ctx, flagUserID, flagTo)
		if err != nil {
			return err
		}

		fmt.Printf("Balance Sheet as of %s\n", report.AsOf.Format("2006-01-02"))
		fmt.Printf("  Cash                %12s\n", report.Cash.StringFixed(2))
		fmt.Printf("  Receivables         %12s\n", report.Receivables.StringFixed(2))
		fmt.Printf("  Inventory           %12s\n", report.Inventory.StringFixed(2))
		fmt.Printf("  Total Assets        %12s\n", report.TotalAssets.StringFixed(2))
		fmt.Printf("  Payables            %12s\n", report.Payables.StringFixed(2))
		fmt.Printf("  Total Liabilities   %12s\n", report.TotalLiabilities.StringFixed(2))
		fmt.Printf("  Retained Earnings   %12s\n", report.RetainedEarnings.StringFixed(2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plCmd, cashFlowCmd, balanceSheetCmd)
}
