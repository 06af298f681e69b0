package cli

import (
	"context"
	"fmt"
	"os"

	"bookkeeper/internal/app"
	"bookkeeper/internal/config"
	"bookkeeper/internal/core"
	"bookkeeper/internal/db"
	"bookkeeper/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	flagUserID int
	flagFrom   string
	flagTo     string
)

var rootCmd = &cobra.Command{
	Use:   "bookctl",
	Short: "Bookkeeping CLI for reports, ledgers and maintenance",
	Long: `bookctl works against the same database as the API server and
produces the derived views: profit and loss, cash flow, balance sheet,
and per-party ledgers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		return logger.Setup(cfg.Log.Level, cfg.Log.Format)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagUserID, "user", 1, "acting user id")
	rootCmd.PersistentFlags().StringVar(&flagFrom, "from", "", "range start (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&flagTo, "to", "", "range end (YYYY-MM-DD)")
}

// connect builds the full service graph against the configured database.
// The caller must Close the returned pool.
func connect(ctx context.Context) (*pgxpool.Pool, app.ApplicationService, error) {
	cfg := config.Load()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	products := core.NewProductService(pool)
	customers := core.NewCustomerService(pool)
	suppliers := core.NewSupplierService(pool)
	policy := core.StockPolicy(cfg.StockPolicy)
	sales := core.NewSaleService(pool, products)
	bills := core.NewBillService(pool, products, policy)
	purchases := core.NewPurchaseService(pool, products, policy)
	incomes := core.NewIncomeService(pool)
	expenses := core.NewExpenseService(pool)
	ledgers := core.NewLedgerService(pool, customers, suppliers)
	reports := core.NewReportService(pool)
	invoices := core.NewInvoiceService(pool, sales)

	svc := app.NewAppService(pool, customers, suppliers, products, sales, bills,
		purchases, incomes, expenses, ledgers, reports, invoices)
	return pool, svc, nil
}
