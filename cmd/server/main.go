package main

import (
	"context"
	"fmt"
	"net/http"

	webAdapter "bookkeeper/internal/adapters/web"
	"bookkeeper/internal/app"
	"bookkeeper/internal/cache"
	"bookkeeper/internal/config"
	"bookkeeper/internal/core"
	"bookkeeper/internal/db"
	"bookkeeper/internal/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	log := logger.WithComponent("server")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	if addr := cfg.RedisAddr(); addr != "" {
		if err := cache.Init(addr, cfg.Redis.Password); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, report caching disabled")
		}
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

	handler := webAdapter.NewHandler(svc, cfg.Server.CorsAllowedOrigins)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server starting")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
