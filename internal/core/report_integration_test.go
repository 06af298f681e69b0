package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookkeeper/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

// seedApril builds one month of activity against the standard fixture:
//
//	sale    2026-04-02  1200 total, 1000 received
//	bill    2026-04-03  2000, 1500 paid on 04-08
//	income  2026-04-06   700 standalone receipt
//	expense 2026-04-07   300 rent
//	purchase 2026-04-12  500 cash
func seedApril(t *testing.T, services aprilServices) {
	t.Helper()
	ctx := context.Background()

	_, err := services.sales.Create(ctx, core.Sale{
		UserID: 1, CustomerID: 1,
		SaleDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}, []core.SaleItem{{ProductID: 1, Quantity: 10, UnitPrice: d("120"), TotalPrice: d("1200")}},
		[]core.SalePayment{{Amount: d("1000"), PaymentMethod: "Cash"}})
	if err != nil {
		t.Fatalf("seed sale failed: %v", err)
	}

	bill, err := services.bills.Add(ctx, core.Bill{
		UserID: 1, SupplierID: 1,
		BillDate: time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
	}, []core.BillItem{{ProductID: 1, Quantity: 40, Rate: d("50"), Amount: d("2000")}})
	if err != nil {
		t.Fatalf("seed bill failed: %v", err)
	}
	if _, err := services.bills.Pay(ctx, 1, bill.ID, core.BillPayment{
		PaymentDate:   time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC),
		Amount:        d("1500"),
		PaymentMethod: "Cash",
	}); err != nil {
		t.Fatalf("seed bill payment failed: %v", err)
	}

	customerID := 1
	if _, err := services.incomes.Create(ctx, core.Income{
		UserID: 1, CustomerID: &customerID,
		Date:   time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		Amount: d("700"),
	}); err != nil {
		t.Fatalf("seed income failed: %v", err)
	}

	if _, err := services.expenses.Create(ctx, core.Expense{
		UserID:   1,
		Date:     time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC),
		Category: "Rent",
		Amount:   d("300"),
	}); err != nil {
		t.Fatalf("seed expense failed: %v", err)
	}

	if _, err := services.purchases.Add(ctx, core.Purchase{
		UserID: 1, SupplierID: 1,
		Date:          time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "Cash",
	}, []core.PurchaseItem{{ProductID: 1, Quantity: 10, Rate: d("50"), Amount: d("500")}}); err != nil {
		t.Fatalf("seed purchase failed: %v", err)
	}
}

type aprilServices struct {
	sales     core.SaleService
	bills     core.BillService
	purchases core.PurchaseService
	incomes   core.IncomeService
	expenses  core.ExpenseService
}

func buildAprilServices(pool *pgxpool.Pool) aprilServices {
	products := core.NewProductService(pool)
	return aprilServices{
		sales:     core.NewSaleService(pool, products),
		bills:     core.NewBillService(pool, products, core.StockPolicyByItemType),
		purchases: core.NewPurchaseService(pool, products, core.StockPolicyByItemType),
		incomes:   core.NewIncomeService(pool),
		expenses:  core.NewExpenseService(pool),
	}
}

func TestReportService_ProfitLoss(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedApril(t, buildAprilServices(pool))
	reports := core.NewReportService(pool)

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	report, err := reports.ProfitLoss(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("ProfitLoss failed: %v", err)
	}

	if !report.Revenue.Equal(d("1200")) {
		t.Errorf("revenue = %s, want 1200", report.Revenue)
	}
	// 1000 mirrored from the sale payment + 700 standalone.
	if !report.OtherIncome.Equal(d("1700")) {
		t.Errorf("other income = %s, want 1700", report.OtherIncome)
	}
	if !report.CostOfGoodsSold.Equal(d("500")) {
		t.Errorf("cogs = %s, want 500", report.CostOfGoodsSold)
	}
	// Rent 300 plus the mirrored bill payment 1500.
	if !report.OperatingExpenses.Equal(d("1800")) {
		t.Errorf("operating expenses = %s, want 1800", report.OperatingExpenses)
	}
	if !report.GrossProfit.Equal(d("2400")) {
		t.Errorf("gross profit = %s, want 2400", report.GrossProfit)
	}
	if !report.NetProfit.Equal(d("600")) {
		t.Errorf("net profit = %s, want 600", report.NetProfit)
	}
	if rent, ok := report.ExpenseBreakdown["Rent"]; !ok || !rent.Equal(d("300")) {
		t.Errorf("breakdown[Rent] = %s, want 300", rent)
	}
	if bp, ok := report.ExpenseBreakdown["Bill Payment"]; !ok || !bp.Equal(d("1500")) {
		t.Errorf("breakdown[Bill Payment] = %s, want 1500", bp)
	}
}

func TestReportService_ProfitLossRejectsInvertedRange(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	reports := core.NewReportService(pool)
	from := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := reports.ProfitLoss(context.Background(), 1, from, to); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestReportService_CashFlow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedApril(t, buildAprilServices(pool))
	reports := core.NewReportService(pool)

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	report, err := reports.CashFlow(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("CashFlow failed: %v", err)
	}

	if !report.CashFromCustomers.Equal(d("1000")) {
		t.Errorf("cash from customers = %s, want 1000", report.CashFromCustomers)
	}
	// All income rows count, the mirrored sale receipt included.
	if !report.OtherIncome.Equal(d("1700")) {
		t.Errorf("other income = %s, want 1700", report.OtherIncome)
	}
	if !report.CashFromOperations.Equal(d("2700")) {
		t.Errorf("cash from operations = %s, want 2700", report.CashFromOperations)
	}
	if !report.CashPaidToSuppliers.Equal(d("1500")) {
		t.Errorf("cash paid to suppliers = %s, want 1500", report.CashPaidToSuppliers)
	}
	// Rent 300 plus the mirrored bill payment 1500.
	if !report.OperatingExpensesPaid.Equal(d("1800")) {
		t.Errorf("operating expenses paid = %s, want 1800", report.OperatingExpensesPaid)
	}
	if !report.NetCashFlow.Equal(d("-600")) {
		t.Errorf("net cash flow = %s, want -600", report.NetCashFlow)
	}
	if !report.OpeningCash.IsZero() {
		t.Errorf("opening cash = %s, want 0", report.OpeningCash)
	}
	if !report.ClosingCash.Equal(d("-600")) {
		t.Errorf("closing cash = %s, want -600", report.ClosingCash)
	}
}

func TestReportService_CashFlowOpeningCarriesForward(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedApril(t, buildAprilServices(pool))
	reports := core.NewReportService(pool)

	// A May window starts where April left off.
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	report, err := reports.CashFlow(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("CashFlow failed: %v", err)
	}

	if !report.NetCashFlow.IsZero() {
		t.Errorf("net cash flow = %s, want 0", report.NetCashFlow)
	}
	if !report.OpeningCash.Equal(d("-600")) {
		t.Errorf("opening cash = %s, want -600", report.OpeningCash)
	}
	if !report.ClosingCash.Equal(d("-600")) {
		t.Errorf("closing cash = %s, want -600", report.ClosingCash)
	}
}

func TestReportService_BalanceSheet(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedApril(t, buildAprilServices(pool))
	reports := core.NewReportService(pool)

	asOf := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	report, err := reports.BalanceSheet(ctx, 1, asOf)
	if err != nil {
		t.Fatalf("BalanceSheet failed: %v", err)
	}

	// (1700 income + 1000 sale receipts) - (1800 expenses + 1500 bill payments).
	if !report.Cash.Equal(d("-600")) {
		t.Errorf("cash = %s, want -600", report.Cash)
	}
	// Unpaid sale remainder only; opening balances stay on the dashboard.
	if !report.Receivables.Equal(d("200")) {
		t.Errorf("receivables = %s, want 200", report.Receivables)
	}
	// Product 1: (100 - 10 + 40 + 10) * 50. Product 3: 20 * 200.
	if !report.Inventory.Equal(d("11000")) {
		t.Errorf("inventory = %s, want 11000", report.Inventory)
	}
	// Outstanding bill balance only.
	if !report.Payables.Equal(d("500")) {
		t.Errorf("payables = %s, want 500", report.Payables)
	}
	if !report.TotalAssets.Equal(d("10600")) {
		t.Errorf("total assets = %s, want 10600", report.TotalAssets)
	}
	if !report.RetainedEarnings.Equal(d("10100")) {
		t.Errorf("retained earnings = %s, want 10100", report.RetainedEarnings)
	}
	if !report.IsBalanced {
		t.Error("balance sheet must balance")
	}
}

func TestReportService_Dashboard(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	seedApril(t, buildAprilServices(pool))
	reports := core.NewReportService(pool)

	receivables, err := reports.TotalReceivables(ctx, 1)
	if err != nil {
		t.Fatalf("TotalReceivables failed: %v", err)
	}
	if !receivables.Equal(d("700")) {
		t.Errorf("receivables = %s, want 700", receivables)
	}

	payables, err := reports.TotalPayables(ctx, 1)
	if err != nil {
		t.Fatalf("TotalPayables failed: %v", err)
	}
	if !payables.Equal(d("1500")) {
		t.Errorf("payables = %s, want 1500", payables)
	}

	net, err := reports.NetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("NetBalance failed: %v", err)
	}
	if !net.Equal(d("-800")) {
		t.Errorf("net balance = %s, want -800", net)
	}
}
