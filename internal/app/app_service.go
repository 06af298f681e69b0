package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeper/internal/cache"
	"bookkeeper/internal/core"
	"bookkeeper/internal/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool      *pgxpool.Pool
	customers core.CustomerService
	suppliers core.SupplierService
	products  core.ProductService
	sales     core.SaleService
	bills     core.BillService
	purchases core.PurchaseService
	incomes   core.IncomeService
	expenses  core.ExpenseService
	ledgers   core.LedgerService
	reports   core.ReportService
	invoices  core.InvoiceService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	customers core.CustomerService,
	suppliers core.SupplierService,
	products core.ProductService,
	sales core.SaleService,
	bills core.BillService,
	purchases core.PurchaseService,
	incomes core.IncomeService,
	expenses core.ExpenseService,
	ledgers core.LedgerService,
	reports core.ReportService,
	invoices core.InvoiceService,
) ApplicationService {
	return &appService{
		pool:      pool,
		customers: customers,
		suppliers: suppliers,
		products:  products,
		sales:     sales,
		bills:     bills,
		purchases: purchases,
		incomes:   incomes,
		expenses:  expenses,
		ledgers:   ledgers,
		reports:   reports,
		invoices:  invoices,
	}
}

func (s *appService) CreateCustomer(ctx context.Context, req CustomerRequest) (*core.Customer, error) {
	return s.customers.Create(ctx, core.Customer{
		UserID:         req.UserID,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		OpeningBalance: req.OpeningBalance,
		CreditLimit:    req.CreditLimit,
	})
}

func (s *appService) UpdateCustomer(ctx context.Context, id int, req CustomerRequest) (*core.Customer, error) {
	return s.customers.Update(ctx, core.Customer{
		ID:             id,
		UserID:         req.UserID,
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		OpeningBalance: req.OpeningBalance,
		CreditLimit:    req.CreditLimit,
	})
}

func (s *appService) DeleteCustomer(ctx context.Context, userID, id int) error {
	return s.customers.Delete(ctx, userID, id)
}

func (s *appService) ListCustomers(ctx context.Context, userID int) ([]core.Customer, error) {
	return s.customers.List(ctx, userID)
}

func (s *appService) CustomerBalances(ctx context.Context, userID int) ([]core.CustomerBalance, error) {
	return s.customers.Balances(ctx, userID)
}

func (s *appService) CustomerLedger(ctx context.Context, userID, customerID int, from, to string) (*LedgerResult, error) {
	fromDate, toDate, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledgers.CustomerLedger(ctx, userID, customerID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return summarizeLedger(entries), nil
}

func (s *appService) CreateSupplier(ctx context.Context, req SupplierRequest) (*core.Supplier, error) {
	return s.suppliers.Create(ctx, core.Supplier{
		UserID:         req.UserID,
		Name:           req.Name,
		Contact:        req.Contact,
		Email:          req.Email,
		Address:        req.Address,
		OpeningBalance: req.OpeningBalance,
	})
}

func (s *appService) UpdateSupplier(ctx context.Context, id int, req SupplierRequest) (*core.Supplier, error) {
	return s.suppliers.Update(ctx, core.Supplier{
		ID:             id,
		UserID:         req.UserID,
		Name:           req.Name,
		Contact:        req.Contact,
		Email:          req.Email,
		Address:        req.Address,
		OpeningBalance: req.OpeningBalance,
	})
}

func (s *appService) DeleteSupplier(ctx context.Context, userID, id int) error {
	return s.suppliers.Delete(ctx, userID, id)
}

func (s *appService) ListSuppliers(ctx context.Context, userID int) ([]core.Supplier, error) {
	return s.suppliers.List(ctx, userID)
}

func (s *appService) SupplierBalances(ctx context.Context, userID int) ([]core.SupplierBalance, error) {
	return s.suppliers.Balances(ctx, userID)
}

func (s *appService) SupplierLedger(ctx context.Context, userID, supplierID int, from, to string) (*LedgerResult, error) {
	fromDate, toDate, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledgers.SupplierLedger(ctx, userID, supplierID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return summarizeLedger(entries), nil
}

func (s *appService) CreateProduct(ctx context.Context, product core.Product) (*core.Product, error) {
	return s.products.Create(ctx, product)
}

func (s *appService) UpdateProduct(ctx context.Context, product core.Product) (*core.Product, error) {
	return s.products.Update(ctx, product)
}

func (s *appService) DeleteProduct(ctx context.Context, userID, id int) error {
	return s.products.Delete(ctx, userID, id)
}

func (s *appService) ListProducts(ctx context.Context, userID int) ([]core.Product, error) {
	return s.products.List(ctx, userID)
}

func (s *appService) ListLowStockProducts(ctx context.Context, userID int) ([]core.Product, error) {
	return s.products.ListLowStock(ctx, userID)
}

func (s *appService) CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error) {
	saleDate, err := parseDate(req.SaleDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sale date %q", core.ErrValidation, req.SaleDate)
	}
	dueDate, err := parseDate(req.PaymentDueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid due date %q", core.ErrValidation, req.PaymentDueDate)
	}

	sale := core.Sale{
		UserID:         req.UserID,
		CustomerID:     req.CustomerID,
		SaleNumber:     req.SaleNumber,
		PaymentType:    req.PaymentType,
		PaymentDueDate: dueDate,
		Notes:          req.Notes,
	}
	if saleDate != nil {
		sale.SaleDate = *saleDate
	}

	items := make([]core.SaleItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.SaleItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
	}
	payments, err := toSalePayments(req.Payments)
	if err != nil {
		return nil, err
	}

	created, err := s.sales.Create(ctx, sale, items, payments)
	metrics.RecordTransaction("sale", err)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, req.UserID)
	return created, nil
}

func (s *appService) UpdateSalePayments(ctx context.Context, req UpdateSaleRequest) (*core.Sale, error) {
	saleDate, err := parseDate(req.SaleDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sale date %q", core.ErrValidation, req.SaleDate)
	}
	dueDate, err := parseDate(req.PaymentDueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid due date %q", core.ErrValidation, req.PaymentDueDate)
	}

	sale := core.Sale{
		ID:             req.SaleID,
		UserID:         req.UserID,
		PaymentType:    req.PaymentType,
		PaymentDueDate: dueDate,
		Notes:          req.Notes,
	}
	if saleDate != nil {
		sale.SaleDate = *saleDate
	}
	payments, err := toSalePayments(req.Payments)
	if err != nil {
		return nil, err
	}

	updated, err := s.sales.Update(ctx, sale, payments)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, req.UserID)
	return updated, nil
}

func (s *appService) DeleteSale(ctx context.Context, userID, id int) error {
	if err := s.sales.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateReports(ctx, userID)
	return nil
}

func (s *appService) GetSale(ctx context.Context, id int) (*core.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

func (s *appService) ListSales(ctx context.Context, userID int) ([]core.Sale, error) {
	return s.sales.List(ctx, userID)
}

func (s *appService) GenerateSaleNumber(ctx context.Context, userID int) (string, error) {
	return s.sales.GenerateSaleNumber(ctx, userID)
}

func (s *appService) AddBill(ctx context.Context, req AddBillRequest) (*core.Bill, error) {
	billDate, err := parseDate(req.BillDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bill date %q", core.ErrValidation, req.BillDate)
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid due date %q", core.ErrValidation, req.DueDate)
	}

	bill := core.Bill{
		UserID:     req.UserID,
		SupplierID: req.SupplierID,
		BillNumber: req.BillNumber,
		Notes:      req.Notes,
	}
	if billDate != nil {
		bill.BillDate = *billDate
	}
	if dueDate != nil {
		bill.DueDate = *dueDate
	}

	items := make([]core.BillItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.BillItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Rate:      it.Rate,
			Amount:    it.Amount,
		}
	}

	created, err := s.bills.Add(ctx, bill, items)
	metrics.RecordTransaction("bill", err)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, req.UserID)
	return created, nil
}

func (s *appService) PayBill(ctx context.Context, req PayBillRequest) (*core.Bill, error) {
	date, err := parseDate(req.Payment.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payment date %q", core.ErrValidation, req.Payment.Date)
	}
	payment := core.BillPayment{
		Amount:        req.Payment.Amount,
		PaymentMethod: req.Payment.Method,
		ReferenceNo:   req.Payment.ReferenceNo,
		Notes:         req.Payment.Notes,
	}
	if date != nil {
		payment.PaymentDate = *date
	}

	paid, err := s.bills.Pay(ctx, req.UserID, req.BillID, payment)
	metrics.RecordTransaction("bill_payment", err)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, req.UserID)
	return paid, nil
}

func (s *appService) DeleteBill(ctx context.Context, userID, id int) error {
	if err := s.bills.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateReports(ctx, userID)
	return nil
}

func (s *appService) GetBill(ctx context.Context, id int) (*core.Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *appService) ListBills(ctx context.Context, userID int) ([]core.Bill, error) {
	return s.bills.List(ctx, userID)
}

func (s *appService) ListUnpaidBills(ctx context.Context, userID int) ([]core.Bill, error) {
	return s.bills.ListUnpaid(ctx, userID)
}

func (s *appService) AddPurchase(ctx context.Context, req AddPurchaseRequest) (*core.Purchase, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid purchase date %q", core.ErrValidation, req.Date)
	}

	purchase := core.Purchase{
		UserID:        req.UserID,
		SupplierID:    req.SupplierID,
		PaymentMethod: req.PaymentMethod,
		ReferenceNo:   req.ReferenceNo,
		Notes:         req.Notes,
	}
	if date != nil {
		purchase.Date = *date
	}

	items := make([]core.PurchaseItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.PurchaseItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Rate:      it.Rate,
			Amount:    it.Amount,
		}
	}

	created, err := s.purchases.Add(ctx, purchase, items)
	metrics.RecordTransaction("purchase", err)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, req.UserID)
	return created, nil
}

func (s *appService) DeletePurchase(ctx context.Context, userID, id int) error {
	if err := s.purchases.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateReports(ctx, userID)
	return nil
}

func (s *appService) ListPurchases(ctx context.Context, userID int) ([]core.Purchase, error) {
	return s.purchases.List(ctx, userID)
}

func (s *appService) CreateIncome(ctx context.Context, income core.Income) (*core.Income, error) {
	created, err := s.incomes.Create(ctx, income)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, income.UserID)
	return created, nil
}

func (s *appService) DeleteIncome(ctx context.Context, userID, id int) error {
	if err := s.incomes.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateReports(ctx, userID)
	return nil
}

func (s *appService) ListIncomes(ctx context.Context, userID int) ([]core.Income, error) {
	return s.incomes.List(ctx, userID)
}

func (s *appService) CreateExpense(ctx context.Context, expense core.Expense) (*core.Expense, error) {
	created, err := s.expenses.Create(ctx, expense)
	if err != nil {
		return nil, err
	}
	cache.InvalidateReports(ctx, expense.UserID)
	return created, nil
}

func (s *appService) DeleteExpense(ctx context.Context, userID, id int) error {
	if err := s.expenses.Delete(ctx, userID, id); err != nil {
		return err
	}
	cache.InvalidateReports(ctx, userID)
	return nil
}

func (s *appService) ListExpenses(ctx context.Context, userID int) ([]core.Expense, error) {
	return s.expenses.List(ctx, userID)
}

func (s *appService) ProfitLoss(ctx context.Context, userID int, from, to string) (*core.ProfitLossReport, error) {
	fromDate, toDate, err := reportRange(from, to)
	if err != nil {
		return nil, err
	}

	rangeKey := from + ":" + to
	if data, ok := cache.GetReport(ctx, userID, "pl", rangeKey); ok {
		var report core.ProfitLossReport
		if json.Unmarshal(data, &report) == nil {
			return &report, nil
		}
	}

	report, err := s.reports.ProfitLoss(ctx, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(report); err == nil {
		cache.SetReport(ctx, userID, "pl", rangeKey, data)
	}
	return report, nil
}

func (s *appService) CashFlow(ctx context.Context, userID int, from, to string) (*core.CashFlowReport, error) {
	fromDate, toDate, err := reportRange(from, to)
	if err != nil {
		return nil, err
	}

	rangeKey := from + ":" + to
	if data, ok := cache.GetReport(ctx, userID, "cashflow", rangeKey); ok {
		var report core.CashFlowReport
		if json.Unmarshal(data, &report) == nil {
			return &report, nil
		}
	}

	report, err := s.reports.CashFlow(ctx, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(report); err == nil {
		cache.SetReport(ctx, userID, "cashflow", rangeKey, data)
	}
	return report, nil
}

func (s *appService) BalanceSheet(ctx context.Context, userID int, asOf string) (*core.BalanceSheetReport, error) {
	asOfDate := time.Now()
	if asOf != "" {
		parsed, err := parseDate(asOf)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid as-of date %q", core.ErrValidation, asOf)
		}
		asOfDate = *parsed
	}
	return s.reports.BalanceSheet(ctx, userID, asOfDate)
}

func (s *appService) Dashboard(ctx context.Context, userID int) (*DashboardResult, error) {
	receivables, err := s.reports.TotalReceivables(ctx, userID)
	if err != nil {
		return nil, err
	}
	payables, err := s.reports.TotalPayables(ctx, userID)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.products.ListLowStock(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	daily, err := s.incomes.DailyTotals(ctx, userID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, err
	}

	return &DashboardResult{
		TotalReceivables: receivables,
		TotalPayables:    payables,
		NetBalance:       receivables.Sub(payables),
		LowStockProducts: lowStock,
		DailyIncomes:     daily,
	}, nil
}

func (s *appService) GenerateInvoice(ctx context.Context, userID, saleID int) (*core.Invoice, error) {
	return s.invoices.Generate(ctx, userID, saleID)
}

func (s *appService) RenderInvoicePDF(ctx context.Context, userID, saleID int) ([]byte, error) {
	return s.invoices.RenderPDF(ctx, userID, saleID)
}

func toSalePayments(inputs []PaymentInput) ([]core.SalePayment, error) {
	payments := make([]core.SalePayment, len(inputs))
	for i, p := range inputs {
		date, err := parseDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid payment date %q", core.ErrValidation, p.Date)
		}
		payments[i] = core.SalePayment{
			Amount:        p.Amount,
			PaymentMethod: p.Method,
			ReferenceNo:   p.ReferenceNo,
			Notes:         p.Notes,
		}
		if date != nil {
			payments[i].PaymentDate = *date
		}
	}
	return payments, nil
}

func parseRange(from, to string) (*time.Time, *time.Time, error) {
	fromDate, err := parseDate(from)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid from date %q", core.ErrValidation, from)
	}
	toDate, err := parseDate(to)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid to date %q", core.ErrValidation, to)
	}
	return fromDate, toDate, nil
}

// reportRange parses a required report range, defaulting to the current
// month when both ends are empty.
func reportRange(from, to string) (time.Time, time.Time, error) {
	if from == "" && to == "" {
		now := time.Now()
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, now, nil
	}
	fromDate, toDate, err := parseRange(from, to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if fromDate == nil || toDate == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: report range requires both from and to", core.ErrValidation)
	}
	return *fromDate, *toDate, nil
}

func summarizeLedger(entries []core.LedgerEntry) *LedgerResult {
	result := &LedgerResult{Entries: entries}
	for _, e := range entries {
		result.TotalDebit = result.TotalDebit.Add(e.Debit)
		result.TotalCredit = result.TotalCredit.Add(e.Credit)
	}
	if len(entries) > 0 {
		result.FinalBalance = entries[len(entries)-1].Balance
	}
	return result
}
