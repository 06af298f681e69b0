package app

import (
	"context"
	"time"

	"bookkeeper/internal/core"

	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// Customers
	CreateCustomer(ctx context.Context, req CustomerRequest) (*core.Customer, error)
	UpdateCustomer(ctx context.Context, id int, req CustomerRequest) (*core.Customer, error)
	DeleteCustomer(ctx context.Context, userID, id int) error
	ListCustomers(ctx context.Context, userID int) ([]core.Customer, error)
	CustomerBalances(ctx context.Context, userID int) ([]core.CustomerBalance, error)
	// CustomerLedger reconstructs the customer's statement. from and to are
	// optional "2006-01-02" dates; empty means unbounded.
	CustomerLedger(ctx context.Context, userID, customerID int, from, to string) (*LedgerResult, error)

	// Suppliers
	CreateSupplier(ctx context.Context, req SupplierRequest) (*core.Supplier, error)
	UpdateSupplier(ctx context.Context, id int, req SupplierRequest) (*core.Supplier, error)
	DeleteSupplier(ctx context.Context, userID, id int) error
	ListSuppliers(ctx context.Context, userID int) ([]core.Supplier, error)
	SupplierBalances(ctx context.Context, userID int) ([]core.SupplierBalance, error)
	SupplierLedger(ctx context.Context, userID, supplierID int, from, to string) (*LedgerResult, error)

	// Products
	CreateProduct(ctx context.Context, product core.Product) (*core.Product, error)
	UpdateProduct(ctx context.Context, product core.Product) (*core.Product, error)
	DeleteProduct(ctx context.Context, userID, id int) error
	ListProducts(ctx context.Context, userID int) ([]core.Product, error)
	ListLowStockProducts(ctx context.Context, userID int) ([]core.Product, error)

	// Sales
	CreateSale(ctx context.Context, req CreateSaleRequest) (*core.Sale, error)
	UpdateSalePayments(ctx context.Context, req UpdateSaleRequest) (*core.Sale, error)
	DeleteSale(ctx context.Context, userID, id int) error
	GetSale(ctx context.Context, id int) (*core.Sale, error)
	ListSales(ctx context.Context, userID int) ([]core.Sale, error)
	GenerateSaleNumber(ctx context.Context, userID int) (string, error)

	// Bills
	AddBill(ctx context.Context, req AddBillRequest) (*core.Bill, error)
	PayBill(ctx context.Context, req PayBillRequest) (*core.Bill, error)
	DeleteBill(ctx context.Context, userID, id int) error
	GetBill(ctx context.Context, id int) (*core.Bill, error)
	ListBills(ctx context.Context, userID int) ([]core.Bill, error)
	ListUnpaidBills(ctx context.Context, userID int) ([]core.Bill, error)

	// Purchases
	AddPurchase(ctx context.Context, req AddPurchaseRequest) (*core.Purchase, error)
	DeletePurchase(ctx context.Context, userID, id int) error
	ListPurchases(ctx context.Context, userID int) ([]core.Purchase, error)

	// Incomes and expenses
	CreateIncome(ctx context.Context, income core.Income) (*core.Income, error)
	DeleteIncome(ctx context.Context, userID, id int) error
	ListIncomes(ctx context.Context, userID int) ([]core.Income, error)
	CreateExpense(ctx context.Context, expense core.Expense) (*core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int) error
	ListExpenses(ctx context.Context, userID int) ([]core.Expense, error)

	// Reports
	ProfitLoss(ctx context.Context, userID int, from, to string) (*core.ProfitLossReport, error)
	CashFlow(ctx context.Context, userID int, from, to string) (*core.CashFlowReport, error)
	BalanceSheet(ctx context.Context, userID int, asOf string) (*core.BalanceSheetReport, error)
	Dashboard(ctx context.Context, userID int) (*DashboardResult, error)

	// Invoices
	GenerateInvoice(ctx context.Context, userID, saleID int) (*core.Invoice, error)
	RenderInvoicePDF(ctx context.Context, userID, saleID int) ([]byte, error)
}

type CustomerRequest struct {
	UserID         int              `json:"user_id"`
	Name           string           `json:"name"`
	Phone          string           `json:"phone"`
	Email          string           `json:"email"`
	Address        string           `json:"address"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	CreditLimit    *decimal.Decimal `json:"credit_limit"`
}

type SupplierRequest struct {
	UserID         int             `json:"user_id"`
	Name           string          `json:"name"`
	Contact        string          `json:"contact"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type SaleItemInput struct {
	ProductID  int             `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type PaymentInput struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	ReferenceNo string          `json:"reference_no"`
	Notes       string          `json:"notes"`
}

type CreateSaleRequest struct {
	UserID         int             `json:"user_id"`
	CustomerID     int             `json:"customer_id"`
	SaleNumber     string          `json:"sale_number"`
	SaleDate       string          `json:"sale_date"`
	PaymentType    string          `json:"payment_type"`
	PaymentDueDate string          `json:"payment_due_date"`
	Notes          string          `json:"notes"`
	Items          []SaleItemInput `json:"items"`
	Payments       []PaymentInput  `json:"payments"`
}

type UpdateSaleRequest struct {
	UserID         int            `json:"user_id"`
	SaleID         int            `json:"sale_id"`
	SaleDate       string         `json:"sale_date"`
	PaymentType    string         `json:"payment_type"`
	PaymentDueDate string         `json:"payment_due_date"`
	Notes          string         `json:"notes"`
	Payments       []PaymentInput `json:"payments"`
}

type LineItemInput struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
}

type AddBillRequest struct {
	UserID     int             `json:"user_id"`
	SupplierID int             `json:"supplier_id"`
	BillNumber string          `json:"bill_number"`
	BillDate   string          `json:"bill_date"`
	DueDate    string          `json:"due_date"`
	Notes      string          `json:"notes"`
	Items      []LineItemInput `json:"items"`
}

type PayBillRequest struct {
	UserID  int          `json:"user_id"`
	BillID  int          `json:"bill_id"`
	Payment PaymentInput `json:"payment"`
}

type AddPurchaseRequest struct {
	UserID        int             `json:"user_id"`
	SupplierID    int             `json:"supplier_id"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	ReferenceNo   string          `json:"reference_no"`
	Notes         string          `json:"notes"`
	Items         []LineItemInput `json:"items"`
}

type LedgerResult struct {
	Entries      []core.LedgerEntry `json:"entries"`
	TotalDebit   decimal.Decimal    `json:"total_debit"`
	TotalCredit  decimal.Decimal    `json:"total_credit"`
	FinalBalance decimal.Decimal    `json:"final_balance"`
}

type DashboardResult struct {
	TotalReceivables decimal.Decimal            `json:"total_receivables"`
	TotalPayables    decimal.Decimal            `json:"total_payables"`
	NetBalance       decimal.Decimal            `json:"net_balance"`
	LowStockProducts []core.Product             `json:"low_stock_products"`
	DailyIncomes     map[string]decimal.Decimal `json:"daily_incomes"`
}

// parseDate parses an optional "2006-01-02" value; empty returns nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
