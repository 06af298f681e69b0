package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemType classifies a product for purchase/bill side effects.
type ItemType string

const (
	ItemTypeInventory    ItemType = "Inventory"
	ItemTypeService      ItemType = "Service"
	ItemTypeNonInventory ItemType = "Non-Inventory"
)

// BillStatus is a pure function of paid vs total amount, never stored
// independently of them.
type BillStatus string

const (
	BillStatusUnpaid  BillStatus = "Unpaid"
	BillStatusPartial BillStatus = "Partial"
	BillStatusPaid    BillStatus = "Paid"
)

// StockPolicy controls how purchase and bill line items affect the system.
// ByItemType branches on the product's ItemType (inventory lines move stock,
// service and non-inventory lines record an expense). AlwaysStock moves stock
// for every line regardless of type.
type StockPolicy string

const (
	StockPolicyByItemType  StockPolicy = "by-item-type"
	StockPolicyAlwaysStock StockPolicy = "always-stock"
)

type Customer struct {
	ID             int              `json:"id"`
	UserID         int              `json:"user_id"`
	Name           string           `json:"name"`
	Phone          string           `json:"phone"`
	Email          string           `json:"email"`
	Address        string           `json:"address"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	CreditLimit    *decimal.Decimal `json:"credit_limit,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      *time.Time       `json:"updated_at,omitempty"`
}

// Opening returns the opening balance, defaulting to zero when unset.
func (c Customer) Opening() decimal.Decimal {
	if c.OpeningBalance == nil {
		return decimal.Zero
	}
	return *c.OpeningBalance
}

type Supplier struct {
	ID             int             `json:"id"`
	UserID         int             `json:"user_id"`
	Name           string          `json:"name"`
	Contact        string          `json:"contact"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

type Product struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	Name          string          `json:"name"`
	ItemType      ItemType        `json:"item_type"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

type Sale struct {
	ID              int             `json:"id"`
	UserID          int             `json:"user_id"`
	SaleNumber      string          `json:"sale_number"`
	CustomerID      int             `json:"customer_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	SaleDate        time.Time       `json:"sale_date"`
	PaymentType     string          `json:"payment_type"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentDueDate  *time.Time      `json:"payment_due_date,omitempty"`
	IsPaid          bool            `json:"is_paid"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []SaleItem      `json:"items,omitempty"`
	Payments        []SalePayment   `json:"payments,omitempty"`
}

type SaleItem struct {
	ID          int             `json:"id"`
	SaleID      int             `json:"sale_id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type SalePayment struct {
	ID            int             `json:"id"`
	SaleID        int             `json:"sale_id"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	ReferenceNo   string          `json:"reference_no"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Purchase struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	SupplierID    int             `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	Date          time.Time       `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	ReferenceNo   string          `json:"reference_no"`
	Notes         string          `json:"notes"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []PurchaseItem  `json:"items,omitempty"`
}

// SettledImmediately reports whether the purchase was paid at purchase time.
// Credit purchases stay open on the supplier ledger until a payment arrives.
func (p Purchase) SettledImmediately() bool {
	return p.PaymentMethod != "Credit" && p.PaymentMethod != "Udhar"
}

type PurchaseItem struct {
	ID          int             `json:"id"`
	PurchaseID  int             `json:"purchase_id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

type Bill struct {
	ID           int             `json:"id"`
	UserID       int             `json:"user_id"`
	BillNumber   string          `json:"bill_number"`
	SupplierID   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	BillDate     time.Time       `json:"bill_date"`
	DueDate      time.Time       `json:"due_date"`
	Status       BillStatus      `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Notes        string          `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []BillItem      `json:"items,omitempty"`
	Payments     []BillPayment   `json:"payments,omitempty"`
}

// BalanceDue is the amount still owed on the bill.
func (b Bill) BalanceDue() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount)
}

type BillItem struct {
	ID          int             `json:"id"`
	BillID      int             `json:"bill_id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

type BillPayment struct {
	ID            int             `json:"id"`
	BillID        int             `json:"bill_id"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	ReferenceNo   string          `json:"reference_no"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Income struct {
	ID          int             `json:"id"`
	UserID      int             `json:"user_id"`
	Date        time.Time       `json:"date"`
	CustomerID  *int            `json:"customer_id,omitempty"`
	SaleID      *int            `json:"sale_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Expense struct {
	ID            int             `json:"id"`
	UserID        int             `json:"user_id"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	BillID        *int            `json:"bill_id,omitempty"`
	PurchaseID    *int            `json:"purchase_id,omitempty"`
	BillPaymentID *int            `json:"bill_payment_id,omitempty"`
	ProductID     *int            `json:"product_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Invoice struct {
	ID             int        `json:"id"`
	InvoiceNumber  string     `json:"invoice_number"`
	SaleID         int        `json:"sale_id"`
	InvoiceDate    time.Time  `json:"invoice_date"`
	PaymentDueDate *time.Time `json:"payment_due_date,omitempty"`
	GeneratedAt    time.Time  `json:"generated_at"`
	Sale           *Sale      `json:"sale,omitempty"`
}

// LedgerEntry is a derived row in a party ledger: one debit/credit event with
// the running balance after it. Never persisted.
type LedgerEntry struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
	Reference   string          `json:"reference"`
	Type        string          `json:"type"` // Opening | BroughtForward | Sale | Income | Bill | Purchase | Payment
}

// billStatusFor derives the bill status from paid vs total. paid is assumed
// to already be capped at total.
func billStatusFor(total, paid decimal.Decimal) BillStatus {
	switch {
	case paid.IsZero():
		return BillStatusUnpaid
	case paid.GreaterThanOrEqual(total):
		return BillStatusPaid
	default:
		return BillStatusPartial
	}
}

// saleTotals computes the derived amounts for a sale from its lines and
// payments. Client-supplied totals are never trusted.
func saleTotals(items []SaleItem, payments []SalePayment) (total, paid, remaining decimal.Decimal, isPaid bool) {
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	remaining = total.Sub(paid)
	return total, paid, remaining, remaining.LessThanOrEqual(decimal.Zero)
}
