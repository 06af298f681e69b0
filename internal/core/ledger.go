package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger entry types.
const (
	EntryOpening        = "Opening"
	EntryBroughtForward = "BroughtForward"
	EntrySale           = "Sale"
	EntryIncome         = "Income"
	EntryBill           = "Bill"
	EntryPurchase       = "Purchase"
	EntryPayment        = "Payment"
)

// ledgerSide determines how the running balance accumulates. A receivable
// ledger (customers) grows with debits; a payable ledger (suppliers) grows
// with credits.
type ledgerSide int

const (
	receivableSide ledgerSide = iota
	payableSide
)

// buildLedger turns raw debit/credit events into a presentable ledger.
// Entries are stably sorted by date (ties keep input order) and the running
// balance is recomputed from scratch, seeded by the opening balance. The
// first row is always synthetic: without a from date it is the Opening
// Balance entry dated at party creation; with one it is a Brought Forward
// entry dated the day before from, carrying the opening balance plus every
// event strictly before the window. Both are balance-only rows and are
// emitted even when the carried balance is zero. Events after to are
// dropped. The input Balance field is ignored.
func buildLedger(opening decimal.Decimal, openedAt time.Time, entries []LedgerEntry, side ledgerSide, from, to *time.Time) []LedgerEntry {
	sorted := make([]LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var window []LedgerEntry
	carried := opening
	for _, e := range sorted {
		if from != nil && e.Date.Before(*from) {
			carried = carried.Add(entryDelta(e, side))
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		window = append(window, e)
	}

	first := LedgerEntry{
		Date:        openedAt,
		Description: "Opening Balance",
		Balance:     opening,
		Reference:   "OB",
		Type:        EntryOpening,
	}
	if from != nil {
		first = LedgerEntry{
			Date:        from.AddDate(0, 0, -1),
			Description: "Opening Balance (Brought Forward)",
			Balance:     carried,
			Type:        EntryBroughtForward,
		}
	}

	result := append([]LedgerEntry{first}, window...)
	balance := first.Balance
	for i := 1; i < len(result); i++ {
		balance = balance.Add(entryDelta(result[i], side))
		result[i].Balance = balance
	}
	return result
}

func entryDelta(e LedgerEntry, side ledgerSide) decimal.Decimal {
	if side == receivableSide {
		return e.Debit.Sub(e.Credit)
	}
	return e.Credit.Sub(e.Debit)
}

// LedgerService reconstructs party ledgers from the transaction tables.
// Nothing here is persisted; every call derives the statement fresh.
type LedgerService interface {
	// CustomerLedger lists what the customer owes: sales debit the account,
	// income receipts credit it, the opening balance seeds it.
	CustomerLedger(ctx context.Context, userID, customerID int, from, to *time.Time) ([]LedgerEntry, error)
	// SupplierLedger lists what the business owes: bills and purchases
	// credit the account, payments debit it. Purchases settled at purchase
	// time get a matching same-day payment entry so they net to zero.
	SupplierLedger(ctx context.Context, userID, supplierID int, from, to *time.Time) ([]LedgerEntry, error)
}

type ledgerService struct {
	pool      *pgxpool.Pool
	customers CustomerService
	suppliers SupplierService
}

func NewLedgerService(pool *pgxpool.Pool, customers CustomerService, suppliers SupplierService) LedgerService {
	return &ledgerService{pool: pool, customers: customers, suppliers: suppliers}
}

func (s *ledgerService) CustomerLedger(ctx context.Context, userID, customerID int, from, to *time.Time) ([]LedgerEntry, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.UserID != userID {
		return nil, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
	}

	var entries []LedgerEntry
	rows, err := s.pool.Query(ctx, `
		SELECT sale_date, sale_number, total_amount
		FROM sales
		WHERE customer_id = $1
		ORDER BY sale_date, id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer sales: %w", err)
	}
	for rows.Next() {
		var date time.Time
		var number string
		var total decimal.Decimal
		if err := rows.Scan(&date, &number, &total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale entry: %w", err)
		}
		entries = append(entries, LedgerEntry{
			Date:        date,
			Description: fmt.Sprintf("Sale: %s", number),
			Debit:       total,
			Reference:   number,
			Type:        EntrySale,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	incomeRows, err := s.pool.Query(ctx, `
		SELECT income_date, description, amount
		FROM incomes
		WHERE customer_id = $1
		ORDER BY income_date, id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer incomes: %w", err)
	}
	for incomeRows.Next() {
		var date time.Time
		var description string
		var amount decimal.Decimal
		if err := incomeRows.Scan(&date, &description, &amount); err != nil {
			incomeRows.Close()
			return nil, fmt.Errorf("failed to scan income entry: %w", err)
		}
		if description == "" {
			description = "Payment Received"
		}
		entries = append(entries, LedgerEntry{
			Date:        date,
			Description: description,
			Credit:      amount,
			Type:        EntryIncome,
		})
	}
	incomeRows.Close()
	if err := incomeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incomes: %w", err)
	}

	return buildLedger(customer.Opening(), customer.CreatedAt, entries, receivableSide, from, to), nil
}

func (s *ledgerService) SupplierLedger(ctx context.Context, userID, supplierID int, from, to *time.Time) ([]LedgerEntry, error) {
	supplier, err := s.suppliers.GetByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if supplier.UserID != userID {
		return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, supplierID)
	}

	var entries []LedgerEntry
	billRows, err := s.pool.Query(ctx, `
		SELECT bill_date, bill_number, total_amount
		FROM bills
		WHERE supplier_id = $1
		ORDER BY bill_date, id
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier bills: %w", err)
	}
	for billRows.Next() {
		var date time.Time
		var number string
		var total decimal.Decimal
		if err := billRows.Scan(&date, &number, &total); err != nil {
			billRows.Close()
			return nil, fmt.Errorf("failed to scan bill entry: %w", err)
		}
		entries = append(entries, LedgerEntry{
			Date:        date,
			Description: fmt.Sprintf("Bill: %s", number),
			Credit:      total,
			Reference:   number,
			Type:        EntryBill,
		})
	}
	billRows.Close()
	if err := billRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bills: %w", err)
	}

	purchaseRows, err := s.pool.Query(ctx, `
		SELECT purchase_date, payment_method, reference_no, total_amount
		FROM purchases
		WHERE supplier_id = $1
		ORDER BY purchase_date, id
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier purchases: %w", err)
	}
	for purchaseRows.Next() {
		var p Purchase
		if err := purchaseRows.Scan(&p.Date, &p.PaymentMethod, &p.ReferenceNo, &p.TotalAmount); err != nil {
			purchaseRows.Close()
			return nil, fmt.Errorf("failed to scan purchase entry: %w", err)
		}
		entries = append(entries, LedgerEntry{
			Date:        p.Date,
			Description: fmt.Sprintf("Purchase (%s)", p.PaymentMethod),
			Credit:      p.TotalAmount,
			Reference:   p.ReferenceNo,
			Type:        EntryPurchase,
		})
		// Cash and bank purchases are settled at purchase time; the
		// matching debit keeps the running balance honest.
		if p.SettledImmediately() {
			entries = append(entries, LedgerEntry{
				Date:        p.Date,
				Description: fmt.Sprintf("Paid on purchase (%s)", p.PaymentMethod),
				Debit:       p.TotalAmount,
				Reference:   p.ReferenceNo,
				Type:        EntryPayment,
			})
		}
	}
	purchaseRows.Close()
	if err := purchaseRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	paymentRows, err := s.pool.Query(ctx, `
		SELECT bp.payment_date, b.bill_number, bp.amount, bp.payment_method
		FROM bill_payments bp JOIN bills b ON b.id = bp.bill_id
		WHERE b.supplier_id = $1
		ORDER BY bp.payment_date, bp.id
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill payments: %w", err)
	}
	for paymentRows.Next() {
		var date time.Time
		var billNumber, method string
		var amount decimal.Decimal
		if err := paymentRows.Scan(&date, &billNumber, &amount, &method); err != nil {
			paymentRows.Close()
			return nil, fmt.Errorf("failed to scan bill payment entry: %w", err)
		}
		entries = append(entries, LedgerEntry{
			Date:        date,
			Description: fmt.Sprintf("Payment for %s (%s)", billNumber, method),
			Debit:       amount,
			Reference:   billNumber,
			Type:        EntryPayment,
		})
	}
	paymentRows.Close()
	if err := paymentRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bill payments: %w", err)
	}

	return buildLedger(supplier.OpeningBalance, supplier.CreatedAt, entries, payableSide, from, to), nil
}
