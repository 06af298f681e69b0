package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const billColumns = `b.id, b.user_id, b.bill_number, b.supplier_id, sp.name,
	b.bill_date, b.due_date, b.status, b.total_amount, b.paid_amount, b.notes, b.created_at`

// BillService manages supplier bills: creation with per-line stock or expense
// side effects, payments with derived status, and full reversal on delete.
type BillService interface {
	// Add persists the bill with a server-computed total. A blank BillNumber
	// is assigned from the per-user sequence. Line side effects follow the
	// configured stock policy.
	Add(ctx context.Context, bill Bill, items []BillItem) (*Bill, error)
	// Pay records a payment against the bill. The applied amount is capped
	// at the outstanding balance; status is rederived from paid vs total.
	Pay(ctx context.Context, userID, billID int, payment BillPayment) (*Bill, error)
	// Delete reverses every line side effect and payment expense, then
	// removes the bill.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Bill, error)
	List(ctx context.Context, userID int) ([]Bill, error)
	ListUnpaid(ctx context.Context, userID int) ([]Bill, error)
	ListBySupplier(ctx context.Context, supplierID int) ([]Bill, error)
	GetPayments(ctx context.Context, billID int) ([]BillPayment, error)
}

type billService struct {
	pool     *pgxpool.Pool
	products ProductService
	policy   StockPolicy
}

func NewBillService(pool *pgxpool.Pool, products ProductService, policy StockPolicy) BillService {
	if policy == "" {
		policy = StockPolicyByItemType
	}
	return &billService{pool: pool, products: products, policy: policy}
}

func (s *billService) Add(ctx context.Context, bill Bill, items []BillItem) (*Bill, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: bill must have at least one item", ErrValidation)
	}
	if bill.SupplierID == 0 {
		return nil, fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if it.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: item %d amount must not be negative", ErrValidation, i+1)
		}
	}
	if bill.BillDate.IsZero() {
		bill.BillDate = time.Now()
	}
	if bill.DueDate.IsZero() {
		bill.DueDate = bill.BillDate
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierOK bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND user_id = $2)",
		bill.SupplierID, bill.UserID,
	).Scan(&supplierOK)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier: %w", err)
	}
	if !supplierOK {
		return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, bill.SupplierID)
	}

	if bill.BillNumber == "" {
		n, err := nextSequence(ctx, tx, bill.UserID, "bill")
		if err != nil {
			return nil, err
		}
		bill.BillNumber = fmt.Sprintf("BILL-%04d", n)
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}

	var billID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bills (user_id, bill_number, supplier_id, bill_date, due_date, status,
		                   total_amount, paid_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		RETURNING id
	`, bill.UserID, bill.BillNumber, bill.SupplierID, bill.BillDate, bill.DueDate,
		BillStatusUnpaid, total, bill.Notes).Scan(&billID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bill: %w", err)
	}

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO bill_items (bill_id, product_id, quantity, rate, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, billID, item.ProductID, item.Quantity, item.Rate, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bill item %d: %w", i+1, err)
		}

		moveStock, err := s.lineMovesStock(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if moveStock {
			if err := s.products.AdjustStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
			continue
		}

		// Non-stock lines become expenses tied back to the bill so a later
		// delete removes exactly these rows.
		var productName string
		if err := tx.QueryRow(ctx, "SELECT name FROM products WHERE id = $1", item.ProductID).Scan(&productName); err != nil {
			return nil, fmt.Errorf("failed to fetch product %d: %w", item.ProductID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO expenses (user_id, expense_date, category, amount, description, bill_id, product_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, bill.UserID, bill.BillDate, "Bill Item", item.Amount,
			fmt.Sprintf("Bill %s: %s", bill.BillNumber, productName), billID, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bill item expense: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bill: %w", err)
	}
	return s.GetByID(ctx, billID)
}

// lineMovesStock decides the side effect for one bill or purchase line under
// the configured stock policy.
func (s *billService) lineMovesStock(ctx context.Context, tx pgx.Tx, productID int) (bool, error) {
	if s.policy == StockPolicyAlwaysStock {
		return true, nil
	}
	var itemType ItemType
	err := tx.QueryRow(ctx, "SELECT item_type FROM products WHERE id = $1", productID).Scan(&itemType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%w: product %d", ErrNotFound, productID)
		}
		return false, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return itemType == ItemTypeInventory, nil
}

func (s *billService) Pay(ctx context.Context, userID, billID int, payment BillPayment) (*Bill, error) {
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now()
	}
	if payment.PaymentMethod == "" {
		payment.PaymentMethod = "Cash"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var billNumber string
	var total, paid decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT bill_number, total_amount, paid_amount
		FROM bills WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, billID, userID).Scan(&billNumber, &total, &paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bill %d", ErrNotFound, billID)
		}
		return nil, fmt.Errorf("failed to fetch bill %d: %w", billID, err)
	}

	outstanding := total.Sub(paid)
	if !outstanding.IsPositive() {
		return nil, fmt.Errorf("%w: bill %s is already paid in full", ErrInvariant, billNumber)
	}

	// Overpayment is capped, never carried as supplier credit.
	applied := payment.Amount
	if applied.GreaterThan(outstanding) {
		applied = outstanding
	}

	var paymentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO bill_payments (bill_id, payment_date, amount, payment_method, reference_no, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, billID, payment.PaymentDate, applied, payment.PaymentMethod,
		payment.ReferenceNo, payment.Notes).Scan(&paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bill payment: %w", err)
	}

	newPaid := paid.Add(applied)
	_, err = tx.Exec(ctx,
		"UPDATE bills SET paid_amount = $1, status = $2 WHERE id = $3",
		newPaid, billStatusFor(total, newPaid), billID)
	if err != nil {
		return nil, fmt.Errorf("failed to update bill %d: %w", billID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO expenses (user_id, expense_date, category, amount, description, bill_id, bill_payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, payment.PaymentDate, "Bill Payment", applied,
		fmt.Sprintf("Bill Payment: %s", billNumber), billID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment expense: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bill payment: %w", err)
	}
	return s.GetByID(ctx, billID)
}

func (s *billService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var billID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM bills WHERE id = $1 AND user_id = $2 FOR UPDATE", id, userID,
	).Scan(&billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: bill %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to fetch bill %d: %w", id, err)
	}

	// Reverse stock only for the lines that moved it on creation: those are
	// exactly the lines without an expense back-reference.
	rows, err := tx.Query(ctx, `
		SELECT bi.product_id, bi.quantity
		FROM bill_items bi
		WHERE bi.bill_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM expenses e
			WHERE e.bill_id = bi.bill_id AND e.product_id = bi.product_id
			  AND e.bill_payment_id IS NULL
		  )
	`, id)
	if err != nil {
		return fmt.Errorf("failed to fetch bill items: %w", err)
	}
	type line struct{ productID, qty int }
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan bill item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating bill items: %w", err)
	}

	for _, l := range lines {
		if err := s.products.AdjustStockTx(ctx, tx, l.productID, -l.qty); err != nil {
			return err
		}
	}

	// Expenses, items and payments cascade with the bill row.
	if _, err = tx.Exec(ctx, "DELETE FROM bills WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete bill %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *billService) GetByID(ctx context.Context, id int) (*Bill, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+billColumns+`
		FROM bills b JOIN suppliers sp ON sp.id = b.supplier_id
		WHERE b.id = $1
	`, id)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bill %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch bill %d: %w", id, err)
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT bi.id, bi.bill_id, bi.product_id, p.name, bi.quantity, bi.rate, bi.amount
		FROM bill_items bi JOIN products p ON p.id = bi.product_id
		WHERE bi.bill_id = $1
		ORDER BY bi.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it BillItem
		if err := itemRows.Scan(&it.ID, &it.BillID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.Rate, &it.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		bill.Items = append(bill.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	bill.Payments, err = s.GetPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *billService) List(ctx context.Context, userID int) ([]Bill, error) {
	return s.queryBills(ctx, `
		SELECT `+billColumns+`
		FROM bills b JOIN suppliers sp ON sp.id = b.supplier_id
		WHERE b.user_id = $1
		ORDER BY b.bill_date DESC, b.id DESC
	`, userID)
}

func (s *billService) ListUnpaid(ctx context.Context, userID int) ([]Bill, error) {
	return s.queryBills(ctx, `
		SELECT `+billColumns+`
		FROM bills b JOIN suppliers sp ON sp.id = b.supplier_id
		WHERE b.user_id = $1 AND b.status <> $2
		ORDER BY b.due_date, b.id
	`, userID, BillStatusPaid)
}

func (s *billService) ListBySupplier(ctx context.Context, supplierID int) ([]Bill, error) {
	return s.queryBills(ctx, `
		SELECT `+billColumns+`
		FROM bills b JOIN suppliers sp ON sp.id = b.supplier_id
		WHERE b.supplier_id = $1
		ORDER BY b.bill_date DESC, b.id DESC
	`, supplierID)
}

func (s *billService) GetPayments(ctx context.Context, billID int) ([]BillPayment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, bill_id, payment_date, amount, payment_method, reference_no, notes, created_at
		FROM bill_payments
		WHERE bill_id = $1
		ORDER BY payment_date, id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill payments: %w", err)
	}
	defer rows.Close()

	var payments []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := rows.Scan(&p.ID, &p.BillID, &p.PaymentDate, &p.Amount,
			&p.PaymentMethod, &p.ReferenceNo, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *billService) queryBills(ctx context.Context, sql string, args ...any) ([]Bill, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *bill)
	}
	return bills, rows.Err()
}

func scanBill(row pgx.Row) (*Bill, error) {
	var bill Bill
	err := row.Scan(&bill.ID, &bill.UserID, &bill.BillNumber, &bill.SupplierID, &bill.SupplierName,
		&bill.BillDate, &bill.DueDate, &bill.Status, &bill.TotalAmount, &bill.PaidAmount,
		&bill.Notes, &bill.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bill, nil
}
