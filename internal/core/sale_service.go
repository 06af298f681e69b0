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

const saleColumns = `s.id, s.user_id, s.sale_number, s.customer_id, c.name,
	s.sale_date, s.payment_type, s.total_amount, s.paid_amount, s.remaining_amount,
	s.payment_due_date, s.is_paid, s.notes, s.created_at`

// SaleService coordinates the whole customer-side transaction: the sale row,
// its line items and payments, the stock decrement per line, and the income
// record mirrored for every payment. Each mutation is one transaction; a
// failure anywhere leaves no partial writes.
type SaleService interface {
	// Create persists the sale with server-computed totals. A blank
	// SaleNumber is assigned from the per-user sequence.
	Create(ctx context.Context, sale Sale, items []SaleItem, payments []SalePayment) (*Sale, error)
	// Update recomputes paid/remaining/is-paid from the supplied payment
	// list and replaces all prior payments and mirrored incomes with a
	// fresh set. Line items are not editable after creation.
	Update(ctx context.Context, sale Sale, payments []SalePayment) (*Sale, error)
	// Delete restores stock for every line, removes payments and mirrored
	// incomes, then removes the sale.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Sale, error)
	GetBySaleNumber(ctx context.Context, userID int, saleNumber string) (*Sale, error)
	List(ctx context.Context, userID int) ([]Sale, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Sale, error)

	// GenerateSaleNumber returns the next unique sale number for the user.
	// Safe under concurrent callers.
	GenerateSaleNumber(ctx context.Context, userID int) (string, error)
}

type saleService struct {
	pool     *pgxpool.Pool
	products ProductService
}

func NewSaleService(pool *pgxpool.Pool, products ProductService) SaleService {
	return &saleService{pool: pool, products: products}
}

func (s *saleService) Create(ctx context.Context, sale Sale, items []SaleItem, payments []SalePayment) (*Sale, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: sale must have at least one item", ErrValidation)
	}
	if sale.CustomerID == 0 {
		return nil, fmt.Errorf("%w: customer is required", ErrValidation)
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if it.TotalPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d total must not be negative", ErrValidation, i+1)
		}
	}
	for i, p := range payments {
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: payment %d amount must not be negative", ErrValidation, i+1)
		}
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Verify the customer belongs to this user.
	var customerOK bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND user_id = $2)",
		sale.CustomerID, sale.UserID,
	).Scan(&customerOK)
	if err != nil {
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if !customerOK {
		return nil, fmt.Errorf("%w: customer %d", ErrNotFound, sale.CustomerID)
	}

	if sale.SaleNumber == "" {
		sale.SaleNumber, err = s.generateSaleNumberTx(ctx, tx, sale.UserID)
		if err != nil {
			return nil, err
		}
	}

	total, paid, remaining, isPaid := saleTotals(items, payments)

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (user_id, sale_number, customer_id, sale_date, payment_type,
		                   total_amount, paid_amount, remaining_amount, payment_due_date, is_paid, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, sale.UserID, sale.SaleNumber, sale.CustomerID, sale.SaleDate, sale.PaymentType,
		total, paid, remaining, sale.PaymentDueDate, isPaid, sale.Notes).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5)
		`, saleID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale item %d: %w", i+1, err)
		}
		if err := s.products.AdjustStockTx(ctx, tx, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := s.insertPaymentsTx(ctx, tx, saleID, sale, payments); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}
	return s.GetByID(ctx, saleID)
}

// insertPaymentsTx writes the payment rows and, for every payment with a
// positive amount, the mirrored income record tagged with the sale id.
func (s *saleService) insertPaymentsTx(ctx context.Context, tx pgx.Tx, saleID int, sale Sale, payments []SalePayment) error {
	for i, p := range payments {
		if p.PaymentDate.IsZero() {
			p.PaymentDate = sale.SaleDate
		}
		if p.PaymentMethod == "" {
			p.PaymentMethod = "Cash"
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO sale_payments (sale_id, payment_date, amount, payment_method, reference_no, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, saleID, p.PaymentDate, p.Amount, p.PaymentMethod, p.ReferenceNo, p.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert sale payment %d: %w", i+1, err)
		}

		if p.Amount.IsPositive() {
			_, err = tx.Exec(ctx, `
				INSERT INTO incomes (user_id, income_date, customer_id, sale_id, amount, payment_type, description)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, sale.UserID, p.PaymentDate, sale.CustomerID, saleID, p.Amount, p.PaymentMethod,
				fmt.Sprintf("Sale Income: %s", sale.SaleNumber))
			if err != nil {
				return fmt.Errorf("failed to mirror income for payment %d: %w", i+1, err)
			}
		}
	}
	return nil
}

func (s *saleService) Update(ctx context.Context, sale Sale, payments []SalePayment) (*Sale, error) {
	for i, p := range payments {
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: payment %d amount must not be negative", ErrValidation, i+1)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing Sale
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, sale_number, customer_id, total_amount
		FROM sales WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, sale.ID, sale.UserID).Scan(&existing.ID, &existing.UserID, &existing.SaleNumber,
		&existing.CustomerID, &existing.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", ErrNotFound, sale.ID)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", sale.ID, err)
	}

	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now()
	}

	_, paid, _, _ := saleTotals(nil, payments)
	remaining := existing.TotalAmount.Sub(paid)
	isPaid := remaining.LessThanOrEqual(decimal.Zero)

	_, err = tx.Exec(ctx, `
		UPDATE sales
		SET sale_date = $1, payment_type = $2, paid_amount = $3, remaining_amount = $4,
		    is_paid = $5, payment_due_date = $6, notes = $7
		WHERE id = $8
	`, sale.SaleDate, sale.PaymentType, paid, remaining, isPaid, sale.PaymentDueDate, sale.Notes, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update sale %d: %w", sale.ID, err)
	}

	// Full replace of payments and mirrored incomes, never a diff.
	if _, err = tx.Exec(ctx, "DELETE FROM sale_payments WHERE sale_id = $1", sale.ID); err != nil {
		return nil, fmt.Errorf("failed to clear sale payments: %w", err)
	}
	if _, err = tx.Exec(ctx, "DELETE FROM incomes WHERE sale_id = $1", sale.ID); err != nil {
		return nil, fmt.Errorf("failed to clear mirrored incomes: %w", err)
	}

	replacement := existing
	replacement.SaleDate = sale.SaleDate
	replacement.PaymentType = sale.PaymentType
	if err := s.insertPaymentsTx(ctx, tx, sale.ID, replacement, payments); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale update: %w", err)
	}
	return s.GetByID(ctx, sale.ID)
}

func (s *saleService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var saleID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM sales WHERE id = $1 AND user_id = $2 FOR UPDATE", id, userID,
	).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: sale %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to fetch sale %d: %w", id, err)
	}

	// Restore stock for each line before the rows cascade away.
	rows, err := tx.Query(ctx, "SELECT product_id, quantity FROM sale_items WHERE sale_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to fetch sale items: %w", err)
	}
	type line struct{ productID, qty int }
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan sale item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating sale items: %w", err)
	}

	for _, l := range lines {
		if err := s.products.AdjustStockTx(ctx, tx, l.productID, l.qty); err != nil {
			return err
		}
	}

	if _, err = tx.Exec(ctx, "DELETE FROM incomes WHERE sale_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete mirrored incomes: %w", err)
	}
	// sale_items and sale_payments cascade with the sale row.
	if _, err = tx.Exec(ctx, "DELETE FROM sales WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete sale %d: %w", id, err)
	}

	return tx.Commit(ctx)
}

func (s *saleService) GenerateSaleNumber(ctx context.Context, userID int) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := s.generateSaleNumberTx(ctx, tx, userID)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit sale number: %w", err)
	}
	return number, nil
}

// generateSaleNumberTx builds SALE-YYYYMMDD-NNNN. The date prefix is
// presentation only; NNNN comes from the per-user sequence, so numbers stay
// unique across day boundaries and concurrent callers.
func (s *saleService) generateSaleNumberTx(ctx context.Context, tx pgx.Tx, userID int) (string, error) {
	n, err := nextSequence(ctx, tx, userID, "sale")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SALE-%s-%04d", time.Now().Format("20060102"), n), nil
}

func (s *saleService) GetByID(ctx context.Context, id int) (*Sale, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+saleColumns+`
		FROM sales s JOIN customers c ON c.id = s.customer_id
		WHERE s.id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", id, err)
	}
	if err := s.attachChildren(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *saleService) GetBySaleNumber(ctx context.Context, userID int, saleNumber string) (*Sale, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM sales WHERE user_id = $1 AND sale_number = $2", userID, saleNumber,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", ErrNotFound, saleNumber)
		}
		return nil, fmt.Errorf("failed to look up sale %s: %w", saleNumber, err)
	}
	return s.GetByID(ctx, id)
}

func (s *saleService) List(ctx context.Context, userID int) ([]Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales s JOIN customers c ON c.id = s.customer_id
		WHERE s.user_id = $1
		ORDER BY s.sale_date DESC, s.id DESC
	`, userID)
}

func (s *saleService) ListByCustomer(ctx context.Context, customerID int) ([]Sale, error) {
	return s.querySales(ctx, `
		SELECT `+saleColumns+`
		FROM sales s JOIN customers c ON c.id = s.customer_id
		WHERE s.customer_id = $1
		ORDER BY s.sale_date DESC, s.id DESC
	`, customerID)
}

func (s *saleService) querySales(ctx context.Context, sql string, args ...any) ([]Sale, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *saleService) attachChildren(ctx context.Context, sale *Sale) error {
	rows, err := s.pool.Query(ctx, `
		SELECT si.id, si.sale_id, si.product_id, p.name, si.quantity, si.unit_price, si.total_price
		FROM sale_items si JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id
	`, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return fmt.Errorf("failed to scan sale item: %w", err)
		}
		sale.Items = append(sale.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := s.pool.Query(ctx, `
		SELECT id, sale_id, payment_date, amount, payment_method, reference_no, notes, created_at
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY payment_date, id
	`, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to query sale payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var p SalePayment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.PaymentDate, &p.Amount,
			&p.PaymentMethod, &p.ReferenceNo, &p.Notes, &p.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan sale payment: %w", err)
		}
		sale.Payments = append(sale.Payments, p)
	}
	return payRows.Err()
}

func scanSale(row pgx.Row) (*Sale, error) {
	var sale Sale
	err := row.Scan(&sale.ID, &sale.UserID, &sale.SaleNumber, &sale.CustomerID, &sale.CustomerName,
		&sale.SaleDate, &sale.PaymentType, &sale.TotalAmount, &sale.PaidAmount, &sale.RemainingAmount,
		&sale.PaymentDueDate, &sale.IsPaid, &sale.Notes, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
