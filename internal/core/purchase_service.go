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

const purchaseColumns = `p.id, p.user_id, p.supplier_id, sp.name, p.purchase_date,
	p.payment_method, p.reference_no, p.notes, p.total_amount, p.created_at`

// PurchaseService records supplier purchases. Lines either raise stock or
// become expenses, by the same policy the bill engine uses.
type PurchaseService interface {
	Add(ctx context.Context, purchase Purchase, items []PurchaseItem) (*Purchase, error)
	// Delete reverses stock for the lines that moved it and removes the
	// purchase with its items and expenses.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Purchase, error)
	List(ctx context.Context, userID int) ([]Purchase, error)
	ListBySupplier(ctx context.Context, supplierID int) ([]Purchase, error)
}

type purchaseService struct {
	pool     *pgxpool.Pool
	products ProductService
	policy   StockPolicy
}

func NewPurchaseService(pool *pgxpool.Pool, products ProductService, policy StockPolicy) PurchaseService {
	if policy == "" {
		policy = StockPolicyByItemType
	}
	return &purchaseService{pool: pool, products: products, policy: policy}
}

func (s *purchaseService) Add(ctx context.Context, purchase Purchase, items []PurchaseItem) (*Purchase, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: purchase must have at least one item", ErrValidation)
	}
	if purchase.SupplierID == 0 {
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
	if purchase.Date.IsZero() {
		purchase.Date = time.Now()
	}
	if purchase.PaymentMethod == "" {
		purchase.PaymentMethod = "Cash"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var supplierOK bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND user_id = $2)",
		purchase.SupplierID, purchase.UserID,
	).Scan(&supplierOK)
	if err != nil {
		return nil, fmt.Errorf("failed to check supplier: %w", err)
	}
	if !supplierOK {
		return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, purchase.SupplierID)
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}

	var purchaseID int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchases (user_id, supplier_id, purchase_date, payment_method,
		                       reference_no, notes, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, purchase.UserID, purchase.SupplierID, purchase.Date, purchase.PaymentMethod,
		purchase.ReferenceNo, purchase.Notes, total).Scan(&purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert purchase: %w", err)
	}

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, quantity, rate, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, purchaseID, item.ProductID, item.Quantity, item.Rate, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to insert purchase item %d: %w", i+1, err)
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

		var productName string
		if err := tx.QueryRow(ctx, "SELECT name FROM products WHERE id = $1", item.ProductID).Scan(&productName); err != nil {
			return nil, fmt.Errorf("failed to fetch product %d: %w", item.ProductID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO expenses (user_id, expense_date, category, amount, description, purchase_id, product_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, purchase.UserID, purchase.Date, "Purchase Item", item.Amount,
			fmt.Sprintf("Purchase from supplier: %s", productName), purchaseID, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert purchase item expense: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return s.GetByID(ctx, purchaseID)
}

func (s *purchaseService) lineMovesStock(ctx context.Context, tx pgx.Tx, productID int) (bool, error) {
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

func (s *purchaseService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var purchaseID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM purchases WHERE id = $1 AND user_id = $2 FOR UPDATE", id, userID,
	).Scan(&purchaseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: purchase %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to fetch purchase %d: %w", id, err)
	}

	// Lines with an expense back-reference never moved stock.
	rows, err := tx.Query(ctx, `
		SELECT pi.product_id, pi.quantity
		FROM purchase_items pi
		WHERE pi.purchase_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM expenses e
			WHERE e.purchase_id = pi.purchase_id AND e.product_id = pi.product_id
		  )
	`, id)
	if err != nil {
		return fmt.Errorf("failed to fetch purchase items: %w", err)
	}
	type line struct{ productID, qty int }
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan purchase item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating purchase items: %w", err)
	}

	for _, l := range lines {
		if err := s.products.AdjustStockTx(ctx, tx, l.productID, -l.qty); err != nil {
			return err
		}
	}

	// Items and expenses cascade with the purchase row.
	if _, err = tx.Exec(ctx, "DELETE FROM purchases WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete purchase %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *purchaseService) GetByID(ctx context.Context, id int) (*Purchase, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases p JOIN suppliers sp ON sp.id = p.supplier_id
		WHERE p.id = $1
	`, id)
	purchase, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch purchase %d: %w", id, err)
	}

	itemRows, err := s.pool.Query(ctx, `
		SELECT pi.id, pi.purchase_id, pi.product_id, pr.name, pi.quantity, pi.rate, pi.amount
		FROM purchase_items pi JOIN products pr ON pr.id = pi.product_id
		WHERE pi.purchase_id = $1
		ORDER BY pi.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it PurchaseItem
		if err := itemRows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.Rate, &it.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan purchase item: %w", err)
		}
		purchase.Items = append(purchase.Items, it)
	}
	return purchase, itemRows.Err()
}

func (s *purchaseService) List(ctx context.Context, userID int) ([]Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases p JOIN suppliers sp ON sp.id = p.supplier_id
		WHERE p.user_id = $1
		ORDER BY p.purchase_date DESC, p.id DESC
	`, userID)
}

func (s *purchaseService) ListBySupplier(ctx context.Context, supplierID int) ([]Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases p JOIN suppliers sp ON sp.id = p.supplier_id
		WHERE p.supplier_id = $1
		ORDER BY p.purchase_date DESC, p.id DESC
	`, supplierID)
}

func (s *purchaseService) queryPurchases(ctx context.Context, sql string, args ...any) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.UserID, &p.SupplierID, &p.SupplierName, &p.Date,
		&p.PaymentMethod, &p.ReferenceNo, &p.Notes, &p.TotalAmount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
