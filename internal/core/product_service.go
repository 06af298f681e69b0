package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `id, user_id, name, item_type, sku, description,
	purchase_price, sale_price, stock_quantity, reorder_level, created_at, updated_at`

// ProductService manages the product catalogue and is the single owner of
// stock-quantity mutation. Sale, purchase and bill services apply their stock
// side effects through AdjustStockTx so the adjustment joins their transaction.
type ProductService interface {
	Create(ctx context.Context, p Product) (*Product, error)
	Update(ctx context.Context, p Product) (*Product, error)
	// Delete rejects with ErrInvariant when the product is still referenced
	// by any purchase or bill line.
	Delete(ctx context.Context, userID, id int) error
	GetByID(ctx context.Context, id int) (*Product, error)
	List(ctx context.Context, userID int) ([]Product, error)
	// ListLowStock returns products at or below their reorder level.
	ListLowStock(ctx context.Context, userID int) ([]Product, error)
	FindOrCreateByName(ctx context.Context, userID int, name string, rate decimal.Decimal) (*Product, error)

	// AdjustStock applies a signed delta in its own transaction.
	AdjustStock(ctx context.Context, productID, delta int) error
	// AdjustStockTx applies a signed delta within the caller's transaction.
	// A missing product is an ErrNotFound, never a silent skip.
	AdjustStockTx(ctx context.Context, tx pgx.Tx, productID, delta int) error
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func (s *productService) Create(ctx context.Context, p Product) (*Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.ItemType == "" {
		p.ItemType = ItemTypeInventory
	}
	switch p.ItemType {
	case ItemTypeInventory, ItemTypeService, ItemTypeNonInventory:
	default:
		return nil, fmt.Errorf("%w: unknown item type %q", ErrValidation, p.ItemType)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (user_id, name, item_type, sku, description, purchase_price, sale_price, stock_quantity, reorder_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.UserID, p.Name, p.ItemType, p.SKU, p.Description,
		p.PurchasePrice, p.SalePrice, p.StockQuantity, p.ReorderLevel)
	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

func (s *productService) Update(ctx context.Context, p Product) (*Product, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $1, item_type = $2, sku = $3, description = $4,
		    purchase_price = $5, sale_price = $6, stock_quantity = $7,
		    reorder_level = $8, updated_at = NOW()
		WHERE id = $9 AND user_id = $10
		RETURNING `+productColumns,
		p.Name, p.ItemType, p.SKU, p.Description,
		p.PurchasePrice, p.SalePrice, p.StockQuantity, p.ReorderLevel,
		p.ID, p.UserID)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, p.ID)
		}
		return nil, fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var referenced bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM purchase_items WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM bill_items WHERE product_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to check product references: %w", err)
	}
	if referenced {
		return fmt.Errorf("%w: product %d is used in purchases or bills and cannot be deleted", ErrInvariant, id)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM products WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return tx.Commit(ctx)
}

func (s *productService) GetByID(ctx context.Context, id int) (*Product, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, nil
}

func (s *productService) List(ctx context.Context, userID int) ([]Product, error) {
	return s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE user_id = $1 ORDER BY name", userID)
}

func (s *productService) ListLowStock(ctx context.Context, userID int) ([]Product, error) {
	return s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE user_id = $1 AND item_type = 'Inventory' AND stock_quantity <= reorder_level ORDER BY stock_quantity",
		userID)
}

func (s *productService) FindOrCreateByName(ctx context.Context, userID int, name string, rate decimal.Decimal) (*Product, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}

	row := s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE user_id = $1 AND LOWER(name) = LOWER($2)",
		userID, trimmed)
	existing, err := scanProduct(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up product by name: %w", err)
	}

	return s.Create(ctx, Product{
		UserID:        userID,
		Name:          trimmed,
		ItemType:      ItemTypeInventory,
		PurchasePrice: rate,
		SalePrice:     rate,
	})
}

func (s *productService) AdjustStock(ctx context.Context, productID, delta int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.AdjustStockTx(ctx, tx, productID, delta); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AdjustStockTx adds delta to the product's stock, negative results included.
func (s *productService) AdjustStockTx(ctx context.Context, tx pgx.Tx, productID, delta int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust stock for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	return nil
}

func (s *productService) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.ItemType, &p.SKU, &p.Description,
		&p.PurchasePrice, &p.SalePrice, &p.StockQuantity, &p.ReorderLevel,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
