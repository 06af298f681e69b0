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

const supplierColumns = `id, user_id, name, contact, email, address,
	opening_balance, created_at, updated_at`

// SupplierBalance pairs a supplier with the amount the business still owes:
// opening balance plus unpaid bill remainders.
type SupplierBalance struct {
	Supplier
	Payable      decimal.Decimal `json:"payable"`
	LastActivity *time.Time      `json:"last_activity,omitempty"`
}

type SupplierService interface {
	Create(ctx context.Context, supplier Supplier) (*Supplier, error)
	Update(ctx context.Context, supplier Supplier) (*Supplier, error)
	// Delete refuses when the supplier has bills or purchases on record.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Supplier, error)
	List(ctx context.Context, userID int) ([]Supplier, error)

	Balances(ctx context.Context, userID int) ([]SupplierBalance, error)
	TotalOpeningBalance(ctx context.Context, userID int) (decimal.Decimal, error)
}

type supplierService struct {
	pool *pgxpool.Pool
}

func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

func (s *supplierService) Create(ctx context.Context, supplier Supplier) (*Supplier, error) {
	if supplier.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (user_id, name, contact, email, address, opening_balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+supplierColumns+`
	`, supplier.UserID, supplier.Name, supplier.Contact, supplier.Email, supplier.Address,
		supplier.OpeningBalance)
	created, err := scanSupplier(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return created, nil
}

func (s *supplierService) Update(ctx context.Context, supplier Supplier) (*Supplier, error) {
	if supplier.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE suppliers
		SET name = $1, contact = $2, email = $3, address = $4,
		    opening_balance = $5, updated_at = NOW()
		WHERE id = $6 AND user_id = $7
		RETURNING `+supplierColumns+`
	`, supplier.Name, supplier.Contact, supplier.Email, supplier.Address,
		supplier.OpeningBalance, supplier.ID, supplier.UserID)
	updated, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, supplier.ID)
		}
		return nil, fmt.Errorf("failed to update supplier %d: %w", supplier.ID, err)
	}
	return updated, nil
}

func (s *supplierService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var referenced bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bills WHERE supplier_id = $1)
		    OR EXISTS (SELECT 1 FROM purchases WHERE supplier_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to check supplier references: %w", err)
	}
	if referenced {
		return fmt.Errorf("%w: supplier %d has transactions on record", ErrInvariant, id)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM suppliers WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete supplier %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: supplier %d", ErrNotFound, id)
	}
	return tx.Commit(ctx)
}

func (s *supplierService) GetByID(ctx context.Context, id int) (*Supplier, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+supplierColumns+" FROM suppliers WHERE id = $1", id)
	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: supplier %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch supplier %d: %w", id, err)
	}
	return supplier, nil
}

func (s *supplierService) List(ctx context.Context, userID int) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE user_id = $1 ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		sp, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, *sp)
	}
	return suppliers, rows.Err()
}

func (s *supplierService) Balances(ctx context.Context, userID int) ([]SupplierBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+supplierColumns+`,
		       opening_balance + COALESCE(
		           (SELECT SUM(total_amount - paid_amount) FROM bills
		            WHERE supplier_id = suppliers.id AND status <> 'Paid'), 0),
		       GREATEST(
		           (SELECT MAX(bill_date) FROM bills WHERE supplier_id = suppliers.id),
		           (SELECT MAX(purchase_date) FROM purchases WHERE supplier_id = suppliers.id))
		FROM suppliers
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier balances: %w", err)
	}
	defer rows.Close()

	var balances []SupplierBalance
	for rows.Next() {
		var b SupplierBalance
		err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Contact, &b.Email, &b.Address,
			&b.OpeningBalance, &b.CreatedAt, &b.UpdatedAt, &b.Payable, &b.LastActivity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *supplierService) TotalOpeningBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(opening_balance), 0) FROM suppliers WHERE user_id = $1",
		userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum opening balances: %w", err)
	}
	return total, nil
}

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var sp Supplier
	err := row.Scan(&sp.ID, &sp.UserID, &sp.Name, &sp.Contact, &sp.Email, &sp.Address,
		&sp.OpeningBalance, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}
