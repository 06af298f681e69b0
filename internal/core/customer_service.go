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

const customerColumns = `id, user_id, name, phone, email, address,
	opening_balance, credit_limit, created_at, updated_at`

// CustomerBalance pairs a customer with the outstanding amount owed to the
// business: opening balance plus unpaid sale remainders.
type CustomerBalance struct {
	Customer
	Outstanding  decimal.Decimal `json:"outstanding"`
	LastActivity *time.Time      `json:"last_activity,omitempty"`
}

type CustomerService interface {
	Create(ctx context.Context, customer Customer) (*Customer, error)
	Update(ctx context.Context, customer Customer) (*Customer, error)
	// Delete refuses when the customer has sales or incomes on record.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Customer, error)
	List(ctx context.Context, userID int) ([]Customer, error)
	FindByName(ctx context.Context, userID int, name string) (*Customer, error)

	// Balances returns every customer with their current outstanding amount.
	Balances(ctx context.Context, userID int) ([]CustomerBalance, error)
	// TotalOpeningBalance sums opening balances across the user's customers,
	// treating unset as zero.
	TotalOpeningBalance(ctx context.Context, userID int) (decimal.Decimal, error)
}

type customerService struct {
	pool *pgxpool.Pool
}

func NewCustomerService(pool *pgxpool.Pool) CustomerService {
	return &customerService{pool: pool}
}

func (s *customerService) Create(ctx context.Context, customer Customer) (*Customer, error) {
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO customers (user_id, name, phone, email, address, opening_balance, credit_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+customerColumns+`
	`, customer.UserID, customer.Name, customer.Phone, customer.Email, customer.Address,
		customer.OpeningBalance, customer.CreditLimit)
	created, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return created, nil
}

func (s *customerService) Update(ctx context.Context, customer Customer) (*Customer, error) {
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $1, phone = $2, email = $3, address = $4,
		    opening_balance = $5, credit_limit = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING `+customerColumns+`
	`, customer.Name, customer.Phone, customer.Email, customer.Address,
		customer.OpeningBalance, customer.CreditLimit, customer.ID, customer.UserID)
	updated, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d", ErrNotFound, customer.ID)
		}
		return nil, fmt.Errorf("failed to update customer %d: %w", customer.ID, err)
	}
	return updated, nil
}

func (s *customerService) Delete(ctx context.Context, userID, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var referenced bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sales WHERE customer_id = $1)
		    OR EXISTS (SELECT 1 FROM incomes WHERE customer_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to check customer references: %w", err)
	}
	if referenced {
		return fmt.Errorf("%w: customer %d has transactions on record", ErrInvariant, id)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM customers WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", ErrNotFound, id)
	}
	return tx.Commit(ctx)
}

func (s *customerService) GetByID(ctx context.Context, id int) (*Customer, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = $1", id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", id, err)
	}
	return customer, nil
}

func (s *customerService) List(ctx context.Context, userID int) ([]Customer, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = $1 ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *customerService) FindByName(ctx context.Context, userID int, name string) (*Customer, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE user_id = $1 AND LOWER(name) = LOWER($2)",
		userID, name)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to find customer %q: %w", name, err)
	}
	return customer, nil
}

func (s *customerService) Balances(ctx context.Context, userID int) ([]CustomerBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`,
		       COALESCE(opening_balance, 0) + COALESCE(
		           (SELECT SUM(remaining_amount) FROM sales
		            WHERE customer_id = customers.id AND NOT is_paid), 0),
		       GREATEST(
		           (SELECT MAX(sale_date) FROM sales WHERE customer_id = customers.id),
		           (SELECT MAX(income_date) FROM incomes WHERE customer_id = customers.id))
		FROM customers
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer balances: %w", err)
	}
	defer rows.Close()

	var balances []CustomerBalance
	for rows.Next() {
		var b CustomerBalance
		err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Phone, &b.Email, &b.Address,
			&b.OpeningBalance, &b.CreditLimit, &b.CreatedAt, &b.UpdatedAt,
			&b.Outstanding, &b.LastActivity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *customerService) TotalOpeningBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(COALESCE(opening_balance, 0)), 0) FROM customers WHERE user_id = $1",
		userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum opening balances: %w", err)
	}
	return total, nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.OpeningBalance, &c.CreditLimit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
