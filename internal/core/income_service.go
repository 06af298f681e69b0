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

const incomeColumns = `id, user_id, income_date, customer_id, sale_id, amount,
	payment_type, description, created_at`

// IncomeService manages standalone income records. Incomes mirrored from sale
// payments carry a sale reference and can only be removed through the sale.
type IncomeService interface {
	Create(ctx context.Context, income Income) (*Income, error)
	// Delete removes a manual income. Mirrored incomes are refused.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Income, error)
	List(ctx context.Context, userID int) ([]Income, error)
	ListRange(ctx context.Context, userID int, from, to time.Time) ([]Income, error)
	// DailyTotals sums income per day over the range, gap days omitted.
	DailyTotals(ctx context.Context, userID int, from, to time.Time) (map[string]decimal.Decimal, error)
}

type incomeService struct {
	pool *pgxpool.Pool
}

func NewIncomeService(pool *pgxpool.Pool) IncomeService {
	return &incomeService{pool: pool}
}

func (s *incomeService) Create(ctx context.Context, income Income) (*Income, error) {
	if !income.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: income amount must be positive", ErrValidation)
	}
	if income.Date.IsZero() {
		income.Date = time.Now()
	}
	if income.PaymentType == "" {
		income.PaymentType = "Cash"
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO incomes (user_id, income_date, customer_id, amount, payment_type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+incomeColumns+`
	`, income.UserID, income.Date, income.CustomerID, income.Amount, income.PaymentType, income.Description)
	created, err := scanIncome(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert income: %w", err)
	}
	return created, nil
}

func (s *incomeService) Delete(ctx context.Context, userID, id int) error {
	var saleID *int
	err := s.pool.QueryRow(ctx,
		"SELECT sale_id FROM incomes WHERE id = $1 AND user_id = $2", id, userID,
	).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: income %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to fetch income %d: %w", id, err)
	}
	if saleID != nil {
		return fmt.Errorf("%w: income %d is mirrored from sale %d, delete through the sale", ErrInvariant, id, *saleID)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM incomes WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete income %d: %w", id, err)
	}
	return nil
}

func (s *incomeService) GetByID(ctx context.Context, id int) (*Income, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+incomeColumns+" FROM incomes WHERE id = $1", id)
	income, err := scanIncome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: income %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch income %d: %w", id, err)
	}
	return income, nil
}

func (s *incomeService) List(ctx context.Context, userID int) ([]Income, error) {
	return s.queryIncomes(ctx, `
		SELECT `+incomeColumns+` FROM incomes
		WHERE user_id = $1
		ORDER BY income_date DESC, id DESC
	`, userID)
}

func (s *incomeService) ListRange(ctx context.Context, userID int, from, to time.Time) ([]Income, error) {
	return s.queryIncomes(ctx, `
		SELECT `+incomeColumns+` FROM incomes
		WHERE user_id = $1 AND income_date BETWEEN $2 AND $3
		ORDER BY income_date, id
	`, userID, from, to)
}

func (s *incomeService) DailyTotals(ctx context.Context, userID int, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT income_date, SUM(amount)
		FROM incomes
		WHERE user_id = $1 AND income_date BETWEEN $2 AND $3
		GROUP BY income_date
		ORDER BY income_date
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily incomes: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day time.Time
		var total decimal.Decimal
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		totals[day.Format("2006-01-02")] = total
	}
	return totals, rows.Err()
}

func (s *incomeService) queryIncomes(ctx context.Context, sql string, args ...any) ([]Income, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes: %w", err)
	}
	defer rows.Close()

	var incomes []Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		incomes = append(incomes, *in)
	}
	return incomes, rows.Err()
}

func scanIncome(row pgx.Row) (*Income, error) {
	var in Income
	err := row.Scan(&in.ID, &in.UserID, &in.Date, &in.CustomerID, &in.SaleID,
		&in.Amount, &in.PaymentType, &in.Description, &in.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &in, nil
}
