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

const expenseColumns = `id, user_id, expense_date, category, amount, description,
	bill_id, purchase_id, bill_payment_id, product_id, created_at`

// ExpenseService manages standalone expense records. Expenses generated by
// bills, purchases and bill payments carry back-references and can only be
// removed through their source transaction.
type ExpenseService interface {
	Create(ctx context.Context, expense Expense) (*Expense, error)
	// Delete removes a manual expense. Generated expenses are refused.
	Delete(ctx context.Context, userID, id int) error

	GetByID(ctx context.Context, id int) (*Expense, error)
	List(ctx context.Context, userID int) ([]Expense, error)
	ListRange(ctx context.Context, userID int, from, to time.Time) ([]Expense, error)
	// CategoryTotals sums expenses per category over the range.
	CategoryTotals(ctx context.Context, userID int, from, to time.Time) (map[string]decimal.Decimal, error)
}

type expenseService struct {
	pool *pgxpool.Pool
}

func NewExpenseService(pool *pgxpool.Pool) ExpenseService {
	return &expenseService{pool: pool}
}

func (s *expenseService) Create(ctx context.Context, expense Expense) (*Expense, error) {
	if !expense.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: expense amount must be positive", ErrValidation)
	}
	if expense.Category == "" {
		return nil, fmt.Errorf("%w: expense category is required", ErrValidation)
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, expense_date, category, amount, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns+`
	`, expense.UserID, expense.Date, expense.Category, expense.Amount, expense.Description)
	created, err := scanExpense(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	return created, nil
}

func (s *expenseService) Delete(ctx context.Context, userID, id int) error {
	var billID, purchaseID, paymentID *int
	err := s.pool.QueryRow(ctx,
		"SELECT bill_id, purchase_id, bill_payment_id FROM expenses WHERE id = $1 AND user_id = $2",
		id, userID,
	).Scan(&billID, &purchaseID, &paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: expense %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to fetch expense %d: %w", id, err)
	}
	if billID != nil || purchaseID != nil || paymentID != nil {
		return fmt.Errorf("%w: expense %d is generated, delete through its source transaction", ErrInvariant, id)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", id, err)
	}
	return nil
}

func (s *expenseService) GetByID(ctx context.Context, id int) (*Expense, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", id)
	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: expense %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch expense %d: %w", id, err)
	}
	return expense, nil
}

func (s *expenseService) List(ctx context.Context, userID int) ([]Expense, error) {
	return s.queryExpenses(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = $1
		ORDER BY expense_date DESC, id DESC
	`, userID)
}

func (s *expenseService) ListRange(ctx context.Context, userID int, from, to time.Time) ([]Expense, error) {
	return s.queryExpenses(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		ORDER BY expense_date, id
	`, userID, from, to)
}

func (s *expenseService) CategoryTotals(ctx context.Context, userID int, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, SUM(amount)
		FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		GROUP BY category
		ORDER BY category
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense categories: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category string
		var total decimal.Decimal
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals[category] = total
	}
	return totals, rows.Err()
}

func (s *expenseService) queryExpenses(ctx context.Context, sql string, args ...any) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		ex, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *ex)
	}
	return expenses, rows.Err()
}

func scanExpense(row pgx.Row) (*Expense, error) {
	var ex Expense
	err := row.Scan(&ex.ID, &ex.UserID, &ex.Date, &ex.Category, &ex.Amount, &ex.Description,
		&ex.BillID, &ex.PurchaseID, &ex.BillPaymentID, &ex.ProductID, &ex.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
