package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProfitLossReport sums a period's sales, incomes, purchase costs and
// expenses. All income and expense rows count, mirrored ones included.
type ProfitLossReport struct {
	From              time.Time                  `json:"from"`
	To                time.Time                  `json:"to"`
	Revenue           decimal.Decimal            `json:"revenue"`
	OtherIncome       decimal.Decimal            `json:"other_income"`
	CostOfGoodsSold   decimal.Decimal            `json:"cost_of_goods_sold"`
	GrossProfit       decimal.Decimal            `json:"gross_profit"`
	OperatingExpenses decimal.Decimal            `json:"operating_expenses"`
	ExpenseBreakdown  map[string]decimal.Decimal `json:"expense_breakdown"`
	NetProfit         decimal.Decimal            `json:"net_profit"`
}

// CashFlowReport tracks money that moved in the period. Operating expenses
// include the mirrored bill-payment rows, so bill payments show up both as
// supplier payments and inside expenses.
type CashFlowReport struct {
	From                  time.Time       `json:"from"`
	To                    time.Time       `json:"to"`
	CashFromCustomers     decimal.Decimal `json:"cash_from_customers"`
	OtherIncome           decimal.Decimal `json:"other_income"`
	CashFromOperations    decimal.Decimal `json:"cash_from_operations"`
	CashPaidToSuppliers   decimal.Decimal `json:"cash_paid_to_suppliers"`
	OperatingExpensesPaid decimal.Decimal `json:"operating_expenses_paid"`
	NetCashFlow           decimal.Decimal `json:"net_cash_flow"`
	OpeningCash           decimal.Decimal `json:"opening_cash"`
	ClosingCash           decimal.Decimal `json:"closing_cash"`
}

// BalanceSheetReport is a point-in-time statement. Retained earnings is the
// balancing figure: assets minus liabilities.
type BalanceSheetReport struct {
	AsOf             time.Time       `json:"as_of"`
	Cash             decimal.Decimal `json:"cash"`
	Receivables      decimal.Decimal `json:"receivables"`
	Inventory        decimal.Decimal `json:"inventory"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	Payables         decimal.Decimal `json:"payables"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	IsBalanced       bool            `json:"is_balanced"`
}

// balanceTolerance absorbs rounding drift when checking that assets equal
// liabilities plus retained earnings.
var balanceTolerance = decimal.NewFromFloat(0.01)

// ReportService derives financial statements from the transaction tables.
// Each report runs inside a single read-only transaction so all of its
// aggregates see one snapshot.
type ReportService interface {
	ProfitLoss(ctx context.Context, userID int, from, to time.Time) (*ProfitLossReport, error)
	CashFlow(ctx context.Context, userID int, from, to time.Time) (*CashFlowReport, error)
	BalanceSheet(ctx context.Context, userID int, asOf time.Time) (*BalanceSheetReport, error)

	// TotalReceivables is what customers owe right now: opening balances
	// plus unpaid sale remainders.
	TotalReceivables(ctx context.Context, userID int) (decimal.Decimal, error)
	// TotalPayables is what the business owes suppliers right now.
	TotalPayables(ctx context.Context, userID int) (decimal.Decimal, error)
	// NetBalance is receivables minus payables.
	NetBalance(ctx context.Context, userID int) (decimal.Decimal, error)
}

type reportService struct {
	pool *pgxpool.Pool
}

func NewReportService(pool *pgxpool.Pool) ReportService {
	return &reportService{pool: pool}
}

func (s *reportService) beginReadOnly(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	return tx, nil
}

func (s *reportService) ProfitLoss(ctx context.Context, userID int, from, to time.Time) (*ProfitLossReport, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: report range end before start", ErrValidation)
	}
	tx, err := s.beginReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	report := &ProfitLossReport{From: from, To: to, ExpenseBreakdown: make(map[string]decimal.Decimal)}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE user_id = $1 AND sale_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM incomes
		WHERE user_id = $1 AND income_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.OtherIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to sum other income: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(pi.amount), 0)
		FROM purchase_items pi JOIN purchases p ON p.id = pi.purchase_id
		WHERE p.user_id = $1 AND p.purchase_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.CostOfGoodsSold)
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost of goods sold: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT category, SUM(amount)
		FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
		GROUP BY category
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense breakdown: %w", err)
	}
	for rows.Next() {
		var category string
		var total decimal.Decimal
		if err := rows.Scan(&category, &total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense breakdown: %w", err)
		}
		report.ExpenseBreakdown[category] = total
		report.OperatingExpenses = report.OperatingExpenses.Add(total)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense breakdown: %w", err)
	}

	report.GrossProfit = report.Revenue.Add(report.OtherIncome).Sub(report.CostOfGoodsSold)
	report.NetProfit = report.GrossProfit.Sub(report.OperatingExpenses)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close report transaction: %w", err)
	}
	return report, nil
}

func (s *reportService) CashFlow(ctx context.Context, userID int, from, to time.Time) (*CashFlowReport, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: report range end before start", ErrValidation)
	}
	tx, err := s.beginReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	report := &CashFlowReport{From: from, To: to}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(paid_amount), 0)
		FROM sales
		WHERE user_id = $1 AND sale_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.CashFromCustomers)
	if err != nil {
		return nil, fmt.Errorf("failed to sum cash from customers: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM incomes
		WHERE user_id = $1 AND income_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.OtherIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to sum other income: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(bp.amount), 0)
		FROM bill_payments bp JOIN bills b ON b.id = bp.bill_id
		WHERE b.user_id = $1 AND bp.payment_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.CashPaidToSuppliers)
	if err != nil {
		return nil, fmt.Errorf("failed to sum bill payments: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE user_id = $1 AND expense_date BETWEEN $2 AND $3
	`, userID, from, to).Scan(&report.OperatingExpensesPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to sum operating expenses: %w", err)
	}

	report.CashFromOperations = report.CashFromCustomers.Add(report.OtherIncome)
	report.NetCashFlow = report.CashFromOperations.
		Sub(report.CashPaidToSuppliers).
		Sub(report.OperatingExpensesPaid)

	report.OpeningCash, err = cashPosition(ctx, tx, userID, from.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	report.ClosingCash = report.OpeningCash.Add(report.NetCashFlow)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close report transaction: %w", err)
	}
	return report, nil
}

// cashPosition is cumulative cash up to and including asOf: everything
// received (sale payments and income rows) minus everything paid out
// (expense rows and bill payments). Mirrored rows count too.
func cashPosition(ctx context.Context, tx pgx.Tx, userID int, asOf time.Time) (decimal.Decimal, error) {
	var position decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT SUM(amount) FROM incomes
		                 WHERE user_id = $1 AND income_date <= $2), 0)
		     + COALESCE((SELECT SUM(paid_amount) FROM sales
		                 WHERE user_id = $1 AND sale_date <= $2), 0)
		     - COALESCE((SELECT SUM(amount) FROM expenses
		                 WHERE user_id = $1 AND expense_date <= $2), 0)
		     - COALESCE((SELECT SUM(bp.amount) FROM bill_payments bp
		                 JOIN bills b ON b.id = bp.bill_id
		                 WHERE b.user_id = $1 AND bp.payment_date <= $2), 0)
	`, userID, asOf).Scan(&position)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute cash position: %w", err)
	}
	return position, nil
}

func (s *reportService) BalanceSheet(ctx context.Context, userID int, asOf time.Time) (*BalanceSheetReport, error) {
	tx, err := s.beginReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	report := &BalanceSheetReport{AsOf: asOf}

	report.Cash, err = cashPosition(ctx, tx, userID, asOf)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(remaining_amount), 0)
		FROM sales
		WHERE user_id = $1 AND NOT is_paid AND sale_date <= $2
	`, userID, asOf).Scan(&report.Receivables)
	if err != nil {
		return nil, fmt.Errorf("failed to sum receivables: %w", err)
	}

	// Negative stock drags the valuation down rather than being clamped.
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(stock_quantity * purchase_price), 0)
		FROM products
		WHERE user_id = $1
	`, userID).Scan(&report.Inventory)
	if err != nil {
		return nil, fmt.Errorf("failed to value inventory: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount - paid_amount), 0)
		FROM bills
		WHERE user_id = $1 AND status <> 'Paid' AND bill_date <= $2
	`, userID, asOf).Scan(&report.Payables)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payables: %w", err)
	}

	report.TotalAssets = report.Cash.Add(report.Receivables).Add(report.Inventory)
	report.TotalLiabilities = report.Payables
	report.RetainedEarnings = report.TotalAssets.Sub(report.TotalLiabilities)
	report.IsBalanced = report.TotalAssets.
		Sub(report.TotalLiabilities.Add(report.RetainedEarnings)).
		Abs().LessThanOrEqual(balanceTolerance)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close report transaction: %w", err)
	}
	return report, nil
}

func (s *reportService) TotalReceivables(ctx context.Context, userID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT SUM(COALESCE(opening_balance, 0)) FROM customers WHERE user_id = $1), 0)
		     + COALESCE((SELECT SUM(remaining_amount) FROM sales WHERE user_id = $1 AND NOT is_paid), 0)
	`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum receivables: %w", err)
	}
	return total, nil
}

func (s *reportService) TotalPayables(ctx context.Context, userID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT SUM(opening_balance) FROM suppliers WHERE user_id = $1), 0)
		     + COALESCE((SELECT SUM(total_amount - paid_amount) FROM bills
		                 WHERE user_id = $1 AND status <> 'Paid'), 0)
	`, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payables: %w", err)
	}
	return total, nil
}

func (s *reportService) NetBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	receivables, err := s.TotalReceivables(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	payables, err := s.TotalPayables(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return receivables.Sub(payables), nil
}
