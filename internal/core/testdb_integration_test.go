package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// setupTestDB connects to the dedicated test database, truncates every table
// and seeds a user with one customer, one supplier and three products:
//
//	product 1: Inventory, stock 100, purchase price 50
//	product 2: Service, no stock
//	product 3: Inventory, stock 20, purchase price 200
//
// Set TEST_DATABASE_URL (schema from migrations/ already applied) to run
// integration tests.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE invoices, incomes, expenses, bill_payments, bill_items, bills,
			purchase_items, purchases, sale_payments, sale_items, sales,
			products, suppliers, customers, sequences, users
			RESTART IDENTITY CASCADE;

		INSERT INTO users (username) VALUES ('shopkeeper');

		INSERT INTO customers (user_id, name, phone, opening_balance, created_at) VALUES
		(1, 'Ravi Traders', '+91-9800000001', 500.00, '2026-01-01');

		INSERT INTO suppliers (user_id, name, contact, opening_balance, created_at) VALUES
		(1, 'Mehta Wholesale', '+91-9800000002', 1000.00, '2026-01-01');

		INSERT INTO products (user_id, name, item_type, purchase_price, sale_price, stock_quantity, reorder_level) VALUES
		(1, 'Rice Bag 25kg', 'Inventory',  50.00, 120.00, 100, 10),
		(1, 'Delivery Service', 'Service',  0.00, 500.00,   0,  0),
		(1, 'Cooking Oil 5L', 'Inventory', 200.00, 260.00,  20,  5);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// stockOf reads the current stock quantity for a product.
func stockOf(t *testing.T, pool *pgxpool.Pool, productID int) int {
	t.Helper()
	var qty int
	err := pool.QueryRow(context.Background(),
		"SELECT stock_quantity FROM products WHERE id = $1", productID).Scan(&qty)
	if err != nil {
		t.Fatalf("Failed to read stock for product %d: %v", productID, err)
	}
	return qty
}
