package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookkeeper/internal/core"
)

func TestPurchaseService_AddAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	purchases := core.NewPurchaseService(pool, products, core.StockPolicyByItemType)

	purchase, err := purchases.Add(ctx, core.Purchase{
		UserID:        1,
		SupplierID:    1,
		Date:          time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "Cash",
	}, []core.PurchaseItem{
		{ProductID: 1, Quantity: 20, Rate: d("50"), Amount: d("1000")},
		{ProductID: 2, Quantity: 2, Rate: d("150"), Amount: d("300")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if !purchase.TotalAmount.Equal(d("1300")) {
		t.Errorf("expected total 1300, got %s", purchase.TotalAmount)
	}
	if got := stockOf(t, pool, 1); got != 120 {
		t.Errorf("expected product 1 stock 120, got %d", got)
	}
	// Service line stays out of stock and lands as a purchase expense.
	if got := stockOf(t, pool, 2); got != 0 {
		t.Errorf("expected product 2 stock untouched, got %d", got)
	}
	var expenseCount int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE purchase_id = $1", purchase.ID,
	).Scan(&expenseCount)
	if err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 1 {
		t.Errorf("expected 1 service-line expense, got %d", expenseCount)
	}

	if err := purchases.Delete(ctx, 1, purchase.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := stockOf(t, pool, 1); got != 100 {
		t.Errorf("expected stock restored to 100, got %d", got)
	}
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE purchase_id = $1", purchase.ID,
	).Scan(&expenseCount); err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 0 {
		t.Errorf("expected purchase expenses removed, %d left", expenseCount)
	}
	if _, err := purchases.GetByID(ctx, purchase.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPurchaseService_RejectsUnknownSupplier(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	products := core.NewProductService(pool)
	purchases := core.NewPurchaseService(pool, products, core.StockPolicyByItemType)

	_, err := purchases.Add(context.Background(), core.Purchase{UserID: 1, SupplierID: 77},
		[]core.PurchaseItem{{ProductID: 1, Quantity: 1, Rate: d("50"), Amount: d("50")}})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown supplier, got %v", err)
	}
}

func TestPurchaseService_ListBySupplier(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	purchases := core.NewPurchaseService(pool, products, core.StockPolicyByItemType)

	for i := 0; i < 3; i++ {
		_, err := purchases.Add(ctx, core.Purchase{UserID: 1, SupplierID: 1, PaymentMethod: "Credit"},
			[]core.PurchaseItem{{ProductID: 1, Quantity: 5, Rate: d("50"), Amount: d("250")}})
		if err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}

	list, err := purchases.ListBySupplier(ctx, 1)
	if err != nil {
		t.Fatalf("ListBySupplier failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 purchases, got %d", len(list))
	}
	for _, p := range list {
		if p.SettledImmediately() {
			t.Errorf("credit purchase %d must stay open", p.ID)
		}
	}
}
