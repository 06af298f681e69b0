package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookkeeper/internal/core"
)

func TestBillService_AddMovesStockByItemType(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)

	bill, err := bills.Add(ctx, core.Bill{
		UserID:     1,
		SupplierID: 1,
		BillDate:   time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
	}, []core.BillItem{
		{ProductID: 1, Quantity: 40, Rate: d("50"), Amount: d("2000")},
		{ProductID: 2, Quantity: 1, Rate: d("5500"), Amount: d("5500")},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if !bill.TotalAmount.Equal(d("7500")) {
		t.Errorf("expected total 7500, got %s", bill.TotalAmount)
	}
	if bill.Status != core.BillStatusUnpaid {
		t.Errorf("expected status Unpaid, got %s", bill.Status)
	}
	if bill.BillNumber == "" {
		t.Error("bill number must be assigned")
	}

	// Inventory line raises stock; the service line does not.
	if got := stockOf(t, pool, 1); got != 140 {
		t.Errorf("expected product 1 stock 140, got %d", got)
	}

	// The service line becomes an expense tagged back to the bill.
	var expenseCount int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE bill_id = $1 AND product_id = 2", bill.ID,
	).Scan(&expenseCount)
	if err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 1 {
		t.Errorf("expected 1 service-line expense, got %d", expenseCount)
	}
}

func TestBillService_PayLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)

	bill, err := bills.Add(ctx, core.Bill{UserID: 1, SupplierID: 1},
		[]core.BillItem{{ProductID: 1, Quantity: 40, Rate: d("50"), Amount: d("2000")},
			{ProductID: 3, Quantity: 27, Rate: d("200"), Amount: d("5500")}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	bill, err = bills.Pay(ctx, 1, bill.ID, core.BillPayment{Amount: d("3000"), PaymentMethod: "Cash"})
	if err != nil {
		t.Fatalf("first Pay failed: %v", err)
	}
	if bill.Status != core.BillStatusPartial || !bill.PaidAmount.Equal(d("3000")) {
		t.Errorf("expected Partial/3000, got %s/%s", bill.Status, bill.PaidAmount)
	}

	bill, err = bills.Pay(ctx, 1, bill.ID, core.BillPayment{Amount: d("4500"), PaymentMethod: "Bank"})
	if err != nil {
		t.Fatalf("second Pay failed: %v", err)
	}
	if bill.Status != core.BillStatusPaid || !bill.PaidAmount.Equal(d("7500")) {
		t.Errorf("expected Paid/7500, got %s/%s", bill.Status, bill.PaidAmount)
	}

	// Paying a settled bill is refused.
	if _, err := bills.Pay(ctx, 1, bill.ID, core.BillPayment{Amount: d("10")}); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected ErrInvariant on paying a paid bill, got %v", err)
	}

	// Each payment leaves an expense row carrying the payment id.
	var expenseCount int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE bill_id = $1 AND bill_payment_id IS NOT NULL", bill.ID,
	).Scan(&expenseCount)
	if err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 2 {
		t.Errorf("expected 2 payment expenses, got %d", expenseCount)
	}

	payments, err := bills.GetPayments(ctx, bill.ID)
	if err != nil {
		t.Fatalf("GetPayments failed: %v", err)
	}
	if len(payments) != 2 {
		t.Errorf("expected 2 payments, got %d", len(payments))
	}
}

func TestBillService_PayCapsOverpayment(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)

	bill, err := bills.Add(ctx, core.Bill{UserID: 1, SupplierID: 1},
		[]core.BillItem{{ProductID: 1, Quantity: 10, Rate: d("50"), Amount: d("500")}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	bill, err = bills.Pay(ctx, 1, bill.ID, core.BillPayment{Amount: d("800")})
	if err != nil {
		t.Fatalf("Pay failed: %v", err)
	}
	if !bill.PaidAmount.Equal(d("500")) {
		t.Errorf("overpayment must be capped at outstanding, got paid %s", bill.PaidAmount)
	}
	if bill.Status != core.BillStatusPaid {
		t.Errorf("expected Paid, got %s", bill.Status)
	}

	// The recorded payment and expense carry the capped amount.
	payments, err := bills.GetPayments(ctx, bill.ID)
	if err != nil {
		t.Fatalf("GetPayments failed: %v", err)
	}
	if len(payments) != 1 || !payments[0].Amount.Equal(d("500")) {
		t.Errorf("expected one capped payment of 500, got %+v", payments)
	}
}

func TestBillService_DeleteReversesStockOnly(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)

	bill, err := bills.Add(ctx, core.Bill{UserID: 1, SupplierID: 1},
		[]core.BillItem{
			{ProductID: 1, Quantity: 30, Rate: d("50"), Amount: d("1500")},
			{ProductID: 2, Quantity: 1, Rate: d("400"), Amount: d("400")},
		})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := stockOf(t, pool, 1); got != 130 {
		t.Fatalf("expected stock 130 after bill, got %d", got)
	}

	if err := bills.Delete(ctx, 1, bill.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got := stockOf(t, pool, 1); got != 100 {
		t.Errorf("expected stock restored to 100, got %d", got)
	}

	var expenseCount int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE bill_id = $1", bill.ID).Scan(&expenseCount); err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 0 {
		t.Errorf("expected bill expenses removed, %d left", expenseCount)
	}

	if _, err := bills.GetByID(ctx, bill.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBillService_AlwaysStockPolicy(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyAlwaysStock)

	// Under always-stock even a service item moves stock and no expense
	// is generated from the line.
	bill, err := bills.Add(ctx, core.Bill{UserID: 1, SupplierID: 1},
		[]core.BillItem{{ProductID: 2, Quantity: 3, Rate: d("100"), Amount: d("300")}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if got := stockOf(t, pool, 2); got != 3 {
		t.Errorf("expected product 2 stock 3, got %d", got)
	}

	var expenseCount int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expenses WHERE bill_id = $1", bill.ID).Scan(&expenseCount); err != nil {
		t.Fatalf("expense query failed: %v", err)
	}
	if expenseCount != 0 {
		t.Errorf("expected no line expenses under always-stock, got %d", expenseCount)
	}
}

func TestBillService_PayUnknownBill(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)

	_, err := bills.Pay(context.Background(), 1, 9999, core.BillPayment{Amount: d("100")})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
