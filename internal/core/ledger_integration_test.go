package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookkeeper/internal/core"

	"github.com/shopspring/decimal"
)

func TestLedgerService_CustomerLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	suppliers := core.NewSupplierService(pool)
	products := core.NewProductService(pool)
	sales := core.NewSaleService(pool, products)
	incomes := core.NewIncomeService(pool)
	ledgers := core.NewLedgerService(pool, customers, suppliers)

	// One credit sale and one standalone receipt against the customer.
	sale, err := sales.Create(ctx, core.Sale{
		UserID:     1,
		CustomerID: 1,
		SaleDate:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}, []core.SaleItem{{ProductID: 1, Quantity: 10, UnitPrice: d("120"), TotalPrice: d("1200")}}, nil)
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}

	customerID := 1
	_, err = incomes.Create(ctx, core.Income{
		UserID:     1,
		CustomerID: &customerID,
		Date:       time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		Amount:     d("700"),
	})
	if err != nil {
		t.Fatalf("Create income failed: %v", err)
	}

	entries, err := ledgers.CustomerLedger(ctx, 1, 1, nil, nil)
	if err != nil {
		t.Fatalf("CustomerLedger failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (opening, sale, receipt), got %d", len(entries))
	}

	if entries[0].Type != core.EntryOpening || !entries[0].Balance.Equal(d("500")) {
		t.Errorf("opening entry wrong: type=%s balance=%s", entries[0].Type, entries[0].Balance)
	}
	if entries[1].Type != core.EntrySale || !entries[1].Debit.Equal(d("1200")) {
		t.Errorf("sale entry wrong: type=%s debit=%s", entries[1].Type, entries[1].Debit)
	}
	if entries[1].Reference != sale.SaleNumber {
		t.Errorf("sale reference = %s, want %s", entries[1].Reference, sale.SaleNumber)
	}
	if entries[2].Type != core.EntryIncome || !entries[2].Credit.Equal(d("700")) {
		t.Errorf("receipt entry wrong: type=%s credit=%s", entries[2].Type, entries[2].Credit)
	}
	// 500 opening + 1200 sale - 700 received.
	if !entries[2].Balance.Equal(d("1000")) {
		t.Errorf("final balance = %s, want 1000", entries[2].Balance)
	}
}

func TestLedgerService_CustomerLedgerBroughtForward(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	suppliers := core.NewSupplierService(pool)
	products := core.NewProductService(pool)
	sales := core.NewSaleService(pool, products)
	ledgers := core.NewLedgerService(pool, customers, suppliers)

	_, err := sales.Create(ctx, core.Sale{
		UserID: 1, CustomerID: 1,
		SaleDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
	}, []core.SaleItem{{ProductID: 1, Quantity: 5, UnitPrice: d("120"), TotalPrice: d("600")}}, nil)
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}
	_, err = sales.Create(ctx, core.Sale{
		UserID: 1, CustomerID: 1,
		SaleDate: time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
	}, []core.SaleItem{{ProductID: 1, Quantity: 2, UnitPrice: d("120"), TotalPrice: d("240")}}, nil)
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}

	from := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	entries, err := ledgers.CustomerLedger(ctx, 1, 1, &from, nil)
	if err != nil {
		t.Fatalf("CustomerLedger failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected brought-forward + 1 sale, got %d entries", len(entries))
	}

	bf := entries[0]
	if bf.Type != core.EntryBroughtForward {
		t.Fatalf("first entry type = %s, want BroughtForward", bf.Type)
	}
	if bf.Description != "Opening Balance (Brought Forward)" {
		t.Errorf("brought-forward description = %q", bf.Description)
	}
	// Opening 500 plus the 600 sale before the cutoff, carried as a balance.
	if !bf.Balance.Equal(d("1100")) || !bf.Debit.IsZero() || !bf.Credit.IsZero() {
		t.Errorf("brought-forward balance/debit/credit = %s/%s/%s, want 1100/0/0", bf.Balance, bf.Debit, bf.Credit)
	}
	wantDate := from.AddDate(0, 0, -1)
	if !bf.Date.Equal(wantDate) {
		t.Errorf("brought-forward date = %s, want %s", bf.Date, wantDate)
	}
	if !entries[1].Balance.Equal(d("1340")) {
		t.Errorf("final balance = %s, want 1340", entries[1].Balance)
	}
}

func TestLedgerService_SupplierLedger(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	suppliers := core.NewSupplierService(pool)
	products := core.NewProductService(pool)
	bills := core.NewBillService(pool, products, core.StockPolicyByItemType)
	purchases := core.NewPurchaseService(pool, products, core.StockPolicyByItemType)
	ledgers := core.NewLedgerService(pool, customers, suppliers)

	bill, err := bills.Add(ctx, core.Bill{
		UserID: 1, SupplierID: 1,
		BillDate: time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
	}, []core.BillItem{{ProductID: 1, Quantity: 40, Rate: d("50"), Amount: d("2000")}})
	if err != nil {
		t.Fatalf("Add bill failed: %v", err)
	}
	if _, err := bills.Pay(ctx, 1, bill.ID, core.BillPayment{
		PaymentDate: time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC),
		Amount:      d("1500"),
		PaymentMethod: "Cash",
	}); err != nil {
		t.Fatalf("Pay failed: %v", err)
	}

	// A cash purchase is owed and paid the same day, so its ledger effect
	// nets to zero.
	_, err = purchases.Add(ctx, core.Purchase{
		UserID: 1, SupplierID: 1,
		Date:          time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		PaymentMethod: "Cash",
	}, []core.PurchaseItem{{ProductID: 1, Quantity: 10, Rate: d("50"), Amount: d("500")}})
	if err != nil {
		t.Fatalf("Add purchase failed: %v", err)
	}

	entries, err := ledgers.SupplierLedger(ctx, 1, 1, nil, nil)
	if err != nil {
		t.Fatalf("SupplierLedger failed: %v", err)
	}
	// Opening, bill, payment, purchase, synthesized purchase settlement.
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	if entries[0].Type != core.EntryOpening || !entries[0].Balance.Equal(d("1000")) {
		t.Errorf("opening entry wrong: type=%s balance=%s", entries[0].Type, entries[0].Balance)
	}

	final := entries[len(entries)-1]
	// 1000 opening + 2000 bill - 1500 paid + 500 purchase - 500 settled.
	if !final.Balance.Equal(d("1500")) {
		t.Errorf("final payable = %s, want 1500", final.Balance)
	}

	var sawPayment, sawSettlement bool
	for _, e := range entries {
		if e.Type == core.EntryPayment && e.Debit.Equal(d("1500")) {
			sawPayment = true
		}
		if e.Type == core.EntryPayment && e.Debit.Equal(d("500")) {
			sawSettlement = true
		}
	}
	if !sawPayment {
		t.Error("missing bill payment debit entry")
	}
	if !sawSettlement {
		t.Error("missing synthesized settlement entry for cash purchase")
	}
}

func TestLedgerService_OwnershipEnforced(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	suppliers := core.NewSupplierService(pool)
	ledgers := core.NewLedgerService(pool, customers, suppliers)

	if _, err := ledgers.CustomerLedger(ctx, 2, 1, nil, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign customer ledger must be ErrNotFound, got %v", err)
	}
	if _, err := ledgers.SupplierLedger(ctx, 2, 1, nil, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign supplier ledger must be ErrNotFound, got %v", err)
	}
}

func TestCustomerService_Balances(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	products := core.NewProductService(pool)
	sales := core.NewSaleService(pool, products)

	_, err := sales.Create(ctx, core.Sale{UserID: 1, CustomerID: 1},
		[]core.SaleItem{{ProductID: 1, Quantity: 10, UnitPrice: d("120"), TotalPrice: d("1200")}},
		[]core.SalePayment{{Amount: d("200")}})
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}

	balances, err := customers.Balances(ctx, 1)
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected 1 customer balance, got %d", len(balances))
	}
	// 500 opening + 1000 unpaid remainder.
	if !balances[0].Outstanding.Equal(d("1500")) {
		t.Errorf("outstanding = %s, want 1500", balances[0].Outstanding)
	}
}

func TestCustomerService_DeleteRefusedWhenReferenced(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	customers := core.NewCustomerService(pool)
	products := core.NewProductService(pool)
	sales := core.NewSaleService(pool, products)

	_, err := sales.Create(ctx, core.Sale{UserID: 1, CustomerID: 1},
		[]core.SaleItem{{ProductID: 1, Quantity: 1, UnitPrice: d("120"), TotalPrice: d("120")}}, nil)
	if err != nil {
		t.Fatalf("Create sale failed: %v", err)
	}

	if err := customers.Delete(ctx, 1, 1); !errors.Is(err, core.ErrInvariant) {
		t.Errorf("expected ErrInvariant deleting referenced customer, got %v", err)
	}

	created, err := customers.Create(ctx, core.Customer{UserID: 1, Name: "One-off Walk-in"})
	if err != nil {
		t.Fatalf("Create customer failed: %v", err)
	}
	if err := customers.Delete(ctx, 1, created.ID); err != nil {
		t.Errorf("deleting unreferenced customer failed: %v", err)
	}
}

func TestSupplierService_TotalOpeningBalance(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	suppliers := core.NewSupplierService(pool)

	total, err := suppliers.TotalOpeningBalance(ctx, 1)
	if err != nil {
		t.Fatalf("TotalOpeningBalance failed: %v", err)
	}
	if !total.Equal(d("1000")) {
		t.Errorf("total opening = %s, want 1000", total)
	}

	zero, err := suppliers.TotalOpeningBalance(ctx, 2)
	if err != nil {
		t.Fatalf("TotalOpeningBalance failed: %v", err)
	}
	if !zero.Equal(decimal.Zero) {
		t.Errorf("user with no suppliers should total zero, got %s", zero)
	}
}
