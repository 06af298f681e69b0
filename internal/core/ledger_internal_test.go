package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(dayOfMonth int) time.Time {
	return time.Date(2026, 3, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func TestBuildLedger_RunningBalance(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(5), Description: "Sale: SALE-1", Debit: d("1200"), Type: EntrySale},
		{Date: day(10), Description: "Payment Received", Credit: d("700"), Type: EntryIncome},
	}

	got := buildLedger(d("500"), day(1), entries, receivableSide, nil, nil)
	if len(got) != 3 {
		t.Fatalf("expected opening + 2 entries, got %d", len(got))
	}

	opening := got[0]
	if opening.Type != EntryOpening || opening.Description != "Opening Balance" {
		t.Fatalf("expected opening entry first, got %s %q", opening.Type, opening.Description)
	}
	if !opening.Debit.IsZero() || !opening.Credit.IsZero() {
		t.Errorf("opening entry carries only a balance, got debit %s credit %s", opening.Debit, opening.Credit)
	}
	if !opening.Date.Equal(day(1)) {
		t.Errorf("opening entry should be dated when the party was created, got %s", opening.Date)
	}

	want := []string{"500", "1700", "1000"}
	for i, w := range want {
		if !got[i].Balance.Equal(d(w)) {
			t.Errorf("entry %d: expected balance %s, got %s", i, w, got[i].Balance)
		}
	}
}

func TestBuildLedger_ZeroOpeningStillEmitted(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(5), Debit: d("1800"), Type: EntrySale},
	}

	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected opening + 1 entry, got %d", len(got))
	}
	if got[0].Type != EntryOpening || !got[0].Balance.IsZero() {
		t.Errorf("expected zero opening entry, got %s balance %s", got[0].Type, got[0].Balance)
	}
	if !got[1].Balance.Equal(d("1800")) {
		t.Errorf("expected final balance 1800, got %s", got[1].Balance)
	}
}

func TestBuildLedger_SortsByDate(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(10), Description: "later", Debit: d("100")},
		{Date: day(2), Description: "earlier", Debit: d("50")},
	}

	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, nil, nil)
	if got[1].Description != "earlier" || got[2].Description != "later" {
		t.Errorf("entries not sorted by date: %q then %q", got[1].Description, got[2].Description)
	}
	if !got[2].Balance.Equal(d("150")) {
		t.Errorf("expected final balance 150, got %s", got[2].Balance)
	}
}

func TestBuildLedger_StableOnEqualDates(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(5), Description: "first", Debit: d("10")},
		{Date: day(5), Description: "second", Credit: d("4")},
	}

	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, nil, nil)
	if got[1].Description != "first" || got[2].Description != "second" {
		t.Errorf("equal-date entries reordered: %q then %q", got[1].Description, got[2].Description)
	}
}

func TestBuildLedger_BroughtForward(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(3), Debit: d("1000"), Type: EntrySale},
		{Date: day(4), Credit: d("200"), Type: EntryIncome},
		{Date: day(10), Debit: d("300"), Type: EntrySale},
	}

	from := day(8)
	got := buildLedger(d("500"), day(1), entries, receivableSide, &from, nil)
	if len(got) != 2 {
		t.Fatalf("expected brought-forward + 1 entry, got %d", len(got))
	}

	bf := got[0]
	if bf.Type != EntryBroughtForward {
		t.Fatalf("expected brought-forward first, got %s", bf.Type)
	}
	if bf.Description != "Opening Balance (Brought Forward)" {
		t.Errorf("unexpected brought-forward description %q", bf.Description)
	}
	if !bf.Date.Equal(day(7)) {
		t.Errorf("brought-forward should be dated the day before from, got %s", bf.Date)
	}
	// 500 opening + 1000 - 200 before the window
	if !bf.Balance.Equal(d("1300")) {
		t.Errorf("expected carried balance 1300, got %s", bf.Balance)
	}
	if !bf.Debit.IsZero() || !bf.Credit.IsZero() {
		t.Errorf("brought-forward carries only a balance, got debit %s credit %s", bf.Debit, bf.Credit)
	}
	if !got[1].Balance.Equal(d("1600")) {
		t.Errorf("expected final balance 1600, got %s", got[1].Balance)
	}
}

func TestBuildLedger_BroughtForwardNegative(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(2), Credit: d("900"), Type: EntryIncome},
		{Date: day(9), Debit: d("100"), Type: EntrySale},
	}

	from := day(5)
	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, &from, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].Balance.Equal(d("-900")) {
		t.Errorf("expected carried balance -900, got %s", got[0].Balance)
	}
	if !got[1].Balance.Equal(d("-800")) {
		t.Errorf("expected final balance -800, got %s", got[1].Balance)
	}
}

func TestBuildLedger_BroughtForwardWithoutPriorActivity(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(8), Debit: d("100"), Type: EntrySale},
	}

	from := day(5)
	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, &from, nil)
	if len(got) != 2 {
		t.Fatalf("expected brought-forward + 1 entry, got %d", len(got))
	}
	if got[0].Type != EntryBroughtForward {
		t.Fatalf("brought-forward row must open every windowed ledger, got %s", got[0].Type)
	}
	if !got[0].Balance.IsZero() {
		t.Errorf("nothing carried in, expected balance 0, got %s", got[0].Balance)
	}
	if !got[1].Balance.Equal(d("100")) {
		t.Errorf("expected final balance 100, got %s", got[1].Balance)
	}
}

func TestBuildLedger_PayableOrientation(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(1), Credit: d("2000"), Type: EntryBill},
		{Date: day(5), Debit: d("1500"), Type: EntryPayment},
	}

	got := buildLedger(decimal.Zero, day(1), entries, payableSide, nil, nil)
	if !got[1].Balance.Equal(d("2000")) {
		t.Errorf("expected balance 2000 after bill, got %s", got[1].Balance)
	}
	if !got[2].Balance.Equal(d("500")) {
		t.Errorf("expected balance 500 after payment, got %s", got[2].Balance)
	}
}

func TestBuildLedger_ToFilter(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(1), Debit: d("100")},
		{Date: day(20), Debit: d("400")},
	}

	to := day(10)
	got := buildLedger(decimal.Zero, day(1), entries, receivableSide, nil, &to)
	if len(got) != 2 {
		t.Fatalf("expected opening + 1 entry within range, got %d", len(got))
	}
	if !got[1].Balance.Equal(d("100")) {
		t.Errorf("expected balance 100, got %s", got[1].Balance)
	}
}

func TestBuildLedger_RangeMatchesUnfiltered(t *testing.T) {
	entries := []LedgerEntry{
		{Date: day(4), Debit: d("1000"), Type: EntrySale},
		{Date: day(6), Credit: d("300"), Type: EntryIncome},
		{Date: day(12), Debit: d("250"), Type: EntrySale},
	}

	full := buildLedger(d("500"), day(1), entries, receivableSide, nil, nil)
	from := day(10)
	windowed := buildLedger(d("500"), day(1), entries, receivableSide, &from, nil)

	fullFinal := full[len(full)-1].Balance
	windowFinal := windowed[len(windowed)-1].Balance
	if !fullFinal.Equal(windowFinal) {
		t.Errorf("windowed ledger diverged: full %s, windowed %s", fullFinal, windowFinal)
	}
}

func TestBillStatusFor(t *testing.T) {
	cases := []struct {
		total, paid string
		want        BillStatus
	}{
		{"7500", "0", BillStatusUnpaid},
		{"7500", "3000", BillStatusPartial},
		{"7500", "7500", BillStatusPaid},
		{"7500", "8000", BillStatusPaid},
	}
	for _, c := range cases {
		if got := billStatusFor(d(c.total), d(c.paid)); got != c.want {
			t.Errorf("billStatusFor(%s, %s) = %s, want %s", c.total, c.paid, got, c.want)
		}
	}
}

func TestSaleTotals(t *testing.T) {
	items := []SaleItem{
		{TotalPrice: d("1200")},
		{TotalPrice: d("800")},
	}
	payments := []SalePayment{
		{Amount: d("1500")},
	}

	total, paid, remaining, isPaid := saleTotals(items, payments)
	if !total.Equal(d("2000")) {
		t.Errorf("expected total 2000, got %s", total)
	}
	if !paid.Equal(d("1500")) {
		t.Errorf("expected paid 1500, got %s", paid)
	}
	if !remaining.Equal(d("500")) {
		t.Errorf("expected remaining 500, got %s", remaining)
	}
	if isPaid {
		t.Error("sale with remaining 500 must not be paid")
	}

	_, _, remaining, isPaid = saleTotals(items, []SalePayment{{Amount: d("2000")}})
	if !remaining.IsZero() || !isPaid {
		t.Errorf("fully paid sale: remaining %s, isPaid %v", remaining, isPaid)
	}
}

func TestPurchaseSettledImmediately(t *testing.T) {
	cases := []struct {
		method string
		want   bool
	}{
		{"Cash", true},
		{"Bank", true},
		{"Credit", false},
		{"Udhar", false},
	}
	for _, c := range cases {
		p := Purchase{PaymentMethod: c.method}
		if got := p.SettledImmediately(); got != c.want {
			t.Errorf("SettledImmediately(%s) = %v, want %v", c.method, got, c.want)
		}
	}
}

func TestCustomerOpeningDefaultsToZero(t *testing.T) {
	var c Customer
	if !c.Opening().IsZero() {
		t.Errorf("nil opening balance should read as zero, got %s", c.Opening())
	}
	ob := d("250")
	c.OpeningBalance = &ob
	if !c.Opening().Equal(d("250")) {
		t.Errorf("expected opening 250, got %s", c.Opening())
	}
}
