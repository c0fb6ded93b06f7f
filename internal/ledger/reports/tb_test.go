package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	tbFrom = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	tbTo   = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
)

func TestBuildTrialBalanceSingleSale(t *testing.T) {
	activity := []AccountActivity{
		{AccountID: 1, Code: "1000", Name: "Cash in Hand", Type: accounts.TypeAsset, Opening: d("0"), Debit: d("1050.00"), Credit: d("0")},
		{AccountID: 2, Code: "4000", Name: "Sales Revenue", Type: accounts.TypeRevenue, Opening: d("0"), Debit: d("0"), Credit: d("1000.00")},
		{AccountID: 3, Code: "2100", Name: "Tax Payable", Type: accounts.TypeLiability, Opening: d("0"), Debit: d("0"), Credit: d("50.00")},
		{AccountID: 4, Code: "1200", Name: "Inventory", Type: accounts.TypeAsset, Opening: d("0"), Debit: d("0"), Credit: d("0")},
	}
	tb := BuildTrialBalance(7, tbFrom, tbTo, activity)

	if len(tb.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d (silent accounts must be suppressed)", len(tb.Rows))
	}
	if !tb.TotalDebit.Equal(d("1050.00")) {
		t.Fatalf("total debit %s", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(d("1050.00")) {
		t.Fatalf("total credit %s", tb.TotalCredit)
	}
	if !tb.IsBalanced {
		t.Fatal("expected a balanced trial balance")
	}
}

func TestBuildTrialBalanceOrdering(t *testing.T) {
	activity := []AccountActivity{
		{AccountID: 1, Code: "5000", Name: "Rent", Type: accounts.TypeExpense, Debit: d("10.00")},
		{AccountID: 2, Code: "4000", Name: "Sales Revenue", Type: accounts.TypeRevenue, Credit: d("10.00")},
		{AccountID: 3, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Opening: d("5.00")},
		{AccountID: 4, Code: "1010", Name: "Bank", Type: accounts.TypeAsset, Opening: d("1.00")},
		{AccountID: 5, Code: "2000", Name: "Accounts Payable", Type: accounts.TypeLiability, Credit: d("5.00"), Debit: d("5.00")},
	}
	tb := BuildTrialBalance(7, tbFrom, tbTo, activity)

	want := []string{"Bank", "Cash", "Accounts Payable", "Sales Revenue", "Rent"}
	if len(tb.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(tb.Rows))
	}
	for i, name := range want {
		if tb.Rows[i].Name != name {
			t.Fatalf("row %d = %s, want %s", i, tb.Rows[i].Name, name)
		}
	}
}

func TestBuildTrialBalanceDetectsImbalance(t *testing.T) {
	activity := []AccountActivity{
		{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Debit: d("100.00")},
		{AccountID: 2, Code: "4000", Name: "Sales", Type: accounts.TypeRevenue, Credit: d("99.98")},
	}
	tb := BuildTrialBalance(7, tbFrom, tbTo, activity)
	if tb.IsBalanced {
		t.Fatal("a 0.02 gap must be reported as imbalance")
	}
}

func TestBuildTrialBalanceOpeningRollsIntoClosing(t *testing.T) {
	activity := []AccountActivity{
		{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Opening: d("500.00"), Debit: d("100.00"), Credit: d("30.00")},
	}
	tb := BuildTrialBalance(7, tbFrom, tbTo, activity)
	if !tb.Rows[0].Closing.Equal(d("570.00")) {
		t.Fatalf("closing = %s", tb.Rows[0].Closing)
	}
}

func TestRunBalances(t *testing.T) {
	entries := []LedgerEntry{
		{Number: "SAL-202609-0001", Debit: d("1050.00")},
		{Number: "REV-202609-0001", Credit: d("1050.00")},
		{Number: "SAL-202609-0002", Debit: d("200.00")},
	}
	walked, closing := runBalances(d("100.00"), entries)
	if !walked[0].Balance.Equal(d("1150.00")) {
		t.Fatalf("first balance %s", walked[0].Balance)
	}
	if !walked[1].Balance.Equal(d("100.00")) {
		t.Fatalf("reversal must return the running balance, got %s", walked[1].Balance)
	}
	if !closing.Equal(d("300.00")) {
		t.Fatalf("closing %s", closing)
	}
}
