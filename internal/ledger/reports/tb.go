// Package reports builds read-side ledger views: the trial balance and the
// per-account ledger. Builders are pure; data access and caching live in
// their own files.
package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// AccountActivity is one account's aggregated movement over a period, with
// the opening balance already rolled up to the period start.
type AccountActivity struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Opening   decimal.Decimal
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Closing computes the closing balance in debit-positive terms.
func (a AccountActivity) Closing() decimal.Decimal {
	return a.Opening.Add(a.Debit).Sub(a.Credit)
}

// silent reports whether the account carries nothing worth a row.
func (a AccountActivity) silent() bool {
	return money.IsZero(a.Opening) && money.IsZero(a.Debit) && money.IsZero(a.Credit)
}

// TrialBalanceRow is one rendered account row.
type TrialBalanceRow struct {
	AccountID int64           `json:"accountId"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Opening   decimal.Decimal `json:"opening"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Closing   decimal.Decimal `json:"closing"`
}

// TrialBalance is the rendered report.
type TrialBalance struct {
	OutletID     int64             `json:"outletId"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Rows         []TrialBalanceRow `json:"rows"`
	TotalOpening decimal.Decimal   `json:"totalOpening"`
	TotalDebit   decimal.Decimal   `json:"totalDebit"`
	TotalCredit  decimal.Decimal   `json:"totalCredit"`
	TotalClosing decimal.Decimal   `json:"totalClosing"`
	IsBalanced   bool              `json:"isBalanced"`
}

// BuildTrialBalance renders account activity into the trial balance.
// Accounts with zero opening and zero movement are suppressed. Rows are
// ordered by account type (assets first, expenses last) then name.
func BuildTrialBalance(outletID int64, from, to time.Time, activity []AccountActivity) TrialBalance {
	tb := TrialBalance{
		OutletID:     outletID,
		From:         from,
		To:           to,
		TotalOpening: decimal.Zero,
		TotalDebit:   decimal.Zero,
		TotalCredit:  decimal.Zero,
		TotalClosing: decimal.Zero,
	}
	rows := make([]TrialBalanceRow, 0, len(activity))
	for _, a := range activity {
		if a.silent() {
			continue
		}
		closing := a.Closing()
		rows = append(rows, TrialBalanceRow{
			AccountID: a.AccountID,
			Code:      a.Code,
			Name:      a.Name,
			Type:      string(a.Type),
			Opening:   a.Opening,
			Debit:     a.Debit,
			Credit:    a.Credit,
			Closing:   closing,
		})
		tb.TotalOpening = tb.TotalOpening.Add(a.Opening)
		tb.TotalDebit = tb.TotalDebit.Add(a.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(a.Credit)
		tb.TotalClosing = tb.TotalClosing.Add(closing)
	}
	sort.Slice(rows, func(i, j int) bool {
		oi := accounts.AccountType(rows[i].Type).SortOrder()
		oj := accounts.AccountType(rows[j].Type).SortOrder()
		if oi != oj {
			return oi < oj
		}
		return rows[i].Name < rows[j].Name
	})
	tb.Rows = rows
	tb.IsBalanced = money.Equal(tb.TotalDebit, tb.TotalCredit)
	return tb
}

// LedgerEntry is one voucher line hit on an account, with the running
// balance after it.
type LedgerEntry struct {
	Date      time.Time       `json:"date"`
	VoucherID int64           `json:"voucherId"`
	Number    string          `json:"number"`
	Type      string          `json:"type"`
	Narration string          `json:"narration"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// AccountLedger is the date-ordered statement of a single account.
type AccountLedger struct {
	AccountID int64           `json:"accountId"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Opening   decimal.Decimal `json:"opening"`
	Entries   []LedgerEntry   `json:"entries"`
	Closing   decimal.Decimal `json:"closing"`
}

// runBalances seeds the running balance with the opening value and walks
// the entries in order.
func runBalances(opening decimal.Decimal, entries []LedgerEntry) ([]LedgerEntry, decimal.Decimal) {
	balance := opening
	for i := range entries {
		balance = balance.Add(entries[i].Debit).Sub(entries[i].Credit)
		entries[i].Balance = balance
	}
	return entries, balance
}
