package adapters

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

var testSet = AccountSet{
	Cash:         1,
	Bank:         2,
	Receivable:   3,
	Payable:      4,
	SalesRevenue: 5,
	TaxPayable:   6,
	COGS:         7,
	Inventory:    8,
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func totals(lines []ledger.LineInput) (debit, credit decimal.Decimal) {
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

func byCategory(lines []ledger.LineInput, c ledger.LineCategory) []ledger.LineInput {
	var out []ledger.LineInput
	for _, line := range lines {
		if line.Category == c {
			out = append(out, line)
		}
	}
	return out
}

func TestSaleLinesCashSale(t *testing.T) {
	doc := SaleDocument{
		Items: []SaleItem{
			{Description: "oil filter", Quantity: d("2"), UnitPrice: d("450.00"), UnitCost: d("300.00")},
			{Description: "labour", Quantity: d("1"), UnitPrice: d("150.00"), Discount: d("50.00")},
		},
		TaxAmount:     d("50.00"),
		PaymentMethod: MethodCash,
		AmountPaid:    d("1050.00"),
	}
	lines, err := SaleLines(doc, testSet)
	require.NoError(t, err)

	debit, credit := totals(lines)
	require.True(t, money.Equal(debit, credit), "adapter output must balance: %s vs %s", debit, credit)

	payment := byCategory(lines, ledger.CategoryPayment)
	require.Len(t, payment, 1)
	require.Equal(t, testSet.Cash, payment[0].AccountID)
	require.True(t, payment[0].Debit.Equal(d("1050.00")))

	revenue := byCategory(lines, ledger.CategoryRevenue)
	require.Len(t, revenue, 1)
	require.True(t, revenue[0].Credit.Equal(d("1000.00")), "revenue net of discount, got %s", revenue[0].Credit)

	tax := byCategory(lines, ledger.CategoryTax)
	require.Len(t, tax, 1)
	require.True(t, tax[0].Credit.Equal(d("50.00")))

	require.Empty(t, byCategory(lines, ledger.CategoryReceivable), "fully paid sale has no balance due")

	cogs := byCategory(lines, ledger.CategoryCOGS)
	inv := byCategory(lines, ledger.CategoryInventory)
	require.Len(t, cogs, 1)
	require.Len(t, inv, 1)
	require.True(t, cogs[0].Debit.Equal(d("600.00")), "cost = 2 x 300, got %s", cogs[0].Debit)
	require.True(t, inv[0].Credit.Equal(d("600.00")))
}

func TestSaleLinesPartialPayment(t *testing.T) {
	doc := SaleDocument{
		Items:         []SaleItem{{Quantity: d("1"), UnitPrice: d("500.00")}},
		PaymentMethod: MethodBank,
		AmountPaid:    d("200.00"),
	}
	lines, err := SaleLines(doc, testSet)
	require.NoError(t, err)

	payment := byCategory(lines, ledger.CategoryPayment)
	require.Len(t, payment, 1)
	require.Equal(t, testSet.Bank, payment[0].AccountID)

	due := byCategory(lines, ledger.CategoryReceivable)
	require.Len(t, due, 1)
	require.Equal(t, testSet.Receivable, due[0].AccountID)
	require.True(t, due[0].Debit.Equal(d("300.00")), "balance due, got %s", due[0].Debit)

	debit, credit := totals(lines)
	require.True(t, money.Equal(debit, credit))
}

func TestSaleLinesOnCredit(t *testing.T) {
	doc := SaleDocument{
		Items:         []SaleItem{{Quantity: d("1"), UnitPrice: d("500.00")}},
		PaymentMethod: MethodCredit,
	}
	lines, err := SaleLines(doc, testSet)
	require.NoError(t, err)
	require.Empty(t, byCategory(lines, ledger.CategoryPayment))
	due := byCategory(lines, ledger.CategoryReceivable)
	require.Len(t, due, 1)
	require.True(t, due[0].Debit.Equal(d("500.00")))
}

func TestSaleLinesRoundsOncePerLine(t *testing.T) {
	// three items at 0.335 each: per-item rounding gives 3 x 0.34, not
	// round(1.005) once
	doc := SaleDocument{
		Items: []SaleItem{
			{Quantity: d("1"), UnitPrice: d("0.335")},
			{Quantity: d("1"), UnitPrice: d("0.335")},
			{Quantity: d("1"), UnitPrice: d("0.335")},
		},
		PaymentMethod: MethodCash,
		AmountPaid:    d("1.02"),
	}
	lines, err := SaleLines(doc, testSet)
	require.NoError(t, err)
	revenue := byCategory(lines, ledger.CategoryRevenue)
	require.True(t, revenue[0].Credit.Equal(d("1.02")), "got %s", revenue[0].Credit)
}

func TestSaleLinesRejections(t *testing.T) {
	_, err := SaleLines(SaleDocument{PaymentMethod: MethodCash}, testSet)
	require.ErrorIs(t, err, ErrNoItems)

	doc := SaleDocument{
		Items:         []SaleItem{{Quantity: d("1"), UnitPrice: d("100.00")}},
		PaymentMethod: MethodCash,
		AmountPaid:    d("150.00"),
	}
	_, err = SaleLines(doc, testSet)
	require.ErrorIs(t, err, ErrOverpaid)

	doc.AmountPaid = d("100.00")
	doc.PaymentMethod = "CHEQUE"
	_, err = SaleLines(doc, testSet)
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestPurchasePaymentLines(t *testing.T) {
	lines, err := PurchasePaymentLines(PurchasePayment{Amount: d("2500.00"), PaymentMethod: MethodBank}, testSet)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, testSet.Payable, lines[0].AccountID)
	require.True(t, lines[0].Debit.Equal(d("2500.00")))
	require.Equal(t, testSet.Bank, lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(d("2500.00")))

	_, err = PurchasePaymentLines(PurchasePayment{Amount: d("100.00"), PaymentMethod: MethodCredit}, testSet)
	require.ErrorIs(t, err, ErrUnknownMethod, "supplier payments settle from cash or bank only")

	_, err = PurchasePaymentLines(PurchasePayment{Amount: d("0.00"), PaymentMethod: MethodCash}, testSet)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestExpenseLines(t *testing.T) {
	lines, err := ExpenseLines(Expense{AccountID: 99, Amount: d("120.50"), PaymentMethod: MethodCash}, testSet)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, int64(99), lines[0].AccountID)
	require.Equal(t, ledger.CategoryExpense, lines[0].Category)
	require.True(t, lines[0].Debit.Equal(d("120.50")))
	require.Equal(t, testSet.Cash, lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(d("120.50")))

	_, err = ExpenseLines(Expense{Amount: d("10.00"), PaymentMethod: MethodCash}, testSet)
	require.Error(t, err)
}
