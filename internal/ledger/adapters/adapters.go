// Package adapters translates business documents into balanced voucher
// lines. Every function here is pure: it reads a document and a resolved
// account set and returns lines for the posting engine, nothing else.
// Monetary rounding to two places happens here, once per line, so the
// engine never re-rounds aggregates.
package adapters

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// PaymentMethod selects the account a collected amount lands on.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodBank   PaymentMethod = "BANK"
	MethodCredit PaymentMethod = "CREDIT"
)

var (
	// ErrNoItems indicates a sale document without line items.
	ErrNoItems = errors.New("adapters: document has no items")
	// ErrUnknownMethod indicates a payment method the adapter cannot route.
	ErrUnknownMethod = errors.New("adapters: unknown payment method")
	// ErrOverpaid indicates an amount collected above the document total.
	ErrOverpaid = errors.New("adapters: amount paid exceeds document total")
	// ErrNonPositiveAmount indicates a zero or negative monetary amount.
	ErrNonPositiveAmount = errors.New("adapters: amount must be positive")
)

// AccountSet carries the resolved account ids an adapter may post against.
// Callers resolve it once per outlet from the registry's system accounts.
type AccountSet struct {
	Cash         int64
	Bank         int64
	Receivable   int64
	Payable      int64
	SalesRevenue int64
	TaxPayable   int64
	COGS         int64
	Inventory    int64
}

func (s AccountSet) paymentAccount(method PaymentMethod) (int64, error) {
	switch method {
	case MethodCash:
		return s.Cash, nil
	case MethodBank:
		return s.Bank, nil
	case MethodCredit:
		return s.Receivable, nil
	default:
		return 0, ErrUnknownMethod
	}
}

// settlementAccount is paymentAccount restricted to cash and bank; outgoing
// payments cannot settle against a receivable.
func (s AccountSet) settlementAccount(method PaymentMethod) (int64, error) {
	switch method {
	case MethodCash:
		return s.Cash, nil
	case MethodBank:
		return s.Bank, nil
	default:
		return 0, ErrUnknownMethod
	}
}

// SaleItem is one sold line with its cost basis frozen at sale time.
type SaleItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
	Discount    decimal.Decimal
}

// subtotal is the revenue value of the item, net of its discount, rounded
// once.
func (i SaleItem) subtotal() decimal.Decimal {
	return money.Round(i.Quantity.Mul(i.UnitPrice).Sub(i.Discount))
}

// costValue is the inventory value leaving stock for this item, rounded
// once.
func (i SaleItem) costValue() decimal.Decimal {
	return money.Round(i.Quantity.Mul(i.UnitCost))
}

// SaleDocument is the slice of a completed sale the ledger cares about.
type SaleDocument struct {
	Items         []SaleItem
	TaxAmount     decimal.Decimal
	PaymentMethod PaymentMethod
	AmountPaid    decimal.Decimal
}

// Revenue returns the document's net revenue, the sum of per-item rounded
// subtotals.
func (d SaleDocument) Revenue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.subtotal())
	}
	return total
}

// CostTotal returns the document's total cost of goods sold.
func (d SaleDocument) CostTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.costValue())
	}
	return total
}

// Total is revenue plus tax, what the customer owes.
func (d SaleDocument) Total() decimal.Decimal {
	return d.Revenue().Add(money.Round(d.TaxAmount))
}

// SaleLines maps a completed sale onto voucher lines: payment and balance
// due on the debit side, revenue and tax on the credit side, plus the cost
// pair (COGS debit, inventory credit) valued at each item's unit cost.
func SaleLines(doc SaleDocument, set AccountSet) ([]ledger.LineInput, error) {
	if len(doc.Items) == 0 {
		return nil, ErrNoItems
	}
	revenue := doc.Revenue()
	if !money.IsPositive(revenue) {
		return nil, ErrNonPositiveAmount
	}
	tax := money.Round(doc.TaxAmount)
	if money.IsNegative(tax) {
		return nil, ErrNonPositiveAmount
	}
	total := revenue.Add(tax)
	paid := money.Round(doc.AmountPaid)
	if money.IsNegative(paid) {
		return nil, ErrNonPositiveAmount
	}
	if paid.Sub(total).GreaterThanOrEqual(money.Epsilon) {
		return nil, ErrOverpaid
	}
	due := total.Sub(paid)

	payAccount, err := set.paymentAccount(doc.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var lines []ledger.LineInput
	if money.IsPositive(paid) {
		lines = append(lines, ledger.LineInput{
			AccountID: payAccount,
			Category:  ledger.CategoryPayment,
			Debit:     paid,
		})
	}
	if money.IsPositive(due) {
		lines = append(lines, ledger.LineInput{
			AccountID: set.Receivable,
			Category:  ledger.CategoryReceivable,
			Debit:     due,
		})
	}
	lines = append(lines, ledger.LineInput{
		AccountID: set.SalesRevenue,
		Category:  ledger.CategoryRevenue,
		Credit:    revenue,
	})
	if money.IsPositive(tax) {
		lines = append(lines, ledger.LineInput{
			AccountID: set.TaxPayable,
			Category:  ledger.CategoryTax,
			Credit:    tax,
		})
	}
	if cost := doc.CostTotal(); money.IsPositive(cost) {
		lines = append(lines,
			ledger.LineInput{AccountID: set.COGS, Category: ledger.CategoryCOGS, Debit: cost},
			ledger.LineInput{AccountID: set.Inventory, Category: ledger.CategoryInventory, Credit: cost},
		)
	}
	return lines, nil
}

// PurchasePayment is an outgoing settlement against a supplier balance.
type PurchasePayment struct {
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
}

// PurchasePaymentLines reduces accounts payable by the amount paid and
// credits the cash or bank account it left from.
func PurchasePaymentLines(doc PurchasePayment, set AccountSet) ([]ledger.LineInput, error) {
	amount := money.Round(doc.Amount)
	if !money.IsPositive(amount) {
		return nil, ErrNonPositiveAmount
	}
	settle, err := set.settlementAccount(doc.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return []ledger.LineInput{
		{AccountID: set.Payable, Category: ledger.CategoryPayable, Debit: amount},
		{AccountID: settle, Category: ledger.CategoryPayment, Credit: amount},
	}, nil
}

// Expense is a paid operating expense routed to a specific expense account.
type Expense struct {
	AccountID     int64
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
}

// ExpenseLines debits the expense account and credits the paying cash or
// bank account.
func ExpenseLines(doc Expense, set AccountSet) ([]ledger.LineInput, error) {
	amount := money.Round(doc.Amount)
	if !money.IsPositive(amount) {
		return nil, ErrNonPositiveAmount
	}
	if doc.AccountID == 0 {
		return nil, errors.New("adapters: expense account required")
	}
	settle, err := set.settlementAccount(doc.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return []ledger.LineInput{
		{AccountID: doc.AccountID, Category: ledger.CategoryExpense, Debit: amount},
		{AccountID: settle, Category: ledger.CategoryPayment, Credit: amount},
	}, nil
}
