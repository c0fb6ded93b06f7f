package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories. The enum is closed; anything else
// is rejected at creation time.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the type is one of the closed enum values.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// CreditNormal reports whether the type grows on the credit side.
func (t AccountType) CreditNormal() bool {
	switch t {
	case TypeLiability, TypeEquity, TypeRevenue:
		return true
	}
	return false
}

// SortOrder returns the fixed accounting order used by reports.
func (t AccountType) SortOrder() int {
	switch t {
	case TypeAsset:
		return 0
	case TypeLiability:
		return 1
	case TypeEquity:
		return 2
	case TypeRevenue:
		return 3
	case TypeExpense:
		return 4
	}
	return 5
}

// Subtype groups accounts inside a type. Open-ended tag, seeded values below.
type Subtype string

const (
	SubtypeCash       Subtype = "CASH"
	SubtypeBank       Subtype = "BANK"
	SubtypeReceivable Subtype = "RECEIVABLE"
	SubtypePayable    Subtype = "PAYABLE"
	SubtypeInventory  Subtype = "INVENTORY"
	SubtypeCOGS       Subtype = "COGS"
	SubtypeSales      Subtype = "SALES"
	SubtypeTax        Subtype = "TAX"
	SubtypeGeneral    Subtype = "GENERAL"
)

// Account models a chart of accounts node. CurrentBalance is a cached
// running total in debit-positive polarity: opening + sum(debit - credit)
// over every posted voucher line. The posting engine is its only writer.
type Account struct {
	ID             int64
	OutletID       int64
	Code           string
	Name           string
	Type           AccountType
	Subtype        Subtype
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	IsActive       bool
	IsSystem       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NaturalBalance returns the cached balance in the account's own polarity,
// so a revenue account with raw balance -1000.00 reads as +1000.00.
func (a Account) NaturalBalance() decimal.Decimal {
	if a.Type.CreditNormal() {
		return a.CurrentBalance.Neg()
	}
	return a.CurrentBalance
}
