// Package ledger implements the double-entry posting core: balanced
// vouchers, sequential numbering, reversal, and correction flows.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// VoucherType tags the business origin of a voucher. Open-ended; the
// constants below cover the built-in document flows.
type VoucherType string

const (
	TypeSale     VoucherType = "SALE"
	TypePurchase VoucherType = "PURCHASE"
	TypePayment  VoucherType = "PAYMENT"
	TypeReceipt  VoucherType = "RECEIPT"
	TypeContra   VoucherType = "CONTRA"
	TypeJournal  VoucherType = "JOURNAL"
	TypeReversal VoucherType = "REVERSAL"
)

// Prefix returns the number prefix for the type.
func (t VoucherType) Prefix() string {
	switch t {
	case TypeSale:
		return "SAL"
	case TypePurchase:
		return "PUR"
	case TypePayment:
		return "PAY"
	case TypeReceipt:
		return "RCT"
	case TypeContra:
		return "CON"
	case TypeJournal:
		return "JNL"
	case TypeReversal:
		return "REV"
	}
	if len(t) >= 3 {
		return string(t)[:3]
	}
	return string(t)
}

// VoucherStatus enumerates the voucher lifecycle. Only POSTED and APPROVED
// vouchers affect account balances; a posted voucher is immutable.
type VoucherStatus string

const (
	StatusDraft     VoucherStatus = "DRAFT"
	StatusPosted    VoucherStatus = "POSTED"
	StatusApproved  VoucherStatus = "APPROVED"
	StatusCancelled VoucherStatus = "CANCELLED"
)

// LineCategory classifies a line for subset reversal. Categories are caller
// supplied; the engine never infers them.
type LineCategory string

const (
	CategoryPayment    LineCategory = "PAYMENT"
	CategoryReceivable LineCategory = "RECEIVABLE"
	CategoryPayable    LineCategory = "PAYABLE"
	CategoryRevenue    LineCategory = "REVENUE"
	CategoryTax        LineCategory = "TAX"
	CategoryCOGS       LineCategory = "COGS"
	CategoryInventory  LineCategory = "INVENTORY"
	CategoryExpense    LineCategory = "EXPENSE"
	CategoryOther      LineCategory = "OTHER"
)

// ReferenceTypeReversal marks a voucher that cancels a prior posting.
const ReferenceTypeReversal = "REVERSAL"

// Voucher is the atomic unit of bookkeeping: a numbered, dated set of
// balanced lines with a lifecycle state.
type Voucher struct {
	ID            int64
	OutletID      int64
	Number        string
	Type          VoucherType
	Date          time.Time
	Narration     string
	ReferenceType string
	ReferenceID   string
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	Status        VoucherStatus
	PostedBy      int64
	PostedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []Line
}

// Line is one debit-or-credit row inside a voucher. AccountCode and
// AccountName are snapshots taken at posting time so historical reports
// survive later renames.
type Line struct {
	ID          int64
	VoucherID   int64
	AccountID   int64
	AccountCode string
	AccountName string
	Category    LineCategory
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Narration   string
}

// IsMemo reports whether the line carries no amounts. Memo lines are
// narration-only splits and are excluded from reversals.
func (l Line) IsMemo() bool {
	return money.IsZero(l.Debit) && money.IsZero(l.Credit)
}

// LineInput describes a candidate voucher line.
type LineInput struct {
	AccountID int64
	Category  LineCategory
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Narration string
}

// PostingInput groups fields required to post a voucher.
type PostingInput struct {
	OutletID      int64
	Type          VoucherType
	Date          time.Time
	Narration     string
	ReferenceType string
	ReferenceID   string
	PostedBy      int64
	Lines         []LineInput
}

// ReverseInput wraps parameters for a reversal.
type ReverseInput struct {
	VoucherID int64
	ActorID   int64
	Reason    string
	// SkipCategories excludes line categories from the reversal. The
	// exclusion is always explicit caller intent, e.g. keeping COGS and
	// inventory lines when only the payment method of a sale changed.
	SkipCategories []LineCategory
}

// CorrectionState walks the reverse-then-repost flow.
type CorrectionState string

const (
	CorrectionStateCorrecting CorrectionState = "CORRECTING"
	CorrectionStateReversed   CorrectionState = "REVERSED"
	CorrectionStateReposted   CorrectionState = "REPOSTED"
	CorrectionStateDone       CorrectionState = "DONE"
)

// CorrectionInput requests an atomic reverse-and-repost of a posted voucher.
type CorrectionInput struct {
	OriginalVoucherID int64
	Replacement       PostingInput
	Reason            string
	ActorID           int64
	SkipCategories    []LineCategory
}

// CorrectionResult reports the vouchers created by a correction.
type CorrectionResult struct {
	CorrectionID uuid.UUID
	Reversal     Voucher
	Replacement  Voucher
}

var (
	// ErrEmptyVoucher indicates a candidate without lines.
	ErrEmptyVoucher = errors.New("ledger: voucher requires lines")
	// ErrTooFewLines indicates fewer than two amount-bearing lines.
	ErrTooFewLines = errors.New("ledger: voucher requires at least two amount lines")
	// ErrUnbalanced indicates total debit != total credit.
	ErrUnbalanced = errors.New("ledger: voucher debits and credits must balance")
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = errors.New("ledger: voucher not found")
	// ErrNotPosted indicates the voucher is not in a posted state.
	ErrNotPosted = errors.New("ledger: voucher is not posted")
	// ErrAlreadyReversed indicates a reversal already references the voucher.
	ErrAlreadyReversed = errors.New("ledger: voucher already reversed")
	// ErrDuplicateNumber indicates a voucher number allocation race.
	ErrDuplicateNumber = errors.New("ledger: voucher number already taken")
	// ErrInvalidStatus indicates a lifecycle transition that is not allowed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrNothingToReverse indicates every line was excluded by SkipCategories.
	ErrNothingToReverse = errors.New("ledger: no lines remain after category exclusion")
	// ErrDuplicateReference indicates a live voucher already posted for the
	// same source document.
	ErrDuplicateReference = errors.New("ledger: reference already posted")
)

// Validate checks a candidate before any state is touched. Memo (zero/zero)
// lines are allowed; a line carrying both a debit and a credit is not.
func (in PostingInput) Validate() error {
	if in.OutletID == 0 {
		return errors.New("ledger: outlet required")
	}
	if in.Type == "" {
		return errors.New("ledger: voucher type required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: voucher date required")
	}
	if len(in.Lines) == 0 {
		return ErrEmptyVoucher
	}
	var debit, credit decimal.Decimal
	amountLines := 0
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if money.IsNegative(line.Debit) || money.IsNegative(line.Credit) {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if money.IsPositive(line.Debit) && money.IsPositive(line.Credit) {
			return fmt.Errorf("ledger: line %d cannot carry both debit and credit", idx)
		}
		if !money.IsZero(line.Debit) || !money.IsZero(line.Credit) {
			amountLines++
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if amountLines < 2 {
		return ErrTooFewLines
	}
	if !money.Equal(debit, credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Totals sums the candidate's lines without re-rounding.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// FormatNumber renders the human-readable voucher number for a scope and
// sequence value, e.g. SAL-202609-0042.
func FormatNumber(t VoucherType, period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", t.Prefix(), period, seq)
}

// NumberPeriod returns the sequence bucket for a voucher date.
func NumberPeriod(date time.Time) string {
	return shared.PeriodKey(date)
}
