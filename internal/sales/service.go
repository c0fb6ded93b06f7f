package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// LedgerPort is the slice of the posting engine this module drives.
type LedgerPort interface {
	Post(ctx context.Context, input ledger.PostingInput) (ledger.Voucher, error)
	Correct(ctx context.Context, input ledger.CorrectionInput) (ledger.CorrectionResult, error)
}

// AccountResolver resolves the system account for a subtype within an
// outlet.
type AccountResolver interface {
	ResolveSubtype(ctx context.Context, outletID int64, subtype accounts.Subtype) (accounts.Account, error)
}

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, sale Sale) (Sale, error)
	Get(ctx context.Context, id uuid.UUID) (Sale, error)
	List(ctx context.Context, outletID int64, limit, offset int) ([]Sale, error)
	MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error
	UpdateCorrected(ctx context.Context, sale Sale) error
}

// Service records sales and keeps them in step with the general ledger.
type Service struct {
	repo     RepositoryPort
	ledger   LedgerPort
	accounts AccountResolver
	now      func() time.Time
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, ledgerSvc LedgerPort, resolver AccountResolver) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, accounts: resolver, now: time.Now}
}

// RecordInput carries a completed sale to be stored and posted.
type RecordInput struct {
	OutletID      int64
	CustomerName  string
	Date          time.Time
	Items         []Item
	TaxAmount     decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	AmountPaid    decimal.Decimal
	Narration     string
	ActorID       int64
}

// Record stores the sale and posts its voucher. The sale row exists before
// the posting attempt; if posting fails the sale stays with IsPostedToGL
// false and no voucher. If the voucher commits but MarkPosted fails, the
// flag stays stale; the posting engine refuses a second live voucher for
// the same sale reference, so a retry cannot double-post.
func (s *Service) Record(ctx context.Context, input RecordInput) (Sale, error) {
	if len(input.Items) == 0 {
		return Sale{}, ErrNoItems
	}
	sale := Sale{
		ID:            uuid.New(),
		OutletID:      input.OutletID,
		CustomerName:  input.CustomerName,
		Date:          input.Date,
		Items:         input.Items,
		TaxAmount:     money.Round(input.TaxAmount),
		PaymentMethod: input.PaymentMethod,
		AmountPaid:    money.Round(input.AmountPaid),
		Narration:     input.Narration,
		CreatedBy:     input.ActorID,
	}
	if sale.Date.IsZero() {
		sale.Date = s.now().UTC()
	}

	set, err := s.accountSet(ctx, sale.OutletID)
	if err != nil {
		return Sale{}, err
	}
	lines, err := adapters.SaleLines(sale.Document(), set)
	if err != nil {
		return Sale{}, err
	}

	sale, err = s.repo.Insert(ctx, sale)
	if err != nil {
		return Sale{}, err
	}

	voucher, err := s.ledger.Post(ctx, ledger.PostingInput{
		OutletID:      sale.OutletID,
		Type:          ledger.TypeSale,
		Date:          sale.Date,
		Narration:     saleNarration(sale),
		ReferenceType: ReferenceTypeSale,
		ReferenceID:   sale.ID.String(),
		PostedBy:      input.ActorID,
		Lines:         lines,
	})
	if err != nil {
		return Sale{}, fmt.Errorf("sales: post voucher: %w", err)
	}
	if err := s.repo.MarkPosted(ctx, sale.ID, voucher.ID); err != nil {
		return Sale{}, err
	}
	sale.VoucherID = &voucher.ID
	sale.IsPostedToGL = true
	return sale, nil
}

// CorrectInput carries the corrected view of an already posted sale.
// Quantities must match the original; only price, discount, tax, payment
// method and narration may differ. PaymentMethodOnly is the caller's
// explicit declaration that prices are untouched, which preserves the
// original COGS and inventory postings.
type CorrectInput struct {
	SaleID            uuid.UUID
	Items             []Item
	TaxAmount         decimal.Decimal
	PaymentMethod     adapters.PaymentMethod
	AmountPaid        decimal.Decimal
	Narration         string
	Reason            string
	PaymentMethodOnly bool
	ActorID           int64
}

// Correct reverses the sale's voucher and posts a recomputed one through
// the ledger's atomic correction flow, then rewrites the document.
func (s *Service) Correct(ctx context.Context, input CorrectInput) (Sale, error) {
	sale, err := s.repo.Get(ctx, input.SaleID)
	if err != nil {
		return Sale{}, err
	}
	if !sale.IsPostedToGL || sale.VoucherID == nil {
		return Sale{}, ErrNotPosted
	}
	if err := checkQuantities(sale.Items, input.Items); err != nil {
		return Sale{}, err
	}

	corrected := sale
	corrected.Items = input.Items
	corrected.TaxAmount = money.Round(input.TaxAmount)
	corrected.PaymentMethod = input.PaymentMethod
	corrected.AmountPaid = money.Round(input.AmountPaid)
	if input.Narration != "" {
		corrected.Narration = input.Narration
	}

	set, err := s.accountSet(ctx, sale.OutletID)
	if err != nil {
		return Sale{}, err
	}
	lines, err := adapters.SaleLines(corrected.Document(), set)
	if err != nil {
		return Sale{}, err
	}

	var skip []ledger.LineCategory
	if input.PaymentMethodOnly {
		skip = []ledger.LineCategory{ledger.CategoryCOGS, ledger.CategoryInventory}
		lines = dropCategories(lines, skip)
	}

	result, err := s.ledger.Correct(ctx, ledger.CorrectionInput{
		OriginalVoucherID: *sale.VoucherID,
		Replacement: ledger.PostingInput{
			OutletID:      sale.OutletID,
			Type:          ledger.TypeSale,
			Date:          sale.Date,
			Narration:     saleNarration(corrected),
			ReferenceType: ReferenceTypeSale,
			ReferenceID:   sale.ID.String(),
			PostedBy:      input.ActorID,
			Lines:         lines,
		},
		Reason:         input.Reason,
		ActorID:        input.ActorID,
		SkipCategories: skip,
	})
	if err != nil {
		return Sale{}, err
	}

	corrected.VoucherID = &result.Replacement.ID
	if err := s.repo.UpdateCorrected(ctx, corrected); err != nil {
		return Sale{}, err
	}
	return corrected, nil
}

// Get loads one sale.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sale headers for an outlet.
func (s *Service) List(ctx context.Context, outletID int64, limit, offset int) ([]Sale, error) {
	return s.repo.List(ctx, outletID, limit, offset)
}

// accountSet resolves the system accounts a sale posts against.
func (s *Service) accountSet(ctx context.Context, outletID int64) (adapters.AccountSet, error) {
	var set adapters.AccountSet
	targets := []struct {
		subtype accounts.Subtype
		field   *int64
	}{
		{accounts.SubtypeCash, &set.Cash},
		{accounts.SubtypeBank, &set.Bank},
		{accounts.SubtypeReceivable, &set.Receivable},
		{accounts.SubtypePayable, &set.Payable},
		{accounts.SubtypeSales, &set.SalesRevenue},
		{accounts.SubtypeTax, &set.TaxPayable},
		{accounts.SubtypeCOGS, &set.COGS},
		{accounts.SubtypeInventory, &set.Inventory},
	}
	for _, target := range targets {
		account, err := s.accounts.ResolveSubtype(ctx, outletID, target.subtype)
		if err != nil {
			return adapters.AccountSet{}, fmt.Errorf("sales: resolve %s account: %w", target.subtype, err)
		}
		*target.field = account.ID
	}
	return set, nil
}

// checkQuantities enforces the correction boundary: same items, same
// counts.
func checkQuantities(original, corrected []Item) error {
	if len(original) != len(corrected) {
		return ErrQuantityChanged
	}
	byID := make(map[int64]decimal.Decimal, len(original))
	for _, item := range original {
		byID[item.ID] = item.Quantity
	}
	for _, item := range corrected {
		qty, ok := byID[item.ID]
		if !ok || !qty.Equal(item.Quantity) {
			return ErrQuantityChanged
		}
	}
	return nil
}

func dropCategories(lines []ledger.LineInput, skip []ledger.LineCategory) []ledger.LineInput {
	drop := make(map[ledger.LineCategory]struct{}, len(skip))
	for _, c := range skip {
		drop[c] = struct{}{}
	}
	out := lines[:0]
	for _, line := range lines {
		if _, ok := drop[line.Category]; ok {
			continue
		}
		out = append(out, line)
	}
	return out
}

func saleNarration(sale Sale) string {
	if sale.Narration != "" {
		return sale.Narration
	}
	if sale.CustomerName != "" {
		return "Sale to " + sale.CustomerName
	}
	return "Counter sale"
}
