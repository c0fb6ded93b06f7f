// Package procurement owns purchase payments: settlements against a
// supplier balance that post through the ledger as PAYMENT vouchers.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
	"github.com/meridian-erp/meridian-erp/internal/money"
)

// ErrNotFound indicates a missing payment.
var ErrNotFound = errors.New("procurement: payment not found")

// ReferenceTypePurchasePayment links vouchers back to their payment.
const ReferenceTypePurchasePayment = "PURCHASE_PAYMENT"

// Payment is a recorded settlement to a supplier.
type Payment struct {
	ID            uuid.UUID
	OutletID      int64
	SupplierName  string
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	Narration     string
	VoucherID     *int64
	IsPostedToGL  bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// Repository persists purchase payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires the procurement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a payment.
func (r *Repository) Insert(ctx context.Context, p Payment) (Payment, error) {
	p.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO purchase_payments (id, outlet_id, supplier_name, date, amount,
			payment_method, narration, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.OutletID, p.SupplierName, p.Date, p.Amount,
		string(p.PaymentMethod), p.Narration, p.CreatedBy, p.CreatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: insert: %w", err)
	}
	return p, nil
}

// Get loads one payment.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	var p Payment
	var method string
	err := r.pool.QueryRow(ctx, `
		SELECT id, outlet_id, supplier_name, date, amount, payment_method,
			narration, voucher_id, is_posted_to_gl, created_by, created_at
		FROM purchase_payments WHERE id = $1`, id).Scan(
		&p.ID, &p.OutletID, &p.SupplierName, &p.Date, &p.Amount, &method,
		&p.Narration, &p.VoucherID, &p.IsPostedToGL, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: get: %w", err)
	}
	p.PaymentMethod = adapters.PaymentMethod(method)
	return p, nil
}

// MarkPosted records the voucher a payment posted to.
func (r *Repository) MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE purchase_payments SET voucher_id = $2, is_posted_to_gl = TRUE
		WHERE id = $1`, id, voucherID)
	if err != nil {
		return fmt.Errorf("procurement: mark posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LedgerPort is the posting surface the service drives.
type LedgerPort interface {
	Post(ctx context.Context, input ledger.PostingInput) (ledger.Voucher, error)
}

// AccountResolver resolves system accounts for an outlet.
type AccountResolver interface {
	ResolveSubtype(ctx context.Context, outletID int64, subtype accounts.Subtype) (accounts.Account, error)
}

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, p Payment) (Payment, error)
	Get(ctx context.Context, id uuid.UUID) (Payment, error)
	MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error
}

// Service records supplier payments and posts them.
type Service struct {
	repo     RepositoryPort
	ledger   LedgerPort
	accounts AccountResolver
	now      func() time.Time
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, ledgerSvc LedgerPort, resolver AccountResolver) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, accounts: resolver, now: time.Now}
}

// RecordInput carries a supplier payment to be stored and posted.
type RecordInput struct {
	OutletID      int64
	SupplierName  string
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	Narration     string
	ActorID       int64
}

// Record stores the payment and posts its PAYMENT voucher.
func (s *Service) Record(ctx context.Context, input RecordInput) (Payment, error) {
	payment := Payment{
		ID:            uuid.New(),
		OutletID:      input.OutletID,
		SupplierName:  input.SupplierName,
		Date:          input.Date,
		Amount:        money.Round(input.Amount),
		PaymentMethod: input.PaymentMethod,
		Narration:     input.Narration,
		CreatedBy:     input.ActorID,
	}
	if payment.Date.IsZero() {
		payment.Date = s.now().UTC()
	}

	payable, err := s.accounts.ResolveSubtype(ctx, payment.OutletID, accounts.SubtypePayable)
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: resolve payable: %w", err)
	}
	cash, err := s.accounts.ResolveSubtype(ctx, payment.OutletID, accounts.SubtypeCash)
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: resolve cash: %w", err)
	}
	bank, err := s.accounts.ResolveSubtype(ctx, payment.OutletID, accounts.SubtypeBank)
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: resolve bank: %w", err)
	}
	set := adapters.AccountSet{Payable: payable.ID, Cash: cash.ID, Bank: bank.ID}
	lines, err := adapters.PurchasePaymentLines(adapters.PurchasePayment{
		Amount:        payment.Amount,
		PaymentMethod: payment.PaymentMethod,
	}, set)
	if err != nil {
		return Payment{}, err
	}

	payment, err = s.repo.Insert(ctx, payment)
	if err != nil {
		return Payment{}, err
	}
	narration := payment.Narration
	if narration == "" {
		narration = "Payment to " + payment.SupplierName
	}
	voucher, err := s.ledger.Post(ctx, ledger.PostingInput{
		OutletID:      payment.OutletID,
		Type:          ledger.TypePayment,
		Date:          payment.Date,
		Narration:     narration,
		ReferenceType: ReferenceTypePurchasePayment,
		ReferenceID:   payment.ID.String(),
		PostedBy:      input.ActorID,
		Lines:         lines,
	})
	if err != nil {
		return Payment{}, fmt.Errorf("procurement: post voucher: %w", err)
	}
	if err := s.repo.MarkPosted(ctx, payment.ID, voucher.ID); err != nil {
		return Payment{}, err
	}
	payment.VoucherID = &voucher.ID
	payment.IsPostedToGL = true
	return payment, nil
}

// Get loads one payment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	return s.repo.Get(ctx, id)
}
