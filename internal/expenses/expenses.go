// Package expenses owns paid operating expenses, posting each as a
// PAYMENT voucher against a chosen expense account.
package expenses

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

// ErrNotFound indicates a missing expense.
var ErrNotFound = errors.New("expenses: expense not found")

// ReferenceTypeExpense links vouchers back to their expense.
const ReferenceTypeExpense = "EXPENSE"

// Expense is a recorded and paid operating cost.
type Expense struct {
	ID            uuid.UUID
	OutletID      int64
	AccountID     int64
	Description   string
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	VoucherID     *int64
	IsPostedToGL  bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// Repository persists expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires the expenses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an expense.
func (r *Repository) Insert(ctx context.Context, e Expense) (Expense, error) {
	e.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (id, outlet_id, account_id, description, date, amount,
			payment_method, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.OutletID, e.AccountID, e.Description, e.Date, e.Amount,
		string(e.PaymentMethod), e.CreatedBy, e.CreatedAt)
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: insert: %w", err)
	}
	return e, nil
}

// Get loads one expense.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	var e Expense
	var method string
	err := r.pool.QueryRow(ctx, `
		SELECT id, outlet_id, account_id, description, date, amount, payment_method,
			voucher_id, is_posted_to_gl, created_by, created_at
		FROM expenses WHERE id = $1`, id).Scan(
		&e.ID, &e.OutletID, &e.AccountID, &e.Description, &e.Date, &e.Amount,
		&method, &e.VoucherID, &e.IsPostedToGL, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: get: %w", err)
	}
	e.PaymentMethod = adapters.PaymentMethod(method)
	return e, nil
}

// MarkPosted records the voucher an expense posted to.
func (r *Repository) MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE expenses SET voucher_id = $2, is_posted_to_gl = TRUE
		WHERE id = $1`, id, voucherID)
	if err != nil {
		return fmt.Errorf("expenses: mark posted: %w", err)
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

// AccountChecker verifies the target expense account.
type AccountChecker interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	ResolveSubtype(ctx context.Context, outletID int64, subtype accounts.Subtype) (accounts.Account, error)
}

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	Insert(ctx context.Context, e Expense) (Expense, error)
	Get(ctx context.Context, id uuid.UUID) (Expense, error)
	MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error
}

// Service records expenses and posts them.
type Service struct {
	repo     RepositoryPort
	ledger   LedgerPort
	accounts AccountChecker
	now      func() time.Time
}

// NewService constructs the expenses service.
func NewService(repo RepositoryPort, ledgerSvc LedgerPort, checker AccountChecker) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, accounts: checker, now: time.Now}
}

// RecordInput carries a paid expense to be stored and posted.
type RecordInput struct {
	OutletID      int64
	AccountID     int64
	Description   string
	Date          time.Time
	Amount        decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	ActorID       int64
}

// Record stores the expense and posts its voucher.
func (s *Service) Record(ctx context.Context, input RecordInput) (Expense, error) {
	expense := Expense{
		ID:            uuid.New(),
		OutletID:      input.OutletID,
		AccountID:     input.AccountID,
		Description:   input.Description,
		Date:          input.Date,
		Amount:        money.Round(input.Amount),
		PaymentMethod: input.PaymentMethod,
		CreatedBy:     input.ActorID,
	}
	if expense.Date.IsZero() {
		expense.Date = s.now().UTC()
	}

	target, err := s.accounts.Get(ctx, expense.AccountID)
	if err != nil {
		return Expense{}, err
	}
	if target.Type != accounts.TypeExpense {
		return Expense{}, fmt.Errorf("expenses: account %s is not an expense account", target.Code)
	}
	cash, err := s.accounts.ResolveSubtype(ctx, expense.OutletID, accounts.SubtypeCash)
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: resolve cash: %w", err)
	}
	bank, err := s.accounts.ResolveSubtype(ctx, expense.OutletID, accounts.SubtypeBank)
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: resolve bank: %w", err)
	}
	lines, err := adapters.ExpenseLines(adapters.Expense{
		AccountID:     expense.AccountID,
		Amount:        expense.Amount,
		PaymentMethod: expense.PaymentMethod,
	}, adapters.AccountSet{Cash: cash.ID, Bank: bank.ID})
	if err != nil {
		return Expense{}, err
	}

	expense, err = s.repo.Insert(ctx, expense)
	if err != nil {
		return Expense{}, err
	}
	voucher, err := s.ledger.Post(ctx, ledger.PostingInput{
		OutletID:      expense.OutletID,
		Type:          ledger.TypePayment,
		Date:          expense.Date,
		Narration:     expense.Description,
		ReferenceType: ReferenceTypeExpense,
		ReferenceID:   expense.ID.String(),
		PostedBy:      input.ActorID,
		Lines:         lines,
	})
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: post voucher: %w", err)
	}
	if err := s.repo.MarkPosted(ctx, expense.ID, voucher.ID); err != nil {
		return Expense{}, err
	}
	expense.VoucherID = &voucher.ID
	expense.IsPostedToGL = true
	return expense, nil
}

// Get loads one expense.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	return s.repo.Get(ctx, id)
}
