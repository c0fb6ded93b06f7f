package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// CreateInput groups fields required to create an account.
type CreateInput struct {
	OutletID       int64
	Code           string
	Name           string
	Type           AccountType
	Subtype        Subtype
	OpeningBalance decimal.Decimal
	IsSystem       bool
}

// RepositoryPort abstracts persistence for the registry service.
type RepositoryPort interface {
	Insert(ctx context.Context, in CreateInput) (Account, error)
	GetByID(ctx context.Context, id int64) (Account, error)
	GetBySubtype(ctx context.Context, outletID int64, subtype Subtype) (Account, error)
	List(ctx context.Context, outletID int64, includeInactive bool) ([]Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	HasPostings(ctx context.Context, id int64) (bool, error)
	RecomputeBalance(ctx context.Context, id int64, asOf time.Time) (decimal.Decimal, error)
}

// AuditPort records registry events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the chart of accounts lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and persists a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := validateCreate(&in); err != nil {
		return Account{}, err
	}
	account, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OutletID: account.OutletID,
			ActorID:  shared.ScopeFromContext(ctx).ActorID,
			Action:   "account.create",
			Entity:   "account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Meta:     map[string]any{"code": account.Code, "type": string(account.Type)},
			At:       s.now(),
		})
	}
	return account, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveSubtype returns the active posting target for a subtype.
func (s *Service) ResolveSubtype(ctx context.Context, outletID int64, subtype Subtype) (Account, error) {
	return s.repo.GetBySubtype(ctx, outletID, subtype)
}

// List returns the outlet's chart of accounts.
func (s *Service) List(ctx context.Context, outletID int64, includeInactive bool) ([]Account, error) {
	return s.repo.List(ctx, outletID, includeInactive)
}

// Remove deletes an account without history, deactivates one with history.
// System accounts are never deleted.
func (s *Service) Remove(ctx context.Context, id int64) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return ErrSystemAccount
	}
	referenced, err := s.repo.HasPostings(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return s.repo.SetActive(ctx, id, false)
	}
	return s.repo.Delete(ctx, id)
}

// Reactivate re-enables a deactivated account.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}

// ReconcileResult captures a cached-vs-recomputed balance comparison.
type ReconcileResult struct {
	AccountID  int64
	Cached     decimal.Decimal
	Recomputed decimal.Decimal
	Divergence decimal.Decimal
	OK         bool
}

// Reconcile recomputes the balance from the voucher stream and compares it
// with the cached running balance. A mismatch is reported, never repaired:
// it means some write path bypassed the posting engine.
func (s *Service) Reconcile(ctx context.Context, id int64, asOf time.Time) (ReconcileResult, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ReconcileResult{}, err
	}
	recomputed, err := s.repo.RecomputeBalance(ctx, id, asOf)
	if err != nil {
		return ReconcileResult{}, err
	}
	divergence := account.CurrentBalance.Sub(recomputed)
	result := ReconcileResult{
		AccountID:  id,
		Cached:     account.CurrentBalance,
		Recomputed: recomputed,
		Divergence: divergence,
		OK:         money.IsZero(divergence),
	}
	if !result.OK {
		return result, fmt.Errorf("%w: account %d cached %s recomputed %s",
			ErrBalanceDivergence, id, account.CurrentBalance.StringFixed(2), recomputed.StringFixed(2))
	}
	return result, nil
}
