package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	accounts   map[int64]Account
	nextID     int64
	hasPosting map[int64]bool
	recomputed map[int64]decimal.Decimal
	deleted    []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:   make(map[int64]Account),
		nextID:     1,
		hasPosting: make(map[int64]bool),
		recomputed: make(map[int64]decimal.Decimal),
	}
}

func (m *memoryRepo) Insert(_ context.Context, in CreateInput) (Account, error) {
	for _, a := range m.accounts {
		if a.OutletID == in.OutletID && a.Code == in.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	account := Account{
		ID:             m.nextID,
		OutletID:       in.OutletID,
		Code:           in.Code,
		Name:           in.Name,
		Type:           in.Type,
		Subtype:        in.Subtype,
		OpeningBalance: in.OpeningBalance,
		CurrentBalance: in.OpeningBalance,
		IsActive:       true,
		IsSystem:       in.IsSystem,
	}
	m.accounts[account.ID] = account
	m.nextID++
	return account, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (m *memoryRepo) GetBySubtype(_ context.Context, outletID int64, subtype Subtype) (Account, error) {
	for _, a := range m.accounts {
		if a.OutletID == outletID && a.Subtype == subtype && a.IsActive {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, outletID int64, includeInactive bool) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.OutletID != outletID {
			continue
		}
		if !a.IsActive && !includeInactive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	account, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	account.IsActive = active
	m.accounts[id] = account
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memoryRepo) HasPostings(_ context.Context, id int64) (bool, error) {
	return m.hasPosting[id], nil
}

func (m *memoryRepo) RecomputeBalance(_ context.Context, id int64, _ time.Time) (decimal.Decimal, error) {
	if v, ok := m.recomputed[id]; ok {
		return v, nil
	}
	return m.accounts[id].CurrentBalance, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateNormalizesInput(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit)

	account, err := svc.Create(context.Background(), CreateInput{
		OutletID:       7,
		Code:           "  cash-01 ",
		Name:           "  Petty Cash ",
		Type:           TypeAsset,
		OpeningBalance: decimal.RequireFromString("100.005"),
	})
	require.NoError(t, err)
	require.Equal(t, "CASH-01", account.Code)
	require.Equal(t, "Petty Cash", account.Name)
	require.Equal(t, SubtypeGeneral, account.Subtype)
	require.True(t, account.OpeningBalance.Equal(decimal.RequireFromString("100.01")))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "account.create", audit.logs[0].Action)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	cases := []CreateInput{
		{Code: "1000", Name: "Cash", Type: TypeAsset},                  // no outlet
		{OutletID: 7, Name: "Cash", Type: TypeAsset},                   // no code
		{OutletID: 7, Code: "1000", Type: TypeAsset},                   // no name
		{OutletID: 7, Code: "1000", Name: "Cash", Type: "INTANGIBLE"},  // unknown type
		{OutletID: 7, Code: "   ", Name: "Cash", Type: TypeAsset},      // blank code
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, in); err == nil {
			t.Fatalf("expected validation error for %+v", in)
		}
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	in := CreateInput{OutletID: 7, Code: "1000", Name: "Cash", Type: TypeAsset}
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, in)
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("want ErrDuplicateCode, got %v", err)
	}
}

func TestRemoveDeletesUnreferencedAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "6000", Name: "Rent", Type: TypeExpense})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, account.ID))
	require.Contains(t, repo.deleted, account.ID)

	_, err = svc.Get(ctx, account.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveDeactivatesAccountWithHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "6000", Name: "Rent", Type: TypeExpense})
	require.NoError(t, err)
	repo.hasPosting[account.ID] = true

	require.NoError(t, svc.Remove(ctx, account.ID))
	require.Empty(t, repo.deleted)

	got, err := svc.Get(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.NoError(t, svc.Reactivate(ctx, account.ID))
	got, err = svc.Get(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)
}

func TestRemoveRefusesSystemAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "1000", Name: "Cash", Type: TypeAsset, IsSystem: true})
	require.NoError(t, err)

	err = svc.Remove(ctx, account.ID)
	require.ErrorIs(t, err, ErrSystemAccount)
}

func TestResolveSubtypeSkipsInactive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "1000", Name: "Cash", Type: TypeAsset, Subtype: SubtypeCash})
	require.NoError(t, err)

	got, err := svc.ResolveSubtype(ctx, 7, SubtypeCash)
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	require.NoError(t, repo.SetActive(ctx, account.ID, false))
	_, err = svc.ResolveSubtype(ctx, 7, SubtypeCash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileAgreement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "1000", Name: "Cash", Type: TypeAsset, OpeningBalance: decimal.RequireFromString("500.00")})
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, account.ID, time.Now())
	require.NoError(t, err)
	require.True(t, result.OK)
	require.True(t, result.Divergence.IsZero())
}

func TestReconcileDetectsDivergence(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OutletID: 7, Code: "1000", Name: "Cash", Type: TypeAsset, OpeningBalance: decimal.RequireFromString("500.00")})
	require.NoError(t, err)
	repo.recomputed[account.ID] = decimal.RequireFromString("480.00")

	result, err := svc.Reconcile(ctx, account.ID, time.Now())
	if !errors.Is(err, ErrBalanceDivergence) {
		t.Fatalf("want ErrBalanceDivergence, got %v", err)
	}
	require.False(t, result.OK)
	require.True(t, result.Divergence.Equal(decimal.RequireFromString("20.00")))
	require.True(t, result.Cached.Equal(decimal.RequireFromString("500.00")))
	require.True(t, result.Recomputed.Equal(decimal.RequireFromString("480.00")))
}
