package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
)

type mockActivityRepo struct {
	activity      []AccountActivity
	activityCalls int
	ledger        AccountLedger
	ledgerCalls   int
}

func (m *mockActivityRepo) AccountActivity(ctx context.Context, outletID int64, from, to time.Time) ([]AccountActivity, error) {
	m.activityCalls++
	return m.activity, nil
}

func (m *mockActivityRepo) AccountLedger(ctx context.Context, outletID, accountID int64, from, to time.Time) (AccountLedger, error) {
	m.ledgerCalls++
	return m.ledger, nil
}

func newTestService(t *testing.T, repo ActivityRepository) (*Service, *Cache, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	return svc, cache, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestTrialBalanceCaches(t *testing.T) {
	repo := &mockActivityRepo{
		activity: []AccountActivity{
			{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Debit: d("1050.00")},
			{AccountID: 2, Code: "4000", Name: "Sales Revenue", Type: accounts.TypeRevenue, Credit: d("1050.00")},
		},
	}
	svc, _, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	first, err := svc.TrialBalance(ctx, 7, tbFrom, tbTo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.IsBalanced {
		t.Fatal("expected balanced report")
	}
	second, err := svc.TrialBalance(ctx, 7, tbFrom, tbTo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.activityCalls != 1 {
		t.Fatalf("expected one repository walk, got %d", repo.activityCalls)
	}
	if !second.TotalDebit.Equal(first.TotalDebit) {
		t.Fatalf("cached payload differs: %s vs %s", second.TotalDebit, first.TotalDebit)
	}
}

func TestTrialBalanceBumpInvalidates(t *testing.T) {
	repo := &mockActivityRepo{
		activity: []AccountActivity{
			{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, Debit: d("10.00")},
			{AccountID: 2, Code: "4000", Name: "Sales", Type: accounts.TypeRevenue, Credit: d("10.00")},
		},
	}
	svc, cache, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.TrialBalance(ctx, 7, tbFrom, tbTo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if _, err := svc.TrialBalance(ctx, 7, tbFrom, tbTo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.activityCalls != 2 {
		t.Fatalf("expected rebuild after bump, got %d walks", repo.activityCalls)
	}
}

func TestAccountLedgerCaches(t *testing.T) {
	repo := &mockActivityRepo{
		ledger: AccountLedger{
			AccountID: 1,
			Code:      "1000",
			Name:      "Cash",
			Opening:   d("100.00"),
			Closing:   d("100.00"),
		},
	}
	svc, _, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		stmt, err := svc.AccountLedger(ctx, 7, 1, tbFrom, tbTo)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stmt.Code != "1000" {
			t.Fatalf("unexpected account %s", stmt.Code)
		}
	}
	if repo.ledgerCalls != 1 {
		t.Fatalf("expected one repository walk, got %d", repo.ledgerCalls)
	}
}

// Cache satisfies the posting engine's CacheInvalidator.
var _ interface {
	Bump(ctx context.Context) error
} = (*Cache)(nil)
