package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
)

type stubSource struct {
	ids []int64
}

func (s stubSource) ActiveAccountIDs(ctx context.Context, outletID int64) ([]int64, error) {
	return s.ids, nil
}

type stubReconciler struct {
	mu       sync.Mutex
	checked  []int64
	diverged map[int64]bool
	failOn   int64
}

func (r *stubReconciler) Reconcile(ctx context.Context, accountID int64, asOf time.Time) (accounts.ReconcileResult, error) {
	r.mu.Lock()
	r.checked = append(r.checked, accountID)
	r.mu.Unlock()
	if r.failOn != 0 && accountID == r.failOn {
		return accounts.ReconcileResult{}, fmt.Errorf("reconcile %d: connection lost", accountID)
	}
	if r.diverged[accountID] {
		return accounts.ReconcileResult{
			AccountID:  accountID,
			Cached:     decimal.RequireFromString("100.00"),
			Recomputed: decimal.RequireFromString("90.00"),
			Divergence: decimal.RequireFromString("10.00"),
		}, fmt.Errorf("%w: account %d", accounts.ErrBalanceDivergence, accountID)
	}
	return accounts.ReconcileResult{AccountID: accountID, OK: true}, nil
}

func TestIntegritySweepChecksEveryAccount(t *testing.T) {
	rec := &stubReconciler{diverged: map[int64]bool{3: true}}
	checker := NewIntegrityChecker(stubSource{ids: []int64{1, 2, 3, 4, 5}}, rec, slog.Default())

	err := checker.Run(context.Background(), 0)
	require.NoError(t, err, "divergence is reported, not a task failure")
	require.Len(t, rec.checked, 5)
}

func TestIntegritySweepSurfacesInfraErrors(t *testing.T) {
	rec := &stubReconciler{failOn: 2}
	checker := NewIntegrityChecker(stubSource{ids: []int64{1, 2, 3}}, rec, slog.Default())

	err := checker.Run(context.Background(), 0)
	require.Error(t, err, "a failed recomputation must fail the sweep")
}
