package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
)

// integrityParallelism bounds concurrent balance recomputations so the
// sweep does not monopolise the pool.
const integrityParallelism = 8

// Reconciler verifies one account's cached balance against a full
// recomputation.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID int64, asOf time.Time) (accounts.ReconcileResult, error)
}

// AccountSource lists the accounts an integrity sweep covers.
type AccountSource interface {
	ActiveAccountIDs(ctx context.Context, outletID int64) ([]int64, error)
}

// PGAccountSource reads sweep targets straight from the accounts table.
type PGAccountSource struct {
	Pool *pgxpool.Pool
}

// ActiveAccountIDs returns active account ids, all outlets when outletID
// is zero.
func (s PGAccountSource) ActiveAccountIDs(ctx context.Context, outletID int64) ([]int64, error) {
	query := `SELECT id FROM accounts WHERE is_active`
	args := []any{}
	if outletID != 0 {
		query += ` AND outlet_id = $1`
		args = append(args, outletID)
	}
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IntegrityChecker sweeps accounts and reports every cached balance that
// diverges from its recomputed value. Divergence is corruption: it is
// logged loudly, never silently healed.
type IntegrityChecker struct {
	source     AccountSource
	reconciler Reconciler
	logger     *slog.Logger
}

// NewIntegrityChecker constructs the checker.
func NewIntegrityChecker(source AccountSource, reconciler Reconciler, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{source: source, reconciler: reconciler, logger: logger}
}

// HandleTask processes TaskLedgerIntegrity tasks.
func (c *IntegrityChecker) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return c.Run(ctx, payload.OutletID)
}

// Run sweeps every active account, bounded-parallel. A zero outletID
// sweeps all outlets.
func (c *IntegrityChecker) Run(ctx context.Context, outletID int64) error {
	start := time.Now()
	ids, err := c.source.ActiveAccountIDs(ctx, outletID)
	if err != nil {
		return err
	}

	var divergences atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(integrityParallelism)
	asOf := time.Now().UTC()
	for _, id := range ids {
		id := id
		g.Go(func() error {
			result, err := c.reconciler.Reconcile(ctx, id, asOf)
			if errors.Is(err, accounts.ErrBalanceDivergence) {
				divergences.Add(1)
				c.logger.Error("ledger integrity: balance divergence",
					slog.Int64("account_id", result.AccountID),
					slog.String("cached", result.Cached.StringFixed(2)),
					slog.String("recomputed", result.Recomputed.StringFixed(2)),
					slog.String("divergence", result.Divergence.StringFixed(2)),
				)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.logger.Info("ledger integrity sweep finished",
		slog.Int("accounts", len(ids)),
		slog.Int64("divergences", divergences.Load()),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
