package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
)

// Repository aggregates posted voucher lines for report builders. Only
// POSTED and APPROVED vouchers count; drafts and cancellations are
// invisible to reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityQuery = `
SELECT a.id, a.code, a.name, a.type,
       a.opening_balance + COALESCE(pre.delta, 0) AS opening,
       COALESCE(cur.debit, 0)  AS debit,
       COALESCE(cur.credit, 0) AS credit
FROM accounts a
LEFT JOIN (
    SELECT l.account_id, SUM(l.debit - l.credit) AS delta
    FROM voucher_lines l
    JOIN vouchers v ON v.id = l.voucher_id
    WHERE v.outlet_id = $1 AND v.status IN ('POSTED','APPROVED') AND v.date < $2
    GROUP BY l.account_id
) pre ON pre.account_id = a.id
LEFT JOIN (
    SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
    FROM voucher_lines l
    JOIN vouchers v ON v.id = l.voucher_id
    WHERE v.outlet_id = $1 AND v.status IN ('POSTED','APPROVED')
      AND v.date >= $2 AND v.date <= $3
    GROUP BY l.account_id
) cur ON cur.account_id = a.id
WHERE a.outlet_id = $1
ORDER BY a.code`

// AccountActivity loads every account of the outlet with its opening
// balance rolled forward to the period start and its movement over the
// period.
func (r *Repository) AccountActivity(ctx context.Context, outletID int64, from, to time.Time) ([]AccountActivity, error) {
	rows, err := r.pool.Query(ctx, activityQuery, outletID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: account activity: %w", err)
	}
	defer rows.Close()

	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		var atype string
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Name, &atype, &a.Opening, &a.Debit, &a.Credit); err != nil {
			return nil, fmt.Errorf("reports: scan activity: %w", err)
		}
		a.Type = accounts.AccountType(atype)
		out = append(out, a)
	}
	return out, rows.Err()
}

const ledgerHeaderQuery = `
SELECT a.id, a.code, a.name,
       a.opening_balance + COALESCE((
           SELECT SUM(l.debit - l.credit)
           FROM voucher_lines l
           JOIN vouchers v ON v.id = l.voucher_id
           WHERE l.account_id = a.id AND v.status IN ('POSTED','APPROVED') AND v.date < $3
       ), 0) AS opening
FROM accounts a
WHERE a.outlet_id = $1 AND a.id = $2`

const ledgerEntriesQuery = `
SELECT v.date, v.id, v.number, v.type,
       COALESCE(NULLIF(l.narration, ''), v.narration) AS narration,
       l.debit, l.credit
FROM voucher_lines l
JOIN vouchers v ON v.id = l.voucher_id
WHERE v.outlet_id = $1 AND l.account_id = $2
  AND v.status IN ('POSTED','APPROVED')
  AND v.date >= $3 AND v.date <= $4
ORDER BY v.date, v.id, l.id`

// AccountLedger loads the statement of one account: the opening balance at
// the period start and every posted line touching the account within it.
func (r *Repository) AccountLedger(ctx context.Context, outletID, accountID int64, from, to time.Time) (AccountLedger, error) {
	var out AccountLedger
	var opening decimal.Decimal
	err := r.pool.QueryRow(ctx, ledgerHeaderQuery, outletID, accountID, from).
		Scan(&out.AccountID, &out.Code, &out.Name, &opening)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountLedger{}, accounts.ErrNotFound
	}
	if err != nil {
		return AccountLedger{}, fmt.Errorf("reports: ledger header: %w", err)
	}

	rows, err := r.pool.Query(ctx, ledgerEntriesQuery, outletID, accountID, from, to)
	if err != nil {
		return AccountLedger{}, fmt.Errorf("reports: ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.Date, &e.VoucherID, &e.Number, &e.Type, &e.Narration, &e.Debit, &e.Credit); err != nil {
			return AccountLedger{}, fmt.Errorf("reports: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return AccountLedger{}, err
	}

	out.From = from
	out.To = to
	out.Opening = opening
	out.Entries, out.Closing = runBalances(opening, entries)
	return out, nil
}
