package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, outlet_id, code, name, type, subtype, opening_balance, current_balance, is_active, is_system, created_at, updated_at`

// Repository persists chart of accounts rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OutletID, &a.Code, &a.Name, &a.Type, &a.Subtype,
		&a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// Insert creates an account. The current balance starts at the opening
// balance; only the posting engine moves it afterwards.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (outlet_id, code, name, type, subtype, opening_balance, current_balance, is_active, is_system)
VALUES ($1,$2,$3,$4,$5,$6,$6,TRUE,$7) RETURNING `+accountColumns,
		in.OutletID, in.Code, in.Name, in.Type, in.Subtype, in.OpeningBalance, in.IsSystem)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

// GetByID fetches one account.
func (r *Repository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

// GetByCode fetches one account by outlet scoped code.
func (r *Repository) GetByCode(ctx context.Context, outletID int64, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE outlet_id=$1 AND code=$2`, outletID, code))
}

// GetBySubtype returns the first active account with the given subtype.
// Document adapters use this to resolve their posting targets.
func (r *Repository) GetBySubtype(ctx context.Context, outletID int64, subtype Subtype) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE outlet_id=$1 AND subtype=$2 AND is_active ORDER BY is_system DESC, code LIMIT 1`, outletID, subtype))
}

// List returns accounts for an outlet ordered by code.
func (r *Repository) List(ctx context.Context, outletID int64, includeInactive bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE outlet_id=$1`
	if !includeInactive {
		query += ` AND is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account row. Callers must have checked for postings.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasPostings reports whether any voucher line references the account.
func (r *Repository) HasPostings(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM voucher_lines WHERE account_id=$1)`, id).Scan(&exists)
	return exists, err
}

// RecomputeBalance derives the balance from the posted voucher stream as of
// the given instant. It deliberately bypasses the cached current_balance.
func (r *Repository) RecomputeBalance(ctx context.Context, id int64, asOf time.Time) (decimal.Decimal, error) {
	var opening decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT opening_balance FROM accounts WHERE id=$1`, id).Scan(&opening)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	var movement decimal.Decimal
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit - l.credit), 0)
FROM voucher_lines l
JOIN vouchers v ON v.id = l.voucher_id
WHERE l.account_id=$1 AND v.status IN ('POSTED','APPROVED') AND v.date <= $2`, id, asOf).Scan(&movement)
	if err != nil {
		return decimal.Zero, err
	}
	return opening.Add(movement), nil
}
