package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists vouchers, lines, sequences and corrections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one posting
// transaction. Everything a voucher commit needs (number allocation, the
// voucher row, its lines and the balance deltas) happens through a single
// TxRepository so partial application is structurally impossible.
type TxRepository interface {
	GetAccounts(ctx context.Context, outletID int64, ids []int64) (map[int64]accounts.Account, error)
	NextSequence(ctx context.Context, outletID int64, vtype VoucherType, period string) (int64, error)
	InsertVoucher(ctx context.Context, v Voucher) (Voucher, error)
	InsertLines(ctx context.Context, voucherID int64, lines []Line) error
	ApplyDelta(ctx context.Context, accountID int64, debit, credit decimal.Decimal) error
	GetVoucherWithLines(ctx context.Context, id int64) (Voucher, error)
	GetDraft(ctx context.Context, id int64) (Voucher, error)
	HasReversal(ctx context.Context, originalID int64) (bool, error)
	HasLiveReference(ctx context.Context, refType, refID string) (bool, error)
	UpdateVoucherStatus(ctx context.Context, id int64, status VoucherStatus) error
	PromoteDraft(ctx context.Context, id int64, number string, postedBy int64, postedAt time.Time) error
	InsertCorrection(ctx context.Context, id uuid.UUID, originalID int64, reason string, actorID int64) error
	SetCorrectionState(ctx context.Context, id uuid.UUID, state CorrectionState, reversalID, replacementID *int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetAccounts(ctx context.Context, outletID int64, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, outlet_id, code, name, type, subtype, opening_balance, current_balance, is_active, is_system, created_at, updated_at
FROM accounts WHERE outlet_id=$1 AND id = ANY($2)`, outletID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.OutletID, &a.Code, &a.Name, &a.Type, &a.Subtype,
			&a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// NextSequence allocates the next number for (outlet, type, period) with an
// atomic upsert. Concurrent posters never observe the same value; the
// returned sequence is monotonic per scope.
func (r *txRepository) NextSequence(ctx context.Context, outletID int64, vtype VoucherType, period string) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (outlet_id, voucher_type, period, value)
VALUES ($1,$2,$3,1)
ON CONFLICT (outlet_id, voucher_type, period)
DO UPDATE SET value = voucher_sequences.value + 1
RETURNING value`, outletID, vtype, period).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

const voucherColumns = `id, outlet_id, number, type, date, narration, reference_type, reference_id, total_debit, total_credit, status, posted_by, posted_at, created_at, updated_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	var number *string
	err := row.Scan(&v.ID, &v.OutletID, &number, &v.Type, &v.Date, &v.Narration,
		&v.ReferenceType, &v.ReferenceID, &v.TotalDebit, &v.TotalCredit,
		&v.Status, &v.PostedBy, &v.PostedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	if number != nil {
		v.Number = *number
	}
	return v, nil
}

func (r *txRepository) InsertVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO vouchers (outlet_id, number, type, date, narration, reference_type, reference_id, total_debit, total_credit, status, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING `+voucherColumns,
		v.OutletID, nullString(v.Number), v.Type, v.Date, v.Narration,
		v.ReferenceType, v.ReferenceID, v.TotalDebit, v.TotalCredit,
		v.Status, v.PostedBy, v.PostedAt)
	inserted, err := scanVoucher(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_vouchers_outlet_number" {
			return Voucher{}, ErrDuplicateNumber
		}
		return Voucher{}, err
	}
	return inserted, nil
}

func (r *txRepository) InsertLines(ctx context.Context, voucherID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_lines (voucher_id, account_id, account_code, account_name, category, debit, credit, narration)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			voucherID, line.AccountID, line.AccountCode, line.AccountName,
			line.Category, line.Debit, line.Credit, line.Narration); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDelta moves the cached balance with a single atomic increment. There
// is no application-level read-modify-write, so concurrent postings to the
// same account cannot lose updates.
func (r *txRepository) ApplyDelta(ctx context.Context, accountID int64, debit, credit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at = NOW()
WHERE id=$1 AND is_active`, accountID, debit.Sub(credit))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id=$1)`, accountID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return accounts.ErrInactive
		}
		return accounts.ErrNotFound
	}
	return nil
}

func (r *txRepository) GetVoucherWithLines(ctx context.Context, id int64) (Voucher, error) {
	voucher, err := scanVoucher(r.tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id=$1`, id))
	if err != nil {
		return Voucher{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_id, account_id, account_code, account_name, category, debit, credit, narration
FROM voucher_lines WHERE voucher_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.AccountID, &line.AccountCode,
			&line.AccountName, &line.Category, &line.Debit, &line.Credit, &line.Narration); err != nil {
			return Voucher{}, err
		}
		voucher.Lines = append(voucher.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

func (r *txRepository) GetDraft(ctx context.Context, id int64) (Voucher, error) {
	v, err := r.GetVoucherWithLines(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if v.Status != StatusDraft {
		return Voucher{}, ErrInvalidStatus
	}
	return v, nil
}

func (r *txRepository) HasReversal(ctx context.Context, originalID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE reference_type=$1 AND reference_id=$2 AND status <> 'CANCELLED')`,
		ReferenceTypeReversal, fmt.Sprintf("%d", originalID)).Scan(&exists)
	return exists, err
}

// HasLiveReference reports whether a non-cancelled, non-reversed voucher
// already carries the reference. A voucher whose reversal was itself
// cancelled counts as live again.
func (r *txRepository) HasLiveReference(ctx context.Context, refType, refID string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM vouchers v
WHERE v.reference_type=$1 AND v.reference_id=$2 AND v.status <> 'CANCELLED'
  AND NOT EXISTS (
    SELECT 1 FROM vouchers r
    WHERE r.reference_type=$3 AND r.reference_id=v.id::text AND r.status <> 'CANCELLED'))`,
		refType, refID, ReferenceTypeReversal).Scan(&exists)
	return exists, err
}

func (r *txRepository) UpdateVoucherStatus(ctx context.Context, id int64, status VoucherStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

func (r *txRepository) PromoteDraft(ctx context.Context, id int64, number string, postedBy int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status='POSTED', number=$2, posted_by=$3, posted_at=$4, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`, id, number, postedBy, postedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_vouchers_outlet_number" {
			return ErrDuplicateNumber
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) InsertCorrection(ctx context.Context, id uuid.UUID, originalID int64, reason string, actorID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO corrections (id, original_voucher_id, reason, actor_id, state)
VALUES ($1,$2,$3,$4,$5)`, id, originalID, reason, actorID, CorrectionStateCorrecting)
	return err
}

func (r *txRepository) SetCorrectionState(ctx context.Context, id uuid.UUID, state CorrectionState, reversalID, replacementID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE corrections SET state=$2,
reversal_voucher_id = COALESCE($3, reversal_voucher_id),
replacement_voucher_id = COALESCE($4, replacement_voucher_id),
updated_at=NOW() WHERE id=$1`, id, state, reversalID, replacementID)
	return err
}

// GetVoucher loads one voucher with lines outside a transaction.
func (r *Repository) GetVoucher(ctx context.Context, id int64) (Voucher, error) {
	var voucher Voucher
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		voucher, err = tx.GetVoucherWithLines(ctx, id)
		return err
	})
	return voucher, err
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	Type   VoucherType
	Status VoucherStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// ListVouchers returns voucher headers for an outlet, newest first.
func (r *Repository) ListVouchers(ctx context.Context, outletID int64, filter ListFilter) ([]Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE outlet_id=$1`
	args := []any{outletID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type=$%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
