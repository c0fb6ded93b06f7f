package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
)

// Repository persists sale documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires the sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, outlet_id, customer_name, date, tax_amount, payment_method,
	amount_paid, narration, voucher_id, is_posted_to_gl, created_by, created_at, updated_at`

// Insert stores the sale header and its items in one transaction.
func (r *Repository) Insert(ctx context.Context, sale Sale) (Sale, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	_, err = tx.Exec(ctx, `
		INSERT INTO sales (id, outlet_id, customer_name, date, tax_amount, payment_method,
			amount_paid, narration, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sale.ID, sale.OutletID, sale.CustomerName, sale.Date, sale.TaxAmount,
		string(sale.PaymentMethod), sale.AmountPaid, sale.Narration,
		sale.CreatedBy, sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: insert sale: %w", err)
	}
	for i := range sale.Items {
		err = tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, product_name, quantity, unit_price, unit_cost, discount)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			sale.ID, sale.Items[i].ProductName, sale.Items[i].Quantity,
			sale.Items[i].UnitPrice, sale.Items[i].UnitCost, sale.Items[i].Discount,
		).Scan(&sale.Items[i].ID)
		if err != nil {
			return Sale{}, fmt.Errorf("sales: insert item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Sale{}, fmt.Errorf("sales: commit: %w", err)
	}
	return sale, nil
}

// Get loads one sale with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	var sale Sale
	var method string
	err := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id).Scan(
		&sale.ID, &sale.OutletID, &sale.CustomerName, &sale.Date, &sale.TaxAmount,
		&method, &sale.AmountPaid, &sale.Narration, &sale.VoucherID,
		&sale.IsPostedToGL, &sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound
	}
	if err != nil {
		return Sale{}, fmt.Errorf("sales: get: %w", err)
	}
	sale.PaymentMethod = paymentMethod(method)

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_name, quantity, unit_price, unit_cost, discount
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.UnitCost, &item.Discount); err != nil {
			return Sale{}, fmt.Errorf("sales: scan item: %w", err)
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

// List returns sale headers for an outlet, newest first.
func (r *Repository) List(ctx context.Context, outletID int64, limit, offset int) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+saleColumns+` FROM sales
		WHERE outlet_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, outletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		var sale Sale
		var method string
		if err := rows.Scan(
			&sale.ID, &sale.OutletID, &sale.CustomerName, &sale.Date, &sale.TaxAmount,
			&method, &sale.AmountPaid, &sale.Narration, &sale.VoucherID,
			&sale.IsPostedToGL, &sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sales: scan: %w", err)
		}
		sale.PaymentMethod = paymentMethod(method)
		out = append(out, sale)
	}
	return out, rows.Err()
}

// MarkPosted records the voucher a sale posted to.
func (r *Repository) MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales SET voucher_id = $2, is_posted_to_gl = TRUE, updated_at = NOW()
		WHERE id = $1`, id, voucherID)
	if err != nil {
		return fmt.Errorf("sales: mark posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCorrected rewrites the correctable fields of a sale and its item
// prices after a ledger correction. Quantities are never touched here.
func (r *Repository) UpdateCorrected(ctx context.Context, sale Sale) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sales: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE sales SET tax_amount = $2, payment_method = $3, amount_paid = $4,
			narration = $5, voucher_id = $6, updated_at = NOW()
		WHERE id = $1`,
		sale.ID, sale.TaxAmount, string(sale.PaymentMethod), sale.AmountPaid,
		sale.Narration, sale.VoucherID)
	if err != nil {
		return fmt.Errorf("sales: update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for _, item := range sale.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE sale_items SET unit_price = $2, discount = $3
			WHERE id = $1 AND sale_id = $4`,
			item.ID, item.UnitPrice, item.Discount, sale.ID); err != nil {
			return fmt.Errorf("sales: update item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func paymentMethod(raw string) adapters.PaymentMethod {
	return adapters.PaymentMethod(raw)
}
