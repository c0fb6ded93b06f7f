// Package sales owns the sale document and drives the ledger contract for
// it: a recorded sale becomes one posted voucher, a corrected sale routes
// through the ledger's reverse-and-repost flow.
package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
)

var (
	// ErrNotFound indicates a missing sale.
	ErrNotFound = errors.New("sales: sale not found")
	// ErrNotPosted indicates the sale has no general ledger voucher yet.
	ErrNotPosted = errors.New("sales: sale is not posted to the ledger")
	// ErrQuantityChanged rejects corrections that alter unit counts.
	// Count changes imply inventory movement and must go through the
	// ordinary sale/return path.
	ErrQuantityChanged = errors.New("sales: corrections may not change quantities")
	// ErrNoItems indicates a sale without items.
	ErrNoItems = errors.New("sales: sale requires at least one item")
)

// Item is one sold product or service line. UnitCost freezes the cost
// basis at sale time for the COGS posting.
type Item struct {
	ID          int64
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	UnitCost    decimal.Decimal
	Discount    decimal.Decimal
}

// Sale is a completed counter or invoice sale.
type Sale struct {
	ID            uuid.UUID
	OutletID      int64
	CustomerName  string
	Date          time.Time
	Items         []Item
	TaxAmount     decimal.Decimal
	PaymentMethod adapters.PaymentMethod
	AmountPaid    decimal.Decimal
	Narration     string
	VoucherID     *int64
	IsPostedToGL  bool
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Document maps the sale onto the adapter's view of it.
func (s Sale) Document() adapters.SaleDocument {
	items := make([]adapters.SaleItem, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, adapters.SaleItem{
			Description: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			UnitCost:    item.UnitCost,
			Discount:    item.Discount,
		})
	}
	return adapters.SaleDocument{
		Items:         items,
		TaxAmount:     s.TaxAmount,
		PaymentMethod: s.PaymentMethod,
		AmountPaid:    s.AmountPaid,
	}
}

// ReferenceTypeSale links vouchers back to their sale document.
const ReferenceTypeSale = "SALE"
