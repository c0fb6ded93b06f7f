package sales

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memorySaleRepo struct {
	mu    sync.Mutex
	sales map[uuid.UUID]Sale
}

func newMemorySaleRepo() *memorySaleRepo {
	return &memorySaleRepo{sales: make(map[uuid.UUID]Sale)}
}

func (r *memorySaleRepo) Insert(ctx context.Context, sale Sale) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range sale.Items {
		sale.Items[i].ID = int64(i + 1)
	}
	r.sales[sale.ID] = sale
	return sale, nil
}

func (r *memorySaleRepo) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrNotFound
	}
	return sale, nil
}

func (r *memorySaleRepo) List(ctx context.Context, outletID int64, limit, offset int) ([]Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, sale := range r.sales {
		if sale.OutletID == outletID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (r *memorySaleRepo) MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return ErrNotFound
	}
	sale.VoucherID = &voucherID
	sale.IsPostedToGL = true
	r.sales[id] = sale
	return nil
}

func (r *memorySaleRepo) UpdateCorrected(ctx context.Context, sale Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sales[sale.ID]; !ok {
		return ErrNotFound
	}
	r.sales[sale.ID] = sale
	return nil
}

type stubLedger struct {
	nextID      int64
	lastPost    ledger.PostingInput
	lastCorrect ledger.CorrectionInput
	postErr     error
}

func (l *stubLedger) Post(ctx context.Context, input ledger.PostingInput) (ledger.Voucher, error) {
	if l.postErr != nil {
		return ledger.Voucher{}, l.postErr
	}
	if err := input.Validate(); err != nil {
		return ledger.Voucher{}, err
	}
	l.lastPost = input
	l.nextID++
	debit, credit := input.Totals()
	return ledger.Voucher{
		ID: l.nextID, OutletID: input.OutletID, Type: input.Type,
		Status: ledger.StatusPosted, TotalDebit: debit, TotalCredit: credit,
	}, nil
}

func (l *stubLedger) Correct(ctx context.Context, input ledger.CorrectionInput) (ledger.CorrectionResult, error) {
	if err := input.Replacement.Validate(); err != nil {
		return ledger.CorrectionResult{}, err
	}
	l.lastCorrect = input
	l.nextID++
	reversal := ledger.Voucher{ID: l.nextID, Type: ledger.TypeReversal, Status: ledger.StatusPosted}
	l.nextID++
	replacement := ledger.Voucher{ID: l.nextID, Type: input.Replacement.Type, Status: ledger.StatusPosted}
	return ledger.CorrectionResult{CorrectionID: uuid.New(), Reversal: reversal, Replacement: replacement}, nil
}

type stubResolver struct{}

func (stubResolver) ResolveSubtype(ctx context.Context, outletID int64, subtype accounts.Subtype) (accounts.Account, error) {
	ids := map[accounts.Subtype]int64{
		accounts.SubtypeCash:       1,
		accounts.SubtypeBank:       2,
		accounts.SubtypeReceivable: 3,
		accounts.SubtypePayable:    4,
		accounts.SubtypeSales:      5,
		accounts.SubtypeTax:        6,
		accounts.SubtypeCOGS:       7,
		accounts.SubtypeInventory:  8,
	}
	id, ok := ids[subtype]
	if !ok {
		return accounts.Account{}, accounts.ErrNotFound
	}
	return accounts.Account{ID: id, OutletID: outletID, IsActive: true, IsSystem: true}, nil
}

func recordInput() RecordInput {
	return RecordInput{
		OutletID:     7,
		CustomerName: "Walk-in",
		Items: []Item{
			{ProductName: "oil filter", Quantity: d("2"), UnitPrice: d("450.00"), UnitCost: d("300.00")},
			{ProductName: "labour", Quantity: d("1"), UnitPrice: d("150.00"), Discount: d("50.00")},
		},
		TaxAmount:     d("50.00"),
		PaymentMethod: adapters.MethodCash,
		AmountPaid:    d("1050.00"),
		ActorID:       42,
	}
}

func TestRecordPostsToLedger(t *testing.T) {
	repo := newMemorySaleRepo()
	gl := &stubLedger{}
	svc := NewService(repo, gl, stubResolver{})

	sale, err := svc.Record(context.Background(), recordInput())
	require.NoError(t, err)
	require.True(t, sale.IsPostedToGL)
	require.NotNil(t, sale.VoucherID)

	require.Equal(t, ledger.TypeSale, gl.lastPost.Type)
	require.Equal(t, ReferenceTypeSale, gl.lastPost.ReferenceType)
	require.Equal(t, sale.ID.String(), gl.lastPost.ReferenceID)

	debit, credit := gl.lastPost.Totals()
	require.True(t, debit.Equal(credit), "adapter lines must balance: %s vs %s", debit, credit)
	require.True(t, debit.Equal(d("1650.00")), "1050 payment + 600 COGS, got %s", debit)

	stored, err := repo.Get(context.Background(), sale.ID)
	require.NoError(t, err)
	require.True(t, stored.IsPostedToGL)
}

func TestRecordRejectsEmptySale(t *testing.T) {
	svc := NewService(newMemorySaleRepo(), &stubLedger{}, stubResolver{})
	_, err := svc.Record(context.Background(), RecordInput{OutletID: 7})
	require.ErrorIs(t, err, ErrNoItems)
}

func TestRecordLeavesSaleRetryableOnPostFailure(t *testing.T) {
	repo := newMemorySaleRepo()
	gl := &stubLedger{postErr: ledger.ErrDuplicateNumber}
	svc := NewService(repo, gl, stubResolver{})

	_, err := svc.Record(context.Background(), recordInput())
	require.ErrorIs(t, err, ledger.ErrDuplicateNumber)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.sales, 1)
	for _, sale := range repo.sales {
		require.False(t, sale.IsPostedToGL, "failed posting must leave the document unposted")
	}
}

func TestCorrectRejectsQuantityChange(t *testing.T) {
	repo := newMemorySaleRepo()
	gl := &stubLedger{}
	svc := NewService(repo, gl, stubResolver{})
	ctx := context.Background()

	sale, err := svc.Record(ctx, recordInput())
	require.NoError(t, err)

	corrected := make([]Item, len(sale.Items))
	copy(corrected, sale.Items)
	corrected[0].Quantity = d("3")
	_, err = svc.Correct(ctx, CorrectInput{
		SaleID:        sale.ID,
		Items:         corrected,
		PaymentMethod: adapters.MethodCash,
		AmountPaid:    d("1050.00"),
		Reason:        "added one filter",
		ActorID:       42,
	})
	require.ErrorIs(t, err, ErrQuantityChanged)
}

func TestCorrectPaymentMethodOnlySkipsCostLines(t *testing.T) {
	repo := newMemorySaleRepo()
	gl := &stubLedger{}
	svc := NewService(repo, gl, stubResolver{})
	ctx := context.Background()

	sale, err := svc.Record(ctx, recordInput())
	require.NoError(t, err)

	corrected := make([]Item, len(sale.Items))
	copy(corrected, sale.Items)
	updated, err := svc.Correct(ctx, CorrectInput{
		SaleID:            sale.ID,
		Items:             corrected,
		TaxAmount:         sale.TaxAmount,
		PaymentMethod:     adapters.MethodBank,
		AmountPaid:        sale.AmountPaid,
		Reason:            "customer paid by card",
		PaymentMethodOnly: true,
		ActorID:           42,
	})
	require.NoError(t, err)
	require.Equal(t, adapters.MethodBank, updated.PaymentMethod)

	require.Equal(t, []ledger.LineCategory{ledger.CategoryCOGS, ledger.CategoryInventory}, gl.lastCorrect.SkipCategories)
	for _, line := range gl.lastCorrect.Replacement.Lines {
		require.NotEqual(t, ledger.CategoryCOGS, line.Category, "replacement must not repost preserved COGS")
		require.NotEqual(t, ledger.CategoryInventory, line.Category)
	}
	debit, credit := gl.lastCorrect.Replacement.Totals()
	require.True(t, debit.Equal(credit), "trimmed replacement still balances")
}

func TestCorrectPriceChangeRepostsEverything(t *testing.T) {
	repo := newMemorySaleRepo()
	gl := &stubLedger{}
	svc := NewService(repo, gl, stubResolver{})
	ctx := context.Background()

	sale, err := svc.Record(ctx, recordInput())
	require.NoError(t, err)

	corrected := make([]Item, len(sale.Items))
	copy(corrected, sale.Items)
	corrected[0].UnitPrice = d("400.00")
	_, err = svc.Correct(ctx, CorrectInput{
		SaleID:        sale.ID,
		Items:         corrected,
		TaxAmount:     d("47.50"),
		PaymentMethod: adapters.MethodCash,
		AmountPaid:    d("947.50"),
		Reason:        "price adjusted",
		ActorID:       42,
	})
	require.NoError(t, err)

	require.Empty(t, gl.lastCorrect.SkipCategories, "price changes reverse the full voucher")
	var hasCOGS bool
	for _, line := range gl.lastCorrect.Replacement.Lines {
		if line.Category == ledger.CategoryCOGS {
			hasCOGS = true
		}
	}
	require.True(t, hasCOGS, "full correction reposts the cost pair")
}

func TestCorrectUnpostedSale(t *testing.T) {
	repo := newMemorySaleRepo()
	svc := NewService(repo, &stubLedger{}, stubResolver{})
	ctx := context.Background()

	sale := Sale{ID: uuid.New(), OutletID: 7, Items: []Item{{ID: 1, ProductName: "x", Quantity: d("1"), UnitPrice: d("10.00")}}}
	_, err := repo.Insert(ctx, sale)
	require.NoError(t, err)

	_, err = svc.Correct(ctx, CorrectInput{
		SaleID:        sale.ID,
		Items:         sale.Items,
		PaymentMethod: adapters.MethodCash,
		AmountPaid:    d("10.00"),
		Reason:        "noop",
	})
	require.ErrorIs(t, err, ErrNotPosted)
}
