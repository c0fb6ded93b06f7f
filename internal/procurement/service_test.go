package procurement

import (
	"context"
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

type memoryPaymentRepo struct {
	payments map[uuid.UUID]Payment
}

func (r *memoryPaymentRepo) Insert(ctx context.Context, p Payment) (Payment, error) {
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryPaymentRepo) Get(ctx context.Context, id uuid.UUID) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryPaymentRepo) MarkPosted(ctx context.Context, id uuid.UUID, voucherID int64) error {
	p, ok := r.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.VoucherID = &voucherID
	p.IsPostedToGL = true
	r.payments[id] = p
	return nil
}

type stubLedger struct {
	lastPost ledger.PostingInput
}

func (l *stubLedger) Post(ctx context.Context, input ledger.PostingInput) (ledger.Voucher, error) {
	if err := input.Validate(); err != nil {
		return ledger.Voucher{}, err
	}
	l.lastPost = input
	return ledger.Voucher{ID: 1, Status: ledger.StatusPosted, Type: input.Type}, nil
}

type stubResolver struct{}

func (stubResolver) ResolveSubtype(ctx context.Context, outletID int64, subtype accounts.Subtype) (accounts.Account, error) {
	switch subtype {
	case accounts.SubtypePayable:
		return accounts.Account{ID: 4, IsActive: true}, nil
	case accounts.SubtypeCash:
		return accounts.Account{ID: 1, IsActive: true}, nil
	case accounts.SubtypeBank:
		return accounts.Account{ID: 2, IsActive: true}, nil
	}
	return accounts.Account{}, accounts.ErrNotFound
}

func TestRecordPostsPaymentVoucher(t *testing.T) {
	repo := &memoryPaymentRepo{payments: make(map[uuid.UUID]Payment)}
	gl := &stubLedger{}
	svc := NewService(repo, gl, stubResolver{})

	payment, err := svc.Record(context.Background(), RecordInput{
		OutletID:      7,
		SupplierName:  "Apex Parts",
		Amount:        d("2500.00"),
		PaymentMethod: adapters.MethodBank,
		ActorID:       42,
	})
	require.NoError(t, err)
	require.True(t, payment.IsPostedToGL)
	require.NotNil(t, payment.VoucherID)

	require.Equal(t, ledger.TypePayment, gl.lastPost.Type)
	require.Equal(t, ReferenceTypePurchasePayment, gl.lastPost.ReferenceType)
	require.Contains(t, gl.lastPost.Narration, "Apex Parts")
	require.Len(t, gl.lastPost.Lines, 2)
	require.Equal(t, int64(4), gl.lastPost.Lines[0].AccountID, "debit accounts payable")
	require.True(t, gl.lastPost.Lines[0].Debit.Equal(d("2500.00")))
	require.Equal(t, int64(2), gl.lastPost.Lines[1].AccountID, "credit bank")
	require.True(t, gl.lastPost.Lines[1].Credit.Equal(d("2500.00")))
}

func TestRecordRejectsCreditMethod(t *testing.T) {
	repo := &memoryPaymentRepo{payments: make(map[uuid.UUID]Payment)}
	svc := NewService(repo, &stubLedger{}, stubResolver{})

	_, err := svc.Record(context.Background(), RecordInput{
		OutletID:      7,
		SupplierName:  "Apex Parts",
		Amount:        d("100.00"),
		PaymentMethod: adapters.MethodCredit,
	})
	require.ErrorIs(t, err, adapters.ErrUnknownMethod)
	require.Empty(t, repo.payments, "rejected payments are not stored")
}
