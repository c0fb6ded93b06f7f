package ledger

import (
	"errors"
	"testing"
	"time"
)

func validInput() PostingInput {
	return PostingInput{
		OutletID: 1,
		Type:     TypeJournal,
		Date:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: 1, Debit: d("250.00")},
			{AccountID: 2, Credit: d("250.00")},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*PostingInput)
		wantOK  bool
		wantErr error
	}{
		{"valid", func(in *PostingInput) {}, true, nil},
		{"no lines", func(in *PostingInput) { in.Lines = nil }, false, ErrEmptyVoucher},
		{"missing outlet", func(in *PostingInput) { in.OutletID = 0 }, false, nil},
		{"one cent off", func(in *PostingInput) {
			in.Lines[1].Credit = d("249.99")
		}, false, ErrUnbalanced},
		{"sub-cent drift accepted", func(in *PostingInput) {
			in.Lines[1].Credit = d("249.995")
		}, true, nil},
		{"single amount line", func(in *PostingInput) {
			in.Lines = []LineInput{{AccountID: 1, Debit: d("0.00")}, {AccountID: 2, Credit: d("0.00")}}
		}, false, ErrTooFewLines},
		{"negative amount", func(in *PostingInput) {
			in.Lines[0].Debit = d("-250.00")
		}, false, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			err := in.Validate()
			if tc.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPostingInputValidateBothSides(t *testing.T) {
	in := validInput()
	in.Lines[0].Credit = d("10.00")
	if err := in.Validate(); err == nil {
		t.Fatal("a line with both debit and credit must be rejected")
	}
}

func TestTotals(t *testing.T) {
	in := PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: d("10.50")},
			{AccountID: 2, Debit: d("0.50")},
			{AccountID: 3, Credit: d("11.00")},
			{AccountID: 4}, // memo
		},
	}
	debit, credit := in.Totals()
	if !debit.Equal(d("11.00")) || !credit.Equal(d("11.00")) {
		t.Fatalf("totals = %s / %s", debit, credit)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		vtype  VoucherType
		period string
		seq    int64
		want   string
	}{
		{TypeSale, "202603", 1, "SAL-202603-0001"},
		{TypePurchase, "202612", 42, "PUR-202612-0042"},
		{TypeReversal, "202601", 9999, "REV-202601-9999"},
		{TypeJournal, "202601", 10000, "JNL-202601-10000"},
	}
	for _, tc := range cases {
		if got := FormatNumber(tc.vtype, tc.period, tc.seq); got != tc.want {
			t.Errorf("FormatNumber(%s, %s, %d) = %s, want %s", tc.vtype, tc.period, tc.seq, got, tc.want)
		}
	}
}

func TestNumberPeriodFollowsVoucherDate(t *testing.T) {
	// backdated vouchers number into their own month, not the posting month
	d := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
	if got := NumberPeriod(d); got != "202512" {
		t.Fatalf("period = %s", got)
	}
}

func TestLineIsMemo(t *testing.T) {
	memo := Line{Narration: "note only"}
	if !memo.IsMemo() {
		t.Fatal("zero-amount line should be a memo")
	}
	if (Line{Debit: d("0.01")}).IsMemo() {
		t.Fatal("line with an amount is not a memo")
	}
}
