package ledger

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type lineRequest struct {
	AccountID int64   `json:"accountId" validate:"required"`
	Category  string  `json:"category"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
	Narration string  `json:"narration"`
}

type postRequest struct {
	Type          string        `json:"type" validate:"required"`
	Date          time.Time     `json:"date" validate:"required"`
	Narration     string        `json:"narration"`
	ReferenceType string        `json:"referenceType"`
	ReferenceID   string        `json:"referenceId"`
	Draft         bool          `json:"draft"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r postRequest) toInput(scope shared.Scope) PostingInput {
	lines := make([]LineInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, LineInput{
			AccountID: line.AccountID,
			Category:  LineCategory(line.Category),
			Debit:     money.FromFloat(line.Debit),
			Credit:    money.FromFloat(line.Credit),
			Narration: line.Narration,
		})
	}
	return PostingInput{
		OutletID:      scope.OutletID,
		Type:          VoucherType(r.Type),
		Date:          r.Date,
		Narration:     r.Narration,
		ReferenceType: r.ReferenceType,
		ReferenceID:   r.ReferenceID,
		PostedBy:      scope.ActorID,
		Lines:         lines,
	}
}

type reverseRequest struct {
	Reason         string   `json:"reason" validate:"required"`
	SkipCategories []string `json:"skipCategories"`
}

type lineResponse struct {
	AccountID   int64  `json:"accountId"`
	AccountCode string `json:"accountCode"`
	AccountName string `json:"accountName"`
	Category    string `json:"category"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Narration   string `json:"narration,omitempty"`
}

type voucherResponse struct {
	ID            int64          `json:"id"`
	OutletID      int64          `json:"outletId"`
	Number        string         `json:"number,omitempty"`
	Type          string         `json:"type"`
	Date          time.Time      `json:"date"`
	Narration     string         `json:"narration,omitempty"`
	ReferenceType string         `json:"referenceType,omitempty"`
	ReferenceID   string         `json:"referenceId,omitempty"`
	TotalDebit    string         `json:"totalDebit"`
	TotalCredit   string         `json:"totalCredit"`
	Status        string         `json:"status"`
	PostedAt      *time.Time     `json:"postedAt,omitempty"`
	Lines         []lineResponse `json:"lines,omitempty"`
}

func toVoucherResponse(v Voucher) voucherResponse {
	resp := voucherResponse{
		ID:            v.ID,
		OutletID:      v.OutletID,
		Number:        v.Number,
		Type:          string(v.Type),
		Date:          v.Date,
		Narration:     v.Narration,
		ReferenceType: v.ReferenceType,
		ReferenceID:   v.ReferenceID,
		TotalDebit:    v.TotalDebit.StringFixed(2),
		TotalCredit:   v.TotalCredit.StringFixed(2),
		Status:        string(v.Status),
		PostedAt:      v.PostedAt,
	}
	for _, line := range v.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			AccountName: line.AccountName,
			Category:    string(line.Category),
			Debit:       line.Debit.StringFixed(2),
			Credit:      line.Credit.StringFixed(2),
			Narration:   line.Narration,
		})
	}
	return resp
}
