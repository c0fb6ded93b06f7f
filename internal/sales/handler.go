package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes sale documents over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Record)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/correct", h.Correct)
}

type itemRequest struct {
	ID          int64   `json:"id"`
	ProductName string  `json:"productName" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	UnitCost    float64 `json:"unitCost" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0"`
}

func (r itemRequest) toItem() Item {
	return Item{
		ID:          r.ID,
		ProductName: r.ProductName,
		Quantity:    money.FromFloat(r.Quantity),
		UnitPrice:   money.FromFloat(r.UnitPrice),
		UnitCost:    money.FromFloat(r.UnitCost),
		Discount:    money.FromFloat(r.Discount),
	}
}

type recordRequest struct {
	CustomerName  string        `json:"customerName"`
	Date          string        `json:"date"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
	TaxAmount     float64       `json:"taxAmount" validate:"gte=0"`
	PaymentMethod string        `json:"paymentMethod" validate:"required,oneof=CASH BANK CREDIT"`
	AmountPaid    float64       `json:"amountPaid" validate:"gte=0"`
	Narration     string        `json:"narration"`
}

type correctRequest struct {
	Items             []itemRequest `json:"items" validate:"required,min=1,dive"`
	TaxAmount         float64       `json:"taxAmount" validate:"gte=0"`
	PaymentMethod     string        `json:"paymentMethod" validate:"required,oneof=CASH BANK CREDIT"`
	AmountPaid        float64       `json:"amountPaid" validate:"gte=0"`
	Narration         string        `json:"narration"`
	Reason            string        `json:"reason" validate:"required"`
	PaymentMethodOnly bool          `json:"paymentMethodOnly"`
}

type saleResponse struct {
	ID            string `json:"id"`
	OutletID      int64  `json:"outletId"`
	CustomerName  string `json:"customerName"`
	Date          string `json:"date"`
	TaxAmount     string `json:"taxAmount"`
	PaymentMethod string `json:"paymentMethod"`
	AmountPaid    string `json:"amountPaid"`
	Narration     string `json:"narration"`
	VoucherID     *int64 `json:"voucherId,omitempty"`
	IsPostedToGL  bool   `json:"isPostedToGl"`
	Items         []struct {
		ID          int64  `json:"id"`
		ProductName string `json:"productName"`
		Quantity    string `json:"quantity"`
		UnitPrice   string `json:"unitPrice"`
		UnitCost    string `json:"unitCost"`
		Discount    string `json:"discount"`
	} `json:"items,omitempty"`
}

func toResponse(s Sale) saleResponse {
	resp := saleResponse{
		ID:            s.ID.String(),
		OutletID:      s.OutletID,
		CustomerName:  s.CustomerName,
		Date:          s.Date.Format("2006-01-02"),
		TaxAmount:     s.TaxAmount.StringFixed(2),
		PaymentMethod: string(s.PaymentMethod),
		AmountPaid:    s.AmountPaid.StringFixed(2),
		Narration:     s.Narration,
		VoucherID:     s.VoucherID,
		IsPostedToGL:  s.IsPostedToGL,
	}
	for _, item := range s.Items {
		resp.Items = append(resp.Items, struct {
			ID          int64  `json:"id"`
			ProductName string `json:"productName"`
			Quantity    string `json:"quantity"`
			UnitPrice   string `json:"unitPrice"`
			UnitCost    string `json:"unitCost"`
			Discount    string `json:"discount"`
		}{
			ID:          item.ID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(2),
			UnitCost:    item.UnitCost.StringFixed(2),
			Discount:    item.Discount.StringFixed(2),
		})
	}
	return resp
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	items := make([]Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.toItem())
	}
	sale, err := h.service.Record(r.Context(), RecordInput{
		OutletID:      scope.OutletID,
		CustomerName:  req.CustomerName,
		Date:          date,
		Items:         items,
		TaxAmount:     money.FromFloat(req.TaxAmount),
		PaymentMethod: adapters.PaymentMethod(req.PaymentMethod),
		AmountPaid:    money.FromFloat(req.AmountPaid),
		Narration:     req.Narration,
		ActorID:       scope.ActorID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(sale))
}

func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req correctRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	items := make([]Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.toItem())
	}
	sale, err := h.service.Correct(r.Context(), CorrectInput{
		SaleID:            id,
		Items:             items,
		TaxAmount:         money.FromFloat(req.TaxAmount),
		PaymentMethod:     adapters.PaymentMethod(req.PaymentMethod),
		AmountPaid:        money.FromFloat(req.AmountPaid),
		Narration:         req.Narration,
		Reason:            req.Reason,
		PaymentMethodOnly: req.PaymentMethodOnly,
		ActorID:           scope.ActorID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(sale))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(sale))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	limit, offset := 50, 0
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 1 {
		offset = (page - 1) * limit
	}
	list, err := h.service.List(r.Context(), scope.OutletID, limit, offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]saleResponse, 0, len(list))
	for _, sale := range list {
		out = append(out, toResponse(sale))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": out})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ErrQuantityChanged), errors.Is(err, ErrNoItems),
		errors.Is(err, ledger.ErrUnbalanced), errors.Is(err, adapters.ErrOverpaid),
		errors.Is(err, adapters.ErrUnknownMethod), errors.Is(err, adapters.ErrNonPositiveAmount):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	case errors.Is(err, ErrNotPosted), errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrDuplicateReference):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	default:
		h.logger.Error("sales handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid sale id", httpx.ErrValidation)
	}
	return id, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date", httpx.ErrValidation)
	}
	return parsed, nil
}
