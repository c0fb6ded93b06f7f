package procurement

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes purchase payments over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.Record)
	r.Get("/payments/{id}", h.Get)
}

type recordRequest struct {
	SupplierName  string  `json:"supplierName" validate:"required"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	PaymentMethod string  `json:"paymentMethod" validate:"required,oneof=CASH BANK"`
	Narration     string  `json:"narration"`
}

type paymentResponse struct {
	ID            string `json:"id"`
	OutletID      int64  `json:"outletId"`
	SupplierName  string `json:"supplierName"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
	Narration     string `json:"narration"`
	VoucherID     *int64 `json:"voucherId,omitempty"`
	IsPostedToGL  bool   `json:"isPostedToGl"`
}

func toResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID.String(),
		OutletID:      p.OutletID,
		SupplierName:  p.SupplierName,
		Date:          p.Date.Format("2006-01-02"),
		Amount:        p.Amount.StringFixed(2),
		PaymentMethod: string(p.PaymentMethod),
		Narration:     p.Narration,
		VoucherID:     p.VoucherID,
		IsPostedToGL:  p.IsPostedToGL,
	}
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
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid date", httpx.ErrValidation))
			return
		}
		date = parsed
	}
	scope := shared.ScopeFromContext(r.Context())
	payment, err := h.service.Record(r.Context(), RecordInput{
		OutletID:      scope.OutletID,
		SupplierName:  req.SupplierName,
		Date:          date,
		Amount:        money.FromFloat(req.Amount),
		PaymentMethod: adapters.PaymentMethod(req.PaymentMethod),
		Narration:     req.Narration,
		ActorID:       scope.ActorID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(payment))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payment id", httpx.ErrValidation))
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(payment))
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, adapters.ErrUnknownMethod), errors.Is(err, adapters.ErrNonPositiveAmount):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error("procurement handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
