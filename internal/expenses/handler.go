package expenses

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/adapters"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes expenses over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the expenses handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Record)
	r.Get("/{id}", h.Get)
}

type recordRequest struct {
	AccountID     int64   `json:"accountId" validate:"required"`
	Description   string  `json:"description" validate:"required"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	PaymentMethod string  `json:"paymentMethod" validate:"required,oneof=CASH BANK"`
}

type expenseResponse struct {
	ID            string `json:"id"`
	OutletID      int64  `json:"outletId"`
	AccountID     int64  `json:"accountId"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
	VoucherID     *int64 `json:"voucherId,omitempty"`
	IsPostedToGL  bool   `json:"isPostedToGl"`
}

func toResponse(e Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID.String(),
		OutletID:      e.OutletID,
		AccountID:     e.AccountID,
		Description:   e.Description,
		Date:          e.Date.Format("2006-01-02"),
		Amount:        e.Amount.StringFixed(2),
		PaymentMethod: string(e.PaymentMethod),
		VoucherID:     e.VoucherID,
		IsPostedToGL:  e.IsPostedToGL,
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
	expense, err := h.service.Record(r.Context(), RecordInput{
		OutletID:      scope.OutletID,
		AccountID:     req.AccountID,
		Description:   req.Description,
		Date:          date,
		Amount:        money.FromFloat(req.Amount),
		PaymentMethod: adapters.PaymentMethod(req.PaymentMethod),
		ActorID:       scope.ActorID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(expense))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid expense id", httpx.ErrValidation))
		return
	}
	expense, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(expense))
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, accounts.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, adapters.ErrUnknownMethod), errors.Is(err, adapters.ErrNonPositiveAmount):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	default:
		h.logger.Error("expenses handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
