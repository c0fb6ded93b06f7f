package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes voucher posting and reversal over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the voucher handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/post", h.PostDraft)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/cancel", h.CancelDraft)
	r.Post("/{id}/reverse", h.Reverse)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	input := req.toInput(scope)
	var (
		voucher Voucher
		err     error
	)
	if req.Draft {
		voucher, err = h.service.PostDraft(r.Context(), input)
	} else {
		voucher, err = h.service.Post(r.Context(), input)
	}
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVoucherResponse(voucher))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	filter := ListFilter{
		Type:   VoucherType(r.URL.Query().Get("type")),
		Status: VoucherStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 1 {
		filter.Offset = (page - 1) * filter.Limit
	}
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		filter.To = &to
	}
	vouchers, err := h.service.List(r.Context(), scope.OutletID, filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, toVoucherResponse(v))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	voucher, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

func (h *Handler) PostDraft(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	voucher, err := h.service.PostDraftByID(r.Context(), id, scope.ActorID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	voucher, err := h.service.Approve(r.Context(), id, scope.ActorID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toVoucherResponse(voucher))
}

func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	if err := h.service.CancelDraft(r.Context(), id, scope.ActorID); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed JSON body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	skip := make([]LineCategory, 0, len(req.SkipCategories))
	for _, c := range req.SkipCategories {
		skip = append(skip, LineCategory(c))
	}
	reversal, err := h.service.Reverse(r.Context(), ReverseInput{
		VoucherID:      id,
		ActorID:        scope.ActorID,
		Reason:         req.Reason,
		SkipCategories: skip,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toVoucherResponse(reversal))
}

func (h *Handler) pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid voucher id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrVoucherNotFound), errors.Is(err, accounts.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrEmptyVoucher),
		errors.Is(err, ErrTooFewLines), errors.Is(err, ErrNothingToReverse),
		errors.Is(err, accounts.ErrInactive):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrNotPosted),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrDuplicateNumber),
		errors.Is(err, ErrDuplicateReference):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	default:
		h.logger.Error("voucher handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
