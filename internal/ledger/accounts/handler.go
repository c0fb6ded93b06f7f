package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the account registry over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the registry handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Remove)
	r.Post("/{id}/reactivate", h.Reactivate)
	r.Get("/{id}/reconcile", h.Reconcile)
}

type createRequest struct {
	Code           string  `json:"code" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Type           string  `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype        string  `json:"subtype"`
	OpeningBalance float64 `json:"openingBalance"`
}

type accountResponse struct {
	ID             int64  `json:"id"`
	OutletID       int64  `json:"outletId"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Subtype        string `json:"subtype"`
	OpeningBalance string `json:"openingBalance"`
	CurrentBalance string `json:"currentBalance"`
	NaturalBalance string `json:"naturalBalance"`
	IsActive       bool   `json:"isActive"`
	IsSystem       bool   `json:"isSystem"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		OutletID:       a.OutletID,
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		Subtype:        string(a.Subtype),
		OpeningBalance: a.OpeningBalance.StringFixed(2),
		CurrentBalance: a.CurrentBalance.StringFixed(2),
		NaturalBalance: a.NaturalBalance().StringFixed(2),
		IsActive:       a.IsActive,
		IsSystem:       a.IsSystem,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return
	}
	scope := shared.ScopeFromContext(r.Context())
	account, err := h.service.Create(r.Context(), CreateInput{
		OutletID:       scope.OutletID,
		Code:           req.Code,
		Name:           req.Name,
		Type:           AccountType(req.Type),
		Subtype:        Subtype(req.Subtype),
		OpeningBalance: money.FromFloat(req.OpeningBalance),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(account))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	list, err := h.service.List(r.Context(), scope.OutletID, includeInactive)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "invalid account id"))
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "invalid account id"))
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "invalid account id"))
		return
	}
	if err := h.service.Reactivate(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "invalid account id"))
		return
	}
	result, err := h.service.Reconcile(r.Context(), id, time.Now())
	if err != nil && !errors.Is(err, ErrBalanceDivergence) {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accountId":  result.AccountID,
		"cached":     result.Cached.StringFixed(2),
		"recomputed": result.Recomputed.StringFixed(2),
		"divergence": result.Divergence.StringFixed(2),
		"ok":         result.OK,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateCode):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err.Error()))
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ErrSystemAccount), errors.Is(err, ErrHasPostings), errors.Is(err, ErrInactive):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	default:
		h.logger.Error("accounts handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
