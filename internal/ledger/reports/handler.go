package reports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes ledger reports over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/trial-balance.csv", h.TrialBalanceCSV)
	r.Get("/accounts/{id}/ledger", h.AccountLedger)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	from, to, err := periodRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), scope.OutletID, from, to)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) TrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	from, to, err := periodRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), scope.OutletID, from, to)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	filename := fmt.Sprintf("trial-balance-%d-%s.csv", scope.OutletID, to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	scope := shared.ScopeFromContext(r.Context())
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid account id", httpx.ErrValidation))
		return
	}
	from, to, err := periodRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledger, err := h.service.AccountLedger(r.Context(), scope.OutletID, accountID, from, to)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	default:
		h.logger.Error("reports handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// periodRange parses from/to query params, defaulting to the current month
// to date.
func periodRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := now.Truncate(24 * time.Hour)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid from date", httpx.ErrValidation)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid to date", httpx.ErrValidation)
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to precedes from", httpx.ErrValidation)
	}
	return from, to, nil
}
