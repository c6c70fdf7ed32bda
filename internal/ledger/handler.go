package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleManager))
		r.Get("/daily", h.Daily)
		r.Get("/monthly", h.Monthly)
	})
}

// Daily serves /ledger/daily?date=2024-01-15; date defaults to today.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	date := h.service.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, err := h.service.DailySummary(r.Context(), date)
	if err != nil {
		h.logger.Error("daily summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// Monthly serves /ledger/monthly?month=2024-01; month defaults to the
// current one.
func (h *Handler) Monthly(w http.ResponseWriter, r *http.Request) {
	now := h.service.Now()
	year, month := now.Year(), now.Month()
	if s := r.URL.Query().Get("month"); s != "" {
		parsed, err := time.Parse("2006-01", s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
			return
		}
		year, month = parsed.Year(), parsed.Month()
	}

	summary, err := h.service.MonthlySummary(r.Context(), year, month)
	if err != nil {
		h.logger.Error("monthly summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
