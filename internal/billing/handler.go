package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

// Handler exposes the transaction lifecycle over JSON. One handler serves all
// three kinds; routes.go mounts it per kind so the URL decides which flavour
// a request addresses.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs the billing HTTP handler. The idempotency store is
// optional; without it payment requests are processed unconditionally.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, idempotency: idempotency}
}

func (h *Handler) Create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReq
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}

		t, err := h.service.Create(r.Context(), req.toInput(kind), shared.ActorFromContext(r.Context()))
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, t)
	}
}

func (h *Handler) List(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := shared.PageParams(r)
		filter := ListFilter{
			Kind:   &kind,
			Limit:  perPage,
			Offset: (page - 1) * perPage,
		}
		q := r.URL.Query()
		if s := q.Get("status"); s != "" {
			st := Status(s)
			if !ValidStatus(kind, st) {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+s)
				return
			}
			filter.Status = &st
		}
		if s := q.Get("payment_status"); s != "" {
			ps := PaymentStatus(s)
			filter.PaymentStatus = &ps
		}
		if s := q.Get("customer_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil || id <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer_id")
				return
			}
			filter.CustomerID = &id
		}
		if t := parseDate(q.Get("from")); t != nil {
			filter.From = t
		}
		if t := parseDate(q.Get("to")); t != nil {
			filter.To = t
		}
		filter.IncludeDeleted = q.Get("include_deleted") == "true"

		items, total, err := h.service.List(r.Context(), filter)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		if items == nil {
			items = []Transaction{}
		}
		p := shared.NewPagination(page, perPage, total)
		httpx.JSON(w, http.StatusOK, listResp{
			Items: items, Total: total,
			Page: p.Page, PerPage: p.PerPage, TotalPages: p.TotalPages,
		})
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

// GetByNumber resolves /lookup/{number}, the scan-a-receipt path.
func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req updateReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	t, err := h.service.Update(r.Context(), id, req.toInput(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req paymentReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	// A retried POS checkout must not record the payment twice.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "billing"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "payment already recorded for this key")
				return
			}
			h.respondError(w, r, err)
			return
		}
	}

	t, err := h.service.RecordPayment(r.Context(), id, PaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			_ = h.idempotency.Release(r.Context(), idemKey)
		}
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req refundReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	t, err := h.service.RecordRefund(r.Context(), id, req.Amount, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req statusReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	t, err := h.service.UpdateStatus(r.Context(), id, req.Status, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req noteReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.AddNote(r.Context(), id, req.Text, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req deleteReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.SoftDelete(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	if err := h.service.Restore(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

// GenerateInvoice issues an invoice from a completed sale or service ticket.
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req generateInvoiceReq
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
	}

	inv, err := h.service.GenerateInvoice(r.Context(), id, req.DueDate, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return 0, false
	}
	return id, true
}

// respondError maps the billing error taxonomy onto HTTP statuses. Workflow
// violations deliberately read as 409, not 400: the request was well-formed,
// the record's state forbids it.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrImmutableRecord):
		httpx.Problem(w, http.StatusConflict, "Immutable Record", err.Error())
	case errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Overpayment", err.Error())
	case errors.Is(err, ErrOverRefund):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Over-Refund", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("billing request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
