package billing

import (
	"github.com/go-chi/chi/v5"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

// MountRoutes mounts the three record surfaces. Sales, service tickets and
// invoices share one handler; the mount point fixes the kind.
func (h *Handler) MountRoutes(r chi.Router) {
	h.mountKind(r, "/sales", KindSale)
	h.mountKind(r, "/service-tickets", KindService)
	h.mountKind(r, "/invoices", KindInvoice)
}

func (h *Handler) mountKind(r chi.Router, prefix string, kind Kind) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", h.List(kind))
		r.Post("/", h.Create(kind))
		r.Get("/lookup/{number}", h.GetByNumber)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Post("/payments", h.RecordPayment)
			r.Post("/status", h.UpdateStatus)
			r.Post("/notes", h.AddNote)
			if kind != KindInvoice {
				r.Post("/invoice", h.GenerateInvoice)
			}

			// Money back out and record removal stay above the counter.
			r.Group(func(r chi.Router) {
				r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleManager))
				r.Post("/refunds", h.RecordRefund)
				r.Delete("/", h.Delete)
				r.Post("/restore", h.Restore)
			})
		})
	})
}
