package expenses

import (
	"github.com/go-chi/chi/v5"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/summary", h.Summary)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)

		r.Group(func(r chi.Router) {
			r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleManager))
			r.Delete("/{id}", h.Delete)
		})
	})
}
