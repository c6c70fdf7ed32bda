package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/by-phone/{phone}", h.GetByPhone)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)

		r.Group(func(r chi.Router) {
			r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleManager))
			r.Delete("/{id}", h.Deactivate)
		})
	})
}
