package inventory

import (
	"github.com/go-chi/chi/v5"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/low-stock", h.LowStock)
		r.Get("/by-sku/{sku}", h.GetBySKU)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/movements", h.Movements)

		r.Group(func(r chi.Router) {
			r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleManager))
			r.Post("/", h.CreateItem)
			r.Patch("/{id}", h.Update)
			r.Post("/{id}/receive", h.Receive)
			r.Post("/{id}/adjust", h.Adjust)
		})
	})
}
