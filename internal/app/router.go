package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tempus-erp/tempus-erp/internal/auth"
	"github.com/tempus-erp/tempus-erp/internal/billing"
	"github.com/tempus-erp/tempus-erp/internal/customers"
	"github.com/tempus-erp/tempus-erp/internal/expenses"
	"github.com/tempus-erp/tempus-erp/internal/inventory"
	"github.com/tempus-erp/tempus-erp/internal/ledger"
	"github.com/tempus-erp/tempus-erp/internal/observability"
	"github.com/tempus-erp/tempus-erp/internal/users"
	"github.com/tempus-erp/tempus-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	AuthService      *auth.Service
	BillingHandler   *billing.Handler
	CustomersHandler *customers.Handler
	InventoryHandler *inventory.Handler
	ExpensesHandler  *expenses.Handler
	LedgerHandler    *ledger.Handler
	UsersHandler     *users.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Tempus defaults. Everything under
// /api/v1 except login requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.AuthService))

			params.AuthHandler.MountRoutes(r)
			params.BillingHandler.MountRoutes(r)
			params.CustomersHandler.MountRoutes(r)
			params.InventoryHandler.MountRoutes(r)
			params.ExpensesHandler.MountRoutes(r)
			params.LedgerHandler.MountRoutes(r)
			params.UsersHandler.MountRoutes(r)

			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
