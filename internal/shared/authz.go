package shared

import (
	"net/http"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
)

// Staff roles, broadest to narrowest.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// RequireRole returns middleware that rejects requests whose authenticated
// actor holds none of the given roles. It assumes the auth middleware already
// placed the actor in the context; a missing actor reads as unauthorized.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.ID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !allowed[actor.Role] {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
