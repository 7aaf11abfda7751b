package auth

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/transport"
)

// RBAC gates routes on the caller's role. Services repeat the check; this
// only rejects early.
type RBAC struct {
	*transport.BaseHandler
}

func NewRBAC(logger *slog.Logger) *RBAC {
	return &RBAC{BaseHandler: transport.NewBaseHandler(logger)}
}

func (ra *RBAC) Check(next http.HandlerFunc, roles ...identity.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := errors.ActorFromContext(r.Context())
		if !ok {
			ra.Logger.Warn("authorization check failed: actor not found in context", "path", r.URL.Path)
			ra.WriteError(w, errors.ErrMissingToken)
			return
		}

		if !actor.HasRole(roles...) {
			ra.Logger.WarnContext(r.Context(), "access denied: role not permitted",
				"user_id", actor.UserID,
				"role", actor.Role.String(),
				"path", r.URL.Path)
			ra.WriteError(w, errors.ErrRoleNotPermitted)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBAC) RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, roles...)
	}
}
