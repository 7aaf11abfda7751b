package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/claims-management/internal/auth"
	"github.com/frahmantamala/claims-management/internal/claim"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/metrics"
	"github.com/frahmantamala/claims-management/internal/report"
	"github.com/frahmantamala/claims-management/internal/transport/middleware"
	"github.com/frahmantamala/claims-management/internal/transport/swagger"
	"github.com/frahmantamala/claims-management/internal/user"
)

// Dependencies are the handlers and cross-cutting pieces the router mounts.
// Nil handlers leave their routes unregistered.
type Dependencies struct {
	DB             Pinger
	Logger         *slog.Logger
	AllowedOrigins string
	AuthHandler    *auth.Handler
	RBAC           *auth.RBAC
	UserHandler    *user.Handler
	ClaimHandler   *claim.Handler
	ReportHandler  *report.Handler
	LoginLimiter   *middleware.RateLimiter
	Metrics        *metrics.Recorder
	MetricsPath    string
	Spec           *swagger.Spec
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) {
	healthHandler := NewHealthHandler(deps.DB)

	// Apply global middleware
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
	}
	router.Use(middleware.Logging)

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, deps.Metrics.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	if deps.Spec != nil {
		router.Get(swagger.SpecURL, deps.Spec.ServeSpec)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ping", healthHandler.Ping)

		if deps.AuthHandler == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			if deps.LoginLimiter != nil {
				sr.Use(deps.LoginLimiter.Middleware)
			}
			sr.Post("/login", deps.AuthHandler.Login)
			if deps.UserHandler != nil {
				sr.Post("/register", deps.UserHandler.Register)
			}
		})

		r.Group(func(pr chi.Router) {
			pr.Use(deps.AuthHandler.AuthMiddleware)
			rbac := deps.RBAC

			if deps.UserHandler != nil {
				pr.Get("/users/me", deps.UserHandler.GetCurrentUser)

				pr.Route("/hr/lecturers", func(hr chi.Router) {
					hr.Use(rbac.RequireRole(identity.RoleHRManager))
					hr.Get("/", deps.UserHandler.ListLecturers)
					hr.Put("/{id}", deps.UserHandler.UpdateLecturer)
				})
			}

			if deps.ClaimHandler != nil {
				h := deps.ClaimHandler
				pr.Route("/claims", func(cr chi.Router) {
					cr.With(rbac.RequireRole(identity.RoleLecturer)).Post("/", h.SubmitClaim)
					cr.With(rbac.RequireRole(identity.RoleLecturer)).Get("/", h.ListMyClaims)

					cr.With(rbac.RequireRole(identity.RoleCoordinator)).Get("/pending", h.ListPending)
					cr.With(rbac.RequireRole(identity.RoleCoordinator)).Patch("/{id}/verify", h.VerifyClaim)

					cr.With(rbac.RequireRole(identity.RoleManager)).Get("/verified", h.ListVerified)
					cr.With(rbac.RequireRole(identity.RoleManager)).Patch("/{id}/decision", h.DecideClaim)

					// ownership is checked by the service
					cr.Get("/{id}", h.GetClaim)
					cr.Get("/{id}/audit", h.GetAuditTrail)
				})

				pr.With(rbac.RequireRole(identity.RoleHRManager)).Get("/hr/claims/approved", h.ListApproved)
			}

			if deps.ReportHandler != nil {
				pr.With(rbac.RequireRole(identity.RoleHRManager)).Get("/reports/approved-claims.csv", deps.ReportHandler.ExportCSV)
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"NOT_FOUND","code":"ROUTE_NOT_FOUND","message":"Route not found"}}`))
	})
}
