package routes

import (
	"github.com/BradenHooton/tourney/internal/auth"
	"github.com/BradenHooton/tourney/internal/handlers"
	"github.com/BradenHooton/tourney/internal/middleware"
	pkghttp "github.com/BradenHooton/tourney/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Dependencies groups what the route table needs
type Dependencies struct {
	RecoveryHandler   *handlers.RecoveryHandler
	HealthHandler     *handlers.HealthHandler
	TokenManager      *auth.TokenManager
	UserRepo          auth.UserRepository
	IPConfig          *pkghttp.IPConfig
	RequestsPerMinute int
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	publicLimit := middleware.DefaultRecoveryRateLimit(deps.IPConfig)
	if deps.RequestsPerMinute > 0 {
		publicLimit.RequestsPerMinute = deps.RequestsPerMinute
	}

	router.Get("/health", deps.HealthHandler.Health)

	// Public recovery routes - per-IP limit on top of the per-email attempt limiter
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(publicLimit))

		r.Post("/auth/forgot-password", deps.RecoveryHandler.ForgotPassword)
		r.Get("/auth/forgot-password/status", deps.RecoveryHandler.AttemptStatus)
		r.Post("/auth/reset-password", deps.RecoveryHandler.ResetPassword)
	})

	// Admin-only routes
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))
		r.Use(auth.RequireRole(deps.UserRepo, "admin"))
		r.Use(middleware.RateLimitByUserID(middleware.RateLimitConfig{RequestsPerMinute: 60, IPConfig: deps.IPConfig}))

		r.Delete("/admin/recovery-attempts/{email}", deps.RecoveryHandler.ClearAttempts)
	})
}
