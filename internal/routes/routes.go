package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/secureauth/sentinel/internal/auth"
	"github.com/secureauth/sentinel/internal/handlers"
	"github.com/secureauth/sentinel/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	attemptHandler *handlers.AttemptHandler,
	securityHandler *handlers.SecurityHandler,
	verifier *auth.TokenVerifier,
	logger *slog.Logger,
) {
	// Ingest endpoint: called by the authentication provider, authenticated
	// with the same shared-secret tokens.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.DefaultIngestRateLimit()))
		r.Use(auth.RequireAccount(verifier, logger))

		r.Post("/v1/attempts", attemptHandler.SubmitAttempt)
	})

	// Account-facing dashboard endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.DefaultDashboardRateLimit()))
		r.Use(auth.RequireAccount(verifier, logger))

		r.Route("/v1/security", func(r chi.Router) {
			r.Get("/history", securityHandler.GetHistory)
			r.Get("/risk-trend", securityHandler.GetRiskTrend)
			r.Get("/sessions", securityHandler.GetSessions)
			r.Get("/summary", securityHandler.GetSummary)

			r.Post("/devices/promote", securityHandler.PromoteDevice)
			r.Delete("/devices/{id}", securityHandler.RevokeDevice)

			r.Get("/alerts", securityHandler.GetAlerts)
			r.Post("/alerts/{id}/read", securityHandler.MarkAlertRead)
		})
	})
}
