package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/kadochi/server/internal/config"
	"github.com/kadochi/server/internal/http/handlers"
	"github.com/kadochi/server/internal/logger"
	"github.com/kadochi/server/internal/middleware"
	"github.com/kadochi/server/internal/token"
)

// Paths that must stay reachable without a session even though they share a
// prefix with a protected area: the payment callback/result pages, the two
// payment endpoints, and the order listing.
var guardAllowPaths = []string{
	"/checkout/payment-result",
	"/api/payment/request",
	"/api/payment/verify",
	"/account/orders",
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	cfg *config.Config,
	log zerolog.Logger,
	tokens *token.Service,
	authHandler *handlers.AuthHandler,
	paymentHandler *handlers.PaymentHandler,
	metricsHandler http.Handler,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware(log))
	r.Use(middleware.SecurityHeaders)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CSRFHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(middleware.Guard(middleware.GuardConfig{
		SessionCookie:     cfg.SessionCookieName,
		LoginPath:         cfg.LoginPath,
		AllowPaths:        guardAllowPaths,
		ProtectedPrefixes: cfg.ProtectedPrefixes,
	}))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	requireCSRF := middleware.RequireCSRF(tokens, cfg.CSRFCookieName)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))

		r.Get("/csrf", authHandler.HandleCSRF)
		r.Get("/session", authHandler.HandleSession)
		r.Post("/otp", authHandler.HandleRequestOTP)

		r.Group(func(r chi.Router) {
			r.Use(requireCSRF)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	r.Route("/api/payment", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Use(requireCSRF)

		r.Post("/request", paymentHandler.HandleStart)
		r.Post("/verify", paymentHandler.HandleVerify)
	})

	return r
}
