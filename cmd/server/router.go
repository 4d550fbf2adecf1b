package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/config"
	"github.com/Lixing-Zhang/kart-checkout/internal/handlers"
	"github.com/Lixing-Zhang/kart-checkout/internal/metrics"
	"github.com/Lixing-Zhang/kart-checkout/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerDeps struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	store      handlers.Pinger
	checkout   handlers.IntentCreator
	settlement handlers.PaymentSettler
}

func newRouter(d routerDeps) http.Handler {
	healthHandler := handlers.NewHealthHandler(d.store, version, d.log)
	checkoutHandler := handlers.NewCheckoutHandler(d.checkout, d.log)
	settlementHandler := handlers.NewSettlementHandler(d.settlement, d.log)

	r := chi.NewRouter()

	// Apply middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.log))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(time.Duration(d.cfg.Server.RequestTimeout) * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "api_key", d.cfg.Auth.UserIDHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	r.Route("/api/payments", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(d.cfg.Auth))
		r.Use(middleware.UserIdentity(d.cfg.Auth))

		r.With(middleware.RequireUser).Post("/create-checkout-session", checkoutHandler.CreateSession)
		r.Post("/checkout-success", settlementHandler.CheckoutSuccess)
	})

	return r
}
