package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/config"
	"github.com/Lixing-Zhang/kart-checkout/internal/coupon"
	"github.com/Lixing-Zhang/kart-checkout/internal/events"
	"github.com/Lixing-Zhang/kart-checkout/internal/gateway"
	"github.com/Lixing-Zhang/kart-checkout/internal/metrics"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository/postgres"
	"github.com/Lixing-Zhang/kart-checkout/internal/service"
	"github.com/Lixing-Zhang/kart-checkout/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting checkout api server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
		"currency", cfg.Gateway.Currency,
		"version", version,
	)

	ctx := context.Background()

	// Initialize storage
	store, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize settlement event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.SettlementTopic)
		log.Info("publishing settlement events", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.SettlementTopic)
	}

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize services
	gw := gateway.NewClient(cfg.Gateway)
	tasks := service.NewTasks(time.Duration(cfg.Checkout.RewardTimeout)*time.Second, log)
	unit := cfg.Gateway.CurrencyUnit()

	checkoutService := service.NewCheckoutService(
		service.CheckoutConfig{
			Currency:             unit,
			MinAmountMinor:       cfg.Checkout.MinAmountMinor,
			RewardThresholdMinor: cfg.Checkout.RewardThresholdMinor,
		},
		store.Coupons(),
		gw,
		coupon.NewIssuer(store.Coupons(), log),
		tasks,
		m,
		log,
	)

	settlementService := service.NewSettlementService(
		service.SettlementConfig{
			Currency:            unit,
			VerifyGatewayAmount: cfg.Checkout.VerifyGatewayAmount,
		},
		store,
		gateway.NewSigner(cfg.Gateway.KeySecret),
		gw,
		publisher,
		tasks,
		m,
		log,
	)

	r := newRouter(routerDeps{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		registry:   reg,
		store:      store,
		checkout:   checkoutService,
		settlement: settlementService,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// in-flight reward coupons and settlement events
	tasks.Wait()

	if err := publisher.Close(); err != nil {
		log.Error("failed to close event publisher", "error", err)
	}

	log.Info("server stopped gracefully")
}

// openStore connects to Postgres when a database URL is configured and
// falls back to the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (repository.Store, func(), error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return repository.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	store := postgres.NewStore(pool)
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("store.Ping: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("store.Migrate: %w", err)
	}

	log.Info("connected to postgres")
	return store, pool.Close, nil
}
