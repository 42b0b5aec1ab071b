package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuskit/bursar/pkg/api"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/config"
	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/gateway"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/limits"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/payments"
	"github.com/campuskit/bursar/pkg/storage/postgres"
	"github.com/campuskit/bursar/pkg/subscriptions"
	"github.com/campuskit/bursar/pkg/webhooks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(parseLogLevel(cfg.LogLevel), os.Stdout)

	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	var cache subscriptions.Cache
	if cfg.Redis.Enabled {
		subscriptionCache, err := postgres.NewSubscriptionCache(postgres.CacheConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			TTL:      cfg.Redis.SubscriptionTTL,
		})
		if err != nil {
			// the cache is an optimization; a dead Redis does not stop billing
			logger.WithError(err).Warn("subscription cache disabled")
		} else {
			defer subscriptionCache.Close()
			cache = subscriptionCache
		}
	}

	catalogService := catalog.NewPostgresService(db)
	subscriptionService := subscriptions.NewPostgresService(db, catalogService, cache).WithMetrics(metrics)
	invoiceService := invoices.NewPostgresService(db, cfg.Billing.InvoiceDueDays)
	paymentService := payments.NewPostgresService(db).WithMetrics(metrics)
	feeService := fees.NewPostgresService(db)
	enforcer := limits.NewEnforcer(subscriptionService, limits.NewPostgresCounter(db))

	gatewayRegistry := gateway.NewRegistry(
		gateway.NewSimulationGateway(cfg.Billing.WebhookSecrets["simulation"]),
		gateway.NewRazorpayGateway(cfg.Billing.WebhookSecrets["razorpay"]),
	)
	reconciler := webhooks.NewReconciler(gatewayRegistry, paymentService, notify.NewLogNotifier(logger), metrics)

	server := api.NewServer(&cfg.Server, logger, metrics, api.Services{
		Catalog:       catalogService,
		Subscriptions: subscriptionService,
		Invoices:      invoiceService,
		Payments:      paymentService,
		Fees:          feeService,
		Limits:        enforcer,
		Webhooks:      webhooks.NewHandler(reconciler),
	})

	if metrics != nil {
		go reportPoolStats(db, metrics)
	}

	go runHealthServer(cfg, db, registry, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("server stopped")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown did not finish cleanly")
	}
}

// runHealthServer serves liveness, readiness and metrics on a separate
// port so probes stay off the public listener
func runHealthServer(cfg *config.Config, db interface{ PingContext(context.Context) error }, registry *prometheus.Registry, logger *observability.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if registry != nil {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.HealthPort
	logger.WithField("addr", addr).Info("health server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("health server stopped")
	}
}

// reportPoolStats samples connection pool gauges until the process exits
func reportPoolStats(db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		stats := postgres.Stats(db)
		metrics.DBConnectionsActive.Set(float64(stats.Active))
		metrics.DBConnectionsIdle.Set(float64(stats.Idle))
	}
}

func parseLogLevel(level string) observability.LogLevel {
	switch level {
	case "debug":
		return observability.DebugLevel
	case "warn":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}
