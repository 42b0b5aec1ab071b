package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing metrics
	SubscriptionsCreatedTotal *prometheus.CounterVec
	SubscriptionsExpiredTotal prometheus.Counter
	InvoicesGeneratedTotal    *prometheus.CounterVec
	InvoicesPaidTotal         prometheus.Counter
	PaymentsTotal             *prometheus.CounterVec
	PaymentAmountCents        *prometheus.CounterVec

	// Webhook metrics
	WebhookEventsTotal       *prometheus.CounterVec
	WebhookVerifyFailedTotal *prometheus.CounterVec

	// Sweep metrics
	SweepRunsTotal    *prometheus.CounterVec
	SweepDuration     *prometheus.HistogramVec
	SweepItemFailures *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bursar_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SubscriptionsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_subscriptions_created_total",
				Help: "Total number of subscriptions created, by plan and cycle",
			},
			[]string{"plan", "cycle"},
		),
		SubscriptionsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bursar_subscriptions_expired_total",
				Help: "Total number of subscriptions marked expired",
			},
		),
		InvoicesGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_invoices_generated_total",
				Help: "Total number of invoices generated, by source",
			},
			[]string{"source"},
		),
		InvoicesPaidTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bursar_invoices_paid_total",
				Help: "Total number of invoices settled in full",
			},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_payments_total",
				Help: "Total number of payment records, by gateway and status",
			},
			[]string{"gateway", "status"},
		),
		PaymentAmountCents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_payment_amount_cents_total",
				Help: "Total successful payment volume in cents, by gateway",
			},
			[]string{"gateway"},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_webhook_events_total",
				Help: "Total number of webhook events handled, by gateway and result",
			},
			[]string{"gateway", "result"},
		),
		WebhookVerifyFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_webhook_verify_failed_total",
				Help: "Total number of webhook signature verification failures",
			},
			[]string{"gateway"},
		),

		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_sweep_runs_total",
				Help: "Total number of sweep runs, by sweep and status",
			},
			[]string{"sweep", "status"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bursar_sweep_duration_seconds",
				Help:    "Sweep run duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"sweep"},
		),
		SweepItemFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_sweep_item_failures_total",
				Help: "Total number of per-item failures skipped during sweeps",
			},
			[]string{"sweep"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bursar_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bursar_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bursar_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubscriptionsCreatedTotal,
		m.SubscriptionsExpiredTotal,
		m.InvoicesGeneratedTotal,
		m.InvoicesPaidTotal,
		m.PaymentsTotal,
		m.PaymentAmountCents,
		m.WebhookEventsTotal,
		m.WebhookVerifyFailedTotal,
		m.SweepRunsTotal,
		m.SweepDuration,
		m.SweepItemFailures,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
