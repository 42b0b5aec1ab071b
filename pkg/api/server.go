package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/config"
	"github.com/campuskit/bursar/pkg/contextkeys"
	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/limits"
	"github.com/campuskit/bursar/pkg/middleware"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/payments"
	"github.com/campuskit/bursar/pkg/subscriptions"
	"github.com/campuskit/bursar/pkg/webhooks"
)

// Services bundles the domain services the API serves
type Services struct {
	Catalog       catalog.Service
	Subscriptions subscriptions.Service
	Invoices      invoices.Service
	Payments      payments.Service
	Fees          fees.Service
	Limits        limits.Checker
	Webhooks      *webhooks.Handler
}

// Server is the billing HTTP server
type Server struct {
	config   *config.ServerConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
	services Services
	router   *mux.Router
	httpSrv  *http.Server
}

// NewServer creates a Server and wires its routes
func NewServer(cfg *config.ServerConfig, logger *observability.Logger, metrics *observability.Metrics, services Services) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		services: services,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// gateway callbacks authenticate by signature, not by principal
	if s.services.Webhooks != nil {
		s.services.Webhooks.RegisterRoutes(s.router)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Authenticate)

	NewPlanHandlers(s.services.Catalog).RegisterRoutes(api)
	NewSubscriptionHandlers(s.services.Subscriptions, s.metrics).RegisterRoutes(api)
	NewInvoiceHandlers(s.services.Invoices, s.services.Subscriptions, s.metrics).RegisterRoutes(api)
	NewPaymentHandlers(s.services.Payments, s.services.Invoices).RegisterRoutes(api)
	NewFeeHandlers(s.services.Fees).RegisterRoutes(api)
	NewLimitHandlers(s.services.Limits).RegisterRoutes(api)
}

// Router returns the configured handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.WithField("addr", s.httpSrv.Addr).Info("billing API listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// requirePrincipal pulls the caller identity or writes a 401
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal := contextkeys.Principal(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return principal, true
}

// resolveTenant picks the tenant the request acts on. Tenant callers
// always act on their own tenant; super admins may name one with the
// tenant_id query parameter.
func resolveTenant(w http.ResponseWriter, r *http.Request, principal *auth.Principal) (int64, bool) {
	if principal.IsSuperAdmin() {
		if tenantID := int64(httputil.QueryInt(r, "tenant_id", 0)); tenantID > 0 {
			return tenantID, true
		}
	}
	if principal.TenantID > 0 {
		return principal.TenantID, true
	}

	httputil.WriteBadRequest(w, "tenant_id required")
	return 0, false
}

// assertWriteAccess gates mutating billing operations
func assertWriteAccess(w http.ResponseWriter, principal *auth.Principal) bool {
	if principal.HasAnyRole(auth.RoleSuperAdmin, auth.RoleTenantAdmin, auth.RoleAccountant) {
		return true
	}
	httputil.WriteForbidden(w, "insufficient role")
	return false
}
