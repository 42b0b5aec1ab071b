package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

// InvoiceHandlers handles invoice HTTP requests
type InvoiceHandlers struct {
	invoices invoices.Service
	subs     subscriptions.Service
	metrics  *observability.Metrics
}

// NewInvoiceHandlers creates a new InvoiceHandlers
func NewInvoiceHandlers(invoiceService invoices.Service, subs subscriptions.Service, metrics *observability.Metrics) *InvoiceHandlers {
	return &InvoiceHandlers{invoices: invoiceService, subs: subs, metrics: metrics}
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/invoices", h.ListInvoices).Methods("GET")
	router.HandleFunc("/invoices/summary", h.Summary).Methods("GET")
	router.HandleFunc("/invoices/number/{number}", h.GetInvoiceByNumber).Methods("GET")
	router.HandleFunc("/invoices/{id}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/subscriptions/{id}/invoices", h.GenerateInvoice).Methods("POST")
}

// ListInvoices handles GET /invoices with optional status, subscription_id,
// overdue, from and to filters
func (h *InvoiceHandlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	filter := invoices.ListFilter{
		Status:         invoices.Status(r.URL.Query().Get("status")),
		SubscriptionID: int64(httputil.QueryInt(r, "subscription_id", 0)),
		Overdue:        r.URL.Query().Get("overdue") == "true",
		Limit:          httputil.QueryInt(r, "limit", 0),
	}

	from, err := httputil.QueryDate(r, "from")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := httputil.QueryDate(r, "to")
	if err != nil {
		httputil.WriteBadRequest(w, "invalid to date, want YYYY-MM-DD")
		return
	}
	filter.From, filter.To = from, to

	result, err := h.invoices.List(r.Context(), tenantID, filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// Summary handles GET /invoices/summary
func (h *InvoiceHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	summary, err := h.invoices.Summarize(r.Context(), tenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}

// GetInvoice handles GET /invoices/{id}
func (h *InvoiceHandlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.GetInvoice(r.Context(), tenantID, id)
	if errors.Is(err, invoices.ErrInvoiceNotFound) {
		httputil.WriteNotFoundError(w, "invoice not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, inv)
}

// GetInvoiceByNumber handles GET /invoices/number/{number}, the lookup
// used when a tenant quotes the number printed on their bill
func (h *InvoiceHandlers) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	inv, err := h.invoices.GetByNumber(r.Context(), tenantID, mux.Vars(r)["number"])
	if errors.Is(err, invoices.ErrInvoiceNotFound) {
		httputil.WriteNotFoundError(w, "invoice not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, inv)
}

// GenerateInvoice handles POST /subscriptions/{id}/invoices: raise the
// renewal invoice ahead of the sweep
func (h *InvoiceHandlers) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !assertWriteAccess(w, principal) {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// the tenant scope check happens before any invoice is written
	if _, err := h.subs.GetSubscription(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
			httputil.WriteNotFoundError(w, "subscription not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	inv, err := h.invoices.Generate(r.Context(), id)
	if errors.Is(err, invoices.ErrDuplicateInvoice) {
		httputil.WriteConflict(w, "subscription already has an unpaid invoice")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.InvoicesGeneratedTotal.WithLabelValues("api").Inc()
	}

	httputil.WriteCreated(w, inv)
}
