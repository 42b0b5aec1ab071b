package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

// SubscriptionHandlers handles subscription HTTP requests
type SubscriptionHandlers struct {
	subs    subscriptions.Service
	metrics *observability.Metrics
}

// NewSubscriptionHandlers creates a new SubscriptionHandlers
func NewSubscriptionHandlers(subs subscriptions.Service, metrics *observability.Metrics) *SubscriptionHandlers {
	return &SubscriptionHandlers{subs: subs, metrics: metrics}
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscription", h.Subscribe).Methods("POST")
	router.HandleFunc("/subscription", h.GetActive).Methods("GET")
	router.HandleFunc("/subscriptions/{id}", h.GetSubscription).Methods("GET")
}

type subscribeRequest struct {
	PlanCode     catalog.PlanCode     `json:"plan_code"`
	BillingCycle catalog.BillingCycle `json:"billing_cycle"`
}

// Subscribe handles POST /subscription: start or switch the tenant's plan
func (h *SubscriptionHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
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

	var req subscribeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PlanCode != "" && !req.PlanCode.Valid() {
		httputil.WriteBadRequest(w, "invalid plan code")
		return
	}
	if req.BillingCycle != "" && !req.BillingCycle.Valid() {
		httputil.WriteBadRequest(w, "invalid billing cycle")
		return
	}

	sub, err := h.subs.CreateOrReplace(r.Context(), tenantID, req.PlanCode, req.BillingCycle)
	if errors.Is(err, catalog.ErrPlanNotFound) {
		httputil.WriteNotFoundError(w, "plan not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SubscriptionsCreatedTotal.
			WithLabelValues(string(sub.Plan.Code), string(sub.BillingCycle)).Inc()
	}

	httputil.WriteCreated(w, sub)
}

// GetActive handles GET /subscription
func (h *SubscriptionHandlers) GetActive(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	sub, err := h.subs.GetActive(r.Context(), tenantID)
	if errors.Is(err, subscriptions.ErrNoActiveSubscription) {
		httputil.WriteNotFoundError(w, "no active subscription")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// GetSubscription handles GET /subscriptions/{id}
func (h *SubscriptionHandlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
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

	sub, err := h.subs.GetSubscription(r.Context(), tenantID, id)
	if errors.Is(err, subscriptions.ErrSubscriptionNotFound) {
		httputil.WriteNotFoundError(w, "subscription not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}
