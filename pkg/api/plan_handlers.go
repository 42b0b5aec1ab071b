package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/httputil"
)

// PlanHandlers handles plan catalog HTTP requests
type PlanHandlers struct {
	catalog catalog.Service
}

// NewPlanHandlers creates a new PlanHandlers
func NewPlanHandlers(catalogService catalog.Service) *PlanHandlers {
	return &PlanHandlers{catalog: catalogService}
}

// RegisterRoutes registers plan routes
func (h *PlanHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plans", h.ListPlans).Methods("GET")
	router.HandleFunc("/plans", h.CreatePlan).Methods("POST")
	router.HandleFunc("/plans/{id}", h.GetPlan).Methods("GET")
	router.HandleFunc("/plans/{id}", h.DeactivatePlan).Methods("DELETE")
}

// ListPlans handles GET /plans
func (h *PlanHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalog.ListActive(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, plans)
}

// GetPlan handles GET /plans/{id}
func (h *PlanHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.catalog.GetPlan(r.Context(), id)
	if errors.Is(err, catalog.ErrPlanNotFound) {
		httputil.WriteNotFoundError(w, "plan not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, plan)
}

type createPlanRequest struct {
	Code           catalog.PlanCode     `json:"code"`
	BillingCycle   catalog.BillingCycle `json:"billing_cycle"`
	PriceCents     int64                `json:"price_cents"`
	Currency       string               `json:"currency"`
	MaxStudents    *int                 `json:"max_students"`
	MaxTeachers    *int                 `json:"max_teachers"`
	MaxDepartments *int                 `json:"max_departments"`
}

// CreatePlan handles POST /plans. Platform operators only.
func (h *PlanHandlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !principal.HasRole(auth.RoleSuperAdmin) {
		httputil.WriteForbidden(w, "platform operators only")
		return
	}

	var req createPlanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Code.Valid() || !req.BillingCycle.Valid() {
		httputil.WriteBadRequest(w, "invalid plan code or billing cycle")
		return
	}
	if req.PriceCents < 0 {
		httputil.WriteBadRequest(w, "price must not be negative")
		return
	}

	plan, err := h.catalog.Create(r.Context(), &catalog.CreatePlanRequest{
		Code:           req.Code,
		BillingCycle:   req.BillingCycle,
		PriceCents:     req.PriceCents,
		Currency:       req.Currency,
		MaxStudents:    req.MaxStudents,
		MaxTeachers:    req.MaxTeachers,
		MaxDepartments: req.MaxDepartments,
	})
	if errors.Is(err, catalog.ErrDuplicatePlan) {
		httputil.WriteConflict(w, "an active plan with this code and cycle already exists")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, plan)
}

// DeactivatePlan handles DELETE /plans/{id}. Platform operators only.
func (h *PlanHandlers) DeactivatePlan(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !principal.HasRole(auth.RoleSuperAdmin) {
		httputil.WriteForbidden(w, "platform operators only")
		return
	}

	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.catalog.Deactivate(r.Context(), id)
	if errors.Is(err, catalog.ErrPlanNotFound) {
		httputil.WriteNotFoundError(w, "plan not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
