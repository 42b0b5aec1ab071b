package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/httputil"
)

// FeeHandlers handles student fee ledger HTTP requests
type FeeHandlers struct {
	fees fees.Service
}

// NewFeeHandlers creates a new FeeHandlers
func NewFeeHandlers(feeService fees.Service) *FeeHandlers {
	return &FeeHandlers{fees: feeService}
}

// RegisterRoutes registers fee routes
func (h *FeeHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/students/{id}/fees", h.CreateFee).Methods("POST")
	router.HandleFunc("/students/{id}/fees", h.ListStudentFees).Methods("GET")
	router.HandleFunc("/fees/{id}", h.GetFee).Methods("GET")
	router.HandleFunc("/fees/{id}/payments", h.RecordFeePayment).Methods("POST")
}

type createFeeRequest struct {
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	DueDate     time.Time `json:"due_date"`
}

// CreateFee handles POST /students/{id}/fees
func (h *FeeHandlers) CreateFee(w http.ResponseWriter, r *http.Request) {
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
	studentID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req createFeeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Description == "" {
		httputil.WriteBadRequest(w, "description is required")
		return
	}
	if req.DueDate.IsZero() {
		httputil.WriteBadRequest(w, "due_date is required")
		return
	}

	fee := &fees.StudentFee{
		TenantID:    tenantID,
		StudentID:   studentID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		DueDate:     req.DueDate,
	}
	err := h.fees.CreateFee(r.Context(), fee)
	if errors.Is(err, fees.ErrAmountNotPositive) {
		httputil.WriteBadRequest(w, "amount must be positive")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, fee)
}

// ListStudentFees handles GET /students/{id}/fees
func (h *FeeHandlers) ListStudentFees(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}
	studentID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	result, err := h.fees.ListByStudent(r.Context(), tenantID, studentID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// GetFee handles GET /fees/{id}
func (h *FeeHandlers) GetFee(w http.ResponseWriter, r *http.Request) {
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

	fee, err := h.fees.GetFee(r.Context(), tenantID, id)
	if errors.Is(err, fees.ErrFeeNotFound) {
		httputil.WriteNotFoundError(w, "fee not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, fee)
}

type recordFeePaymentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// RecordFeePayment handles POST /fees/{id}/payments
func (h *FeeHandlers) RecordFeePayment(w http.ResponseWriter, r *http.Request) {
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

	var req recordFeePaymentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	fee, err := h.fees.RecordFeePayment(r.Context(), tenantID, id, req.AmountCents)
	switch {
	case err == nil:
		httputil.WriteSuccess(w, fee)
	case errors.Is(err, fees.ErrFeeNotFound):
		httputil.WriteNotFoundError(w, "fee not found")
	case errors.Is(err, fees.ErrFeeAlreadyPaid):
		httputil.WriteConflict(w, "fee already paid")
	case errors.Is(err, fees.ErrOverpayment):
		httputil.WriteBadRequest(w, "payment exceeds outstanding amount")
	case errors.Is(err, fees.ErrAmountNotPositive):
		httputil.WriteBadRequest(w, "amount must be positive")
	default:
		httputil.WriteInternalError(w, err)
	}
}
