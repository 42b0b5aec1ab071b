package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/payments"
)

// PaymentHandlers handles payment HTTP requests
type PaymentHandlers struct {
	payments payments.Service
	invoices invoices.Service
}

// NewPaymentHandlers creates a new PaymentHandlers
func NewPaymentHandlers(paymentService payments.Service, invoiceService invoices.Service) *PaymentHandlers {
	return &PaymentHandlers{payments: paymentService, invoices: invoiceService}
}

// RegisterRoutes registers payment routes
func (h *PaymentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/invoices/{id}/payments", h.RecordPayment).Methods("POST")
	router.HandleFunc("/invoices/{id}/payments", h.ListPayments).Methods("GET")
	router.HandleFunc("/payments/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/payments/{id}", h.GetPayment).Methods("GET")
}

type recordPaymentRequest struct {
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`

	// Settled records the payment as already successful, settling the
	// invoice immediately instead of waiting for a gateway webhook
	Settled bool `json:"settled"`
}

// RecordPayment handles POST /invoices/{id}/payments
func (h *PaymentHandlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
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
	invoiceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Gateway == "" || req.TransactionID == "" {
		httputil.WriteBadRequest(w, "gateway and transaction_id are required")
		return
	}

	// invoice must exist within the caller's tenant
	if _, err := h.invoices.GetInvoice(r.Context(), tenantID, invoiceID); err != nil {
		if errors.Is(err, invoices.ErrInvoiceNotFound) {
			httputil.WriteNotFoundError(w, "invoice not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var payment *payments.Payment
	var err error
	if req.Settled {
		payment, err = h.payments.ProcessPayment(r.Context(), tenantID, invoiceID,
			req.Gateway, req.TransactionID, req.AmountCents)
	} else {
		payment = &payments.Payment{
			TenantID:      tenantID,
			InvoiceID:     invoiceID,
			Gateway:       req.Gateway,
			TransactionID: req.TransactionID,
			AmountCents:   req.AmountCents,
		}
		err = h.payments.CreatePayment(r.Context(), payment)
	}

	switch {
	case err == nil:
		httputil.WriteCreated(w, payment)
	case errors.Is(err, payments.ErrDuplicateTransaction):
		httputil.WriteConflict(w, "transaction already recorded")
	case errors.Is(err, payments.ErrAmountNotPositive):
		httputil.WriteBadRequest(w, "amount must be positive")
	case errors.Is(err, invoices.ErrInvoiceNotFound):
		httputil.WriteNotFoundError(w, "invoice not found")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// ListPayments handles GET /invoices/{id}/payments
func (h *PaymentHandlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}
	invoiceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	result, err := h.payments.ListByInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// GetSummary handles GET /payments/summary
func (h *PaymentHandlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := resolveTenant(w, r, principal)
	if !ok {
		return
	}

	summary, err := h.payments.Summarize(r.Context(), tenantID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}

// GetPayment handles GET /payments/{id}
func (h *PaymentHandlers) GetPayment(w http.ResponseWriter, r *http.Request) {
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

	payment, err := h.payments.GetPayment(r.Context(), tenantID, id)
	if errors.Is(err, payments.ErrPaymentNotFound) {
		httputil.WriteNotFoundError(w, "payment not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, payment)
}
