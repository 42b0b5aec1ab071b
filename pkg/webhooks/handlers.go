package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/bursar/pkg/gateway"
	"github.com/campuskit/bursar/pkg/httputil"
	"github.com/campuskit/bursar/pkg/payments"
)

// SignatureHeader carries the gateway's HMAC signature on deliveries
const SignatureHeader = "X-Webhook-Signature"

// maxPayloadBytes caps webhook bodies; gateway events are small
const maxPayloadBytes = 1 << 20

// Handler exposes the webhook receiving endpoint
type Handler struct {
	reconciler *Reconciler
}

// NewHandler creates a new Handler
func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// RegisterRoutes registers webhook routes on the router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/{gateway}", h.Receive).Methods("POST")
}

// Receive handles POST /webhooks/{gateway}
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	gatewayName := mux.Vars(r)["gateway"]

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	payment, err := h.reconciler.Handle(r.Context(), gatewayName, payload, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		httputil.WriteSuccess(w, map[string]interface{}{
			"payment_id": payment.ID,
			"status":     payment.Status,
		})
	case errors.Is(err, gateway.ErrUnknownGateway):
		httputil.WriteNotFoundError(w, "unknown gateway")
	case errors.Is(err, gateway.ErrInvalidSignature):
		httputil.WriteUnauthorized(w, "invalid signature")
	case errors.Is(err, gateway.ErrMalformedEvent):
		httputil.WriteBadRequest(w, "malformed event")
	case errors.Is(err, payments.ErrPaymentNotFound):
		httputil.WriteNotFoundError(w, "no matching payment")
	default:
		httputil.WriteInternalError(w, err)
	}
}
