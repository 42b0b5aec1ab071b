package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuskit/bursar/pkg/async"
	"github.com/campuskit/bursar/pkg/gateway"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/payments"
)

// Reconciler applies verified gateway events to the payment ledger
type Reconciler struct {
	registry *gateway.Registry
	payments payments.Service
	notifier notify.Notifier
	metrics  *observability.Metrics
}

// NewReconciler creates a new Reconciler. notifier and metrics may be nil.
func NewReconciler(registry *gateway.Registry, paymentService payments.Service, notifier notify.Notifier, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		registry: registry,
		payments: paymentService,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Handle verifies and applies one webhook delivery. Replayed deliveries
// resolve to the same payment state and return no error.
func (r *Reconciler) Handle(ctx context.Context, gatewayName string, payload []byte, signature string) (*payments.Payment, error) {
	gw, err := r.registry.Get(gatewayName)
	if err != nil {
		return nil, err
	}

	if !gw.VerifySignature(payload, signature) {
		if r.metrics != nil {
			r.metrics.WebhookVerifyFailedTotal.WithLabelValues(gatewayName).Inc()
		}
		observability.FromContext(ctx).WithField("gateway", gatewayName).
			Warn("rejected webhook with bad signature")
		return nil, gateway.ErrInvalidSignature
	}

	event, err := gw.ParseEvent(payload)
	if err != nil {
		r.countEvent(gatewayName, "malformed")
		return nil, err
	}

	var payment *payments.Payment
	switch event.Type {
	case gateway.EventPaymentSuccess:
		payment, err = r.payments.ConfirmByTransaction(ctx, event.Gateway, event.TransactionID)
	case gateway.EventPaymentFailed:
		payment, err = r.payments.FailByTransaction(ctx, event.Gateway, event.TransactionID)
	default:
		return nil, fmt.Errorf("%w: unhandled event type %q", gateway.ErrMalformedEvent, event.Type)
	}

	if errors.Is(err, payments.ErrPaymentNotFound) {
		r.countEvent(gatewayName, "unmatched")
		observability.FromContext(ctx).
			WithField("gateway", gatewayName).
			WithField("transaction_id", event.TransactionID).
			Warn("webhook event matched no recorded payment")
		return nil, err
	}
	if err != nil {
		r.countEvent(gatewayName, "error")
		return nil, fmt.Errorf("failed to reconcile webhook event: %w", err)
	}

	r.countEvent(gatewayName, "applied")
	if event.Type == gateway.EventPaymentSuccess && payment.Status == payments.StatusSuccess {
		r.notifyPaymentReceived(payment)
	}
	return payment, nil
}

// notifyPaymentReceived dispatches a receipt notification off the request
// path. Delivery failures are logged by SafeGo and never fail the webhook.
func (r *Reconciler) notifyPaymentReceived(payment *payments.Payment) {
	if r.notifier == nil {
		return
	}
	n := notify.Notification{
		Title:         "Payment received",
		Body:          fmt.Sprintf("Payment of %d cents received via %s.", payment.AmountCents, payment.Gateway),
		ReferenceType: "invoice",
		ReferenceID:   payment.InvoiceID,
		Priority:      notify.PriorityLow,
	}
	async.SafeGo(context.Background(), 5*time.Second, "payment receipt notification", func(ctx context.Context) error {
		return r.notifier.Notify(ctx, n)
	})
}

func (r *Reconciler) countEvent(gatewayName, result string) {
	if r.metrics != nil {
		r.metrics.WebhookEventsTotal.WithLabelValues(gatewayName, result).Inc()
	}
}
