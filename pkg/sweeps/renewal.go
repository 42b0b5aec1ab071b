package sweeps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

// RenewalSweeper runs the daily renewal pass: remind tenants whose
// subscriptions approach expiry, raise the renewal invoice once a
// subscription enters the pre-invoice window, chase invoices past their
// due date, and flip anything already past expiry.
type RenewalSweeper struct {
	subs     subscriptions.Service
	invoices invoices.Service
	notifier notify.Notifier
	metrics  *observability.Metrics
	logger   *observability.Logger

	// Lookahead is how far ahead expiry reminders reach
	Lookahead time.Duration

	// PreInvoiceWindow is how close to expiry a subscription must be
	// before its renewal invoice is generated
	PreInvoiceWindow time.Duration

	now func() time.Time
}

// NewRenewalSweeper creates a RenewalSweeper. metrics may be nil.
func NewRenewalSweeper(
	subs subscriptions.Service,
	invoiceService invoices.Service,
	notifier notify.Notifier,
	metrics *observability.Metrics,
	logger *observability.Logger,
	lookahead, preInvoiceWindow time.Duration,
) *RenewalSweeper {
	return &RenewalSweeper{
		subs:             subs,
		invoices:         invoiceService,
		notifier:         notifier,
		metrics:          metrics,
		logger:           logger,
		Lookahead:        lookahead,
		PreInvoiceWindow: preInvoiceWindow,
		now:              time.Now,
	}
}

// Result summarizes one renewal sweep run
type Result struct {
	Reminded          int
	InvoicesGenerated int
	OverdueReminded   int
	Expired           int64
	ItemFailures      int
}

const renewalSweepName = "renewal"

// Run executes one renewal sweep
func (s *RenewalSweeper) Run(ctx context.Context) (*Result, error) {
	started := s.now()
	now := started.UTC()
	result := &Result{}

	defer func() {
		if s.metrics != nil {
			s.metrics.SweepDuration.WithLabelValues(renewalSweepName).Observe(time.Since(started).Seconds())
		}
	}()

	expiring, err := s.subs.ListExpiring(ctx, now, s.Lookahead)
	if err != nil {
		s.countRun("error")
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}

	for _, sub := range expiring {
		if err := s.remind(ctx, sub, now); err != nil {
			s.itemFailure(sub, "reminder failed", err, result)
		} else {
			result.Reminded++
		}

		if sub.ExpiresAt.Sub(now) > s.PreInvoiceWindow {
			continue
		}

		_, err := s.invoices.Generate(ctx, sub.ID)
		switch {
		case err == nil:
			result.InvoicesGenerated++
			if s.metrics != nil {
				s.metrics.InvoicesGeneratedTotal.WithLabelValues("sweep").Inc()
			}
		case errors.Is(err, invoices.ErrDuplicateInvoice):
			// already invoiced on a previous run
		default:
			s.itemFailure(sub, "invoice generation failed", err, result)
		}
	}

	overdue, err := s.invoices.ListOverdue(ctx, now)
	if err != nil {
		s.countRun("error")
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	for _, inv := range overdue {
		if err := s.remindOverdue(ctx, inv); err != nil {
			s.invoiceFailure(inv, err, result)
		} else {
			result.OverdueReminded++
		}
	}

	expired, err := s.subs.ExpireStale(ctx, now)
	if err != nil {
		s.countRun("error")
		return nil, fmt.Errorf("failed to expire stale subscriptions: %w", err)
	}
	result.Expired = expired
	if s.metrics != nil {
		s.metrics.SubscriptionsExpiredTotal.Add(float64(expired))
	}

	s.countRun("ok")
	s.logger.WithFields(map[string]interface{}{
		"reminded":           result.Reminded,
		"invoices_generated": result.InvoicesGenerated,
		"overdue_reminded":   result.OverdueReminded,
		"expired":            result.Expired,
		"item_failures":      result.ItemFailures,
	}).Info("renewal sweep finished")

	return result, nil
}

func (s *RenewalSweeper) remind(ctx context.Context, sub *subscriptions.Subscription, now time.Time) error {
	daysLeft := int(sub.ExpiresAt.Sub(now).Hours() / 24)
	return s.notifier.Notify(ctx, notify.Notification{
		Title:         "Subscription renewal due",
		Body:          fmt.Sprintf("Your %s plan expires in %d days.", sub.Plan.Code, daysLeft),
		ReferenceType: "subscription",
		ReferenceID:   sub.ID,
		Priority:      notify.PriorityNormal,
	})
}

func (s *RenewalSweeper) remindOverdue(ctx context.Context, inv *invoices.Invoice) error {
	return s.notifier.Notify(ctx, notify.Notification{
		Title:         "Invoice past due",
		Body:          fmt.Sprintf("Invoice %s for %d %s is past its due date.", inv.InvoiceNumber, inv.AmountCents, inv.Currency),
		ReferenceType: "invoice",
		ReferenceID:   inv.ID,
		Priority:      notify.PriorityHigh,
	})
}

func (s *RenewalSweeper) invoiceFailure(inv *invoices.Invoice, err error, result *Result) {
	result.ItemFailures++
	if s.metrics != nil {
		s.metrics.SweepItemFailures.WithLabelValues(renewalSweepName).Inc()
	}
	s.logger.WithError(err).WithTenant(inv.TenantID).
		WithField("invoice_id", inv.ID).
		Warn("overdue reminder failed")
}

func (s *RenewalSweeper) itemFailure(sub *subscriptions.Subscription, message string, err error, result *Result) {
	result.ItemFailures++
	if s.metrics != nil {
		s.metrics.SweepItemFailures.WithLabelValues(renewalSweepName).Inc()
	}
	s.logger.WithError(err).WithTenant(sub.TenantID).
		WithField("subscription_id", sub.ID).
		Warn(message)
}

func (s *RenewalSweeper) countRun(status string) {
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues(renewalSweepName, status).Inc()
	}
}
