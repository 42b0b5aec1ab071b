package sweeps

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/notify"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

type fakeSubscriptions struct {
	expiring   []*subscriptions.Subscription
	expired    int64
	listErr    error
	expireErr  error
	expireRuns int
}

func (f *fakeSubscriptions) CreateOrReplace(ctx context.Context, tenantID int64, code catalog.PlanCode, cycle catalog.BillingCycle) (*subscriptions.Subscription, error) {
	return nil, nil
}
func (f *fakeSubscriptions) GetActive(ctx context.Context, tenantID int64) (*subscriptions.Subscription, error) {
	return nil, subscriptions.ErrNoActiveSubscription
}
func (f *fakeSubscriptions) EnsureActive(ctx context.Context, principal *auth.Principal) (*subscriptions.Subscription, error) {
	return nil, nil
}
func (f *fakeSubscriptions) GetSubscription(ctx context.Context, tenantID, id int64) (*subscriptions.Subscription, error) {
	return nil, subscriptions.ErrSubscriptionNotFound
}
func (f *fakeSubscriptions) ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]*subscriptions.Subscription, error) {
	return f.expiring, f.listErr
}
func (f *fakeSubscriptions) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	f.expireRuns++
	return f.expired, f.expireErr
}

type fakeInvoices struct {
	generated map[int64]int
	overdue   []*invoices.Invoice
	err       error
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{generated: make(map[int64]int)}
}

func (f *fakeInvoices) Generate(ctx context.Context, subscriptionID int64) (*invoices.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.generated[subscriptionID]++
	if f.generated[subscriptionID] > 1 {
		return nil, invoices.ErrDuplicateInvoice
	}
	return &invoices.Invoice{ID: subscriptionID, SubscriptionID: subscriptionID}, nil
}
func (f *fakeInvoices) GetInvoice(ctx context.Context, tenantID, id int64) (*invoices.Invoice, error) {
	return nil, invoices.ErrInvoiceNotFound
}
func (f *fakeInvoices) GetByNumber(ctx context.Context, tenantID int64, number string) (*invoices.Invoice, error) {
	return nil, invoices.ErrInvoiceNotFound
}
func (f *fakeInvoices) List(ctx context.Context, tenantID int64, filter invoices.ListFilter) ([]*invoices.Invoice, error) {
	return nil, nil
}
func (f *fakeInvoices) ListOverdue(ctx context.Context, now time.Time) ([]*invoices.Invoice, error) {
	return f.overdue, nil
}
func (f *fakeInvoices) Summarize(ctx context.Context, tenantID int64) (*invoices.Summary, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func expiringSub(id int64, expiresIn time.Duration) *subscriptions.Subscription {
	return &subscriptions.Subscription{
		ID:        id,
		TenantID:  40 + id,
		Status:    subscriptions.StatusActive,
		ExpiresAt: fixedNow().Add(expiresIn),
		Plan:      &catalog.Plan{Code: catalog.PlanStarter},
	}
}

func newRenewalSweeper(subs *fakeSubscriptions, inv *fakeInvoices, notifier *fakeNotifier) *RenewalSweeper {
	sweeper := NewRenewalSweeper(subs, inv, notifier, nil, testLogger(),
		7*24*time.Hour, 72*time.Hour)
	sweeper.now = fixedNow
	return sweeper
}

func TestRenewalSweeper_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("reminds and invoices inside the pre-invoice window", func(t *testing.T) {
		subs := &fakeSubscriptions{expiring: []*subscriptions.Subscription{
			expiringSub(1, 48*time.Hour),  // inside the 72h window
			expiringSub(2, 120*time.Hour), // reminded only
		}}
		inv := newFakeInvoices()
		notifier := &fakeNotifier{}

		result, err := newRenewalSweeper(subs, inv, notifier).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Reminded)
		assert.Equal(t, 1, result.InvoicesGenerated)
		assert.Equal(t, 1, inv.generated[1])
		assert.Zero(t, inv.generated[2])
	})

	t.Run("rerunning the sweep does not double-invoice", func(t *testing.T) {
		subs := &fakeSubscriptions{expiring: []*subscriptions.Subscription{
			expiringSub(1, 48 * time.Hour),
		}}
		inv := newFakeInvoices()
		notifier := &fakeNotifier{}
		sweeper := newRenewalSweeper(subs, inv, notifier)

		first, err := sweeper.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.InvoicesGenerated)

		second, err := sweeper.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.InvoicesGenerated)
		assert.Equal(t, 0, second.ItemFailures)
	})

	t.Run("chases overdue invoices", func(t *testing.T) {
		inv := newFakeInvoices()
		inv.overdue = []*invoices.Invoice{
			{ID: 31, TenantID: 41, InvoiceNumber: "INV-20240301-a1b2c3d4", AmountCents: 2900, Currency: "USD"},
			{ID: 32, TenantID: 44, InvoiceNumber: "INV-20240302-e5f6g7h8", AmountCents: 9900, Currency: "USD"},
		}
		notifier := &fakeNotifier{}

		result, err := newRenewalSweeper(&fakeSubscriptions{}, inv, notifier).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.OverdueReminded)
		require.Len(t, notifier.sent, 2)
		assert.Equal(t, "Invoice past due", notifier.sent[0].Title)
		assert.Equal(t, int64(31), notifier.sent[0].ReferenceID)
	})

	t.Run("expires stale subscriptions", func(t *testing.T) {
		subs := &fakeSubscriptions{expired: 3}
		result, err := newRenewalSweeper(subs, newFakeInvoices(), &fakeNotifier{}).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Expired)
		assert.Equal(t, 1, subs.expireRuns)
	})

	t.Run("one failing item does not stall the batch", func(t *testing.T) {
		subs := &fakeSubscriptions{expiring: []*subscriptions.Subscription{
			expiringSub(1, 48*time.Hour),
			expiringSub(2, 48*time.Hour),
		}}
		inv := newFakeInvoices()
		notifier := &fakeNotifier{err: errors.New("smtp down")}

		result, err := newRenewalSweeper(subs, inv, notifier).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Reminded)
		assert.Equal(t, 2, result.ItemFailures)
		// invoices still generated despite reminder failures
		assert.Equal(t, 2, result.InvoicesGenerated)
	})

	t.Run("listing failure aborts the run", func(t *testing.T) {
		subs := &fakeSubscriptions{listErr: errors.New("db down")}
		_, err := newRenewalSweeper(subs, newFakeInvoices(), &fakeNotifier{}).Run(ctx)
		assert.Error(t, err)
	})
}
