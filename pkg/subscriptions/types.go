package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
)

// Status represents the status of a subscription
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Subscription represents a tenant's enrollment in a plan for a bounded
// time window. Rows are never deleted; invoices keep referencing them.
type Subscription struct {
	ID           int64                `json:"id"`
	TenantID     int64                `json:"tenant_id"`
	PlanID       int64                `json:"plan_id"`
	BillingCycle catalog.BillingCycle `json:"billing_cycle"`
	Status       Status               `json:"status"`
	StartsAt     time.Time            `json:"starts_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`

	// Plan is the resolved price row, populated on read paths
	Plan *catalog.Plan `json:"plan,omitempty"`
}

// IsExpired reports whether the subscription's window has closed at the
// given instant. Used both inline on reads and by the renewal sweep so the
// two checks cannot diverge.
func IsExpired(sub *Subscription, now time.Time) bool {
	return !sub.ExpiresAt.After(now)
}

var (
	// ErrNoActiveSubscription indicates the tenant has no live subscription
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrSubscriptionNotFound indicates the subscription id does not exist
	// or is not visible to the caller's tenant
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Cache is the optional read-through cache for active-subscription
// lookups. Implemented by postgres.SubscriptionCache; nil disables caching.
type Cache interface {
	Get(ctx context.Context, tenantID int64) ([]byte, error)
	Set(ctx context.Context, tenantID int64, data []byte) error
	Invalidate(ctx context.Context, tenantID int64) error
}

// Service defines the interface for subscription management
type Service interface {
	// CreateOrReplace cancels the tenant's live subscriptions and starts a
	// new one on the given plan. Empty code/cycle default to starter/monthly.
	CreateOrReplace(ctx context.Context, tenantID int64, code catalog.PlanCode, cycle catalog.BillingCycle) (*Subscription, error)

	// GetActive returns the tenant's current subscription, lazily expiring
	// a stale one. ErrNoActiveSubscription when none is live.
	GetActive(ctx context.Context, tenantID int64) (*Subscription, error)

	// EnsureActive fails with ErrNoActiveSubscription for regular tenant
	// callers without a live subscription; super admins bypass the check.
	EnsureActive(ctx context.Context, principal *auth.Principal) (*Subscription, error)

	// GetSubscription fetches one subscription scoped to a tenant
	GetSubscription(ctx context.Context, tenantID, id int64) (*Subscription, error)

	// ListExpiring returns active subscriptions expiring within the window
	ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]*Subscription, error)

	// ExpireStale marks all overdue active/trial subscriptions expired and
	// returns how many were flipped. Used by the renewal sweep.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
