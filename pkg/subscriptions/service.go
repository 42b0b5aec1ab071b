package subscriptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/observability"
)

// PostgresService implements the subscription Service using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	catalog catalog.Service
	cache   Cache // nil disables caching
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPostgresService creates a new PostgresService. cache may be nil.
func NewPostgresService(db *sql.DB, planCatalog catalog.Service, cache Cache) *PostgresService {
	return &PostgresService{
		db:      db,
		catalog: planCatalog,
		cache:   cache,
		now:     time.Now,
	}
}

// WithMetrics attaches cache counters. Returns the service for chaining.
func (s *PostgresService) WithMetrics(metrics *observability.Metrics) *PostgresService {
	s.metrics = metrics
	return s
}

const subscriptionColumns = `s.id, s.tenant_id, s.plan_id, s.billing_cycle, s.status,
	       s.starts_at, s.expires_at, s.created_at, s.updated_at,
	       p.id, p.code, p.billing_cycle, p.price_cents, p.currency,
	       p.max_students, p.max_teachers, p.max_departments, p.active, p.created_at, p.updated_at`

func scanSubscription(row interface {
	Scan(dest ...interface{}) error
}) (*Subscription, error) {
	sub := &Subscription{Plan: &catalog.Plan{}}
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.PlanID, &sub.BillingCycle, &sub.Status,
		&sub.StartsAt, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt,
		&sub.Plan.ID, &sub.Plan.Code, &sub.Plan.BillingCycle, &sub.Plan.PriceCents,
		&sub.Plan.Currency, &sub.Plan.MaxStudents, &sub.Plan.MaxTeachers,
		&sub.Plan.MaxDepartments, &sub.Plan.Active, &sub.Plan.CreatedAt, &sub.Plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// expiryFor computes the subscription window end for a billing cycle
func expiryFor(startsAt time.Time, cycle catalog.BillingCycle) time.Time {
	if cycle == catalog.CycleAnnual {
		return startsAt.AddDate(1, 0, 0)
	}
	return startsAt.AddDate(0, 1, 0)
}

// CreateOrReplace cancels the tenant's live subscriptions and starts a new
// one on the given plan, all inside one transaction so concurrent readers
// never observe zero or two live subscriptions.
func (s *PostgresService) CreateOrReplace(ctx context.Context, tenantID int64, code catalog.PlanCode, cycle catalog.BillingCycle) (*Subscription, error) {
	if code == "" {
		code = catalog.PlanStarter
	}
	if cycle == "" {
		cycle = catalog.CycleMonthly
	}

	plan, err := s.catalog.Resolve(ctx, code, cycle)
	if err != nil {
		return nil, err
	}

	startsAt := s.now().UTC()
	expiresAt := expiryFor(startsAt, cycle)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cancelQuery := `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND status IN ($3, $4)
	`
	if _, err := tx.ExecContext(ctx, cancelQuery, StatusCancelled, tenantID, StatusActive, StatusTrial); err != nil {
		return nil, fmt.Errorf("failed to cancel previous subscriptions: %w", err)
	}

	insertQuery := `
		INSERT INTO subscriptions (tenant_id, plan_id, billing_cycle, status, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	sub := &Subscription{
		TenantID:     tenantID,
		PlanID:       plan.ID,
		BillingCycle: cycle,
		Status:       StatusActive,
		StartsAt:     startsAt,
		ExpiresAt:    expiresAt,
		Plan:         plan,
	}
	err = tx.QueryRowContext(ctx, insertQuery,
		sub.TenantID, sub.PlanID, sub.BillingCycle, sub.Status, sub.StartsAt, sub.ExpiresAt,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit subscription replace: %w", err)
	}

	s.invalidateCache(ctx, tenantID)

	return sub, nil
}

// GetActive returns the tenant's current subscription, lazily expiring a
// stale one so reads stay correct without waiting for the sweep.
func (s *PostgresService) GetActive(ctx context.Context, tenantID int64) (*Subscription, error) {
	now := s.now().UTC()

	if cached := s.cachedActive(ctx, tenantID, now); cached != nil {
		return cached, nil
	}

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON s.plan_id = p.id
		WHERE s.tenant_id = $1 AND s.status IN ($2, $3)
		ORDER BY s.expires_at DESC
		LIMIT 1
	`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, tenantID, StatusActive, StatusTrial))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}

	if IsExpired(sub, now) {
		if err := s.markExpired(ctx, sub.ID); err != nil {
			return nil, err
		}
		s.invalidateCache(ctx, tenantID)
		return nil, ErrNoActiveSubscription
	}

	s.cacheActive(ctx, sub)

	return sub, nil
}

// EnsureActive fails for regular tenant callers without a live
// subscription; super admins bypass the check entirely.
func (s *PostgresService) EnsureActive(ctx context.Context, principal *auth.Principal) (*Subscription, error) {
	if principal.IsSuperAdmin() {
		return nil, nil
	}
	return s.GetActive(ctx, principal.TenantID)
}

// GetSubscription fetches one subscription scoped to a tenant
func (s *PostgresService) GetSubscription(ctx context.Context, tenantID, id int64) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON s.plan_id = p.id
		WHERE s.id = $1 AND s.tenant_id = $2
	`
	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// ListExpiring returns active subscriptions expiring within the window,
// soonest first. Trial subscriptions are excluded; they have nothing to
// renew.
func (s *PostgresService) ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON s.plan_id = p.id
		WHERE s.status = $1 AND s.expires_at > $2 AND s.expires_at <= $3
		ORDER BY s.expires_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, StatusActive, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ExpireStale marks all overdue active/trial subscriptions expired
func (s *PostgresService) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND expires_at <= $4
	`
	result, err := s.db.ExecContext(ctx, query, StatusExpired, StatusActive, StatusTrial, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale subscriptions: %w", err)
	}

	return result.RowsAffected()
}

func (s *PostgresService) markExpired(ctx context.Context, id int64) error {
	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, StatusExpired, id, StatusActive, StatusTrial); err != nil {
		return fmt.Errorf("failed to mark subscription expired: %w", err)
	}
	return nil
}

// cachedActive returns a cached live subscription, or nil on any miss,
// decode failure, or staleness. Cache problems never fail a read.
func (s *PostgresService) cachedActive(ctx context.Context, tenantID int64, now time.Time) *Subscription {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, tenantID)
	if err != nil || data == nil {
		s.countCache(false)
		return nil
	}

	sub := &Subscription{}
	if err := json.Unmarshal(data, sub); err != nil {
		s.countCache(false)
		return nil
	}
	if IsExpired(sub, now) {
		s.countCache(false)
		return nil
	}

	s.countCache(true)
	return sub
}

func (s *PostgresService) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("active_subscription").Inc()
		return
	}
	s.metrics.CacheMissesTotal.WithLabelValues("active_subscription").Inc()
}

func (s *PostgresService) cacheActive(ctx context.Context, sub *Subscription) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, sub.TenantID, data); err != nil {
		observability.FromContext(ctx).WithError(err).WithTenant(sub.TenantID).
			Warn("failed to cache active subscription")
	}
}

func (s *PostgresService) invalidateCache(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		observability.FromContext(ctx).WithError(err).WithTenant(tenantID).
			Warn("failed to invalidate subscription cache")
	}
}
