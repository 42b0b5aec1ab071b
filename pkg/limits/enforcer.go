package limits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campuskit/bursar/pkg/subscriptions"
)

// Resource identifies a countable tenant resource
type Resource string

const (
	ResourceStudents    Resource = "students"
	ResourceTeachers    Resource = "teachers"
	ResourceDepartments Resource = "departments"
)

// LimitExceededError represents a plan limit exceeded error
type LimitExceededError struct {
	Resource Resource
	Current  int64
	Limit    int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit exceeded for %s (%d of %d)", e.Resource, e.Current, e.Limit)
}

// IsLimitExceeded checks if an error is a plan limit exceeded error
func IsLimitExceeded(err error) bool {
	var lee *LimitExceededError
	return errors.As(err, &lee)
}

// ResourceCounter reports current usage of a resource for a tenant
type ResourceCounter interface {
	Count(ctx context.Context, tenantID int64, resource Resource) (int64, error)
}

// Checker defines the interface for enforcing plan limits
type Checker interface {
	CheckStudentLimit(ctx context.Context, tenantID int64) error
	CheckTeacherLimit(ctx context.Context, tenantID int64) error
	CheckDepartmentLimit(ctx context.Context, tenantID int64) error
}

// Enforcer checks resource counts against the limits of the tenant's
// active plan
type Enforcer struct {
	subs    subscriptions.Service
	counter ResourceCounter
}

// NewEnforcer creates a new Enforcer
func NewEnforcer(subs subscriptions.Service, counter ResourceCounter) *Enforcer {
	return &Enforcer{subs: subs, counter: counter}
}

// CheckStudentLimit checks if the tenant can enroll another student
func (e *Enforcer) CheckStudentLimit(ctx context.Context, tenantID int64) error {
	return e.check(ctx, tenantID, ResourceStudents)
}

// CheckTeacherLimit checks if the tenant can add another teacher
func (e *Enforcer) CheckTeacherLimit(ctx context.Context, tenantID int64) error {
	return e.check(ctx, tenantID, ResourceTeachers)
}

// CheckDepartmentLimit checks if the tenant can add another department
func (e *Enforcer) CheckDepartmentLimit(ctx context.Context, tenantID int64) error {
	return e.check(ctx, tenantID, ResourceDepartments)
}

func (e *Enforcer) check(ctx context.Context, tenantID int64, resource Resource) error {
	sub, err := e.subs.GetActive(ctx, tenantID)
	if errors.Is(err, subscriptions.ErrNoActiveSubscription) {
		// no plan means nothing to enforce against
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get active subscription: %w", err)
	}

	limit := limitFor(sub, resource)
	if limit == nil {
		return nil
	}

	count, err := e.counter.Count(ctx, tenantID, resource)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", resource, err)
	}

	if count >= int64(*limit) {
		return &LimitExceededError{
			Resource: resource,
			Current:  count,
			Limit:    int64(*limit),
		}
	}

	return nil
}

func limitFor(sub *subscriptions.Subscription, resource Resource) *int {
	if sub.Plan == nil {
		return nil
	}
	switch resource {
	case ResourceStudents:
		return sub.Plan.MaxStudents
	case ResourceTeachers:
		return sub.Plan.MaxTeachers
	case ResourceDepartments:
		return sub.Plan.MaxDepartments
	}
	return nil
}

// PostgresCounter counts tenant resources from the campus tables
type PostgresCounter struct {
	db *sql.DB
}

// NewPostgresCounter creates a new PostgresCounter
func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

var resourceTables = map[Resource]string{
	ResourceStudents:    "students",
	ResourceTeachers:    "teachers",
	ResourceDepartments: "departments",
}

// Count returns the number of live rows of a resource for a tenant
func (c *PostgresCounter) Count(ctx context.Context, tenantID int64, resource Resource) (int64, error) {
	table, ok := resourceTables[resource]
	if !ok {
		return 0, fmt.Errorf("unknown resource: %s", resource)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL`, table)
	var count int64
	if err := c.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", resource, err)
	}

	return count, nil
}
