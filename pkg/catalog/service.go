package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuskit/bursar/pkg/storage/postgres"
)

// PostgresService implements the catalog Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const planColumns = `id, code, billing_cycle, price_cents, currency,
	       max_students, max_teachers, max_departments, active, created_at, updated_at`

func scanPlan(row interface {
	Scan(dest ...interface{}) error
}) (*Plan, error) {
	plan := &Plan{}
	err := row.Scan(
		&plan.ID, &plan.Code, &plan.BillingCycle, &plan.PriceCents, &plan.Currency,
		&plan.MaxStudents, &plan.MaxTeachers, &plan.MaxDepartments, &plan.Active,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListActive returns all active plans ordered by price ascending
func (s *PostgresService) ListActive(ctx context.Context) ([]*Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE active
		ORDER BY price_cents ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

// Resolve maps a (code, cycle) pair to its active price row
func (s *PostgresService) Resolve(ctx context.Context, code PlanCode, cycle BillingCycle) (*Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE code = $1 AND billing_cycle = $2 AND active
	`
	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, code, cycle))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, code, cycle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	return plan, nil
}

// GetPlan fetches a plan row by id, active or not
func (s *PostgresService) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = $1
	`
	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// Create adds a new active price row. The partial unique index on
// (code, billing_cycle) WHERE active is the authority on duplicates.
func (s *PostgresService) Create(ctx context.Context, req *CreatePlanRequest) (*Plan, error) {
	if !req.Code.Valid() {
		return nil, fmt.Errorf("invalid plan code: %s", req.Code)
	}
	if !req.BillingCycle.Valid() {
		return nil, fmt.Errorf("invalid billing cycle: %s", req.BillingCycle)
	}
	if req.PriceCents < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	query := `
		INSERT INTO plans (code, billing_cycle, price_cents, currency,
		                   max_students, max_teachers, max_departments, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at, updated_at
	`
	plan := &Plan{
		Code:           req.Code,
		BillingCycle:   req.BillingCycle,
		PriceCents:     req.PriceCents,
		Currency:       currency,
		MaxStudents:    req.MaxStudents,
		MaxTeachers:    req.MaxTeachers,
		MaxDepartments: req.MaxDepartments,
		Active:         true,
	}

	err := s.db.QueryRowContext(ctx, query,
		plan.Code, plan.BillingCycle, plan.PriceCents, plan.Currency,
		plan.MaxStudents, plan.MaxTeachers, plan.MaxDepartments,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "plans_active_code_cycle") {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicatePlan, req.Code, req.BillingCycle)
		}
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

// Deactivate clears a plan's active flag; history stays intact
func (s *PostgresService) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE plans SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate plan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPlanNotFound
	}

	return nil
}
