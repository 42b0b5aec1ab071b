package invoices

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campuskit/bursar/pkg/storage/postgres"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

// PostgresService implements the invoice Service using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	dueDays int
	now     func() time.Time
}

// NewPostgresService creates a new PostgresService. dueDays sets how many
// days after the billing period starts an invoice falls due.
func NewPostgresService(db *sql.DB, dueDays int) *PostgresService {
	if dueDays <= 0 {
		dueDays = 7
	}
	return &PostgresService{
		db:      db,
		dueDays: dueDays,
		now:     time.Now,
	}
}

const invoiceColumns = `id, tenant_id, subscription_id, invoice_number, amount_cents,
	       currency, status, due_date, period_start, period_end, paid_at,
	       created_at, updated_at`

func scanInvoice(row interface {
	Scan(dest ...interface{}) error
}) (*Invoice, error) {
	inv := &Invoice{}
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.SubscriptionID, &inv.InvoiceNumber,
		&inv.AmountCents, &inv.Currency, &inv.Status, &inv.DueDate,
		&inv.PeriodStart, &inv.PeriodEnd, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Generate creates the invoice for a subscription's billing period at
// the plan price the subscription was sold under. The
// one-unpaid-per-subscription index makes concurrent calls safe; the
// loser gets ErrDuplicateInvoice.
func (s *PostgresService) Generate(ctx context.Context, subscriptionID int64) (*Invoice, error) {
	query := `
		SELECT s.tenant_id, s.starts_at, s.expires_at, p.price_cents, p.currency
		FROM subscriptions s
		JOIN plans p ON s.plan_id = p.id
		WHERE s.id = $1
	`
	var (
		tenantID   int64
		startsAt   time.Time
		expiresAt  time.Time
		priceCents int64
		currency   string
	)
	err := s.db.QueryRowContext(ctx, query, subscriptionID).
		Scan(&tenantID, &startsAt, &expiresAt, &priceCents, &currency)
	if err == sql.ErrNoRows {
		return nil, subscriptions.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription for invoicing: %w", err)
	}

	now := s.now().UTC()
	inv := &Invoice{
		TenantID:       tenantID,
		SubscriptionID: subscriptionID,
		AmountCents:    priceCents,
		Currency:       strings.TrimSpace(currency),
		Status:         StatusUnpaid,
		DueDate:        startsAt.AddDate(0, 0, s.dueDays),
		PeriodStart:    startsAt,
		PeriodEnd:      expiresAt,
	}

	insertQuery := `
		INSERT INTO invoices (tenant_id, subscription_id, invoice_number, amount_cents,
		                      currency, status, due_date, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := NewInvoiceNumber(now)
		if err != nil {
			return nil, err
		}

		err = s.db.QueryRowContext(ctx, insertQuery,
			inv.TenantID, inv.SubscriptionID, number, inv.AmountCents,
			inv.Currency, inv.Status, inv.DueDate, inv.PeriodStart, inv.PeriodEnd,
		).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
		if postgres.IsUniqueViolation(err, "invoices_one_unpaid_per_subscription") {
			return nil, ErrDuplicateInvoice
		}
		if postgres.IsUniqueViolation(err, "invoices_number_unique") {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create invoice: %w", err)
		}

		inv.InvoiceNumber = number
		return inv, nil
	}

	return nil, ErrNumberExhausted
}

// GetInvoice fetches one invoice scoped to a tenant
func (s *PostgresService) GetInvoice(ctx context.Context, tenantID, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND tenant_id = $2`
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetByNumber fetches one invoice by its public number, scoped to a tenant
func (s *PostgresService) GetByNumber(ctx context.Context, tenantID int64, number string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = $1 AND tenant_id = $2`
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, number, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice by number: %w", err)
	}
	return inv, nil
}

// List returns a tenant's invoices, newest first
func (s *PostgresService) List(ctx context.Context, tenantID int64, filter ListFilter) ([]*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.SubscriptionID != 0 {
		args = append(args, filter.SubscriptionID)
		query += fmt.Sprintf(" AND subscription_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if filter.Overdue {
		args = append(args, StatusUnpaid, s.now())
		query += fmt.Sprintf(" AND status = $%d AND due_date < $%d", len(args)-1, len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var result []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		result = append(result, inv)
	}

	return result, rows.Err()
}

// ListOverdue returns unpaid invoices past their due date across all tenants
func (s *PostgresService) ListOverdue(ctx context.Context, now time.Time) ([]*Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1 AND due_date < $2
		ORDER BY due_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, StatusUnpaid, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue invoices: %w", err)
	}
	defer rows.Close()

	var result []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		result = append(result, inv)
	}

	return result, rows.Err()
}

// Summarize aggregates invoice counts and amounts by status for a tenant
func (s *PostgresService) Summarize(ctx context.Context, tenantID int64) (*Summary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'unpaid'),
		       COUNT(*) FILTER (WHERE status = 'paid'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'unpaid' AND due_date < $2),
		       COALESCE(SUM(amount_cents) FILTER (WHERE status = 'unpaid'), 0),
		       COALESCE(SUM(amount_cents) FILTER (WHERE status = 'paid'), 0),
		       COALESCE(SUM(amount_cents) FILTER (WHERE status = 'failed'), 0)
		FROM invoices
		WHERE tenant_id = $1
	`
	summary := &Summary{TenantID: tenantID}
	err := s.db.QueryRowContext(ctx, query, tenantID, s.now()).Scan(
		&summary.TotalCount, &summary.UnpaidCount, &summary.PaidCount,
		&summary.FailedCount, &summary.OverdueCount,
		&summary.OutstandingCents, &summary.CollectedCents, &summary.FailedCents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize invoices: %w", err)
	}

	return summary, nil
}
