package payments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/observability"
	"github.com/campuskit/bursar/pkg/storage/postgres"
)

// PostgresService implements the payment Service using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db, now: time.Now}
}

// WithMetrics attaches payment counters. Returns the service for chaining.
func (s *PostgresService) WithMetrics(metrics *observability.Metrics) *PostgresService {
	s.metrics = metrics
	return s
}

func (s *PostgresService) countPayment(payment *Payment) {
	if s.metrics == nil {
		return
	}
	s.metrics.PaymentsTotal.WithLabelValues(payment.Gateway, string(payment.Status)).Inc()
	if payment.Status == StatusSuccess {
		s.metrics.PaymentAmountCents.WithLabelValues(payment.Gateway).Add(float64(payment.AmountCents))
	}
}

const paymentColumns = `id, tenant_id, invoice_id, gateway, transaction_id,
	       amount_cents, status, created_at, updated_at`

func scanPayment(row interface {
	Scan(dest ...interface{}) error
}) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(
		&p.ID, &p.TenantID, &p.InvoiceID, &p.Gateway, &p.TransactionID,
		&p.AmountCents, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePayment records a pending payment attempt
func (s *PostgresService) CreatePayment(ctx context.Context, payment *Payment) error {
	if payment.AmountCents <= 0 {
		return ErrAmountNotPositive
	}
	if payment.Status == "" {
		payment.Status = StatusPending
	}

	query := `
		INSERT INTO payments (tenant_id, invoice_id, gateway, transaction_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		payment.TenantID, payment.InvoiceID, payment.Gateway,
		payment.TransactionID, payment.AmountCents, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if postgres.IsUniqueViolation(err, "payments_transaction_unique") {
		return ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// ProcessPayment records a successful payment and settles the invoice if
// successful payments now cover the billed amount
func (s *PostgresService) ProcessPayment(ctx context.Context, tenantID, invoiceID int64, gateway, transactionID string, amountCents int64) (*Payment, error) {
	if amountCents <= 0 {
		return nil, ErrAmountNotPositive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment := &Payment{
		TenantID:      tenantID,
		InvoiceID:     invoiceID,
		Gateway:       gateway,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Status:        StatusSuccess,
	}
	insertQuery := `
		INSERT INTO payments (tenant_id, invoice_id, gateway, transaction_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertQuery,
		payment.TenantID, payment.InvoiceID, payment.Gateway,
		payment.TransactionID, payment.AmountCents, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if postgres.IsUniqueViolation(err, "payments_transaction_unique") {
		return nil, ErrDuplicateTransaction
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	settled, err := s.settleInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	s.countPayment(payment)
	if settled && s.metrics != nil {
		s.metrics.InvoicesPaidTotal.Inc()
	}
	return payment, nil
}

// ConfirmByTransaction flips a pending payment to success and settles
// its invoice. Used by the webhook reconciler, so replays must be safe.
func (s *PostgresService) ConfirmByTransaction(ctx context.Context, gateway, transactionID string) (*Payment, error) {
	return s.resolveByTransaction(ctx, gateway, transactionID, StatusSuccess)
}

// FailByTransaction flips a pending payment to failed. A payment already
// in a terminal state is returned unchanged.
func (s *PostgresService) FailByTransaction(ctx context.Context, gateway, transactionID string) (*Payment, error) {
	return s.resolveByTransaction(ctx, gateway, transactionID, StatusFailed)
}

func (s *PostgresService) resolveByTransaction(ctx context.Context, gateway, transactionID string, outcome Status) (*Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE gateway = $1 AND transaction_id = $2
		FOR UPDATE
	`
	payment, err := scanPayment(tx.QueryRowContext(ctx, query, gateway, transactionID))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by transaction: %w", err)
	}

	// a resolved payment never changes again. Gateways retry and reorder
	// deliveries, so a late failure event for an already-successful
	// payment must not unsettle the invoice it closed.
	if payment.Status != StatusPending {
		return payment, tx.Commit()
	}

	updateQuery := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, updateQuery, outcome, payment.ID); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	payment.Status = outcome

	var settled bool
	if outcome == StatusSuccess {
		settled, err = s.settleInvoice(ctx, tx, payment.InvoiceID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment resolution: %w", err)
	}

	s.countPayment(payment)
	if settled && s.metrics != nil {
		s.metrics.InvoicesPaidTotal.Inc()
	}
	return payment, nil
}

// settleInvoice re-sums successful payments under a row lock and marks
// the invoice paid when they cover the billed amount. Partial coverage
// leaves the invoice unpaid. Reports whether the invoice flipped to paid.
func (s *PostgresService) settleInvoice(ctx context.Context, tx *sql.Tx, invoiceID int64) (bool, error) {
	var (
		amountCents int64
		status      invoices.Status
	)
	lockQuery := `SELECT amount_cents, status FROM invoices WHERE id = $1 FOR UPDATE`
	err := tx.QueryRowContext(ctx, lockQuery, invoiceID).Scan(&amountCents, &status)
	if err == sql.ErrNoRows {
		return false, invoices.ErrInvoiceNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock invoice: %w", err)
	}

	if status == invoices.StatusPaid {
		return false, nil
	}

	var paidCents int64
	sumQuery := `SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE invoice_id = $1 AND status = $2`
	if err := tx.QueryRowContext(ctx, sumQuery, invoiceID, StatusSuccess).Scan(&paidCents); err != nil {
		return false, fmt.Errorf("failed to sum payments: %w", err)
	}

	if paidCents < amountCents {
		return false, nil
	}

	updateQuery := `UPDATE invoices SET status = $1, paid_at = $2, updated_at = NOW() WHERE id = $3`
	if _, err := tx.ExecContext(ctx, updateQuery, invoices.StatusPaid, s.now().UTC(), invoiceID); err != nil {
		return false, fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	return true, nil
}

// Summarize aggregates a tenant's payments by outcome
func (s *PostgresService) Summarize(ctx context.Context, tenantID int64) (*Summary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COALESCE(SUM(amount_cents) FILTER (WHERE status = 'success'), 0),
		       COALESCE(SUM(amount_cents) FILTER (WHERE status = 'pending'), 0)
		FROM payments
		WHERE tenant_id = $1
	`
	summary := &Summary{TenantID: tenantID}
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&summary.TotalCount, &summary.PendingCount, &summary.SuccessCount,
		&summary.FailedCount, &summary.CollectedCents, &summary.PendingCents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}

	return summary, nil
}

// GetPayment fetches one payment scoped to a tenant
func (s *PostgresService) GetPayment(ctx context.Context, tenantID, id int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND tenant_id = $2`
	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListByInvoice returns an invoice's payments, oldest first
func (s *PostgresService) ListByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]*Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var result []*Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		result = append(result, payment)
	}

	return result, rows.Err()
}
