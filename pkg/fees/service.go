package fees

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresService implements the fee Service using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const feeColumns = `id, tenant_id, student_id, description, amount_cents, paid_cents,
	       status, due_date, last_notified_at, created_at, updated_at`

func scanFee(row interface {
	Scan(dest ...interface{}) error
}) (*StudentFee, error) {
	fee := &StudentFee{}
	err := row.Scan(
		&fee.ID, &fee.TenantID, &fee.StudentID, &fee.Description,
		&fee.AmountCents, &fee.PaidCents, &fee.Status, &fee.DueDate,
		&fee.LastNotifiedAt, &fee.CreatedAt, &fee.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fee, nil
}

// CreateFee adds a charge to a student's ledger
func (s *PostgresService) CreateFee(ctx context.Context, fee *StudentFee) error {
	if fee.AmountCents <= 0 {
		return ErrAmountNotPositive
	}
	if fee.Status == "" {
		fee.Status = StatusPending
	}

	query := `
		INSERT INTO student_fees (tenant_id, student_id, description, amount_cents, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		fee.TenantID, fee.StudentID, fee.Description,
		fee.AmountCents, fee.Status, fee.DueDate,
	).Scan(&fee.ID, &fee.CreatedAt, &fee.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create student fee: %w", err)
	}

	return nil
}

// GetFee fetches one fee scoped to a tenant
func (s *PostgresService) GetFee(ctx context.Context, tenantID, id int64) (*StudentFee, error) {
	query := `SELECT ` + feeColumns + ` FROM student_fees WHERE id = $1 AND tenant_id = $2`
	fee, err := scanFee(s.db.QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrFeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student fee: %w", err)
	}
	return fee, nil
}

// ListByStudent returns a student's fees, newest first
func (s *PostgresService) ListByStudent(ctx context.Context, tenantID, studentID int64) ([]*StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE tenant_id = $1 AND student_id = $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student fees: %w", err)
	}
	defer rows.Close()

	var result []*StudentFee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student fee: %w", err)
		}
		result = append(result, fee)
	}

	return result, rows.Err()
}

// RecordFeePayment applies a collection against a fee under a row lock.
// Partial collection on an overdue fee leaves it overdue; only full
// coverage settles it.
func (s *PostgresService) RecordFeePayment(ctx context.Context, tenantID, feeID, amountCents int64) (*StudentFee, error) {
	if amountCents <= 0 {
		return nil, ErrAmountNotPositive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`
	fee, err := scanFee(tx.QueryRowContext(ctx, query, feeID, tenantID))
	if err == sql.ErrNoRows {
		return nil, ErrFeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock student fee: %w", err)
	}

	if fee.Status == StatusPaid {
		return nil, ErrFeeAlreadyPaid
	}
	if amountCents > fee.Outstanding() {
		return nil, ErrOverpayment
	}

	fee.PaidCents += amountCents
	switch {
	case fee.PaidCents >= fee.AmountCents:
		fee.Status = StatusPaid
	case fee.Status == StatusOverdue:
		// stays overdue until settled
	default:
		fee.Status = StatusPartiallyPaid
	}

	updateQuery := `
		UPDATE student_fees
		SET paid_cents = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, fee.PaidCents, fee.Status, fee.ID); err != nil {
		return nil, fmt.Errorf("failed to record fee payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit fee payment: %w", err)
	}

	return fee, nil
}

// MarkOverdue flips unpaid fees past their due date to overdue
func (s *PostgresService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE student_fees
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND due_date < $4
	`
	result, err := s.db.ExecContext(ctx, query, StatusOverdue, StatusPending, StatusPartiallyPaid, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark fees overdue: %w", err)
	}

	return result.RowsAffected()
}

// ListReminderCandidates returns overdue fees not notified within the
// cooldown window, most overdue first
func (s *PostgresService) ListReminderCandidates(ctx context.Context, now time.Time, cooldown time.Duration) ([]*StudentFee, error) {
	query := `
		SELECT ` + feeColumns + `
		FROM student_fees
		WHERE status = $1
		  AND (last_notified_at IS NULL OR last_notified_at < $2)
		ORDER BY due_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, StatusOverdue, now.Add(-cooldown))
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	defer rows.Close()

	var result []*StudentFee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student fee: %w", err)
		}
		result = append(result, fee)
	}

	return result, rows.Err()
}

// MarkNotified stamps a fee's last reminder time
func (s *PostgresService) MarkNotified(ctx context.Context, feeID int64, at time.Time) error {
	query := `UPDATE student_fees SET last_notified_at = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, at, feeID)
	if err != nil {
		return fmt.Errorf("failed to mark fee notified: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check notified rows: %w", err)
	}
	if affected == 0 {
		return ErrFeeNotFound
	}

	return nil
}
