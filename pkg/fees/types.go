package fees

import (
	"context"
	"errors"
	"time"
)

// Status represents the status of a student fee
type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
)

// StudentFee represents one charge on a student's ledger
type StudentFee struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"tenant_id"`
	StudentID      int64      `json:"student_id"`
	Description    string     `json:"description"`
	AmountCents    int64      `json:"amount_cents"`
	PaidCents      int64      `json:"paid_cents"`
	Status         Status     `json:"status"`
	DueDate        time.Time  `json:"due_date"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Outstanding returns the unpaid remainder of the fee
func (f *StudentFee) Outstanding() int64 {
	return f.AmountCents - f.PaidCents
}

var (
	// ErrFeeNotFound indicates the fee does not exist or is not visible
	// to the caller's tenant
	ErrFeeNotFound = errors.New("student fee not found")

	// ErrFeeAlreadyPaid indicates a payment against a settled fee
	ErrFeeAlreadyPaid = errors.New("student fee already paid")

	// ErrAmountNotPositive indicates a zero or negative payment amount
	ErrAmountNotPositive = errors.New("fee payment amount must be positive")

	// ErrOverpayment indicates a payment exceeding the outstanding amount
	ErrOverpayment = errors.New("fee payment exceeds outstanding amount")
)

// Service defines the interface for the student fee ledger
type Service interface {
	// CreateFee adds a charge to a student's ledger
	CreateFee(ctx context.Context, fee *StudentFee) error

	// GetFee fetches one fee scoped to a tenant
	GetFee(ctx context.Context, tenantID, id int64) (*StudentFee, error)

	// ListByStudent returns a student's fees, newest first
	ListByStudent(ctx context.Context, tenantID, studentID int64) ([]*StudentFee, error)

	// RecordFeePayment applies a collection against a fee and moves its
	// status along pending -> partially_paid -> paid
	RecordFeePayment(ctx context.Context, tenantID, feeID, amountCents int64) (*StudentFee, error)

	// MarkOverdue flips unpaid fees past their due date to overdue and
	// returns how many were flipped. Used by the fee sweep.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	// ListReminderCandidates returns overdue fees not notified within the
	// cooldown window
	ListReminderCandidates(ctx context.Context, now time.Time, cooldown time.Duration) ([]*StudentFee, error)

	// MarkNotified stamps a fee's last reminder time
	MarkNotified(ctx context.Context, feeID int64, at time.Time) error
}
