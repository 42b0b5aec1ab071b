package payments

import (
	"context"
	"errors"
	"time"
)

// Status represents the status of a payment
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Payment represents one gateway payment attempt against an invoice
type Payment struct {
	ID            int64     `json:"id"`
	TenantID      int64     `json:"tenant_id"`
	InvoiceID     int64     `json:"invoice_id"`
	Gateway       string    `json:"gateway"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summary aggregates a tenant's payments by outcome
type Summary struct {
	TenantID       int64 `json:"tenant_id"`
	TotalCount     int64 `json:"total_count"`
	PendingCount   int64 `json:"pending_count"`
	SuccessCount   int64 `json:"success_count"`
	FailedCount    int64 `json:"failed_count"`
	CollectedCents int64 `json:"collected_cents"`
	PendingCents   int64 `json:"pending_cents"`
}

var (
	// ErrPaymentNotFound indicates no payment matches the lookup
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateTransaction indicates the gateway transaction id was
	// already recorded
	ErrDuplicateTransaction = errors.New("transaction already recorded")

	// ErrAmountNotPositive indicates a zero or negative payment amount
	ErrAmountNotPositive = errors.New("payment amount must be positive")
)

// Service defines the interface for payment recording and settlement
type Service interface {
	// CreatePayment records a pending payment attempt.
	// ErrDuplicateTransaction when the transaction id was seen before.
	CreatePayment(ctx context.Context, payment *Payment) error

	// ProcessPayment records a successful payment and settles the invoice
	// if payments now cover it. One transaction end to end.
	ProcessPayment(ctx context.Context, tenantID, invoiceID int64, gateway, transactionID string, amountCents int64) (*Payment, error)

	// ConfirmByTransaction flips a pending payment to success and settles
	// its invoice. A payment already in a terminal state is returned
	// unchanged, whatever the requested outcome.
	ConfirmByTransaction(ctx context.Context, gateway, transactionID string) (*Payment, error)

	// FailByTransaction flips a pending payment to failed. Same terminal
	// rule as ConfirmByTransaction.
	FailByTransaction(ctx context.Context, gateway, transactionID string) (*Payment, error)

	// GetPayment fetches one payment scoped to a tenant
	GetPayment(ctx context.Context, tenantID, id int64) (*Payment, error)

	// ListByInvoice returns an invoice's payments, oldest first
	ListByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]*Payment, error)

	// Summarize aggregates a tenant's payments by outcome
	Summarize(ctx context.Context, tenantID int64) (*Summary, error)
}
