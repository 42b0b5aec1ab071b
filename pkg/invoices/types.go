package invoices

import (
	"context"
	"errors"
	"time"
)

// Status represents the status of an invoice
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

// Invoice represents a bill for one subscription period
type Invoice struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"tenant_id"`
	SubscriptionID int64      `json:"subscription_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Status         Status     `json:"status"`
	DueDate        time.Time  `json:"due_date"`
	PeriodStart    time.Time  `json:"period_start"`
	PeriodEnd      time.Time  `json:"period_end"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Summary aggregates invoice counts and amounts by status for a tenant.
// Overdue invoices are the subset of unpaid ones past their due date.
type Summary struct {
	TenantID         int64 `json:"tenant_id"`
	TotalCount       int64 `json:"total_count"`
	UnpaidCount      int64 `json:"unpaid_count"`
	PaidCount        int64 `json:"paid_count"`
	FailedCount      int64 `json:"failed_count"`
	OverdueCount     int64 `json:"overdue_count"`
	OutstandingCents int64 `json:"outstanding_cents"`
	CollectedCents   int64 `json:"collected_cents"`
	FailedCents      int64 `json:"failed_cents"`
}

// ListFilter narrows invoice listings. Zero values are ignored.
type ListFilter struct {
	Status         Status
	SubscriptionID int64
	From           *time.Time
	To             *time.Time
	Overdue        bool // unpaid with due date before now
	Limit          int
}

var (
	// ErrInvoiceNotFound indicates the invoice does not exist or is not
	// visible to the caller's tenant
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrDuplicateInvoice indicates the subscription already has an
	// unpaid invoice
	ErrDuplicateInvoice = errors.New("subscription already has an unpaid invoice")

	// ErrNumberExhausted indicates invoice number generation kept
	// colliding and gave up
	ErrNumberExhausted = errors.New("failed to allocate a unique invoice number")
)

// Service defines the interface for invoice management
type Service interface {
	// Generate creates the invoice for a subscription's current period.
	// ErrDuplicateInvoice when an unpaid invoice already exists.
	Generate(ctx context.Context, subscriptionID int64) (*Invoice, error)

	// GetInvoice fetches one invoice scoped to a tenant
	GetInvoice(ctx context.Context, tenantID, id int64) (*Invoice, error)

	// GetByNumber fetches one invoice by its public number, scoped to
	// a tenant
	GetByNumber(ctx context.Context, tenantID int64, number string) (*Invoice, error)

	// List returns a tenant's invoices, newest first
	List(ctx context.Context, tenantID int64, filter ListFilter) ([]*Invoice, error)

	// ListOverdue returns unpaid invoices past their due date across all
	// tenants. Used by the renewal sweep's past-due reminder pass.
	ListOverdue(ctx context.Context, now time.Time) ([]*Invoice, error)

	// Summarize aggregates invoice totals for a tenant
	Summarize(ctx context.Context, tenantID int64) (*Summary, error)
}
