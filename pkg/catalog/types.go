package catalog

import (
	"context"
	"errors"
	"time"
)

// PlanCode represents subscription plan tiers
type PlanCode string

const (
	PlanStarter  PlanCode = "starter"
	PlanStandard PlanCode = "standard"
	PlanPremium  PlanCode = "premium"
)

// Valid reports whether the code is a known tier
func (c PlanCode) Valid() bool {
	switch c {
	case PlanStarter, PlanStandard, PlanPremium:
		return true
	}
	return false
}

// BillingCycle represents how often a subscription renews
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Valid reports whether the cycle is supported
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// Plan represents one priced (code, cycle) row. Immutable once referenced
// by an invoice; repricing creates a new row.
type Plan struct {
	ID             int64        `json:"id"`
	Code           PlanCode     `json:"code"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
	PriceCents     int64        `json:"price_cents"`
	Currency       string       `json:"currency"`
	MaxStudents    *int         `json:"max_students,omitempty"`
	MaxTeachers    *int         `json:"max_teachers,omitempty"`
	MaxDepartments *int         `json:"max_departments,omitempty"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreatePlanRequest represents request to create a plan price row
type CreatePlanRequest struct {
	Code           PlanCode     `json:"code"`
	BillingCycle   BillingCycle `json:"billing_cycle"`
	PriceCents     int64        `json:"price_cents"`
	Currency       string       `json:"currency,omitempty"`
	MaxStudents    *int         `json:"max_students,omitempty"`
	MaxTeachers    *int         `json:"max_teachers,omitempty"`
	MaxDepartments *int         `json:"max_departments,omitempty"`
}

var (
	// ErrPlanNotFound indicates no active plan matches the requested
	// (code, cycle) pair or id
	ErrPlanNotFound = errors.New("plan not found")

	// ErrDuplicatePlan indicates an active plan already exists for the
	// (code, cycle) pair
	ErrDuplicatePlan = errors.New("active plan already exists for code and cycle")
)

// Service defines the interface for plan catalog operations
type Service interface {
	// ListActive returns all active plans ordered by price ascending
	ListActive(ctx context.Context) ([]*Plan, error)

	// Resolve maps a (code, cycle) pair to its active price row
	Resolve(ctx context.Context, code PlanCode, cycle BillingCycle) (*Plan, error)

	// GetPlan fetches a plan row by id, active or not
	GetPlan(ctx context.Context, id int64) (*Plan, error)

	// Create adds a new active price row
	Create(ctx context.Context, req *CreatePlanRequest) (*Plan, error)

	// Deactivate clears a plan's active flag; history stays intact
	Deactivate(ctx context.Context, id int64) error
}
