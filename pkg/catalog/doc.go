// Package catalog manages subscription plan definitions and pricing.
//
// Plans are platform-level: a (code, billing cycle) pair maps to one active
// price row at a time. Pricing history is append-only: deactivating a plan
// only clears its active flag, and subscriptions and invoices keep
// referencing the historical row they were created against.
package catalog
