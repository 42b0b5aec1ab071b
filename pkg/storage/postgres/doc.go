// Package postgres provides the PostgreSQL connection pool, schema
// migrations, and the Redis-backed subscription cache for the billing
// engine.
//
// All billing tables live here as versioned migrations. Uniqueness rules
// the engine depends on (one unpaid invoice per subscription, globally
// unique transaction ids and invoice numbers, one active plan row per
// code/cycle pair) are enforced by database constraints, not application
// pre-checks; IsUniqueViolation lets the services translate constraint
// failures into their domain conflict errors.
package postgres
