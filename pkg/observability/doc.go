// Package observability provides structured logging and Prometheus metrics
// for the billing engine.
//
// The Logger is a thin wrapper over stdlib slog emitting JSON, with
// field-chaining helpers so request IDs and tenant IDs travel with log
// lines. Metrics covers the billing-specific counters (invoices generated,
// payments by status, webhook verification results, sweep runs) plus
// database pool gauges.
package observability
