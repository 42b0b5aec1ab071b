// Package sweeps holds the scheduled jobs that keep billing state
// moving without human action: renewal reminders, pre-expiry invoice
// generation, lazy-state reconciliation for expired subscriptions, and
// the overdue pass over the student fee ledger. Every sweep is written
// to be safe to re-run; a failing item is logged and skipped, never
// allowed to stall the rest of the batch.
package sweeps
