// Package payments records gateway payments against invoices and
// settles invoices when successful payments cover the billed amount.
// Settlement always re-sums successful payments under a row lock on the
// invoice, so two payments landing at once cannot both compute a stale
// total. Gateway transaction ids are globally unique; a replayed
// transaction is rejected at the database, not by a read-then-write
// check.
package payments
