// Package invoices generates and tracks subscription invoices. An
// invoice bills one subscription period; at most one unpaid invoice may
// exist per subscription at a time, which the database enforces with a
// partial unique index so concurrent generators cannot double-bill.
package invoices
