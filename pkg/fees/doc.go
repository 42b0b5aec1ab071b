// Package fees tracks the per-student fee ledger: what each student
// owes a school, what has been collected against it, and which unpaid
// fees are overdue. This ledger is the school's receivable side; the
// platform's own subscription billing lives in the invoices and
// payments packages.
package fees
