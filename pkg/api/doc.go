// Package api exposes the billing HTTP surface: plan catalog,
// subscription lifecycle, invoices, payments, plan limit checks, and
// the student fee ledger. Handlers read the caller's identity from the
// request context; tenancy is never taken from the URL except by super
// admins.
package api
