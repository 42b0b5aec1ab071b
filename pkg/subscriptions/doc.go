// Package subscriptions manages the tenant subscription lifecycle.
//
// Each tenant holds at most one subscription in the active or trial state
// at any instant: replacing a plan cancels the previous subscription and
// inserts the new one inside a single transaction. Expiry is enforced
// twice with the same predicate, lazily on read (GetActive never returns
// a subscription past its expiry) and proactively by the renewal sweep,
// so reads stay correct even when no sweep has run.
package subscriptions
