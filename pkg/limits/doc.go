// Package limits enforces per-plan resource quotas on tenants. Limits
// come from the tenant's active subscription plan; a nil limit on the
// plan means the resource is unmetered. Tenants without a live
// subscription are not limited here, that gate belongs to the
// subscription check itself.
package limits
