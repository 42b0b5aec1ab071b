// Package async provides a safe wrapper for fire-and-forget goroutines.
//
// Notification delivery and cache invalidation must never block or crash a
// billing request. SafeGo bounds each task with a timeout, recovers panics,
// and logs failures instead of propagating them.
package async
