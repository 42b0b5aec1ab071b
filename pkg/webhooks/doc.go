// Package webhooks receives payment gateway callbacks and reconciles
// them against recorded payments. Verification fails closed: an event
// whose signature does not verify is rejected before its payload is
// even parsed.
package webhooks
