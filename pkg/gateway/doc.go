// Package gateway adapts payment gateway webhook formats to one event
// shape. Every gateway, including the built-in simulation one, goes
// through the same HMAC verification; there is no trusted shortcut.
package gateway
