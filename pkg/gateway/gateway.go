package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// EventType classifies a gateway webhook event
type EventType string

const (
	EventPaymentSuccess EventType = "payment.success"
	EventPaymentFailed  EventType = "payment.failed"
)

// Event is the gateway-neutral form of a webhook notification
type Event struct {
	Gateway       string    `json:"gateway"`
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
}

var (
	// ErrUnknownGateway indicates no adapter is registered for the name
	ErrUnknownGateway = errors.New("unknown payment gateway")

	// ErrInvalidSignature indicates the webhook signature did not verify
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedEvent indicates the payload could not be parsed
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Gateway adapts one payment provider's webhook format
type Gateway interface {
	// Name is the stable identifier used in webhook URLs and payment rows
	Name() string

	// VerifySignature checks the payload against the signature header
	VerifySignature(payload []byte, signature string) bool

	// ParseEvent decodes a verified payload into the neutral event shape
	ParseEvent(payload []byte) (*Event, error)
}

// Registry resolves gateways by name
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry creates a Registry over the given gateways
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, gw := range gateways {
		r.gateways[gw.Name()] = gw
	}
	return r
}

// Get resolves a gateway by name
func (r *Registry) Get(name string) (Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	return gw, nil
}

// Names lists registered gateway names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}

// SignPayload generates the HMAC-SHA256 signature for a payload
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	if secret == "" {
		// unconfigured gateways fail closed
		return false
	}
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
