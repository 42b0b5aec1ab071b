package gateway

import (
	"encoding/json"
	"fmt"
)

// SimulationGateway is the built-in test gateway. Its events already use
// the neutral shape, but its signatures are verified like any other
// provider's.
type SimulationGateway struct {
	secret string
}

// NewSimulationGateway creates a SimulationGateway with the given secret
func NewSimulationGateway(secret string) *SimulationGateway {
	return &SimulationGateway{secret: secret}
}

func (g *SimulationGateway) Name() string { return "simulation" }

func (g *SimulationGateway) VerifySignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, g.secret)
}

func (g *SimulationGateway) ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", ErrMalformedEvent)
	}
	switch event.Type {
	case EventPaymentSuccess, EventPaymentFailed:
	default:
		return nil, fmt.Errorf("%w: unsupported event type %q", ErrMalformedEvent, event.Type)
	}

	event.Gateway = g.Name()
	return &event, nil
}

// RazorpayGateway adapts the razorpay webhook format
type RazorpayGateway struct {
	secret string
}

// NewRazorpayGateway creates a RazorpayGateway with the given secret
func NewRazorpayGateway(secret string) *RazorpayGateway {
	return &RazorpayGateway{secret: secret}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) VerifySignature(payload []byte, signature string) bool {
	return verifyHMAC(payload, signature, g.secret)
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (g *RazorpayGateway) ParseEvent(payload []byte) (*Event, error) {
	var raw razorpayEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if raw.Payload.Payment.Entity.ID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformedEvent)
	}

	var eventType EventType
	switch raw.Event {
	case "payment.captured":
		eventType = EventPaymentSuccess
	case "payment.failed":
		eventType = EventPaymentFailed
	default:
		return nil, fmt.Errorf("%w: unsupported event type %q", ErrMalformedEvent, raw.Event)
	}

	return &Event{
		Gateway:       g.Name(),
		Type:          eventType,
		TransactionID: raw.Payload.Payment.Entity.ID,
		AmountCents:   raw.Payload.Payment.Entity.Amount,
	}, nil
}
