package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventOrderEnCamino  EventType = "ORDER_EN_CAMINO"
	EventOrderStatus    EventType = "ORDER_STATUS"
	EventLocationUpdate EventType = "LOCATION_UPDATE"
)

// Envelope is the bus wire format: a discriminated {type, data} pair.
// Events exist only in transit and are never persisted verbatim.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type OrderEnCaminoEvent struct {
	OrderID        string              `json:"orderId"`
	CrewID         string              `json:"crewId"`
	TargetLocation LocationWithAddress `json:"targetLocation"`
	Timestamp      time.Time           `json:"timestamp"`
}

type OrderStatusEvent struct {
	OrderID   string     `json:"orderId"`
	CrewID    string     `json:"crewId,omitempty"`
	State     OrderState `json:"state"`
	Note      string     `json:"note,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type LocationUpdateEvent struct {
	OrderID   string    `json:"orderId,omitempty"`
	CrewID    string    `json:"crewId"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope wraps a typed event payload.
func NewEnvelope(t EventType, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: raw}, nil
}

// ParseEnvelope decodes a bus message. Legacy producers published the
// en-camino payload bare, with no type field; those messages are still
// accepted and treated as ORDER_EN_CAMINO. This is intentional backward
// compatibility, not an error path.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	switch env.Type {
	case EventOrderEnCamino, EventOrderStatus, EventLocationUpdate:
		return env, nil
	case "":
		return Envelope{Type: EventOrderEnCamino, Data: json.RawMessage(body)}, nil
	default:
		return Envelope{}, fmt.Errorf("unknown event type %q", env.Type)
	}
}
