package websocket

import (
	"time"

	"aaron-services/internal/domain/models"
)

// Client-origin frame. One shape covers subscribe, unsubscribe and
// location_update; the type field picks the fields that matter.
type clientFrame struct {
	Type    string  `json:"type"`
	Room    string  `json:"room,omitempty"`
	CrewID  string  `json:"crewId,omitempty"`
	OrderID string  `json:"orderId,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

type subscribedFrame struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Success bool   `json:"success"`
}

type locationSavedFrame struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	PingID  string `json:"pingId"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type orderEnCaminoFrame struct {
	Type           string                     `json:"type"`
	OrderID        string                     `json:"orderId"`
	CrewID         string                     `json:"crewId"`
	TargetLocation models.LocationWithAddress `json:"targetLocation"`
	Timestamp      time.Time                  `json:"timestamp"`
}

type orderStatusFrame struct {
	Type      string           `json:"type"`
	OrderID   string           `json:"orderId"`
	CrewID    string           `json:"crewId,omitempty"`
	State     models.OrderState `json:"state"`
	Note      string           `json:"note,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type locationUpdateFrame struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"orderId,omitempty"`
	CrewID    string    `json:"crewId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}
