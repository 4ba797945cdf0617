package models

import "time"

type CrewState string

const (
	CrewIdle       CrewState = "idle"
	CrewEnCamino   CrewState = "en_camino"
	CrewWorking    CrewState = "working"
	CrewInProgress CrewState = "in_progress"
)

// Crew is a field team. State is a projection derived from the crew's
// non-terminal work orders; it is recomputed after every order transition
// rather than maintained incrementally.
type Crew struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Name           string     `json:"name"`
	State          CrewState  `json:"state"`
	Members        []string   `json:"members,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	LastLocationAt *time.Time `json:"last_location_at,omitempty"`
}
