package models

import "time"

type PingSource string

const (
	SourceRealtime PingSource = "realtime"
	SourcePeriodic PingSource = "periodic"
	SourceRelayed  PingSource = "relayed"
)

// CrewPing is one GPS sample from a crew. Pings are append-only.
type CrewPing struct {
	ID        string     `json:"id"`
	CrewID    string     `json:"crew_id"`
	OrderID   string     `json:"order_id,omitempty"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Source    PingSource `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// RouteSummary aggregates one crew's pings over one UTC calendar day.
// Keyed by (crew, order-or-empty, bucket start); repeated route queries for
// the same day merge into the existing row.
type RouteSummary struct {
	ID          string    `json:"id"`
	CrewID      string    `json:"crew_id"`
	OrderID     string    `json:"order_id,omitempty"`
	BucketStart time.Time `json:"bucket_start"`
	DistanceKm  float64   `json:"distance_km"`
	PingCount   int       `json:"ping_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SummaryFilter struct {
	CrewID  string
	OrderID string
	From    *time.Time
	To      *time.Time
	Limit   int
}

// RouteResult is the on-demand answer to a route query.
type RouteResult struct {
	CrewID          string     `json:"crew_id"`
	OrderID         string     `json:"order_id,omitempty"`
	From            time.Time  `json:"from"`
	To              time.Time  `json:"to"`
	PingCount       int        `json:"ping_count"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	Pings           []CrewPing `json:"pings,omitempty"`
}
