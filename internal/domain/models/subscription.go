package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVA"
	SubscriptionPastDue   SubscriptionStatus = "VENCIDA"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDIDA"
	SubscriptionCancelled SubscriptionStatus = "CANCELADA"
)

// Subscription is the billing row the periodic sweep ages. Only the status
// aging matters here; plan pricing lives elsewhere.
type Subscription struct {
	ID               string             `json:"id"`
	CustomerID       string             `json:"customer_id"`
	Plan             string             `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd time.Time          `json:"current_period_end"`
	GraceUntil       *time.Time         `json:"grace_until,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
}
