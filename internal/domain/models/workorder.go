package models

import "time"

type OrderState string
type Priority string

const (
	StateBorrador           OrderState = "BORRADOR"
	StatePendiente          OrderState = "PENDIENTE"
	StateCotizada           OrderState = "COTIZADA"
	StateAprobada           OrderState = "APROBADA"
	StateAsignada           OrderState = "ASIGNADA"
	StateProgramada         OrderState = "PROGRAMADA"
	StateReprogramada       OrderState = "REPROGRAMADA"
	StateEnCamino           OrderState = "EN_CAMINO"
	StateEnSitio            OrderState = "EN_SITIO"
	StateEnProgreso         OrderState = "EN_PROGRESO"
	StatePausada            OrderState = "PAUSADA"
	StateEsperandoRepuestos OrderState = "ESPERANDO_REPUESTOS"
	StateCompletada         OrderState = "COMPLETADA"
	StateEnRevision         OrderState = "EN_REVISION"
	StateFinalizada         OrderState = "FINALIZADA"
	StateCancelada          OrderState = "CANCELADA"

	PriorityLow    Priority = "BAJA"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "ALTA"
	PriorityUrgent Priority = "URGENTE"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s OrderState) IsTerminal() bool {
	return s == StateFinalizada || s == StateCancelada
}

type WorkOrder struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CustomerID  string     `json:"customer_id"`
	CrewID      *string    `json:"crew_id,omitempty"`
	PropertyID  *string    `json:"property_id,omitempty"`
	State       OrderState `json:"state"`
	Priority    Priority   `json:"priority"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Progress    int        `json:"progress"`
}

// WorkOrderEvent is one row of the append-only order timeline. Rows are
// written once per transition and never mutated afterwards.
type WorkOrderEvent struct {
	ID          string            `json:"id"`
	WorkOrderID string            `json:"work_order_id"`
	Type        string            `json:"type"`
	StateFrom   OrderState        `json:"state_from"`
	StateTo     OrderState        `json:"state_to"`
	Note        string            `json:"note,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type CreateOrderRequest struct {
	CustomerID  string   `json:"customer_id"`
	PropertyID  *string  `json:"property_id,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
}
