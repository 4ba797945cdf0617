package services

import (
	"context"
	"fmt"
	"time"

	"aaron-services/internal/domain/models"
	"aaron-services/internal/domain/repo"
	"aaron-services/internal/domain/states"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher is the dispatch side of the bus. Publishing is best-effort
// by contract: implementations swallow broker unavailability.
type EventPublisher interface {
	Publish(ctx context.Context, env models.Envelope) error
}

// DispatchService owns work-order and crew state. All order mutations flow
// through here so the timeline stays a valid replay of the state machine.
type DispatchService struct {
	orders   repo.WorkOrderRepository
	crews    repo.CrewRepository
	tracking *TrackingService
	bus      EventPublisher
	log      *zap.SugaredLogger
}

func NewDispatchService(orders repo.WorkOrderRepository, crews repo.CrewRepository, tracking *TrackingService, bus EventPublisher, log *zap.SugaredLogger) *DispatchService {
	return &DispatchService{
		orders:   orders,
		crews:    crews,
		tracking: tracking,
		bus:      bus,
		log:      log,
	}
}

func (s *DispatchService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.WorkOrder, error) {
	if req.CustomerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if !models.ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, models.ErrInvalidCoordinates
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	order := &models.WorkOrder{
		ID:          uuid.NewString(),
		CustomerID:  req.CustomerID,
		PropertyID:  req.PropertyID,
		State:       models.StatePendiente,
		Priority:    priority,
		Description: req.Description,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func (s *DispatchService) CreateCrew(ctx context.Context, name string, members []string) (*models.Crew, error) {
	if name == "" {
		return nil, fmt.Errorf("crew name is required")
	}

	crew := &models.Crew{
		ID:      uuid.NewString(),
		Name:    name,
		State:   models.CrewIdle,
		Members: members,
	}
	if err := s.crews.CreateCrew(ctx, crew); err != nil {
		return nil, fmt.Errorf("failed to create crew: %w", err)
	}
	return crew, nil
}

func (s *DispatchService) GetCrew(ctx context.Context, crewID string) (*models.Crew, error) {
	return s.crews.GetCrewByID(ctx, crewID)
}

// AssignCrew is legal only while the crew is idle. It moves the order to
// ASIGNADA and the crew to en_camino in one transaction and appends one
// timeline row.
func (s *DispatchService) AssignCrew(ctx context.Context, orderID, crewID string) (*models.WorkOrder, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.State.IsTerminal() {
		return nil, models.ErrTerminalState
	}

	crew, err := s.crews.GetCrewByID(ctx, crewID)
	if err != nil {
		return nil, err
	}
	if crew.State != models.CrewIdle {
		return nil, models.ErrCrewNotIdle
	}

	if err := states.IsValidOrderTransition(order.State, models.StateAsignada); err != nil {
		return nil, err
	}
	if err := states.IsValidCrewTransition(crew.State, models.CrewEnCamino); err != nil {
		return nil, err
	}

	previous := order.State
	order.State = models.StateAsignada
	order.CrewID = &crewID
	crew.State = models.CrewEnCamino

	if err := s.orders.AssignCrew(ctx, order, crew); err != nil {
		return nil, fmt.Errorf("failed to assign crew: %w", err)
	}

	s.appendEvent(ctx, order, "crew_assigned", previous, order.State, "assigned to crew "+crewID, nil)
	s.emitOrderStatus(ctx, order, "")

	return order, nil
}

// ChangeOrderState is the single entry point for order transitions. There
// is no version check on the state column; the last concurrent writer wins
// and each appends its own timeline row.
func (s *DispatchService) ChangeOrderState(ctx context.Context, orderID string, target models.OrderState, note string) (*models.WorkOrder, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Terminal orders refuse everything, including the same-state writes
	// the pure validator would allow.
	if order.State.IsTerminal() {
		return nil, models.ErrTerminalState
	}
	if !states.KnownOrderState(target) {
		return nil, &models.InvalidTransitionError{From: string(order.State), To: string(target)}
	}
	if err := states.IsValidOrderTransition(order.State, target); err != nil {
		return nil, err
	}

	previous := order.State
	order.State = target

	now := time.Now()
	if target == models.StateEnProgreso && order.StartedAt == nil {
		order.StartedAt = &now
	}
	if target == models.StateFinalizada {
		order.CompletedAt = &now
		order.Progress = 100
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.appendEvent(ctx, order, "state_changed", previous, target, note, nil)

	// Crew state is a derived projection; recomputing it is best-effort
	// and never rolls back the order write.
	if order.CrewID != nil {
		if err := s.recomputeCrewState(ctx, *order.CrewID); err != nil {
			s.log.Warnw("failed to recompute crew state", "crew_id", *order.CrewID, "error", err)
		}
	}

	s.emitOrderStatus(ctx, order, note)
	if target == models.StateEnCamino {
		s.emitEnCamino(ctx, order)
	}

	return order, nil
}

// RecordLocation relays a crew position received on the dispatch side:
// persist first, then best-effort publish for live viewers.
func (s *DispatchService) RecordLocation(ctx context.Context, orderID, crewID string, lat, lng float64) (*models.CrewPing, error) {
	ping, err := s.tracking.SavePing(ctx, crewID, orderID, lat, lng, models.SourceRelayed)
	if err != nil {
		return nil, err
	}

	env, err := models.NewEnvelope(models.EventLocationUpdate, models.LocationUpdateEvent{
		OrderID:   orderID,
		CrewID:    crewID,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: ping.CreatedAt,
	})
	if err != nil {
		s.log.Warnw("failed to build location event", "error", err)
		return ping, nil
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		s.log.Warnw("failed to publish location event", "error", err)
	}

	return ping, nil
}

func (s *DispatchService) GetOrder(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

func (s *DispatchService) GetTimeline(ctx context.Context, orderID string, limit, offset int) ([]models.WorkOrderEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListEvents(ctx, orderID, limit, offset)
}

// recomputeCrewState re-derives the crew projection from its non-terminal
// orders. Always a fresh read, never cached. The derived target is checked
// against the crew graph before the write; a derivation the graph rejects
// means the projection and the stored row have diverged.
func (s *DispatchService) recomputeCrewState(ctx context.Context, crewID string) error {
	active, err := s.orders.ListActiveStatesByCrew(ctx, crewID)
	if err != nil {
		return err
	}
	crew, err := s.crews.GetCrewByID(ctx, crewID)
	if err != nil {
		return err
	}

	target := deriveCrewState(active)
	if crew.State == target {
		return nil
	}
	if err := states.IsValidCrewTransition(crew.State, target); err != nil {
		return err
	}
	return s.crews.UpdateCrewState(ctx, crewID, target)
}

// deriveCrewState maps the states of a crew's open orders onto the crew
// graph. The deepest engagement wins when several orders disagree; a crew
// with nothing open returns to idle.
func deriveCrewState(orderStates []models.OrderState) models.CrewState {
	if len(orderStates) == 0 {
		return models.CrewIdle
	}

	var onSite, enRoute bool
	for _, st := range orderStates {
		switch st {
		case models.StateEnProgreso, models.StatePausada, models.StateEsperandoRepuestos,
			models.StateCompletada, models.StateEnRevision:
			return models.CrewInProgress
		case models.StateEnSitio:
			onSite = true
		case models.StateEnCamino:
			enRoute = true
		}
	}
	if onSite {
		return models.CrewWorking
	}
	if enRoute {
		return models.CrewEnCamino
	}
	// Only assigned or scheduled work left: the crew is committed but not
	// yet on site.
	return models.CrewEnCamino
}

func (s *DispatchService) appendEvent(ctx context.Context, order *models.WorkOrder, eventType string, from, to models.OrderState, note string, metadata map[string]string) {
	event := &models.WorkOrderEvent{
		ID:          uuid.NewString(),
		WorkOrderID: order.ID,
		Type:        eventType,
		StateFrom:   from,
		StateTo:     to,
		Note:        note,
		Metadata:    metadata,
	}
	if err := s.orders.AppendEvent(ctx, event); err != nil {
		s.log.Errorw("failed to append timeline event", "order_id", order.ID, "error", err)
	}
}

func (s *DispatchService) emitOrderStatus(ctx context.Context, order *models.WorkOrder, note string) {
	crewID := ""
	if order.CrewID != nil {
		crewID = *order.CrewID
	}
	env, err := models.NewEnvelope(models.EventOrderStatus, models.OrderStatusEvent{
		OrderID:   order.ID,
		CrewID:    crewID,
		State:     order.State,
		Note:      note,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.Warnw("failed to build status event", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		s.log.Warnw("failed to publish status event", "error", err)
	}
}

func (s *DispatchService) emitEnCamino(ctx context.Context, order *models.WorkOrder) {
	crewID := ""
	if order.CrewID != nil {
		crewID = *order.CrewID
	}
	env, err := models.NewEnvelope(models.EventOrderEnCamino, models.OrderEnCaminoEvent{
		OrderID: order.ID,
		CrewID:  crewID,
		TargetLocation: models.LocationWithAddress{
			Address:   order.Address,
			Latitude:  order.Latitude,
			Longitude: order.Longitude,
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.Warnw("failed to build en-camino event", "error", err)
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		s.log.Warnw("failed to publish en-camino event", "error", err)
	}
}
