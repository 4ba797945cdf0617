package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"aaron-services/internal/domain/models"
	"aaron-services/internal/domain/states"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDispatchFixture() (*DispatchService, *fakeOrderRepo, *fakeCrewRepo, *fakeBus) {
	log := zap.NewNop().Sugar()
	orders := newFakeOrderRepo()
	crews := newFakeCrewRepo()
	orders.crews = crews
	bus := &fakeBus{}
	tracking := NewTrackingService(newFakeTrackingRepo(), crews, log)
	svc := NewDispatchService(orders, crews, tracking, bus, log)
	return svc, orders, crews, bus
}

func seedOrder(t *testing.T, svc *DispatchService) *models.WorkOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1",
		Address:    "Av. Siempre Viva 742",
		Latitude:   -34.6,
		Longitude:  -58.4,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatePendiente, order.State)
	return order
}

func seedIdleCrew(t *testing.T, crews *fakeCrewRepo, id string) {
	t.Helper()
	require.NoError(t, crews.CreateCrew(context.Background(), &models.Crew{
		ID: id, Name: "Cuadrilla " + id, State: models.CrewIdle,
	}))
}

func TestAssignCrewToIdleCrew(t *testing.T) {
	svc, orders, crews, bus := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	got, err := svc.AssignCrew(context.Background(), order.ID, "c1")
	require.NoError(t, err)

	assert.Equal(t, models.StateAsignada, got.State)
	require.NotNil(t, got.CrewID)
	assert.Equal(t, "c1", *got.CrewID)
	assert.Equal(t, models.CrewEnCamino, crews.stateOf("c1"))

	events := orders.eventsFor(order.ID)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatePendiente, events[0].StateFrom)
	assert.Equal(t, models.StateAsignada, events[0].StateTo)

	require.Len(t, bus.byType(models.EventOrderStatus), 1)
}

func TestAssignCrewRejectsBusyCrew(t *testing.T) {
	svc, orders, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	require.NoError(t, crews.CreateCrew(context.Background(), &models.Crew{
		ID: "c1", Name: "Cuadrilla c1", State: models.CrewEnCamino,
	}))

	_, err := svc.AssignCrew(context.Background(), order.ID, "c1")
	assert.ErrorIs(t, err, models.ErrCrewNotIdle)
	assert.Empty(t, orders.eventsFor(order.ID))
}

func TestChangeOrderStateRejectsIllegalTransition(t *testing.T) {
	svc, orders, _, bus := newDispatchFixture()
	order := seedOrder(t, svc)

	// PENDIENTE -> EN_CAMINO skips assignment and must be rejected.
	_, err := svc.ChangeOrderState(context.Background(), order.ID, models.StateEnCamino, "")
	require.Error(t, err)

	var it *models.InvalidTransitionError
	require.True(t, errors.As(err, &it))
	assert.ElementsMatch(t, []string{"ASIGNADA", "PROGRAMADA", "CANCELADA"}, it.Allowed)

	// No writes of any kind.
	reloaded, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePendiente, reloaded.State)
	assert.Empty(t, orders.eventsFor(order.ID))
	assert.Empty(t, bus.published)
}

func TestTerminalOrderRefusesEverything(t *testing.T) {
	svc, _, _, _ := newDispatchFixture()
	order := seedOrder(t, svc)

	_, err := svc.ChangeOrderState(context.Background(), order.ID, models.StateCancelada, "customer cancelled")
	require.NoError(t, err)

	// The pure validator allows CANCELADA -> CANCELADA as a same-state
	// no-op; the service must still refuse it. That is the one spot the
	// two layers intentionally differ.
	require.NoError(t, states.IsValidOrderTransition(models.StateCancelada, models.StateCancelada))
	_, err = svc.ChangeOrderState(context.Background(), order.ID, models.StateCancelada, "")
	assert.ErrorIs(t, err, models.ErrTerminalState)

	_, err = svc.ChangeOrderState(context.Background(), order.ID, models.StatePendiente, "")
	assert.ErrorIs(t, err, models.ErrTerminalState)
}

func TestDerivedTimestamps(t *testing.T) {
	svc, _, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)

	for _, target := range []models.OrderState{models.StateEnCamino, models.StateEnSitio} {
		_, err = svc.ChangeOrderState(ctx, order.ID, target, "")
		require.NoError(t, err)
	}

	got, err := svc.ChangeOrderState(ctx, order.ID, models.StateEnProgreso, "")
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	startedAt := *got.StartedAt

	// Pausing and resuming must not move startedAt.
	_, err = svc.ChangeOrderState(ctx, order.ID, models.StatePausada, "")
	require.NoError(t, err)
	got, err = svc.ChangeOrderState(ctx, order.ID, models.StateEnProgreso, "")
	require.NoError(t, err)
	assert.Equal(t, startedAt, *got.StartedAt)

	for _, target := range []models.OrderState{models.StateCompletada, models.StateFinalizada} {
		got, err = svc.ChangeOrderState(ctx, order.ID, target, "")
		require.NoError(t, err)
	}
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 100, got.Progress)
}

func TestCrewReturnsToIdleWhenNoOpenOrders(t *testing.T) {
	svc, _, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)
	require.Equal(t, models.CrewEnCamino, crews.stateOf("c1"))

	_, err = svc.ChangeOrderState(ctx, order.ID, models.StateCancelada, "")
	require.NoError(t, err)
	assert.Equal(t, models.CrewIdle, crews.stateOf("c1"))
}

func TestCrewStateFollowsOrderProgress(t *testing.T) {
	svc, _, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)

	steps := []struct {
		target models.OrderState
		crew   models.CrewState
	}{
		{models.StateEnCamino, models.CrewEnCamino},
		{models.StateEnSitio, models.CrewWorking},
		{models.StateEnProgreso, models.CrewInProgress},
	}
	for _, step := range steps {
		_, err = svc.ChangeOrderState(ctx, order.ID, step.target, "")
		require.NoError(t, err)
		assert.Equal(t, step.crew, crews.stateOf("c1"), "after %s", step.target)
	}
}

func TestCrewRecomputeConsultsCrewGraph(t *testing.T) {
	svc, _, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)
	_, err = svc.ChangeOrderState(ctx, order.ID, models.StateEnCamino, "")
	require.NoError(t, err)

	// Force the stored row out of step with the projection. The next
	// derivation (working) has no edge from idle, so the write is refused
	// and the row keeps its current value.
	require.NoError(t, crews.UpdateCrewState(ctx, "c1", models.CrewIdle))

	got, err := svc.ChangeOrderState(ctx, order.ID, models.StateEnSitio, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateEnSitio, got.State)
	assert.Equal(t, models.CrewIdle, crews.stateOf("c1"))
}

func TestCrewRecomputeFailureDoesNotRollBackOrder(t *testing.T) {
	svc, orders, crews, _ := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)

	orders.failActive = true
	got, err := svc.ChangeOrderState(ctx, order.ID, models.StateEnCamino, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateEnCamino, got.State)
}

func TestEnCaminoEmitsDestination(t *testing.T) {
	svc, _, crews, bus := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")

	ctx := context.Background()
	_, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)
	require.Empty(t, bus.byType(models.EventOrderEnCamino))

	_, err = svc.ChangeOrderState(ctx, order.ID, models.StateEnCamino, "")
	require.NoError(t, err)

	envs := bus.byType(models.EventOrderEnCamino)
	require.Len(t, envs, 1)

	var ev models.OrderEnCaminoEvent
	require.NoError(t, json.Unmarshal(envs[0].Data, &ev))
	assert.Equal(t, order.ID, ev.OrderID)
	assert.Equal(t, "c1", ev.CrewID)
	assert.Equal(t, "Av. Siempre Viva 742", ev.TargetLocation.Address)
	assert.Equal(t, -34.6, ev.TargetLocation.Latitude)
	assert.Equal(t, -58.4, ev.TargetLocation.Longitude)

	// Further transitions emit status events but no second en-camino.
	_, err = svc.ChangeOrderState(ctx, order.ID, models.StateEnSitio, "")
	require.NoError(t, err)
	assert.Len(t, bus.byType(models.EventOrderEnCamino), 1)
}

func TestBusFailureNeverBlocksBusinessWrite(t *testing.T) {
	svc, orders, crews, bus := newDispatchFixture()
	order := seedOrder(t, svc)
	seedIdleCrew(t, crews, "c1")
	bus.err = errors.New("broker unreachable")

	ctx := context.Background()
	got, err := svc.AssignCrew(ctx, order.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAsignada, got.State)
	assert.Len(t, orders.eventsFor(order.ID), 1)
}

func TestRecordLocationPersistsThenPublishes(t *testing.T) {
	log := zap.NewNop().Sugar()
	orders := newFakeOrderRepo()
	crews := newFakeCrewRepo()
	trackingRepo := newFakeTrackingRepo()
	bus := &fakeBus{}
	tracking := NewTrackingService(trackingRepo, crews, log)
	svc := NewDispatchService(orders, crews, tracking, bus, log)
	seedIdleCrew(t, crews, "c1")

	ping, err := svc.RecordLocation(context.Background(), "o1", "c1", -34.6, -58.4)
	require.NoError(t, err)
	assert.Equal(t, models.SourceRelayed, ping.Source)
	require.Len(t, bus.byType(models.EventLocationUpdate), 1)

	// Invalid coordinates: no write, no event.
	_, err = svc.RecordLocation(context.Background(), "o1", "c1", 91, 0)
	assert.ErrorIs(t, err, models.ErrInvalidCoordinates)
	assert.Len(t, bus.byType(models.EventLocationUpdate), 1)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _, _ := newDispatchFixture()

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "", Latitude: 0, Longitude: 0,
	})
	assert.Error(t, err)

	_, err = svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1", Latitude: 95, Longitude: 0,
	})
	assert.ErrorIs(t, err, models.ErrInvalidCoordinates)
}
