// Package states holds the transition tables for work orders and crews.
// Pure lookups, no I/O. Rejecting illegal transitions here guarantees the
// order timeline is always a replayable history.
package states

import (
	"aaron-services/internal/domain/models"
)

// orderTransitions is the total adjacency table for the 16 order states.
// Every state has an entry; terminal states map to the empty set.
var orderTransitions = map[models.OrderState][]models.OrderState{
	models.StateBorrador:   {models.StatePendiente, models.StateCotizada, models.StateCancelada},
	models.StatePendiente:  {models.StateAsignada, models.StateProgramada, models.StateCancelada},
	models.StateCotizada:   {models.StateAprobada, models.StateCancelada},
	models.StateAprobada:   {models.StatePendiente, models.StateProgramada, models.StateCancelada},
	models.StateAsignada:   {models.StateProgramada, models.StateEnCamino, models.StateCancelada},
	models.StateProgramada: {models.StateAsignada, models.StateEnCamino, models.StateReprogramada, models.StateCancelada},
	models.StateReprogramada: {
		models.StateProgramada, models.StateAsignada, models.StateCancelada,
	},
	models.StateEnCamino:   {models.StateEnSitio, models.StateCancelada},
	models.StateEnSitio:    {models.StateEnProgreso, models.StateCancelada},
	models.StateEnProgreso: {models.StatePausada, models.StateEsperandoRepuestos, models.StateCompletada, models.StateCancelada},
	models.StatePausada:    {models.StateEnProgreso, models.StateCancelada},
	models.StateEsperandoRepuestos: {
		models.StateEnProgreso, models.StateReprogramada, models.StateCancelada,
	},
	models.StateCompletada: {models.StateEnRevision, models.StateFinalizada},
	models.StateEnRevision: {models.StateEnProgreso, models.StateFinalizada, models.StateCancelada},
	models.StateFinalizada: {},
	models.StateCancelada:  {},
}

// crewTransitions is the 4-node crew graph. No terminal states: a crew can
// always come back to idle.
var crewTransitions = map[models.CrewState][]models.CrewState{
	models.CrewIdle:       {models.CrewEnCamino},
	models.CrewEnCamino:   {models.CrewWorking, models.CrewInProgress, models.CrewIdle},
	models.CrewWorking:    {models.CrewInProgress, models.CrewIdle},
	models.CrewInProgress: {models.CrewWorking, models.CrewIdle},
}

// IsValidOrderTransition checks current -> target against the order table.
// Same-state transitions are always valid so callers can apply
// metadata-only updates; the service layer adds the terminal-state guard on
// top of this (a terminal order refuses even same-state writes).
func IsValidOrderTransition(current, target models.OrderState) error {
	if current == target {
		return nil
	}
	allowed, ok := orderTransitions[current]
	if !ok {
		return &models.InvalidTransitionError{From: string(current), To: string(target), Allowed: nil}
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return &models.InvalidTransitionError{From: string(current), To: string(target), Allowed: stateNames(allowed)}
}

// IsValidCrewTransition checks current -> target against the crew graph.
func IsValidCrewTransition(current, target models.CrewState) error {
	if current == target {
		return nil
	}
	allowed, ok := crewTransitions[current]
	if !ok {
		return &models.InvalidTransitionError{From: string(current), To: string(target), Allowed: nil}
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return &models.InvalidTransitionError{From: string(current), To: string(target), Allowed: crewStateNames(allowed)}
}

// KnownOrderState reports whether s appears in the adjacency table.
func KnownOrderState(s models.OrderState) bool {
	_, ok := orderTransitions[s]
	return ok
}

// OrderTransitionsFrom returns a copy of the allowed outgoing set for s.
func OrderTransitionsFrom(s models.OrderState) []models.OrderState {
	allowed := orderTransitions[s]
	out := make([]models.OrderState, len(allowed))
	copy(out, allowed)
	return out
}

func stateNames(states []models.OrderState) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}

func crewStateNames(states []models.CrewState) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}
