package models

import (
	"errors"
	"fmt"
)

// Domain failures are distinct from infrastructure failures so callers can
// map them to the right boundary response without string matching.
var (
	ErrNotFound           = errors.New("not found")
	ErrTerminalState      = errors.New("work order is in a terminal state")
	ErrCrewNotIdle        = errors.New("crew is not idle")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// InvalidTransitionError reports an order or crew transition rejected by the
// state tables, naming the allowed outgoing set.
type InvalidTransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (allowed: %v)", e.From, e.To, e.Allowed)
}

// IsConflict reports whether err is a state-conflict failure: an illegal
// transition, a terminal order, or a busy crew.
func IsConflict(err error) bool {
	var it *InvalidTransitionError
	return errors.Is(err, ErrTerminalState) || errors.Is(err, ErrCrewNotIdle) || errors.As(err, &it)
}
