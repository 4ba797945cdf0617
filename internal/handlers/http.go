package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"aaron-services/internal/domain/models"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem emits the shared error shape: a machine-readable type plus
// detail text.
func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// writeDomainError maps a service failure onto the right status class:
// state conflicts and validation failures are the caller's problem,
// everything else is an infrastructure 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
	case models.IsConflict(err):
		writeProblem(w, http.StatusConflict, "state_conflict", err.Error())
	case errors.Is(err, models.ErrInvalidCoordinates):
		writeProblem(w, http.StatusBadRequest, "validation", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
