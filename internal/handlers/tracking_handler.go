package handlers

import (
	"context"
	"net/http"
	"time"

	"aaron-services/internal/common/middleware"
	"aaron-services/internal/domain/models"
)

// TrackerService is the tracking surface the REST layer depends on.
type TrackerService interface {
	SavePing(ctx context.Context, crewID, orderID string, lat, lng float64, source models.PingSource) (*models.CrewPing, error)
	GetRoute(ctx context.Context, crewID, orderID string, from, to *time.Time) (*models.RouteResult, error)
	ListSummaries(ctx context.Context, filter models.SummaryFilter) ([]models.RouteSummary, error)
}

type TrackingHandler struct {
	tracking TrackerService
}

func NewTrackingHandler(tracking TrackerService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

type pingRequest struct {
	CrewID  string  `json:"crewId"`
	OrderID string  `json:"orderId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Source  string  `json:"source,omitempty"`
}

func (h *TrackingHandler) SavePing(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req pingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.CrewID == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "crewId is required")
		return
	}

	// A non-privileged caller may only report positions for its own crew.
	if !principal.IsAdmin() && principal.CrewID != req.CrewID {
		writeProblem(w, http.StatusForbidden, "forbidden", "cannot ping for another crew")
		return
	}

	ping, err := h.tracking.SavePing(r.Context(), req.CrewID, req.OrderID, req.Lat, req.Lng, models.PingSource(req.Source))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ping)
}

func (h *TrackingHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	crewID := q.Get("crewId")
	if crewID == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "crewId is required")
		return
	}

	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "invalid from timestamp")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "invalid to timestamp")
		return
	}

	route, err := h.tracking.GetRoute(r.Context(), crewID, q.Get("orderId"), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (h *TrackingHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "invalid from timestamp")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "invalid to timestamp")
		return
	}

	summaries, err := h.tracking.ListSummaries(r.Context(), models.SummaryFilter{
		CrewID:  q.Get("crewId"),
		OrderID: q.Get("orderId"),
		From:    from,
		To:      to,
		Limit:   atoiDefault(q.Get("limit"), 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
