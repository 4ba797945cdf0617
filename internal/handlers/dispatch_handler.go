package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"aaron-services/internal/domain/models"
)

// Dispatcher is the order surface the REST layer depends on.
type Dispatcher interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.WorkOrder, error)
	AssignCrew(ctx context.Context, orderID, crewID string) (*models.WorkOrder, error)
	ChangeOrderState(ctx context.Context, orderID string, target models.OrderState, note string) (*models.WorkOrder, error)
	RecordLocation(ctx context.Context, orderID, crewID string, lat, lng float64) (*models.CrewPing, error)
	CreateCrew(ctx context.Context, name string, members []string) (*models.Crew, error)
	GetCrew(ctx context.Context, crewID string) (*models.Crew, error)
	GetOrder(ctx context.Context, orderID string) (*models.WorkOrder, error)
	GetTimeline(ctx context.Context, orderID string, limit, offset int) ([]models.WorkOrderEvent, error)
}

type DispatchHandler struct {
	dispatch Dispatcher
}

func NewDispatchHandler(dispatch Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatch: dispatch}
}

func (h *DispatchHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.CustomerID == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "customer_id is required")
		return
	}

	order, err := h.dispatch.CreateOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *DispatchHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.dispatch.GetOrder(r.Context(), r.PathValue("order_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type assignRequest struct {
	CrewID string `json:"crew_id"`
}

func (h *DispatchHandler) AssignCrew(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.CrewID == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "crew_id is required")
		return
	}

	order, err := h.dispatch.AssignCrew(r.Context(), r.PathValue("order_id"), req.CrewID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type changeStateRequest struct {
	State models.OrderState `json:"state"`
	Note  string            `json:"note,omitempty"`
}

func (h *DispatchHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	var req changeStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.State == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "state is required")
		return
	}

	order, err := h.dispatch.ChangeOrderState(r.Context(), r.PathValue("order_id"), req.State, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type createCrewRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

func (h *DispatchHandler) CreateCrew(w http.ResponseWriter, r *http.Request) {
	var req createCrewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.Name == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "name is required")
		return
	}

	crew, err := h.dispatch.CreateCrew(r.Context(), req.Name, req.Members)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, crew)
}

func (h *DispatchHandler) GetCrew(w http.ResponseWriter, r *http.Request) {
	crew, err := h.dispatch.GetCrew(r.Context(), r.PathValue("crew_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crew)
}

type recordLocationRequest struct {
	CrewID string  `json:"crew_id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// RecordLocation accepts a position relayed through the dispatch API rather
// than the live socket. The ping is persisted first, then fanned out.
func (h *DispatchHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	var req recordLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "malformed request body")
		return
	}
	if req.CrewID == "" {
		writeProblem(w, http.StatusBadRequest, "validation", "crew_id is required")
		return
	}

	ping, err := h.dispatch.RecordLocation(r.Context(), r.PathValue("order_id"), req.CrewID, req.Lat, req.Lng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ping)
}

func (h *DispatchHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 50)
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)

	events, err := h.dispatch.GetTimeline(r.Context(), orderID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "events": events})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
