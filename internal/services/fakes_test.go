package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"aaron-services/internal/domain/models"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.WorkOrder
	events []models.WorkOrderEvent

	failUpdate bool
	failActive bool

	// crews mirrors the real repository's AssignCrew, which updates the
	// crew row in the same transaction as the order.
	crews *fakeCrewRepo
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.WorkOrder)}
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order *models.WorkOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, orderID string) (*models.WorkOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderRepo) UpdateOrder(_ context.Context, order *models.WorkOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errors.New("store down")
	}
	if _, ok := f.orders[order.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *order
	cp.UpdatedAt = time.Now()
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) AssignCrew(ctx context.Context, order *models.WorkOrder, crew *models.Crew) error {
	f.mu.Lock()
	cp := *order
	f.orders[order.ID] = &cp
	f.mu.Unlock()
	if f.crews != nil {
		return f.crews.UpdateCrewState(ctx, crew.ID, crew.State)
	}
	return nil
}

func (f *fakeOrderRepo) AppendEvent(_ context.Context, event *models.WorkOrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.CreatedAt = time.Now()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeOrderRepo) ListEvents(_ context.Context, orderID string, limit, offset int) ([]models.WorkOrderEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WorkOrderEvent
	for _, ev := range f.events {
		if ev.WorkOrderID == orderID {
			out = append(out, ev)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrderRepo) ListActiveStatesByCrew(_ context.Context, crewID string) ([]models.OrderState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failActive {
		return nil, errors.New("store down")
	}
	var out []models.OrderState
	for _, order := range f.orders {
		if order.CrewID != nil && *order.CrewID == crewID && !order.State.IsTerminal() {
			out = append(out, order.State)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) eventsFor(orderID string) []models.WorkOrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WorkOrderEvent
	for _, ev := range f.events {
		if ev.WorkOrderID == orderID {
			out = append(out, ev)
		}
	}
	return out
}

type fakeCrewRepo struct {
	mu    sync.Mutex
	crews map[string]*models.Crew
}

func newFakeCrewRepo() *fakeCrewRepo {
	return &fakeCrewRepo{crews: make(map[string]*models.Crew)}
}

func (f *fakeCrewRepo) CreateCrew(_ context.Context, crew *models.Crew) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *crew
	f.crews[crew.ID] = &cp
	return nil
}

func (f *fakeCrewRepo) GetCrewByID(_ context.Context, crewID string) (*models.Crew, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	crew, ok := f.crews[crewID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *crew
	return &cp, nil
}

func (f *fakeCrewRepo) UpdateCrewState(_ context.Context, crewID string, state models.CrewState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	crew, ok := f.crews[crewID]
	if !ok {
		return models.ErrNotFound
	}
	crew.State = state
	return nil
}

func (f *fakeCrewRepo) UpdateCrewLocation(_ context.Context, crewID string, lat, lng float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	crew, ok := f.crews[crewID]
	if !ok {
		return models.ErrNotFound
	}
	crew.Latitude = &lat
	crew.Longitude = &lng
	crew.LastLocationAt = &at
	return nil
}

func (f *fakeCrewRepo) stateOf(crewID string) models.CrewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.crews[crewID].State
}

type summaryKey struct {
	crewID  string
	orderID string
	bucket  time.Time
}

type fakeTrackingRepo struct {
	mu        sync.Mutex
	pings     []models.CrewPing
	summaries map[summaryKey]*models.RouteSummary

	failSave bool
}

func newFakeTrackingRepo() *fakeTrackingRepo {
	return &fakeTrackingRepo{summaries: make(map[summaryKey]*models.RouteSummary)}
}

func (f *fakeTrackingRepo) SavePing(_ context.Context, ping *models.CrewPing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store down")
	}
	if ping.CreatedAt.IsZero() {
		ping.CreatedAt = time.Now()
	}
	f.pings = append(f.pings, *ping)
	return nil
}

func (f *fakeTrackingRepo) seedPing(ping models.CrewPing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings = append(f.pings, ping)
}

func (f *fakeTrackingRepo) ListPings(_ context.Context, crewID, orderID string, from, to time.Time) ([]models.CrewPing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CrewPing
	for _, p := range f.pings {
		if p.CrewID != crewID {
			continue
		}
		if orderID != "" && p.OrderID != orderID {
			continue
		}
		if p.CreatedAt.Before(from) || p.CreatedAt.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTrackingRepo) UpsertSummary(_ context.Context, summary *models.RouteSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := summaryKey{summary.CrewID, summary.OrderID, summary.BucketStart}
	if existing, ok := f.summaries[key]; ok {
		existing.DistanceKm = summary.DistanceKm
		existing.PingCount = summary.PingCount
		existing.UpdatedAt = time.Now()
		summary.ID = existing.ID
		return nil
	}
	cp := *summary
	cp.UpdatedAt = time.Now()
	f.summaries[key] = &cp
	return nil
}

func (f *fakeTrackingRepo) ListSummaries(_ context.Context, filter models.SummaryFilter) ([]models.RouteSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RouteSummary
	for _, s := range f.summaries {
		if filter.CrewID != "" && s.CrewID != filter.CrewID {
			continue
		}
		if filter.OrderID != "" && s.OrderID != filter.OrderID {
			continue
		}
		if filter.From != nil && s.BucketStart.Before(*filter.From) {
			continue
		}
		if filter.To != nil && s.BucketStart.After(*filter.To) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.After(out[j].BucketStart) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeTrackingRepo) summaryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.summaries)
}

type fakeBus struct {
	mu        sync.Mutex
	published []models.Envelope
	err       error
}

func (f *fakeBus) Publish(_ context.Context, env models.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, env)
	return nil
}

func (f *fakeBus) byType(t models.EventType) []models.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Envelope
	for _, env := range f.published {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

type fakeSubscriptionRepo struct {
	mu            sync.Mutex
	expireCalls   int
	suspendCalls  int
	expireCount   int64
	suspendCount  int64
}

func (f *fakeSubscriptionRepo) ExpireDue(_ context.Context, _ time.Time, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	n := f.expireCount
	f.expireCount = 0 // aged rows do not match the predicate again
	return n, nil
}

func (f *fakeSubscriptionRepo) SuspendLapsed(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspendCalls++
	n := f.suspendCount
	f.suspendCount = 0
	return n, nil
}

func (f *fakeSubscriptionRepo) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expireCalls, f.suspendCalls
}
