package services

import (
	"context"
	"fmt"
	"time"

	"aaron-services/internal/domain/models"
	"aaron-services/internal/domain/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultRouteWindow  = 24 * time.Hour
	defaultSummaryLimit = 50
	maxSummaryLimit     = 200
)

// TrackingService persists raw pings and answers route queries. Distance is
// the haversine sum over consecutive pings; summaries roll the answer up
// into idempotent per-day buckets.
type TrackingService struct {
	tracking repo.TrackingRepository
	crews    repo.CrewRepository
	log      *zap.SugaredLogger
}

func NewTrackingService(tracking repo.TrackingRepository, crews repo.CrewRepository, log *zap.SugaredLogger) *TrackingService {
	return &TrackingService{tracking: tracking, crews: crews, log: log}
}

func (s *TrackingService) SavePing(ctx context.Context, crewID, orderID string, lat, lng float64, source models.PingSource) (*models.CrewPing, error) {
	if crewID == "" {
		return nil, fmt.Errorf("crew id is required")
	}
	if !models.ValidCoordinates(lat, lng) {
		return nil, models.ErrInvalidCoordinates
	}
	if source == "" {
		source = models.SourceRealtime
	}

	ping := &models.CrewPing{
		ID:        uuid.NewString(),
		CrewID:    crewID,
		OrderID:   orderID,
		Latitude:  lat,
		Longitude: lng,
		Source:    source,
	}
	if err := s.tracking.SavePing(ctx, ping); err != nil {
		return nil, fmt.Errorf("failed to save ping: %w", err)
	}

	// Keep the crew row's live position fresh. Best effort: the ping is
	// already durable.
	if err := s.crews.UpdateCrewLocation(ctx, crewID, lat, lng, ping.CreatedAt); err != nil {
		s.log.Warnw("failed to update crew location", "crew_id", crewID, "error", err)
	}

	return ping, nil
}

// GetRoute computes the distance covered in the window (last 24h when the
// caller gives no bounds) and upserts the day bucket so repeated queries
// merge into one summary row.
func (s *TrackingService) GetRoute(ctx context.Context, crewID, orderID string, from, to *time.Time) (*models.RouteResult, error) {
	if crewID == "" {
		return nil, fmt.Errorf("crew id is required")
	}

	end := time.Now()
	if to != nil {
		end = *to
	}
	start := end.Add(-defaultRouteWindow)
	if from != nil {
		start = *from
	}

	pings, err := s.tracking.ListPings(ctx, crewID, orderID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load pings: %w", err)
	}

	var total float64
	for i := 1; i < len(pings); i++ {
		total += models.HaversineKm(
			pings[i-1].Latitude, pings[i-1].Longitude,
			pings[i].Latitude, pings[i].Longitude,
		)
	}

	summary := &models.RouteSummary{
		ID:          uuid.NewString(),
		CrewID:      crewID,
		OrderID:     orderID,
		BucketStart: start.UTC().Truncate(24 * time.Hour),
		DistanceKm:  total,
		PingCount:   len(pings),
	}
	if err := s.tracking.UpsertSummary(ctx, summary); err != nil {
		s.log.Warnw("failed to upsert route summary", "crew_id", crewID, "error", err)
	}

	return &models.RouteResult{
		CrewID:          crewID,
		OrderID:         orderID,
		From:            start,
		To:              end,
		PingCount:       len(pings),
		TotalDistanceKm: total,
		Pings:           pings,
	}, nil
}

func (s *TrackingService) ListSummaries(ctx context.Context, filter models.SummaryFilter) ([]models.RouteSummary, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultSummaryLimit
	}
	if filter.Limit > maxSummaryLimit {
		filter.Limit = maxSummaryLimit
	}
	return s.tracking.ListSummaries(ctx, filter)
}
