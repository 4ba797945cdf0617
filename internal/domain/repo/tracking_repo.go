package repo

import (
	"context"
	"fmt"
	"time"

	"aaron-services/internal/domain/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TrackingRepository interface {
	SavePing(ctx context.Context, ping *models.CrewPing) error
	// ListPings returns pings in [from, to] ordered by time ascending.
	ListPings(ctx context.Context, crewID, orderID string, from, to time.Time) ([]models.CrewPing, error)
	// UpsertSummary writes the day bucket, overwriting totals on conflict
	// so repeated queries over the same day merge instead of duplicating.
	UpsertSummary(ctx context.Context, summary *models.RouteSummary) error
	ListSummaries(ctx context.Context, filter models.SummaryFilter) ([]models.RouteSummary, error)
}

type trackingRepository struct {
	db *pgxpool.Pool
}

func NewTrackingRepository(db *pgxpool.Pool) TrackingRepository {
	return &trackingRepository{db: db}
}

func (r *trackingRepository) SavePing(ctx context.Context, ping *models.CrewPing) error {
	query := `
		INSERT INTO crew_pings (id, crew_id, order_id, latitude, longitude, source)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		ping.ID, ping.CrewID, ping.OrderID, ping.Latitude, ping.Longitude, ping.Source,
	).Scan(&ping.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert crew ping: %w", err)
	}
	return nil
}

func (r *trackingRepository) ListPings(ctx context.Context, crewID, orderID string, from, to time.Time) ([]models.CrewPing, error) {
	query := `
		SELECT id, crew_id, COALESCE(order_id, ''), latitude, longitude, source, created_at
		FROM crew_pings
		WHERE crew_id = $1
		  AND ($2 = '' OR order_id = $2)
		  AND created_at >= $3 AND created_at <= $4
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, crewID, orderID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query crew pings: %w", err)
	}
	defer rows.Close()

	var pings []models.CrewPing
	for rows.Next() {
		var p models.CrewPing
		err := rows.Scan(&p.ID, &p.CrewID, &p.OrderID, &p.Latitude, &p.Longitude, &p.Source, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crew ping: %w", err)
		}
		pings = append(pings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return pings, nil
}

func (r *trackingRepository) UpsertSummary(ctx context.Context, summary *models.RouteSummary) error {
	query := `
		INSERT INTO route_summaries (id, crew_id, order_id, bucket_start, distance_km, ping_count, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, now())
		ON CONFLICT (crew_id, COALESCE(order_id, ''), bucket_start)
		DO UPDATE SET distance_km = EXCLUDED.distance_km,
		              ping_count = EXCLUDED.ping_count,
		              updated_at = now()
		RETURNING id, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		summary.ID, summary.CrewID, summary.OrderID, summary.BucketStart,
		summary.DistanceKm, summary.PingCount,
	).Scan(&summary.ID, &summary.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert route summary: %w", err)
	}
	return nil
}

func (r *trackingRepository) ListSummaries(ctx context.Context, filter models.SummaryFilter) ([]models.RouteSummary, error) {
	query := `
		SELECT id, crew_id, COALESCE(order_id, ''), bucket_start, distance_km, ping_count, updated_at
		FROM route_summaries
		WHERE ($1 = '' OR crew_id = $1)
		  AND ($2 = '' OR order_id = $2)
		  AND ($3::timestamptz IS NULL OR bucket_start >= $3)
		  AND ($4::timestamptz IS NULL OR bucket_start <= $4)
		ORDER BY bucket_start DESC
		LIMIT $5
	`

	rows, err := r.db.Query(ctx, query, filter.CrewID, filter.OrderID, filter.From, filter.To, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query route summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.RouteSummary
	for rows.Next() {
		var s models.RouteSummary
		err := rows.Scan(&s.ID, &s.CrewID, &s.OrderID, &s.BucketStart, &s.DistanceKm, &s.PingCount, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return summaries, nil
}
