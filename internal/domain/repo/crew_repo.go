package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aaron-services/internal/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CrewRepository interface {
	CreateCrew(ctx context.Context, crew *models.Crew) error
	GetCrewByID(ctx context.Context, crewID string) (*models.Crew, error)
	UpdateCrewState(ctx context.Context, crewID string, state models.CrewState) error
	UpdateCrewLocation(ctx context.Context, crewID string, lat, lng float64, at time.Time) error
}

type crewRepository struct {
	db *pgxpool.Pool
}

func NewCrewRepository(db *pgxpool.Pool) CrewRepository {
	return &crewRepository{db: db}
}

func (r *crewRepository) CreateCrew(ctx context.Context, crew *models.Crew) error {
	query := `
		INSERT INTO crews (id, name, state, members)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		crew.ID, crew.Name, crew.State, crew.Members,
	).Scan(&crew.CreatedAt, &crew.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert crew: %w", err)
	}
	return nil
}

func (r *crewRepository) GetCrewByID(ctx context.Context, crewID string) (*models.Crew, error) {
	query := `
		SELECT id, created_at, updated_at, name, state, members,
		       latitude, longitude, last_location_at
		FROM crews WHERE id = $1
	`

	var crew models.Crew
	err := r.db.QueryRow(ctx, query, crewID).Scan(
		&crew.ID, &crew.CreatedAt, &crew.UpdatedAt, &crew.Name, &crew.State,
		&crew.Members, &crew.Latitude, &crew.Longitude, &crew.LastLocationAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get crew: %w", err)
	}
	return &crew, nil
}

func (r *crewRepository) UpdateCrewState(ctx context.Context, crewID string, state models.CrewState) error {
	result, err := r.db.Exec(ctx, `
		UPDATE crews SET state = $1, updated_at = now() WHERE id = $2
	`, state, crewID)
	if err != nil {
		return fmt.Errorf("failed to update crew state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *crewRepository) UpdateCrewLocation(ctx context.Context, crewID string, lat, lng float64, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE crews
		SET latitude = $1, longitude = $2, last_location_at = $3, updated_at = now()
		WHERE id = $4
	`, lat, lng, at, crewID)
	if err != nil {
		return fmt.Errorf("failed to update crew location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
