package repo

import (
	"context"
	"errors"
	"fmt"

	"aaron-services/internal/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkOrderRepository interface {
	CreateOrder(ctx context.Context, order *models.WorkOrder) error
	GetOrderByID(ctx context.Context, orderID string) (*models.WorkOrder, error)
	UpdateOrder(ctx context.Context, order *models.WorkOrder) error
	// AssignCrew moves the order and the crew in one transaction.
	AssignCrew(ctx context.Context, order *models.WorkOrder, crew *models.Crew) error
	AppendEvent(ctx context.Context, event *models.WorkOrderEvent) error
	ListEvents(ctx context.Context, orderID string, limit, offset int) ([]models.WorkOrderEvent, error)
	// ListActiveStatesByCrew returns the states of the crew's non-terminal
	// orders, the input to crew-state derivation.
	ListActiveStatesByCrew(ctx context.Context, crewID string) ([]models.OrderState, error)
}

type workOrderRepository struct {
	db *pgxpool.Pool
}

func NewWorkOrderRepository(db *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{db: db}
}

const orderColumns = `
	id, created_at, updated_at, customer_id, crew_id, property_id, state,
	priority, description, address, latitude, longitude, started_at,
	completed_at, progress
`

func (r *workOrderRepository) CreateOrder(ctx context.Context, order *models.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			id, customer_id, crew_id, property_id, state, priority,
			description, address, latitude, longitude, progress
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		order.ID,
		order.CustomerID,
		order.CrewID,
		order.PropertyID,
		order.State,
		order.Priority,
		order.Description,
		order.Address,
		order.Latitude,
		order.Longitude,
		order.Progress,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert work order: %w", err)
	}
	return nil
}

func (r *workOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM work_orders WHERE id = $1`

	var order models.WorkOrder
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.CustomerID,
		&order.CrewID, &order.PropertyID, &order.State, &order.Priority,
		&order.Description, &order.Address, &order.Latitude, &order.Longitude,
		&order.StartedAt, &order.CompletedAt, &order.Progress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}
	return &order, nil
}

func (r *workOrderRepository) UpdateOrder(ctx context.Context, order *models.WorkOrder) error {
	query := `
		UPDATE work_orders
		SET state = $1, crew_id = $2, started_at = $3, completed_at = $4,
		    progress = $5, updated_at = now()
		WHERE id = $6
	`

	result, err := r.db.Exec(ctx, query,
		order.State, order.CrewID, order.StartedAt, order.CompletedAt,
		order.Progress, order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *workOrderRepository) AssignCrew(ctx context.Context, order *models.WorkOrder, crew *models.Crew) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE work_orders
		SET state = $1, crew_id = $2, updated_at = now()
		WHERE id = $3
	`, order.State, order.CrewID, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update work order: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE crews
		SET state = $1, updated_at = now()
		WHERE id = $2
	`, crew.State, crew.ID)
	if err != nil {
		return fmt.Errorf("failed to update crew: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *workOrderRepository) AppendEvent(ctx context.Context, event *models.WorkOrderEvent) error {
	query := `
		INSERT INTO work_order_events (
			id, work_order_id, type, state_from, state_to, note, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		event.ID, event.WorkOrderID, event.Type, event.StateFrom,
		event.StateTo, event.Note, event.Metadata,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append work order event: %w", err)
	}
	return nil
}

func (r *workOrderRepository) ListEvents(ctx context.Context, orderID string, limit, offset int) ([]models.WorkOrderEvent, error) {
	query := `
		SELECT id, work_order_id, type, state_from, state_to, note, metadata, created_at
		FROM work_order_events
		WHERE work_order_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, orderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query work order events: %w", err)
	}
	defer rows.Close()

	var events []models.WorkOrderEvent
	for rows.Next() {
		var ev models.WorkOrderEvent
		err := rows.Scan(
			&ev.ID, &ev.WorkOrderID, &ev.Type, &ev.StateFrom, &ev.StateTo,
			&ev.Note, &ev.Metadata, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

func (r *workOrderRepository) ListActiveStatesByCrew(ctx context.Context, crewID string) ([]models.OrderState, error) {
	query := `
		SELECT state FROM work_orders
		WHERE crew_id = $1 AND state NOT IN ('FINALIZADA', 'CANCELADA')
	`

	rows, err := r.db.Query(ctx, query, crewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active orders for crew: %w", err)
	}
	defer rows.Close()

	var out []models.OrderState
	for rows.Next() {
		var s models.OrderState
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
