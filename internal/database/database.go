package database

import (
	"context"
	"fmt"
	"time"

	"aaron-services/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(cfg config.DatabaseConfig) (*DB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolCfg.MaxConns = 25
	poolCfg.MinConns = 5
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// InitSchema creates the tables this service owns. Statements are
// idempotent so restarts are safe.
func (db *DB) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS work_orders (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			customer_id TEXT NOT NULL,
			crew_id TEXT,
			property_id TEXT,
			state TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'NORMAL',
			description TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			progress INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_crew_state ON work_orders (crew_id, state)`,
		`CREATE TABLE IF NOT EXISTS crews (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			name TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'idle',
			members TEXT[] NOT NULL DEFAULT '{}',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			last_location_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS work_order_events (
			id UUID PRIMARY KEY,
			work_order_id UUID NOT NULL,
			type TEXT NOT NULL,
			state_from TEXT NOT NULL,
			state_to TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_work_order_events_order ON work_order_events (work_order_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS crew_pings (
			id UUID PRIMARY KEY,
			crew_id TEXT NOT NULL,
			order_id TEXT,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			source TEXT NOT NULL DEFAULT 'realtime',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crew_pings_crew_time ON crew_pings (crew_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS route_summaries (
			id UUID PRIMARY KEY,
			crew_id TEXT NOT NULL,
			order_id TEXT,
			bucket_start TIMESTAMPTZ NOT NULL,
			distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			ping_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_route_summaries_bucket
			ON route_summaries (crew_id, COALESCE(order_id, ''), bucket_start)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			customer_id TEXT NOT NULL,
			plan TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVA',
			current_period_end TIMESTAMPTZ NOT NULL,
			grace_until TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_status_period ON subscriptions (status, current_period_end)`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run schema statement: %w", err)
		}
	}
	return nil
}
