package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository interface {
	// ExpireDue moves ACTIVA subscriptions whose period ended before now to
	// VENCIDA, setting the grace deadline. Returns the number of rows aged.
	ExpireDue(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
	// SuspendLapsed moves VENCIDA subscriptions whose grace ran out to
	// SUSPENDIDA. Both sweeps are idempotent bulk updates.
	SuspendLapsed(ctx context.Context, now time.Time) (int64, error)
}

type subscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) ExpireDue(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET status = 'VENCIDA',
		    grace_until = current_period_end + $1,
		    updated_at = now()
		WHERE status = 'ACTIVA' AND current_period_end < $2
	`, grace, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire due subscriptions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *subscriptionRepository) SuspendLapsed(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET status = 'SUSPENDIDA', updated_at = now()
		WHERE status = 'VENCIDA' AND grace_until IS NOT NULL AND grace_until < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to suspend lapsed subscriptions: %w", err)
	}
	return result.RowsAffected(), nil
}
