package services

import (
	"context"
	"sync"
	"time"

	"aaron-services/internal/domain/repo"

	"go.uber.org/zap"
)

// BillingScheduler ages subscription status on a fixed interval. Each tick
// is an idempotent bulk update, so overlapping ticks are harmless and no
// re-entrancy guard is needed.
type BillingScheduler struct {
	subscriptions repo.SubscriptionRepository
	interval      time.Duration
	grace         time.Duration
	log           *zap.SugaredLogger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewBillingScheduler(subscriptions repo.SubscriptionRepository, interval, grace time.Duration, log *zap.SugaredLogger) *BillingScheduler {
	return &BillingScheduler{
		subscriptions: subscriptions,
		interval:      interval,
		grace:         grace,
		log:           log,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (s *BillingScheduler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
	s.log.Infow("billing scheduler started", "interval", s.interval)
}

// Stop halts the ticker and waits for the loop to exit. Safe to call twice.
func (s *BillingScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Sweep runs one aging pass: expire subscriptions whose period ended, then
// suspend the ones whose grace ran out.
func (s *BillingScheduler) Sweep(ctx context.Context) {
	now := time.Now()

	expired, err := s.subscriptions.ExpireDue(ctx, now, s.grace)
	if err != nil {
		s.log.Errorw("billing sweep: expire pass failed", "error", err)
	}

	suspended, err := s.subscriptions.SuspendLapsed(ctx, now)
	if err != nil {
		s.log.Errorw("billing sweep: suspend pass failed", "error", err)
	}

	if expired > 0 || suspended > 0 {
		s.log.Infow("billing sweep completed", "expired", expired, "suspended", suspended)
	}
}
