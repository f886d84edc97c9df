package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCheckoutExpirySpec sweeps abandoned checkouts every five minutes
const DefaultCheckoutExpirySpec = "@every 5m"

// CheckoutSweeper cancels unpaid hosted checkouts older than a cutoff
type CheckoutSweeper interface {
	ExpireStaleCheckouts(ctx context.Context, olderThan time.Duration) (int, error)
}

// CheckoutExpiryJob cancels stale Stripe orders and releases their stock
type CheckoutExpiryJob struct {
	sweeper CheckoutSweeper
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCheckoutExpiryJob creates the job. ttl is how long a checkout may stay unpaid
func NewCheckoutExpiryJob(sweeper CheckoutSweeper, ttl time.Duration, logger *zap.Logger) *CheckoutExpiryJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutExpiryJob{sweeper: sweeper, ttl: ttl, logger: logger}
}

// Name implements Job
func (j *CheckoutExpiryJob) Name() string { return "checkout-expiry" }

// Run implements Job
func (j *CheckoutExpiryJob) Run(ctx context.Context) error {
	n, err := j.sweeper.ExpireStaleCheckouts(ctx, j.ttl)
	if n > 0 {
		j.logger.Info("Expired stale checkouts", zap.Int("orders", n), zap.Duration("ttl", j.ttl))
	}
	return err
}
