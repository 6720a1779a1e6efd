package payment

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
)

// Run sweeps until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.policy.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("payment reconciler started", zap.Duration("interval", r.policy.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("payment reconciler stopped")
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep re-checks pending payments that are due, fails the ones past the
// maximum wait and fails orders that never got a payment.
func (r *Reconciler) Sweep(ctx context.Context) {
	log := logger.FromContext(ctx, r.logger)
	now := r.now().UTC()

	due, err := r.repo.ListDuePayments(ctx, now, r.policy.BatchSize)
	if err != nil {
		log.Error("list due payments failed", zap.Error(err))
	}
	for _, p := range due {
		if ctx.Err() != nil {
			return
		}
		r.recheck(ctx, p, now)
	}

	orphans, err := r.repo.ListStalePendingOrders(ctx, now.Add(-r.policy.MaxWait), r.policy.BatchSize)
	if err != nil {
		log.Error("list stale orders failed", zap.Error(err))
		return
	}
	for _, id := range orphans {
		if _, err := r.orders.Transition(ctx, id, domain.EventPaymentFailed); err != nil {
			log.Error("fail orphaned order", zap.String("order_id", id.String()), zap.Error(err))
			continue
		}
		log.Warn("orphaned order failed", zap.String("order_id", id.String()))
	}
}

func (r *Reconciler) recheck(ctx context.Context, p *domain.Payment, now time.Time) {
	log := logger.FromContext(ctx, r.logger).With(zap.String("order_id", p.OrderID.String()))

	status := StatusPending
	if p.ProviderReference != "" {
		s, err := r.gateway.Status(ctx, p.ProviderReference)
		if err != nil {
			log.Warn("payment status check failed", zap.Error(err))
		} else {
			status = s
		}
	}

	if status == StatusPending && now.Sub(p.CreatedAt) >= r.policy.MaxWait {
		log.Warn("payment timed out", zap.Duration("waited", now.Sub(p.CreatedAt)))
		status = StatusFailure
	}

	outcome, err := r.apply(ctx, p.OrderID, "", status)
	if err != nil {
		log.Error("apply payment status failed", zap.String("status", string(status)), zap.Error(err))
		return
	}
	r.metrics.Notification(string(status), outcome)
}
