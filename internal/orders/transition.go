package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transition applies ev to the order. It is the only path that changes an
// order's status. Calls for the same order are serialized in-process and the
// store rejects the write if the status moved underneath us.
//
// An event that already took effect returns the current order without side
// effects.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, ev domain.OrderEvent) (*domain.Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	log := logger.FromContext(ctx, s.logger).With(
		zap.String("order_id", id.String()),
		zap.String("event", ev.String()))

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		order, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}

		next, applied, err := order.Resolve(ev)
		if err != nil {
			return nil, err
		}
		if applied {
			log.Debug("order event already applied", zap.String("status", order.Status.String()))
			return order, nil
		}

		from := order.Status
		now := s.now().UTC()
		order.Status = next
		order.UpdatedAt = now
		if ev == domain.EventPaymentSucceeded {
			order.PaidAt = &now
		}

		err = s.repo.UpdateOrderStatus(ctx, order, from)
		if errors.Is(err, repository.ErrStatusConflict) {
			log.Warn("order status changed concurrently, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}

		log.Info("order transitioned",
			zap.String("from", from.String()),
			zap.String("to", next.String()))
		s.metrics.Transition(from.String(), next.String())

		s.afterTransition(context.WithoutCancel(ctx), order, log)
		return order, nil
	}

	return nil, fmt.Errorf("transition order %s: %w", id, repository.ErrStatusConflict)
}

func (s *Service) afterTransition(ctx context.Context, order *domain.Order, log *zap.Logger) {
	switch order.Status {
	case domain.OrderStatusCompleted:
		s.settleReservations(ctx, order.ID, "commit", s.reservations.Commit, log)
	case domain.OrderStatusFailed, domain.OrderStatusCancelled:
		s.settleReservations(ctx, order.ID, "release", s.reservations.Release, log)
	}

	if order.Status == domain.OrderStatusCancelled && order.PaidAt != nil {
		s.requestRefund(order.ID, log)
	}
}

// settleReservations applies fn to every active reservation of the order.
// Failures are logged; the order status is already final.
func (s *Service) settleReservations(ctx context.Context, orderID uuid.UUID, action string, fn func(context.Context, string) error, log *zap.Logger) {
	reservations, err := s.reservations.ReservationsForOrder(ctx, orderID.String())
	if err != nil {
		log.Error("list reservations failed", zap.String("action", action), zap.Error(err))
		return
	}

	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		if err := fn(ctx, r.ID); err != nil {
			log.Error("settle reservation failed",
				zap.String("action", action),
				zap.String("reservation_id", r.ID),
				zap.Int64("product_id", r.ProductID),
				zap.Error(err))
		}
	}
}

// requestRefund asks for the refund in the background and only logs failures.
func (s *Service) requestRefund(orderID uuid.UUID, log *zap.Logger) {
	if s.refunder == nil {
		log.Warn("no refunder configured, captured payment left as is")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refundTimeout)
		defer cancel()
		if err := s.refunder.Refund(ctx, orderID); err != nil {
			log.Error("refund request failed", zap.Error(err))
			return
		}
		log.Info("refund requested")
	}()
}
