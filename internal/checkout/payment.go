package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"go.uber.org/zap"
)

// initiatePayment starts the payment. When the provider cannot take it the
// order is failed, which releases its reservations.
func (s *Service) initiatePayment(ctx context.Context, order *domain.Order, log *zap.Logger) error {
	p, err := s.payments.Initiate(ctx, order)
	if err == nil {
		log.Info("checkout completed",
			zap.String("provider_reference", p.ProviderReference),
			zap.String("total", order.Total.StringFixed(2)))
		return nil
	}

	log.Warn("payment initiation failed, failing order", zap.Error(err))
	if _, tErr := s.orders.Transition(context.WithoutCancel(ctx), order.ID, domain.EventPaymentFailed); tErr != nil {
		log.Error("fail order after payment initiation error", zap.Error(tErr))
	}

	if !errors.Is(err, payment.ErrPaymentInitiation) {
		err = fmt.Errorf("%w: %v", payment.ErrPaymentInitiation, err)
	}
	return err
}
