package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// BreakerGateway stops calling the provider after repeated outages and fails
// fast with ErrProviderUnavailable while the breaker is open.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerGateway(next Gateway, log *zap.Logger) *BreakerGateway {
	log = logger.OrNop(log)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		// Rejections and unknown charges say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (g *BreakerGateway) Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	v, err := g.cb.Execute(func() (any, error) {
		return g.next.Initiate(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return v.(*ChargeResult), nil
}

func (g *BreakerGateway) Status(ctx context.Context, reference string) (ProviderStatus, error) {
	v, err := g.cb.Execute(func() (any, error) {
		return g.next.Status(ctx, reference)
	})
	if err != nil {
		return "", breakerError(err)
	}
	return v.(ProviderStatus), nil
}

func (g *BreakerGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.next.Refund(ctx, reference, amount)
	})
	return breakerError(err)
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
