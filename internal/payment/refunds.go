package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/keymutex"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	GetPaymentByReference(ctx context.Context, providerReference string) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, p *domain.Payment) error
	ListDuePayments(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
	ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// Refunds returns captured money to the customer. It owns the per-order lock
// that serializes every change to a payment record.
type Refunds struct {
	repo    Repository
	gateway Gateway
	locks   *keymutex.KeyMutex[uuid.UUID]
	logger  *zap.Logger
	now     func() time.Time
}

func NewRefunds(repo Repository, gateway Gateway, log *zap.Logger) *Refunds {
	return &Refunds{
		repo:    repo,
		gateway: gateway,
		locks:   keymutex.New[uuid.UUID](),
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// Refund refunds the order's payment if it was captured. Payments that were
// never captured or are already refunded are left alone.
func (r *Refunds) Refund(ctx context.Context, orderID uuid.UUID) error {
	unlock := r.locks.Lock(orderID)
	defer unlock()

	p, err := r.repo.GetPaymentByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}
	return r.refundLocked(ctx, p)
}

func (r *Refunds) refundLocked(ctx context.Context, p *domain.Payment) error {
	if p.Status != domain.PaymentStatusSucceeded {
		return nil
	}
	if p.ProviderReference == "" {
		return fmt.Errorf("payment for order %s has no provider reference", p.OrderID)
	}

	if err := r.gateway.Refund(ctx, p.ProviderReference, p.Amount); err != nil {
		return fmt.Errorf("refund %s: %w", p.ProviderReference, err)
	}

	p.Status = domain.PaymentStatusRefunded
	p.LastUpdatedAt = r.now().UTC()
	if err := r.repo.UpdatePayment(ctx, p); err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}

	logger.FromContext(ctx, r.logger).Info("payment refunded",
		zap.String("order_id", p.OrderID.String()),
		zap.String("provider_reference", p.ProviderReference),
		zap.String("amount", p.Amount.StringFixed(2)))
	return nil
}
