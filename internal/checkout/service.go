package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cart is the source of truth for the user's cart. LoadCart must not be
// served from a cache.
type Cart interface {
	LoadCart(ctx context.Context, userID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

type Catalog interface {
	GetAvailableProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Inventory interface {
	Reserve(ctx context.Context, orderID string, productID int64, quantity int32) (*domain.Reservation, error)
	Release(ctx context.Context, reservationID string) error
}

type AddressBook interface {
	GetAddress(ctx context.Context, userID, addressID int64) (*domain.Address, error)
}

type Orders interface {
	Create(ctx context.Context, req orders.CreateRequest) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	Get(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error)
	Transition(ctx context.Context, id uuid.UUID, ev domain.OrderEvent) (*domain.Order, error)
}

type Payments interface {
	Initiate(ctx context.Context, order *domain.Order) (*domain.Payment, error)
}

type Request struct {
	UserID         int64
	AddressID      int64
	PaymentMethod  string
	IdempotencyKey string
}

type Result struct {
	Order *domain.Order
	// Replayed is set when the idempotency key matched an earlier order.
	Replayed bool
}

type Service struct {
	cart      Cart
	catalog   Catalog
	inventory Inventory
	addresses AddressBook
	orders    Orders
	payments  Payments
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewService(cart Cart, catalog Catalog, inventory Inventory, addresses AddressBook, orders Orders, payments Payments, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		cart:      cart,
		catalog:   catalog,
		inventory: inventory,
		addresses: addresses,
		orders:    orders,
		payments:  payments,
		metrics:   m,
		logger:    logger.OrNop(log),
	}
}

// PlaceOrder turns the user's cart into a PENDING order. Stock is reserved per
// line; any failure before the order exists releases every reservation taken
// and leaves the cart untouched. Once the order exists the cart is cleared,
// and a failed payment start fails the order instead of restoring the cart.
// The returned order reflects any status the provider settled synchronously.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContext(ctx, s.logger).With(zap.Int64("user_id", req.UserID))

	if req.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			log.Info("duplicate checkout request",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", existing.ID.String()))
			s.metrics.Checkout("replayed")
			return &Result{Order: existing, Replayed: true}, nil
		}
		if !errors.Is(err, orders.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	result, err := s.placeOrder(ctx, req, log)
	if err != nil {
		s.metrics.Checkout(outcome(err))
		return nil, err
	}
	switch {
	case result.Replayed:
	case result.Order.Status == domain.OrderStatusFailed:
		s.metrics.Checkout("payment_declined")
	default:
		s.metrics.Checkout("success")
	}
	return result, nil
}

func (s *Service) placeOrder(ctx context.Context, req Request, log *zap.Logger) (*Result, error) {
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if _, err := s.addresses.GetAddress(ctx, req.UserID, req.AddressID); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, fmt.Errorf("%w: %d", orders.ErrAddressNotFound, req.AddressID)
		}
		return nil, fmt.Errorf("lookup address: %w", err)
	}

	cart, err := s.cart.LoadCart(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	orderID := uuid.New()
	log = log.With(zap.String("order_id", orderID.String()))

	lines, held, err := s.reserveLines(ctx, orderID, cart.Items)
	if err != nil {
		s.releaseAll(ctx, held, log)
		log.Info("checkout rejected", zap.Error(err))
		return nil, err
	}

	order, err := s.orders.Create(ctx, orders.CreateRequest{
		ID:             orderID,
		UserID:         req.UserID,
		AddressID:      req.AddressID,
		PaymentMethod:  req.PaymentMethod,
		Lines:          lines,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		s.releaseAll(ctx, held, log)
		if errors.Is(err, repository.ErrDuplicateOrder) && req.IdempotencyKey != "" {
			// a concurrent request with the same key won the insert
			existing, findErr := s.orders.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if findErr == nil {
				return &Result{Order: existing, Replayed: true}, nil
			}
		}
		return nil, err
	}

	if err := s.cart.ClearCart(context.WithoutCancel(ctx), req.UserID); err != nil {
		log.Error("clear cart after order creation failed", zap.Error(err))
	}

	if err := s.initiatePayment(ctx, order, log); err != nil {
		return nil, err
	}
	return &Result{Order: s.refresh(ctx, order, log)}, nil
}

// refresh re-reads the order after payment initiation. A provider that settles
// synchronously has already moved it out of PENDING.
func (s *Service) refresh(ctx context.Context, order *domain.Order, log *zap.Logger) *domain.Order {
	current, err := s.orders.Get(context.WithoutCancel(ctx), order.UserID, order.ID)
	if err != nil {
		log.Warn("reload order after payment initiation failed", zap.Error(err))
		return order
	}
	if current.Status != order.Status {
		log.Info("payment settled during checkout", zap.String("status", current.Status.String()))
	}
	return current
}

func outcome(err error) string {
	switch {
	case errors.Is(err, payment.ErrPaymentInitiation):
		return "payment_failed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	}
	var pe *ProductError
	if errors.As(err, &pe) {
		return "rejected_line"
	}
	return "error"
}
