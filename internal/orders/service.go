package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/keymutex"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound   = repository.ErrOrderNotFound
	ErrAddressNotFound = repository.ErrAddressNotFound
)

const (
	// maxTransitionAttempts bounds re-reads after a concurrent status change
	// made by another process.
	maxTransitionAttempts = 3
	refundTimeout         = 30 * time.Second

	defaultPageSize = 20
	maxPageSize     = 100
)

type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order, idempotencyKey string) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Order, int, error)
	UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
}

type AddressBook interface {
	GetAddress(ctx context.Context, userID, addressID int64) (*domain.Address, error)
}

// Reservations is the part of the inventory store an order settles on
// reaching a terminal status.
type Reservations interface {
	ReservationsForOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error
}

// Refunder returns captured money for an order.
type Refunder interface {
	Refund(ctx context.Context, orderID uuid.UUID) error
}

type CreateRequest struct {
	ID             uuid.UUID
	UserID         int64
	AddressID      int64
	PaymentMethod  string
	Lines          []domain.OrderLine
	IdempotencyKey string
}

type Page struct {
	Orders []*domain.Order
	Page   int
	Size   int
	Total  int
}

type Service struct {
	repo         Repository
	addresses    AddressBook
	reservations Reservations
	refunder     Refunder
	currency     string
	locks        *keymutex.KeyMutex[uuid.UUID]
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(repo Repository, addresses AddressBook, reservations Reservations, refunder Refunder, currency string, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		addresses:    addresses,
		reservations: reservations,
		refunder:     refunder,
		currency:     currency,
		locks:        keymutex.New[uuid.UUID](),
		metrics:      m,
		logger:       logger.OrNop(log),
		now:          time.Now,
	}
}

// Create stores a new PENDING order with a frozen copy of the lines.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, domain.ErrNoOrderLines
	}
	if _, err := s.addresses.GetAddress(ctx, req.UserID, req.AddressID); err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAddressNotFound, req.AddressID)
		}
		return nil, fmt.Errorf("lookup address: %w", err)
	}

	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	order, err := domain.NewOrder(id, req.UserID, req.AddressID, req.PaymentMethod, s.currency, req.Lines, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateOrder(ctx, order, req.IdempotencyKey); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

// FindByIdempotencyKey returns the order a previous request with the same key
// created, or ErrOrderNotFound.
func (s *Service) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	return s.repo.GetOrderByIdempotencyKey(ctx, userID, key)
}

// Get returns the order if it belongs to userID. Orders of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, userID int64, page, size int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	orders, total, err := s.repo.ListOrdersByUser(ctx, userID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return &Page{Orders: orders, Page: page, Size: size, Total: total}, nil
}

func (s *Service) Cancel(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, domain.EventCancelRequested)
}

func (s *Service) ConfirmFulfillment(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.Transition(ctx, id, domain.EventFulfillmentConfirmed)
}
