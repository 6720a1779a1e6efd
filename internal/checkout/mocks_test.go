package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockOrderRepository is an in-memory orders.Repository.
type MockOrderRepository struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	keys      map[string]uuid.UUID
	createErr error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*domain.Order),
		keys:   make(map[string]uuid.UUID),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if key != "" {
		if _, ok := m.keys[key]; ok {
			return repository.ErrDuplicateOrder
		}
		m.keys[key] = order.ID
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MockOrderRepository) GetOrderByIdempotencyKey(ctx context.Context, _ int64, key string) (*domain.Order, error) {
	m.mu.Lock()
	id, ok := m.keys[key]
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return m.GetOrder(ctx, id)
}

func (m *MockOrderRepository) ListOrdersByUser(context.Context, int64, int, int) ([]*domain.Order, int, error) {
	return nil, 0, nil
}

func (m *MockOrderRepository) UpdateOrderStatus(_ context.Context, order *domain.Order, from domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if stored.Status != from {
		return repository.ErrStatusConflict
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type MockAddressBook struct{}

func (MockAddressBook) GetAddress(_ context.Context, userID, addressID int64) (*domain.Address, error) {
	if addressID != userID*10 {
		return nil, repository.ErrAddressNotFound
	}
	return &domain.Address{ID: addressID, UserID: userID}, nil
}

type MockCart struct {
	mu       sync.Mutex
	carts    map[int64][]domain.CartItem
	clearErr error
}

func NewMockCart() *MockCart {
	return &MockCart{carts: make(map[int64][]domain.CartItem)}
}

func (m *MockCart) set(userID int64, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = items
}

func (m *MockCart) LoadCart(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.Cart{UserID: userID, Items: append([]domain.CartItem{}, m.carts[userID]...)}, nil
}

func (m *MockCart) ClearCart(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.carts, userID)
	return nil
}

type MockCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{products: map[int64]*domain.Product{
		productP: {ID: productP, Name: "Laptop", Price: decimal.RequireFromString("1299.99"), Discount: decimal.RequireFromString("100.00"), Active: true},
		productQ: {ID: productQ, Name: "Mouse", Price: decimal.RequireFromString("29.99"), Discount: decimal.Zero, Active: true},
		retired:  {ID: retired, Name: "USB Hub", Price: decimal.RequireFromString("19.99"), Discount: decimal.Zero, Active: false},
	}}
}

func (m *MockCatalog) GetAvailableProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	if !p.Active {
		return nil, catalog.ErrProductUnavailable
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) setPrice(id int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Price = decimal.RequireFromString(price)
}

type MockPayments struct {
	mu        sync.Mutex
	err       error
	initiated []uuid.UUID
}

func (m *MockPayments) Initiate(_ context.Context, order *domain.Order) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.initiated = append(m.initiated, order.ID)
	return &domain.Payment{OrderID: order.ID, ProviderReference: "REF-1", Status: domain.PaymentStatusPending, Amount: order.Total}, nil
}

// MockPaymentRepository is an in-memory payment.Repository.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (m *MockPaymentRepository) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.OrderID]; ok {
		return repository.ErrDuplicatePayment
	}
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetPaymentByOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) GetPaymentByReference(_ context.Context, ref string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *MockPaymentRepository) UpdatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *MockPaymentRepository) ListDuePayments(context.Context, time.Time, int) ([]*domain.Payment, error) {
	return nil, nil
}

func (m *MockPaymentRepository) ListStalePendingOrders(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

// SettlingGateway answers every charge with a final status right away.
type SettlingGateway struct {
	status payment.ProviderStatus
}

func (g SettlingGateway) Initiate(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	return &payment.ChargeResult{Reference: fmt.Sprintf("SYNC-%s", req.OrderID), Status: g.status}, nil
}

func (g SettlingGateway) Status(context.Context, string) (payment.ProviderStatus, error) {
	return g.status, nil
}

func (g SettlingGateway) Refund(context.Context, string, decimal.Decimal) error {
	return nil
}
