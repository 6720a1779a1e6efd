package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MockRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
	stale    []uuid.UUID
}

func NewMockRepository() *MockRepository {
	return &MockRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (m *MockRepository) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.OrderID]; ok {
		return repository.ErrDuplicatePayment
	}
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *MockRepository) GetPaymentByOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockRepository) GetPaymentByReference(_ context.Context, ref string) (*domain.Payment, error) {
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

func (m *MockRepository) UpdatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.OrderID]; !ok {
		return repository.ErrPaymentNotFound
	}
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *MockRepository) ListDuePayments(_ context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.PaymentStatusPending && !p.NextCheckAt.After(now) {
			cp := *p
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockRepository) ListStalePendingOrders(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return m.stale, nil
}

func (m *MockRepository) payment(orderID uuid.UUID) domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payments[orderID]
}

// MockOrders applies the order state machine in memory.
type MockOrders struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*domain.Order
	transitions int
}

func NewMockOrders() *MockOrders {
	return &MockOrders{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *MockOrders) add(status domain.OrderStatus) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &domain.Order{
		ID:            uuid.New(),
		UserID:        1,
		PaymentMethod: domain.PaymentMethodCard,
		Status:        status,
		Total:         decimal.RequireFromString("129.90"),
		Currency:      "USD",
	}
	m.orders[o.ID] = o
	cp := *o
	return &cp
}

func (m *MockOrders) Transition(_ context.Context, id uuid.UUID, ev domain.OrderEvent) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	next, applied, err := o.Resolve(ev)
	if err != nil {
		return nil, err
	}
	if !applied {
		o.Status = next
		if ev == domain.EventPaymentSucceeded {
			now := time.Now()
			o.PaidAt = &now
		}
		m.transitions++
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrders) status(id uuid.UUID) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *MockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitions
}

// MockGateway returns canned answers and counts calls.
type MockGateway struct {
	mu          sync.Mutex
	initiateErr error
	initiateRes *ChargeResult
	statuses    map[string]ProviderStatus
	statusErr   error
	refundErr   error
	refunds     []string
	calls       int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{statuses: make(map[string]ProviderStatus)}
}

func (m *MockGateway) Initiate(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.initiateErr != nil {
		return nil, m.initiateErr
	}
	if m.initiateRes != nil {
		return m.initiateRes, nil
	}
	return &ChargeResult{Reference: "REF-" + req.OrderID.String(), Status: StatusPending}, nil
}

func (m *MockGateway) Status(_ context.Context, reference string) (ProviderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.statusErr != nil {
		return "", m.statusErr
	}
	if s, ok := m.statuses[reference]; ok {
		return s, nil
	}
	return StatusPending, nil
}

func (m *MockGateway) Refund(_ context.Context, reference string, _ decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunds = append(m.refunds, reference)
	return nil
}

func (m *MockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
