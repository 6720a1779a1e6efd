package orders

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

// MockRepository keeps orders in memory and enforces the conditional status update.
type MockRepository struct {
	mu            sync.Mutex
	orders        map[uuid.UUID]*domain.Order
	keys          map[string]uuid.UUID
	updates       atomic.Int32
	conflictsLeft int
	createErr     error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		orders: make(map[uuid.UUID]*domain.Order),
		keys:   make(map[string]uuid.UUID),
	}
}

func clone(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp
}

func (m *MockRepository) CreateOrder(_ context.Context, order *domain.Order, key string) error {
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
	m.orders[order.ID] = clone(order)
	return nil
}

func (m *MockRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return clone(o), nil
}

func (m *MockRepository) GetOrderByIdempotencyKey(ctx context.Context, _ int64, key string) (*domain.Order, error) {
	m.mu.Lock()
	id, ok := m.keys[key]
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return m.GetOrder(ctx, id)
}

func (m *MockRepository) ListOrdersByUser(_ context.Context, userID int64, limit, offset int) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			all = append(all, clone(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []*domain.Order{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MockRepository) UpdateOrderStatus(_ context.Context, order *domain.Order, from domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return repository.ErrStatusConflict
	}
	if stored.Status != from {
		return repository.ErrStatusConflict
	}
	m.updates.Add(1)
	m.orders[order.ID] = clone(order)
	return nil
}

func (m *MockRepository) status(id uuid.UUID) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

type MockAddressBook struct {
	addresses map[int64]int64 // address id -> owner
}

func (m MockAddressBook) GetAddress(_ context.Context, userID, addressID int64) (*domain.Address, error) {
	if owner, ok := m.addresses[addressID]; ok && owner == userID {
		return &domain.Address{ID: addressID, UserID: userID}, nil
	}
	return nil, repository.ErrAddressNotFound
}

type MockRefunder struct {
	refunded chan uuid.UUID
	err      error
}

func NewMockRefunder() *MockRefunder {
	return &MockRefunder{refunded: make(chan uuid.UUID, 10)}
}

func (m *MockRefunder) Refund(_ context.Context, orderID uuid.UUID) error {
	m.refunded <- orderID
	return m.err
}
