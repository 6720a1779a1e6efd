package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart/cache"
	"github.com/fjod/go_cart/storefront/internal/cart/repository"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type MockRepository struct {
	mu       sync.RWMutex
	carts    map[int64]*domain.Cart
	getCalls atomic.Int32
	getDelay time.Duration
	err      error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{carts: make(map[int64]*domain.Cart)}
}

func (m *MockRepository) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	m.getCalls.Add(1)
	if m.getDelay > 0 {
		select {
		case <-time.After(m.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	return &cp, nil
}

func (m *MockRepository) AddItem(_ context.Context, userID int64, productID int64, quantity int) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID}
		m.carts[userID] = cart
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			return nil
		}
	}
	cart.Items = append(cart.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MockRepository) UpdateItemQuantity(_ context.Context, userID int64, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[userID]; ok {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockRepository) RemoveItem(_ context.Context, userID int64, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[userID]; ok {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockRepository) DeleteCart(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type MockCache struct {
	mu          sync.Mutex
	carts       map[int64]*domain.Cart
	getErr      error
	deleteCalls int
}

func NewMockCache() *MockCache {
	return &MockCache{carts: make(map[int64]*domain.Cart)}
}

func (m *MockCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *MockCache) Set(_ context.Context, userID int64, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart
	return nil
}

func (m *MockCache) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	delete(m.carts, userID)
	return nil
}

func (m *MockCache) has(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[userID]
	return ok
}

type MockProducts struct {
	unavailable map[int64]bool
}

func (m MockProducts) GetAvailableProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.unavailable[id] {
		return nil, catalog.ErrProductUnavailable
	}
	if id > 100 {
		return nil, catalog.ErrProductNotFound
	}
	return &domain.Product{ID: id, Active: true}, nil
}
