package http

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cart/repository"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MockCheckout struct {
	result *checkout.Result
	err    error
	got    checkout.Request
}

func (m *MockCheckout) PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type MockOrders struct {
	orders   map[uuid.UUID]*domain.Order
	err      error
	page     int
	size     int
	canceled []uuid.UUID
}

func NewMockOrders(list ...*domain.Order) *MockOrders {
	m := &MockOrders{orders: make(map[uuid.UUID]*domain.Order)}
	for _, o := range list {
		m.orders[o.ID] = o
	}
	return m
}

func (m *MockOrders) Get(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrders) List(ctx context.Context, userID int64, page, size int) (*orders.Page, error) {
	m.page, m.size = page, size
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return &orders.Page{Orders: out, Page: max(page, 1), Size: 20, Total: len(out)}, nil
}

func (m *MockOrders) Cancel(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error) {
	o, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, domain.ErrInvalidStateTransition
	}
	m.canceled = append(m.canceled, id)
	o.Status = domain.OrderStatusCancelled
	return o, nil
}

func (m *MockOrders) ConfirmFulfillment(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusProcessing {
		return nil, domain.ErrInvalidStateTransition
	}
	o.Status = domain.OrderStatusCompleted
	return o, nil
}

type MockCart struct {
	mu    sync.Mutex
	carts map[int64]*domain.Cart
	err   error
}

func NewMockCart() *MockCart {
	return &MockCart{carts: make(map[int64]*domain.Cart)}
}

func (m *MockCart) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return c, nil
}

func (m *MockCart) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if productID == 404 {
		return catalog.ErrProductNotFound
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return nil
		}
	}
	c.Items = append(c.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MockCart) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity == 0 {
		return m.RemoveItem(ctx, userID, productID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockCart) RemoveItem(ctx context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *MockCart) ClearCart(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return m.err
}

type MockCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Laptop", Price: decimal.RequireFromString("1299.99"), Discount: decimal.NewFromInt(100), Active: true},
		2: {ID: 2, Name: "Mouse", Price: decimal.RequireFromString("29.99"), Active: true},
	}}
}

func (m *MockCatalog) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*domain.Product{m.products[1], m.products[2]}, nil
}

func (m *MockCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) UpdatePrice(ctx context.Context, id int64, price, discount decimal.Decimal) error {
	p, ok := m.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Price, p.Discount = price, discount
	return nil
}

type MockAddressBook struct {
	addresses []*domain.Address
	err       error
}

func (m *MockAddressBook) CreateAddress(ctx context.Context, a *domain.Address) error {
	if m.err != nil {
		return m.err
	}
	a.ID = int64(len(m.addresses) + 1)
	m.addresses = append(m.addresses, a)
	return nil
}

func (m *MockAddressBook) ListAddresses(ctx context.Context, userID int64) ([]*domain.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Address
	for _, a := range m.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type MockNotifications struct {
	outcome  string
	err      error
	received []payment.Notification
}

func (m *MockNotifications) HandleNotification(ctx context.Context, n payment.Notification) (string, error) {
	m.received = append(m.received, n)
	if m.err != nil {
		return "", m.err
	}
	return m.outcome, nil
}
