package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart/repository"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*CartService, *MockRepository, *MockCache) {
	repo := NewMockRepository()
	c := NewMockCache()
	return NewCartService(repo, c, MockProducts{unavailable: map[int64]bool{5: true}}, nil), repo, c
}

func TestGetCart_EmptyWhenMissing(t *testing.T) {
	svc, _, _ := newService()

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cart.UserID)
	assert.True(t, cart.IsEmpty())
}

func TestGetCart_FromCache(t *testing.T) {
	svc, repo, c := newService()
	c.carts[1] = &domain.Cart{UserID: 1, Items: []domain.CartItem{{ProductID: 2, Quantity: 1}}}

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int32(0), repo.getCalls.Load())
}

func TestGetCart_MissPopulatesCache(t *testing.T) {
	svc, repo, c := newService()
	require.NoError(t, repo.AddItem(context.Background(), 1, 2, 3))

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	assert.Eventually(t, func() bool { return c.has(1) }, time.Second, 10*time.Millisecond)
}

func TestGetCart_CacheErrorFallsBackToRepo(t *testing.T) {
	svc, repo, c := newService()
	c.getErr = errors.New("redis down")
	require.NoError(t, repo.AddItem(context.Background(), 1, 2, 3))

	cart, err := svc.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestGetCart_RepoError(t *testing.T) {
	svc, repo, _ := newService()
	repo.err = errors.New("mongo down")

	_, err := svc.GetCart(context.Background(), 1)
	assert.ErrorContains(t, err, "mongo down")
}

func TestGetCart_SingleflightCollapsesMisses(t *testing.T) {
	svc, repo, _ := newService()
	repo.getDelay = 50 * time.Millisecond
	require.NoError(t, repo.AddItem(context.Background(), 1, 2, 3))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetCart(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, repo.getCalls.Load(), int32(10))
}

func TestGetCart_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	svc, repo, _ := newService()
	repo.getDelay = 100 * time.Millisecond
	require.NoError(t, repo.AddItem(context.Background(), 1, 2, 3))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetCart(first, 1)
		firstErr <- err
	}()
	// let the first caller start the shared load, then join it and walk away
	time.Sleep(20 * time.Millisecond)
	secondDone := make(chan struct{})
	var cart *domain.Cart
	var err error
	go func() {
		defer close(secondDone)
		cart, err = svc.GetCart(context.Background(), 1)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	<-secondDone
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int32(1), repo.getCalls.Load())
}

func TestGetCart_FillAfterClearIsSkipped(t *testing.T) {
	svc, repo, c := newService()
	ctx := context.Background()
	require.NoError(t, repo.AddItem(ctx, 1, 2, 2))

	// a read loads the cart, then checkout clears it before the fill lands
	gen := svc.generation(1)
	loaded, err := svc.LoadCart(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, 1))
	svc.fillCache(1, gen, loaded)

	assert.False(t, c.has(1))
	cart, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestGetCart_FillBeforeClearIsEvicted(t *testing.T) {
	svc, repo, c := newService()
	ctx := context.Background()
	require.NoError(t, repo.AddItem(ctx, 1, 2, 2))

	gen := svc.generation(1)
	loaded, err := svc.LoadCart(ctx, 1)
	require.NoError(t, err)
	svc.fillCache(1, gen, loaded)
	require.True(t, c.has(1))

	require.NoError(t, svc.ClearCart(ctx, 1))
	assert.False(t, c.has(1))
}

func TestLoadCart_BypassesCache(t *testing.T) {
	svc, _, c := newService()
	c.carts[1] = &domain.Cart{UserID: 1, Items: []domain.CartItem{{ProductID: 2, Quantity: 2}}}

	cart, err := svc.LoadCart(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestAddItem(t *testing.T) {
	svc, repo, c := newService()
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, 1, 2, 3))
	assert.Equal(t, 1, c.deleteCalls)

	cart, err := repo.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddItem(ctx, 1, 2, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AddItem(ctx, 1, 5, 1), catalog.ErrProductUnavailable)
	assert.ErrorIs(t, svc.AddItem(ctx, 1, 500, 1), catalog.ErrProductNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, 1, 2, 3))
	require.NoError(t, svc.AddItem(ctx, 1, 3, 1))

	require.NoError(t, svc.UpdateQuantity(ctx, 1, 2, 9))
	cart, _ := repo.GetCart(ctx, 1)
	assert.Equal(t, 9, cart.Items[0].Quantity)

	// zero removes the line
	require.NoError(t, svc.UpdateQuantity(ctx, 1, 2, 0))
	cart, _ = repo.GetCart(ctx, 1)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(3), cart.Items[0].ProductID)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 1, 3, -1), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 1, 42, 1), repository.ErrItemNotFound)
}

func TestClearCart(t *testing.T) {
	svc, repo, c := newService()
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, 1, 2, 3))
	c.carts[1] = &domain.Cart{UserID: 1}

	require.NoError(t, svc.ClearCart(ctx, 1))

	_, err := repo.GetCart(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
	assert.False(t, c.has(1))
}
