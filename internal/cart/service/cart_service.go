package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cart/cache"
	"github.com/fjod/go_cart/storefront/internal/cart/repository"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/keymutex"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidQuantity = apperr.New(apperr.KindValidation, "invalid_quantity", "quantity must be positive")

// ProductLookup resolves products that may be added to a cart.
type ProductLookup interface {
	GetAvailableProduct(ctx context.Context, id int64) (*domain.Product, error)
}

const (
	loadTimeout  = 5 * time.Second
	cacheTimeout = time.Second
	// generation slots; users sharing a slot only skip each other's cache fills
	generationSlots = 256
)

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductLookup
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede

	// cacheLocks orders cache fills against invalidations of the same user.
	cacheLocks  *keymutex.KeyMutex[int64]
	generations [generationSlots]atomic.Uint64
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, products ProductLookup, log *zap.Logger) *CartService {
	return &CartService{
		repo:       repo,
		cache:      cache,
		products:   products,
		logger:     logger.OrNop(log),
		cacheLocks: keymutex.New[int64](),
	}
}

// GetCart returns the user's cart, from the cache when possible. A user
// without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	log := logger.FromContext(ctx, s.logger)

	ch := s.sfg.DoChan(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		// shared by every waiter, so no single caller may cancel it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		cart, err := s.cache.Get(loadCtx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("cart cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		}

		gen := s.generation(userID)
		cart, err = s.LoadCart(loadCtx, userID)
		if err != nil {
			return nil, err
		}

		go s.fillCache(userID, gen, cart)
		return cart, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Cart), nil
	}
}

// LoadCart reads the cart from the store, bypassing the cache.
func (s *CartService) LoadCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) generation(userID int64) uint64 {
	return s.slot(userID).Load()
}

func (s *CartService) slot(userID int64) *atomic.Uint64 {
	i := userID % generationSlots
	if i < 0 {
		i = -i
	}
	return &s.generations[i]
}

// fillCache stores cart unless the user's cart changed after gen was read.
func (s *CartService) fillCache(userID int64, gen uint64, cart *domain.Cart) {
	unlock := s.cacheLocks.Lock(userID)
	defer unlock()

	if s.generation(userID) != gen {
		s.logger.Debug("cart changed during load, cache fill skipped", zap.Int64("user_id", userID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.logger.Warn("cart cache set failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := s.products.GetAvailableProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.repo.AddItem(ctx, userID, productID, quantity); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// UpdateQuantity sets the quantity of a line. Zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

// invalidateCache runs after every store write. Loads that started before it
// no longer fill the cache.
func (s *CartService) invalidateCache(ctx context.Context, userID int64) {
	unlock := s.cacheLocks.Lock(userID)
	defer unlock()
	s.slot(userID).Add(1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.FromContext(ctx, s.logger).Warn("cart cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
