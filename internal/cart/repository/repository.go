package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = apperr.New(apperr.KindNotFound, "cart_item_not_found", "item not found in cart")
)

// CartRepository defines the interface for cart data operations
type CartRepository interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	// AddItem adds quantity units of a product, merging with an existing line.
	AddItem(ctx context.Context, userID int64, productID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID int64, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID int64, productID int64) error
	DeleteCart(ctx context.Context, userID int64) error
}
