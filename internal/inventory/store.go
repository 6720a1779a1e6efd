package inventory

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Common errors returned by the store
var (
	ErrProductNotFound      = apperr.New(apperr.KindNotFound, "product_not_found", "product not found")
	ErrInsufficientStock    = apperr.New(apperr.KindConflict, "insufficient_stock", "insufficient stock")
	ErrInvalidQuantity      = apperr.New(apperr.KindValidation, "invalid_quantity", "quantity must be positive")
	ErrReservationNotFound  = apperr.New(apperr.KindNotFound, "reservation_not_found", "reservation not found")
	ErrReservationReleased  = apperr.New(apperr.KindConflict, "reservation_released", "reservation was already released")
	ErrReservationCommitted = apperr.New(apperr.KindConflict, "reservation_committed", "reservation was already committed")
)

// Store owns product stock counters. Nothing else reads or writes stock.
type Store interface {
	// GetStock returns stock information for the given product IDs.
	// Unknown products are skipped.
	GetStock(ctx context.Context, productIDs []int64) ([]domain.StockInfo, error)

	// Reserve atomically checks and holds quantity units of a product for an order.
	Reserve(ctx context.Context, orderID string, productID int64, quantity int32) (*domain.Reservation, error)

	// Release returns a reserved quantity to available stock.
	// Releasing a released or unknown reservation is a no-op.
	Release(ctx context.Context, reservationID string) error

	// Commit makes the decrement permanent. Committing twice is a no-op.
	Commit(ctx context.Context, reservationID string) error

	// ReservationsForOrder lists every reservation taken for an order.
	ReservationsForOrder(ctx context.Context, orderID string) ([]*domain.Reservation, error)

	// SetStock sets the stock level for a product (used for initialization)
	SetStock(ctx context.Context, productID int64, quantity int32) error

	Close() error
}
