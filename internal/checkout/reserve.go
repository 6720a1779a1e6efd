package checkout

import (
	"context"
	"math"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reserveLines prices every cart item from the catalog and reserves its stock.
// held always lists the reservations taken so far, also on error.
func (s *Service) reserveLines(ctx context.Context, orderID uuid.UUID, items []domain.CartItem) ([]domain.OrderLine, []*domain.Reservation, error) {
	lines := make([]domain.OrderLine, 0, len(items))
	held := make([]*domain.Reservation, 0, len(items))

	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > math.MaxInt32 {
			return nil, held, &ProductError{ProductID: item.ProductID, Err: inventory.ErrInvalidQuantity}
		}
		qty := int32(item.Quantity)

		product, err := s.catalog.GetAvailableProduct(ctx, item.ProductID)
		if err != nil {
			return nil, held, &ProductError{ProductID: item.ProductID, Err: err}
		}

		reservation, err := s.inventory.Reserve(ctx, orderID.String(), item.ProductID, qty)
		if err != nil {
			return nil, held, &ProductError{ProductID: item.ProductID, Err: err}
		}
		held = append(held, reservation)

		lines = append(lines, domain.OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    qty,
			UnitPrice:   product.Price,
			Discount:    product.Discount.Mul(decimal.NewFromInt32(qty)),
		})
	}
	return lines, held, nil
}

// releaseAll undoes the reservations of a failed attempt.
func (s *Service) releaseAll(ctx context.Context, held []*domain.Reservation, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range held {
		if err := s.inventory.Release(ctx, r.ID); err != nil {
			log.Error("release reservation failed",
				zap.String("reservation_id", r.ID),
				zap.Int64("product_id", r.ProductID),
				zap.Error(err))
		}
	}
}
