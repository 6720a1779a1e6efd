package checkout

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

var ErrEmptyCart = apperr.New(apperr.KindValidation, "empty_cart", "cart is empty, nothing to checkout")

// ProductError names the cart line that stopped a checkout.
type ProductError struct {
	ProductID int64
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}
