package domain

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNoOrderLines         = apperr.New(apperr.KindValidation, "empty_cart", "order has no lines")
	ErrInvalidPaymentMethod = apperr.New(apperr.KindValidation, "invalid_payment_method", "invalid payment method")
	ErrInvalidOrderLine     = apperr.New(apperr.KindValidation, "invalid_order_line", "invalid order line")
)

// Accepted payment methods.
const (
	PaymentMethodCard         = "CARD"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodWallet       = "WALLET"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodWallet:
		return true
	}
	return false
}

// OrderLine is a frozen copy of a cart line priced at checkout time.
type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
}

// Subtotal is unitPrice*quantity minus the line discount, never negative.
func (l OrderLine) Subtotal() decimal.Decimal {
	sub := l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)).Sub(l.Discount)
	if sub.IsNegative() {
		return decimal.Zero
	}
	return sub
}

type Order struct {
	ID            uuid.UUID
	UserID        int64
	AddressID     int64
	PaymentMethod string
	Status        OrderStatus
	Lines         []OrderLine
	Total         decimal.Decimal
	Currency      string
	// PaidAt is set once payment success has been applied.
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder builds a PENDING order and fixes its total from lines.
func NewOrder(id uuid.UUID, userID, addressID int64, paymentMethod, currency string, lines []OrderLine, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoOrderLines
	}
	if !ValidPaymentMethod(paymentMethod) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, paymentMethod)
	}
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() || l.Discount.IsNegative() {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidOrderLine, l.ProductID)
		}
	}

	frozen := make([]OrderLine, len(lines))
	copy(frozen, lines)

	return &Order{
		ID:            id,
		UserID:        userID,
		AddressID:     addressID,
		PaymentMethod: paymentMethod,
		Status:        OrderStatusPending,
		Lines:         frozen,
		Total:         ComputeTotal(frozen),
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func ComputeTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
