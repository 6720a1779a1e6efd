package domain

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusFailed
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// OrderEvent is an input to the order state machine.
type OrderEvent string

const (
	EventPaymentSucceeded     OrderEvent = "PAYMENT_SUCCEEDED"
	EventPaymentFailed        OrderEvent = "PAYMENT_FAILED"
	EventFulfillmentConfirmed OrderEvent = "FULFILLMENT_CONFIRMED"
	EventCancelRequested      OrderEvent = "CANCEL_REQUESTED"
)

func (e OrderEvent) String() string {
	return string(e)
}

var (
	ErrInvalidStateTransition = apperr.New(apperr.KindConflict, "invalid_state_transition", "invalid order state transition")
	ErrUnknownOrderEvent      = apperr.New(apperr.KindValidation, "unknown_order_event", "unknown order event")
)

// Resolve applies ev to the order's current state without mutating it.
// applied reports that ev has already taken effect, in which case the caller
// must treat the event as a no-op.
func (o *Order) Resolve(ev OrderEvent) (next OrderStatus, applied bool, err error) {
	switch ev {
	case EventPaymentSucceeded:
		if o.PaidAt != nil {
			return o.Status, true, nil
		}
		if o.Status == OrderStatusPending {
			return OrderStatusProcessing, false, nil
		}
	case EventPaymentFailed:
		if o.Status == OrderStatusFailed {
			return o.Status, true, nil
		}
		if o.Status == OrderStatusPending {
			return OrderStatusFailed, false, nil
		}
	case EventFulfillmentConfirmed:
		if o.Status == OrderStatusCompleted {
			return o.Status, true, nil
		}
		if o.Status == OrderStatusProcessing {
			return OrderStatusCompleted, false, nil
		}
	case EventCancelRequested:
		if o.Status == OrderStatusCancelled {
			return o.Status, true, nil
		}
		if o.Status == OrderStatusPending || o.Status == OrderStatusProcessing {
			return OrderStatusCancelled, false, nil
		}
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnknownOrderEvent, ev)
	}
	return "", false, fmt.Errorf("%w: %s on order in %s", ErrInvalidStateTransition, ev, o.Status)
}
