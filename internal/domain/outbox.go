package domain

import "time"

const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusChanged = "order.status_changed"
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// OrderEventPayload is the JSON body published for order outbox events.
type OrderEventPayload struct {
	OrderID        string      `json:"order_id"`
	UserID         int64       `json:"user_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	Total          string      `json:"total"`
	Currency       string      `json:"currency"`
	Lines          []OrderLine `json:"lines,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
