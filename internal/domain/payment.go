package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) IsFinal() bool {
	return s != PaymentStatusPending
}

// Payment is the active payment attempt of an order.
type Payment struct {
	OrderID           uuid.UUID
	ProviderReference string
	Method            string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	Attempts          int
	NextCheckAt       time.Time
	CreatedAt         time.Time
	LastUpdatedAt     time.Time
}
