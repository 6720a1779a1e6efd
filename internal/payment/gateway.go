package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderStatus is the status vocabulary shared with the payment provider.
type ProviderStatus string

const (
	StatusPending ProviderStatus = "pending"
	StatusSuccess ProviderStatus = "success"
	StatusFailure ProviderStatus = "failure"
)

func (s ProviderStatus) Valid() bool {
	return s == StatusPending || s == StatusSuccess || s == StatusFailure
}

func (s ProviderStatus) Final() bool {
	return s == StatusSuccess || s == StatusFailure
}

type ChargeRequest struct {
	OrderID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Method   string
}

type ChargeResult struct {
	Reference string
	Status    ProviderStatus
}

// Gateway is the provider side of a payment. Outcomes usually arrive later as
// notifications or through Status.
type Gateway interface {
	Initiate(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Status(ctx context.Context, reference string) (ProviderStatus, error)
	Refund(ctx context.Context, reference string, amount decimal.Decimal) error
}
