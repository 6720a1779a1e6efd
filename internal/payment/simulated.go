package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type simulatedCharge struct {
	amount   decimal.Decimal
	status   ProviderStatus
	refunded bool
}

// SimulatedGateway accepts every charge as pending and settles it on the
// first status check: 95% succeed, the rest fail.
type SimulatedGateway struct {
	mu      sync.Mutex
	charges map[string]*simulatedCharge
	roll    func() int
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		charges: make(map[string]*simulatedCharge),
		roll:    func() int { return rand.Intn(100) },
	}
}

func calcStatus(roll int) ProviderStatus {
	if roll < 95 {
		return StatusSuccess
	}
	return StatusFailure
}

func (g *SimulatedGateway) Initiate(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	ref := fmt.Sprintf("SIM-%s", uuid.NewString())

	g.mu.Lock()
	g.charges[ref] = &simulatedCharge{amount: req.Amount, status: StatusPending}
	g.mu.Unlock()

	return &ChargeResult{Reference: ref, Status: StatusPending}, nil
}

func (g *SimulatedGateway) Status(_ context.Context, reference string) (ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[reference]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCharge, reference)
	}
	if c.status == StatusPending {
		c.status = calcStatus(g.roll())
	}
	return c.status, nil
}

// Refund always succeeds for a captured charge.
func (g *SimulatedGateway) Refund(_ context.Context, reference string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.charges[reference]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharge, reference)
	}
	if c.status != StatusSuccess || amount.GreaterThan(c.amount) {
		return fmt.Errorf("%w: charge %s is not refundable", ErrProviderRejected, reference)
	}
	c.refunded = true
	return nil
}
