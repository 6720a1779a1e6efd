package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification outcomes, also used as metric labels.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeScheduled = "scheduled"
	OutcomeRefunded  = "refunded"
	OutcomeIgnored   = "ignored"
)

// Orders is the single entry point for order status changes.
type Orders interface {
	Transition(ctx context.Context, id uuid.UUID, ev domain.OrderEvent) (*domain.Order, error)
}

type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxWait        time.Duration
	SweepInterval  time.Duration
	BatchSize      int
}

// Backoff returns the delay before re-check number attempts:
// initial*2^(attempts-1), capped at MaxBackoff.
func (p Policy) Backoff(attempts int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

type Notification struct {
	OrderReference    string         `json:"order_reference"`
	ProviderReference string         `json:"provider_reference,omitempty"`
	Status            ProviderStatus `json:"status"`
}

// Reconciler turns provider payment statuses into order transitions.
type Reconciler struct {
	repo    Repository
	gateway Gateway
	orders  Orders
	refunds *Refunds
	policy  Policy
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewReconciler(repo Repository, gateway Gateway, orders Orders, refunds *Refunds, policy Policy, m *metrics.Metrics, log *zap.Logger) *Reconciler {
	if policy.BatchSize <= 0 {
		policy.BatchSize = 100
	}
	return &Reconciler{
		repo:    repo,
		gateway: gateway,
		orders:  orders,
		refunds: refunds,
		policy:  policy,
		metrics: m,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// Initiate records a PENDING payment for the order and asks the provider to
// charge it. The payment row exists before the provider is called so that a
// crash in between is picked up by the sweep.
func (r *Reconciler) Initiate(ctx context.Context, order *domain.Order) (*domain.Payment, error) {
	log := logger.FromContext(ctx, r.logger).With(zap.String("order_id", order.ID.String()))

	now := r.now().UTC()
	p := &domain.Payment{
		OrderID:       order.ID,
		Method:        order.PaymentMethod,
		Amount:        order.Total,
		Currency:      order.Currency,
		Status:        domain.PaymentStatusPending,
		NextCheckAt:   now.Add(r.policy.Backoff(1)),
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := r.repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}

	res, err := r.gateway.Initiate(ctx, ChargeRequest{
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: order.Currency,
		Method:   order.PaymentMethod,
	})
	if err != nil {
		log.Error("payment initiation failed", zap.Error(err))
		if markErr := r.markInitiationFailed(context.WithoutCancel(ctx), order.ID); markErr != nil {
			log.Error("mark payment failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}

	p, err = r.storeReference(context.WithoutCancel(ctx), order.ID, res.Reference)
	if err != nil {
		return nil, err
	}
	log.Info("payment initiated", zap.String("provider_reference", res.Reference))

	if res.Status.Final() {
		if _, err := r.apply(ctx, order.ID, res.Reference, res.Status); err != nil {
			log.Warn("apply synchronous payment result failed, sweep will retry", zap.Error(err))
		}
		return r.repo.GetPaymentByOrder(ctx, order.ID)
	}
	return p, nil
}

func (r *Reconciler) storeReference(ctx context.Context, orderID uuid.UUID, reference string) (*domain.Payment, error) {
	unlock := r.refunds.locks.Lock(orderID)
	defer unlock()

	p, err := r.repo.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p.ProviderReference == "" {
		p.ProviderReference = reference
		p.LastUpdatedAt = r.now().UTC()
		if err := r.repo.UpdatePayment(ctx, p); err != nil {
			return nil, fmt.Errorf("store provider reference: %w", err)
		}
	}
	return p, nil
}

func (r *Reconciler) markInitiationFailed(ctx context.Context, orderID uuid.UUID) error {
	unlock := r.refunds.locks.Lock(orderID)
	defer unlock()

	p, err := r.repo.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if p.Status != domain.PaymentStatusPending {
		return nil
	}
	p.Status = domain.PaymentStatusFailed
	p.LastUpdatedAt = r.now().UTC()
	return r.repo.UpdatePayment(ctx, p)
}

// HandleNotification applies a provider status update. Redelivered
// notifications are no-ops and report OutcomeDuplicate.
func (r *Reconciler) HandleNotification(ctx context.Context, n Notification) (string, error) {
	if !n.Status.Valid() {
		r.metrics.Notification(string(n.Status), "rejected")
		return "", fmt.Errorf("%w: status %q", ErrInvalidNotification, n.Status)
	}

	orderID, err := r.resolveOrder(ctx, n)
	if err != nil {
		r.metrics.Notification(string(n.Status), "rejected")
		return "", err
	}

	outcome, err := r.apply(ctx, orderID, n.ProviderReference, n.Status)
	if err != nil {
		r.metrics.Notification(string(n.Status), "error")
		return "", err
	}
	r.metrics.Notification(string(n.Status), outcome)
	return outcome, nil
}

func (r *Reconciler) resolveOrder(ctx context.Context, n Notification) (uuid.UUID, error) {
	if n.OrderReference != "" {
		id, err := uuid.Parse(n.OrderReference)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: order reference %q", ErrInvalidNotification, n.OrderReference)
		}
		return id, nil
	}
	if n.ProviderReference == "" {
		return uuid.Nil, fmt.Errorf("%w: missing reference", ErrInvalidNotification)
	}

	p, err := r.repo.GetPaymentByReference(ctx, n.ProviderReference)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownPayment, n.ProviderReference)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load payment: %w", err)
	}
	return p.OrderID, nil
}

// apply moves the payment of orderID to status. The order transition is
// applied before the payment record is written, so a failure in between is
// repaired by redelivery.
func (r *Reconciler) apply(ctx context.Context, orderID uuid.UUID, providerRef string, status ProviderStatus) (string, error) {
	unlock := r.refunds.locks.Lock(orderID)
	defer unlock()

	log := logger.FromContext(ctx, r.logger).With(
		zap.String("order_id", orderID.String()),
		zap.String("status", string(status)))

	p, err := r.repo.GetPaymentByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return "", fmt.Errorf("%w: order %s", ErrUnknownPayment, orderID)
	}
	if err != nil {
		return "", fmt.Errorf("load payment: %w", err)
	}

	if providerRef != "" {
		switch p.ProviderReference {
		case "":
			p.ProviderReference = providerRef
		case providerRef:
		default:
			return "", fmt.Errorf("%w: reference %s does not match order %s", ErrUnknownPayment, providerRef, orderID)
		}
	}

	switch status {
	case StatusPending:
		return r.schedule(ctx, p, log)
	case StatusSuccess:
		return r.applySuccess(ctx, p, log)
	default:
		return r.applyFailure(ctx, p, log)
	}
}

func (r *Reconciler) schedule(ctx context.Context, p *domain.Payment, log *zap.Logger) (string, error) {
	if p.Status.IsFinal() {
		return OutcomeDuplicate, nil
	}

	now := r.now().UTC()
	p.Attempts++
	p.NextCheckAt = now.Add(r.policy.Backoff(p.Attempts))
	p.LastUpdatedAt = now
	if err := r.repo.UpdatePayment(ctx, p); err != nil {
		return "", fmt.Errorf("schedule payment re-check: %w", err)
	}
	log.Debug("payment still pending", zap.Int("attempts", p.Attempts), zap.Time("next_check_at", p.NextCheckAt))
	return OutcomeScheduled, nil
}

func (r *Reconciler) applySuccess(ctx context.Context, p *domain.Payment, log *zap.Logger) (string, error) {
	if p.Status == domain.PaymentStatusSucceeded || p.Status == domain.PaymentStatusRefunded {
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeApplied
	_, err := r.orders.Transition(ctx, p.OrderID, domain.EventPaymentSucceeded)
	switch {
	case errors.Is(err, domain.ErrInvalidStateTransition):
		// money arrived for an order that already failed or was cancelled
		outcome = OutcomeRefunded
	case err != nil:
		return "", fmt.Errorf("apply payment success: %w", err)
	}

	p.Status = domain.PaymentStatusSucceeded
	p.LastUpdatedAt = r.now().UTC()
	if err := r.repo.UpdatePayment(ctx, p); err != nil {
		return "", fmt.Errorf("mark payment succeeded: %w", err)
	}

	if outcome == OutcomeRefunded {
		log.Warn("late payment success for closed order, refunding")
		if err := r.refunds.refundLocked(ctx, p); err != nil {
			log.Error("refund of late payment failed", zap.Error(err))
		}
	}
	return outcome, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, p *domain.Payment, log *zap.Logger) (string, error) {
	switch p.Status {
	case domain.PaymentStatusFailed:
		return OutcomeDuplicate, nil
	case domain.PaymentStatusSucceeded, domain.PaymentStatusRefunded:
		log.Warn("failure notification for captured payment ignored")
		return OutcomeIgnored, nil
	}

	_, err := r.orders.Transition(ctx, p.OrderID, domain.EventPaymentFailed)
	if err != nil && !errors.Is(err, domain.ErrInvalidStateTransition) {
		return "", fmt.Errorf("apply payment failure: %w", err)
	}

	p.Status = domain.PaymentStatusFailed
	p.LastUpdatedAt = r.now().UTC()
	if err := r.repo.UpdatePayment(ctx, p); err != nil {
		return "", fmt.Errorf("mark payment failed: %w", err)
	}
	return OutcomeApplied, nil
}
