package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	PaymentNotificationsTopic = "payment-notifications"
	groupID                   = "storefront"

	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

type NotificationHandler interface {
	HandleNotification(ctx context.Context, n payment.Notification) (string, error)
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer applies payment notifications delivered through Kafka. An offset
// is committed only once its notification was applied or rejected for good;
// transient failures are retried in place.
type Consumer struct {
	handler    NotificationHandler
	reader     MessageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewConsumer(handler NotificationHandler, log *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    PaymentNotificationsTopic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		handler:    handler,
		reader:     reader,
		logger:     logger.OrNop(log),
		retryDelay: initialRetryDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.processMessage(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.logger.Error("payment notification consumer", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	log := c.logger.With(
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset))

	var n payment.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		log.Warn("dropping unparseable payment notification", zap.Error(err))
		return c.commit(ctx, m)
	}

	delay := c.retryDelay
	for {
		outcome, err := c.handler.HandleNotification(logger.WithLogger(ctx, log), n)
		if err == nil {
			log.Info("payment notification handled",
				zap.String("order_reference", n.OrderReference),
				zap.String("status", string(n.Status)),
				zap.String("outcome", outcome))
			return c.commit(ctx, m)
		}
		if permanent(err) {
			log.Warn("payment notification rejected", zap.String("order_reference", n.OrderReference), zap.Error(err))
			return c.commit(ctx, m)
		}

		log.Error("payment notification failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// permanent reports errors that a redelivery cannot fix.
func permanent(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		return true
	}
	return false
}
