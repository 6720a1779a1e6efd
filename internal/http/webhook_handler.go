package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"go.uber.org/zap"
)

const maxNotificationSize = 64 << 10

type NotificationHandler interface {
	HandleNotification(ctx context.Context, n payment.Notification) (string, error)
}

// WebhookHandler receives payment provider callbacks. Providers redeliver
// until they get a 2xx, so duplicates answer 200 and anything that may
// succeed later answers 5xx.
type WebhookHandler struct {
	notifications NotificationHandler
	secret        []byte
	timeout       time.Duration
	logger        *zap.Logger
}

// NewWebhookHandler returns a handler that requires a valid X-Signature when
// secret is not empty.
func NewWebhookHandler(notifications NotificationHandler, secret string, timeout time.Duration, log *zap.Logger) *WebhookHandler {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &WebhookHandler{
		notifications: notifications,
		secret:        key,
		timeout:       timeout,
		logger:        logger.OrNop(log),
	}
}

type NotificationResponseDTO struct {
	Outcome string `json:"outcome"`
}

// POST /webhooks/payments
func (h *WebhookHandler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	if h.secret != nil && !payment.VerifySignature(h.secret, body, r.Header.Get(payment.SignatureHeader)) {
		log.Warn("payment notification rejected", zap.Error(payment.ErrInvalidSignature))
		respondError(w, http.StatusUnauthorized, "invalid_signature", payment.ErrInvalidSignature.Error())
		return
	}

	var n payment.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_notification", "invalid JSON body")
		return
	}

	outcome, err := h.notifications.HandleNotification(ctx, n)
	if err != nil {
		log.Warn("payment notification not applied",
			zap.String("order_reference", n.OrderReference),
			zap.String("provider_reference", n.ProviderReference),
			zap.String("status", string(n.Status)),
			zap.Error(err))
		handleServiceError(w, log, err)
		return
	}

	log.Info("payment notification handled",
		zap.String("order_reference", n.OrderReference),
		zap.String("status", string(n.Status)),
		zap.String("outcome", outcome))
	respondJSON(w, http.StatusOK, NotificationResponseDTO{Outcome: outcome})
}
