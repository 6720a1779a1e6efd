package payment

import (
	"errors"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

var (
	ErrPaymentInitiation   = apperr.New(apperr.KindDependency, "payment_initiation_failed", "payment could not be initiated")
	ErrProviderUnavailable = apperr.New(apperr.KindDependency, "payment_provider_unavailable", "payment provider unavailable")
	ErrProviderRejected    = apperr.New(apperr.KindDependency, "payment_provider_rejected", "payment provider rejected the request")
	ErrInvalidNotification = apperr.New(apperr.KindValidation, "invalid_notification", "malformed payment notification")
	ErrUnknownPayment      = apperr.New(apperr.KindNotFound, "unknown_payment", "no payment matches the notification")
	ErrUnknownCharge       = apperr.New(apperr.KindNotFound, "unknown_charge", "provider has no such charge")

	ErrInvalidSignature = errors.New("invalid payment notification signature")
)
