package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func postNotification(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.PaymentNotification(rec, req)
	return rec
}

func TestWebhook_Applied(t *testing.T) {
	mock := &MockNotifications{outcome: payment.OutcomeApplied}
	handler := NewWebhookHandler(mock, "", 5*time.Second, nil)
	body := `{"order_reference":"0b8e5f8e-58f5-4bd4-9d5e-6a1f1c4f4d11","provider_reference":"SIM-1","status":"success"}`

	rec := postNotification(handler, body, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outcome":"applied"}`, rec.Body.String())
	require.Len(t, mock.received, 1)
	assert.Equal(t, payment.Notification{
		OrderReference:    "0b8e5f8e-58f5-4bd4-9d5e-6a1f1c4f4d11",
		ProviderReference: "SIM-1",
		Status:            payment.StatusSuccess,
	}, mock.received[0])
}

func TestWebhook_DuplicateIsOK(t *testing.T) {
	handler := NewWebhookHandler(&MockNotifications{outcome: payment.OutcomeDuplicate}, "", 5*time.Second, nil)

	rec := postNotification(handler, `{"order_reference":"x","status":"success"}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
}

func TestWebhook_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"malformed", payment.ErrInvalidNotification, http.StatusBadRequest},
		{"unknown order", payment.ErrUnknownPayment, http.StatusNotFound},
		{"storage down", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewWebhookHandler(&MockNotifications{err: tt.err}, "", 5*time.Second, nil)

			rec := postNotification(handler, `{"order_reference":"x","status":"failure"}`, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	mock := &MockNotifications{}
	handler := NewWebhookHandler(mock, "", 5*time.Second, nil)

	rec := postNotification(handler, `{"order_reference":`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.received)
}

func TestWebhook_Signature(t *testing.T) {
	body := `{"order_reference":"x","status":"pending"}`
	valid := payment.Sign([]byte(webhookSecret), []byte(body))

	tests := []struct {
		name       string
		signature  string
		wantStatus int
	}{
		{"valid", valid, http.StatusOK},
		{"valid with prefix", "sha256=" + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", payment.Sign([]byte("other"), []byte(body)), http.StatusUnauthorized},
		{"not hex", "zz", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockNotifications{outcome: payment.OutcomeScheduled}
			handler := NewWebhookHandler(mock, webhookSecret, 5*time.Second, nil)

			rec := postNotification(handler, body, tt.signature)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, mock.received, "unauthenticated notification must not be applied")
			}
		})
	}
}

func TestWebhook_TamperedBodyRejected(t *testing.T) {
	mock := &MockNotifications{outcome: payment.OutcomeApplied}
	handler := NewWebhookHandler(mock, webhookSecret, 5*time.Second, nil)
	signature := payment.Sign([]byte(webhookSecret), []byte(`{"order_reference":"x","status":"failure"}`))

	rec := postNotification(handler, `{"order_reference":"x","status":"success"}`, signature)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, mock.received)
}

func TestWebhook_RouteIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/webhooks/payments", `{"order_reference":"x","status":"success"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.notifications.received, 1)
}
