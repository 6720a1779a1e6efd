package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
)

type AddressBook interface {
	CreateAddress(ctx context.Context, a *domain.Address) error
	ListAddresses(ctx context.Context, userID int64) ([]*domain.Address, error)
}

type AddressHandler struct {
	addresses AddressBook
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAddressHandler(addresses AddressBook, timeout time.Duration, log *zap.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, timeout: timeout, logger: logger.OrNop(log)}
}

type CreateAddressRequestDTO struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateAddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	a := &domain.Address{
		UserID:     userID,
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(req.Country)),
	}
	if a.Line1 == "" || a.City == "" || a.PostalCode == "" {
		respondError(w, http.StatusBadRequest, "invalid_address", "line1, city and postal_code are required")
		return
	}
	if len(a.Country) != 2 {
		respondError(w, http.StatusBadRequest, "invalid_country", "country must be a two-letter code")
		return
	}

	if err := h.addresses.CreateAddress(ctx, a); err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	addresses, err := h.addresses.ListAddresses(ctx, userID)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	if addresses == nil {
		addresses = []*domain.Address{}
	}
	respondJSON(w, http.StatusOK, addresses)
}
