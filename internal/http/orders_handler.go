package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var errNotPositive = errors.New("not a positive integer")

type Checkout interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

type Orders interface {
	Get(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, userID int64, page, size int) (*orders.Page, error)
	Cancel(ctx context.Context, userID int64, id uuid.UUID) (*domain.Order, error)
	ConfirmFulfillment(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type OrdersHandler struct {
	checkout Checkout
	orders   Orders
	timeout  time.Duration
	logger   *zap.Logger
}

func NewOrdersHandler(checkout Checkout, orders Orders, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkout,
		orders:   orders,
		timeout:  timeout,
		logger:   logger.OrNop(log),
	}
}

type PlaceOrderRequestDTO struct {
	AddressID     int64  `json:"address_id"`
	PaymentMethod string `json:"payment_method"`
}

type OrderLineDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderResponseDTO struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	AddressID     int64           `json:"address_id"`
	PaymentMethod string          `json:"payment_method"`
	Lines         []OrderLineDTO  `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderPageDTO struct {
	Orders []OrderResponseDTO `json:"orders"`
	Page   int                `json:"page"`
	Size   int                `json:"size"`
	Total  int                `json:"total"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineDTO{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			Subtotal:    l.Subtotal(),
		})
	}
	return OrderResponseDTO{
		ID:            o.ID.String(),
		Status:        o.Status.String(),
		AddressID:     o.AddressID,
		PaymentMethod: o.PaymentMethod,
		Lines:         lines,
		Total:         o.Total,
		Currency:      o.Currency,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// POST /api/v1/orders
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx, h.logger)

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be positive")
		return
	}

	res, err := h.checkout.PlaceOrder(ctx, checkout.Request{
		UserID:         userID,
		AddressID:      req.AddressID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		handleServiceError(w, log, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, convertOrder(res.Order))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, userID, orderID)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders?page=&size=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_size", "size must be a positive integer")
		return
	}

	res, err := h.orders.List(ctx, userID, page, size)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(res.Orders))
	for _, o := range res.Orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, OrderPageDTO{Orders: dtos, Page: res.Page, Size: res.Size, Total: res.Total})
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, userID, orderID)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// POST /internal/orders/{order_id}/fulfillment
func (h *OrdersHandler) ConfirmFulfillment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.ConfirmFulfillment(ctx, orderID)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "order_id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt returns 0 for an absent parameter so the service applies its default.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errNotPositive
	}
	return n, nil
}
