package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Catalog interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdatePrice(ctx context.Context, id int64, price, discount decimal.Decimal) error
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewProductHandler(catalog Catalog, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
		logger:  logger.OrNop(log),
	}
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Active      bool            `json:"active"`
	ImageURL    string          `json:"image_url"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type UpdatePriceRequestDTO struct {
	Price    decimal.Decimal  `json:"price"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

func convertProduct(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Discount:    p.Discount,
		Active:      p.Active,
		ImageURL:    p.ImageURL,
	}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.catalog.GetAllProducts(ctx)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = convertProduct(p)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, logger.FromContext(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, convertProduct(p))
}

// UpdatePrice changes the selling price. Existing orders keep the price they
// were placed with.
func (h *ProductHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	log := logger.FromContext(ctx, h.logger)

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req UpdatePriceRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}

	current, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		handleServiceError(w, log, err)
		return
	}
	discount := current.Discount
	if req.Discount != nil {
		discount = *req.Discount
	}
	if discount.IsNegative() || discount.GreaterThan(req.Price) {
		respondError(w, http.StatusBadRequest, "invalid_discount", "discount must be between 0 and price")
		return
	}

	if err := h.catalog.UpdatePrice(ctx, productID, req.Price, discount); err != nil {
		handleServiceError(w, log, err)
		return
	}
	log.Info("product price updated",
		zap.Int64("product_id", productID),
		zap.String("price", req.Price.String()),
		zap.String("discount", discount.String()))

	current.Price, current.Discount = req.Price, discount
	respondJSON(w, http.StatusOK, convertProduct(current))
}
