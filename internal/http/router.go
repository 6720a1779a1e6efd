package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Handlers struct {
	Orders    *OrdersHandler
	Cart      *CartHandler
	Products  *ProductHandler
	Addresses *AddressHandler
	Webhooks  *WebhookHandler
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	InternalAPIKey     string
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	Logger             *zap.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.List)
		r.Get("/products/{product_id}", h.Products.Get)

		r.Group(func(r chi.Router) {
			r.Use(UserMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", h.Addresses.List)
				r.Post("/", h.Addresses.Create)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Post("/", h.Orders.PlaceOrder)
				r.Get("/{order_id}", h.Orders.GetOrder)
				r.Post("/{order_id}/cancel", h.Orders.CancelOrder)
			})
		})
	})

	r.Post("/webhooks/payments", h.Webhooks.PaymentNotification)

	r.Route("/internal", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.InternalAPIKey))
		r.Post("/orders/{order_id}/fulfillment", h.Orders.ConfirmFulfillment)
		r.Put("/products/{product_id}/price", h.Products.UpdatePrice)
	})

	return r
}
