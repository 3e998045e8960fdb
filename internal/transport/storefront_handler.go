package transport

import (
	"errors"
	"net/http"

	"go-shop/internal/domain"
	"go-shop/internal/middleware"
	"go-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StorefrontHandler serves the catalog/order API consumed by the shop client.
type StorefrontHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(orderService service.OrderService, logger *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		orderService: orderService,
		logger:       logger.Named("storefront_api"),
	}
}

// RegisterRoutes registers the storefront routes. placeOrder wraps only
// order creation, e.g. with a rate limiter.
func (h *StorefrontHandler) RegisterRoutes(r chi.Router, placeOrder ...func(http.Handler) http.Handler) {
	r.Get("/items", h.ListItems)
	r.Get("/orders", h.ListOrders)
	r.With(placeOrder...).Post("/orders", h.CreateOrder)
}

// ListItems returns the catalog.
func (h *StorefrontHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	products, err := h.orderService.Catalog(r.Context())
	if err != nil {
		h.logger.Error("Failed to list items", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// ListOrders returns every order with its items, oldest first.
func (h *StorefrontHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.Orders(r.Context())
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// CreateOrder validates and stores an order. Prices come from the catalog.
func (h *StorefrontHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orderService.PlaceOrder(r.Context(), req)
	if err != nil {
		var unknown *service.UnknownItemsError
		switch {
		case errors.As(err, &unknown):
			middleware.RespondWithErrorDetails(w, http.StatusUnprocessableEntity, "unknown item", map[string]interface{}{
				"item_ids": unknown.IDs,
			})
		case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, service.ErrInvalidQuantity):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Order creation failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}
