// Package handler exposes the storefront over HTTP. Authentication is
// upstream's responsibility: handlers trust the user identity forwarded by
// the gateway and only translate between JSON and the domain layer.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcraft/storefront/internal/domain/cart"
	"github.com/shopcraft/storefront/internal/domain/checkout"
	"github.com/shopcraft/storefront/internal/domain/order"
	"github.com/shopcraft/storefront/internal/domain/product"
	"github.com/shopcraft/storefront/internal/domain/promo"
)

// Handler implements the HTTP API, delegating business logic to the domain
// services and repositories.
type Handler struct {
	carts     *cart.Service
	validator *promo.Validator
	checkout  *checkout.Service
	products  product.Repository
	promos    promo.Repository
	orders    order.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	validator *promo.Validator,
	checkoutSvc *checkout.Service,
	products product.Repository,
	promos promo.Repository,
	orders order.Repository,
) *Handler {
	return &Handler{
		carts:     carts,
		validator: validator,
		checkout:  checkoutSvc,
		products:  products,
		promos:    promos,
		orders:    orders,
	}
}

// Routes returns the chi router for the storefront API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Put("/cart/items/{itemID}", h.updateCartItem)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/apply-promo", h.applyPromo)

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireUser, RequireAdmin)

		r.Get("/promo-codes", h.listPromos)
		r.Post("/promo-codes", h.createPromo)
		r.Patch("/promo-codes/{promoID}", h.updatePromo)

		r.Get("/admin/orders", h.listAllOrders)
		r.Put("/admin/orders/{orderID}/status", h.updateOrderStatus)
	})

	return r
}
