// Package handler exposes the marketplace API over HTTP and maps domain
// errors to the wire taxonomy.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livemart/marketplace/internal/domain/cart"
	"github.com/livemart/marketplace/internal/domain/order"
	"github.com/livemart/marketplace/internal/domain/product"
)

// Handler serves the marketplace API routes, delegating business logic to the
// injected domain services and repositories.
type Handler struct {
	products product.Repository
	carts    cart.Repository
	orders   order.Repository
	checkout Checkouter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts cart.Repository,
	orders order.Repository,
	checkout Checkouter,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		checkout: checkout,
	}
}

// Routes mounts all API routes. The auth middleware guards everything that
// acts on behalf of a caller; catalog reads stay public.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{productID}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Delete("/cart/items/{productID}", h.RemoveCartItem)

		r.Post("/checkout", h.Checkout)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
	})

	return r
}
