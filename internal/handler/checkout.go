package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/livemart/marketplace/internal/domain/checkout"
)

// Checkouter is the slice of the checkout domain the handler needs. Declared
// here so handler tests can substitute a fake.
type Checkouter interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// checkoutRequest is the wire form of a checkout. The cart is read
// server-side; the body carries only delivery details.
type checkoutRequest struct {
	DeliveryAddress string `json:"deliveryAddress"`
	PaymentMode     string `json:"paymentMode"`
}

// checkoutResponse confirms a committed order.
type checkoutResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
}

// Checkout places an order from the caller's current cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), checkout.Request{
		DeliveryAddress: req.DeliveryAddress,
		PaymentMode:     req.PaymentMode,
	})
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Success: true,
		OrderID: result.OrderID,
	})
}
