package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/order"
)

// orderLineResponse is the wire form of one order line.
type orderLineResponse struct {
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	IsBackorder bool    `json:"isBackorder"`
	IsProxy     bool    `json:"isProxy"`
}

// orderResponse is the wire form of a persisted order.
type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Products        []orderLineResponse `json:"products"`
	TotalAmount     float64             `json:"totalAmount"`
	Status          string              `json:"status"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentMode     string              `json:"paymentMode"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// updateStatusRequest moves an order to a new fulfillment status.
type updateStatusRequest struct {
	Status string `json:"status"`
}

// ListOrders returns the caller's own orders, or all orders in a given status
// when the status query parameter is present (merchant fulfillment view).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())

	var (
		list []order.Order
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		list, err = h.orders.ListByStatus(r.Context(), order.Status(status))
	} else {
		list, err = h.orders.ListByUser(r.Context(), caller.ID)
	}
	if err != nil {
		zctx.From(r.Context()).Error("list orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]orderResponse, len(list))
	for i, o := range list {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder returns a single order by ID.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order "+id+" not found")
			return
		}
		zctx.From(r.Context()).Error("get order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*o))
}

// UpdateOrderStatus applies a fulfillment status transition to an order.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order "+id+" not found")
			return
		}
		zctx.From(r.Context()).Error("get order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	to := order.Status(req.Status)
	if !order.CanTransition(o.Status, to) {
		writeError(w, http.StatusConflict, (&order.InvalidTransitionError{From: o.Status, To: to}).Error())
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), id, o.Status, to); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			// The order moved under us between read and CAS update.
			writeError(w, http.StatusConflict, "order status changed concurrently")
			return
		}
		zctx.From(r.Context()).Error("update order status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toOrderResponse(o order.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			Name:        l.Name,
			Price:       l.Price.InexactFloat64(),
			IsBackorder: l.IsBackorder,
			IsProxy:     l.IsProxy,
		}
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Products:        lines,
		TotalAmount:     o.TotalAmount.InexactFloat64(),
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		PaymentMode:     o.PaymentMode,
		CreatedAt:       o.CreatedAt,
	}
}
