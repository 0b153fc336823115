package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/cart"
	"github.com/livemart/marketplace/internal/domain/product"
)

// cartItemResponse is the wire form of one cart entry.
type cartItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	IsProxy   bool   `json:"isProxy"`
}

// addCartItemRequest adds a product to the caller's cart. Quantity defaults
// to 1 when omitted.
type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GetCart returns the caller's current cart items.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())

	items, err := h.carts.ListByUser(r.Context(), caller.ID)
	if err != nil {
		zctx.From(r.Context()).Error("list cart failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]cartItemResponse, len(items))
	for i, item := range items {
		resp[i] = cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			IsProxy:   item.IsProxy,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCartItem adds a product to the caller's cart, incrementing the quantity
// when already present. The proxy flag is copied from the catalog so checkout
// later knows the line is backorder-eligible.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product "+req.ProductID+" not found")
			return
		}
		zctx.From(r.Context()).Error("get product failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	item := cart.Item{
		ProductID: p.ID,
		Quantity:  req.Quantity,
		IsProxy:   p.IsProxy,
	}
	if err := h.carts.Upsert(r.Context(), caller.ID, item); err != nil {
		zctx.From(r.Context()).Error("add cart item failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem removes one product from the caller's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	if err := h.carts.Delete(r.Context(), caller.ID, productID); err != nil {
		zctx.From(r.Context()).Error("remove cart item failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
