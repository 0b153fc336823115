package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/livemart/marketplace/internal/domain/checkout"
)

// errorResponse is the wire form of every API error.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeCheckoutError maps checkout domain errors to the wire taxonomy.
// Classified errors pass through with their precise message; anything else is
// logged and surfaced as a generic internal error so the caller never sees a
// silent partial success or a raw store fault.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrMissingDeliveryAddress),
		errors.Is(err, checkout.ErrMissingPaymentMode):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, checkout.ErrAborted):
		// Safe for the caller to retry the whole checkout from scratch.
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var pnfErr *checkout.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		writeError(w, http.StatusNotFound, pnfErr.Error())
		return
	}

	var oosErr *checkout.OutOfStockError
	if errors.As(err, &oosErr) {
		writeError(w, http.StatusConflict, oosErr.Error())
		return
	}

	zctx.From(ctx).Error("checkout failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
