package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/cart"
	"github.com/livemart/marketplace/internal/domain/checkout"
	"github.com/livemart/marketplace/internal/domain/order"
	"github.com/livemart/marketplace/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, err := m.GetByID(context.Background(), id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	items    []cart.Item
	upserted []cart.Item
	deleted  []string
	err      error
}

func (m *mockCartRepo) ListByUser(_ context.Context, _ string) ([]cart.Item, error) {
	return m.items, m.err
}

func (m *mockCartRepo) Upsert(_ context.Context, _ string, item cart.Item) error {
	m.upserted = append(m.upserted, item)
	return m.err
}

func (m *mockCartRepo) Delete(_ context.Context, _, productID string) error {
	m.deleted = append(m.deleted, productID)
	return m.err
}

type mockOrderRepo struct {
	byID      map[string]*order.Order
	byStatus  []order.Order
	updateErr error
	updated   []order.Status
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ string) ([]order.Order, error) {
	out := make([]order.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) ListByStatus(_ context.Context, _ order.Status) ([]order.Order, error) {
	return m.byStatus, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _, to order.Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, to)
	return nil
}

type mockCheckouter struct {
	result *checkout.Result
	err    error
}

func (m *mockCheckouter) PlaceOrder(_ context.Context, _ checkout.Request) (*checkout.Result, error) {
	return m.result, m.err
}

// --- Helpers ---

// stubAuthn injects a fixed identity, standing in for the token middleware.
func stubAuthn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), &auth.Identity{
			ID:    "user-1",
			Email: "shopper@example.com",
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type testDeps struct {
	products *mockProductRepo
	carts    *mockCartRepo
	orders   *mockOrderRepo
	checkout *mockCheckouter
}

func newTestRouter(d testDeps) http.Handler {
	if d.products == nil {
		d.products = &mockProductRepo{}
	}
	if d.carts == nil {
		d.carts = &mockCartRepo{}
	}
	if d.orders == nil {
		d.orders = &mockOrderRepo{}
	}
	if d.checkout == nil {
		d.checkout = &mockCheckouter{}
	}
	h := NewHandler(d.products, d.carts, d.orders, d.checkout)
	return h.Routes(stubAuthn)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Product endpoints ---

func TestListProducts(t *testing.T) {
	h := newTestRouter(testDeps{products: &mockProductRepo{products: []product.Product{
		{ID: "p1", Name: "Apples", Price: decimal.RequireFromString("3.50"), Stock: 45},
		{ID: "p2", Name: "Coffee", Price: decimal.RequireFromString("18.00"), IsProxy: true},
	}}})

	rec := doJSON(t, h, http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[[]productResponse](t, rec)
	require.Len(t, resp, 2)
	assert.Equal(t, "p1", resp[0].ID)
	assert.InDelta(t, 3.50, resp[0].Price, 0.001)
	assert.True(t, resp[1].IsProxy)
}

func TestGetProduct_NotFound(t *testing.T) {
	h := newTestRouter(testDeps{})

	rec := doJSON(t, h, http.MethodGet, "/products/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Cart endpoints ---

func TestAddCartItem_CopiesProxyFlag(t *testing.T) {
	carts := &mockCartRepo{}
	h := newTestRouter(testDeps{
		products: &mockProductRepo{products: []product.Product{
			{ID: "p6", Name: "Coffee", Price: decimal.RequireFromString("18.00"), IsProxy: true},
		}},
		carts: carts,
	})

	rec := doJSON(t, h, http.MethodPost, "/cart/items", `{"productId":"p6","quantity":2}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, carts.upserted, 1)
	assert.Equal(t, cart.Item{ProductID: "p6", Quantity: 2, IsProxy: true}, carts.upserted[0])
}

func TestAddCartItem_DefaultsQuantityToOne(t *testing.T) {
	carts := &mockCartRepo{}
	h := newTestRouter(testDeps{
		products: &mockProductRepo{products: []product.Product{{ID: "p1"}}},
		carts:    carts,
	})

	rec := doJSON(t, h, http.MethodPost, "/cart/items", `{"productId":"p1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, carts.upserted, 1)
	assert.Equal(t, 1, carts.upserted[0].Quantity)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	h := newTestRouter(testDeps{})

	rec := doJSON(t, h, http.MethodPost, "/cart/items", `{"productId":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCartItem_NegativeQuantity(t *testing.T) {
	h := newTestRouter(testDeps{})

	rec := doJSON(t, h, http.MethodPost, "/cart/items", `{"productId":"p1","quantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveCartItem(t *testing.T) {
	carts := &mockCartRepo{}
	h := newTestRouter(testDeps{carts: carts})

	rec := doJSON(t, h, http.MethodDelete, "/cart/items/p1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"p1"}, carts.deleted)
}

// --- Checkout endpoint ---

func TestCheckout_Success(t *testing.T) {
	h := newTestRouter(testDeps{checkout: &mockCheckouter{
		result: &checkout.Result{OrderID: "ord-123"},
	}})

	rec := doJSON(t, h, http.MethodPost, "/checkout", `{"deliveryAddress":"1 Main St","paymentMode":"card"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[checkoutResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "ord-123", resp.OrderID)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unauthenticated", checkout.ErrUnauthenticated, http.StatusUnauthorized},
		{"empty cart", checkout.ErrEmptyCart, http.StatusBadRequest},
		{"missing address", checkout.ErrMissingDeliveryAddress, http.StatusBadRequest},
		{"missing payment mode", checkout.ErrMissingPaymentMode, http.StatusBadRequest},
		{"product gone", &checkout.ProductNotFoundError{ProductID: "p9"}, http.StatusNotFound},
		{"out of stock", &checkout.OutOfStockError{ProductID: "p1", Name: "Milk"}, http.StatusConflict},
		{"aborted", checkout.ErrAborted, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(testDeps{checkout: &mockCheckouter{err: tt.err}})

			rec := doJSON(t, h, http.MethodPost, "/checkout", `{"deliveryAddress":"a","paymentMode":"card"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCheckout_AbortedSetsRetryAfter(t *testing.T) {
	h := newTestRouter(testDeps{checkout: &mockCheckouter{err: checkout.ErrAborted}})

	rec := doJSON(t, h, http.MethodPost, "/checkout", `{"deliveryAddress":"a","paymentMode":"card"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCheckout_InvalidBody(t *testing.T) {
	h := newTestRouter(testDeps{})

	rec := doJSON(t, h, http.MethodPost, "/checkout", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Order endpoints ---

func TestGetOrder(t *testing.T) {
	ord := &order.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Lines: []order.Line{
			{ProductID: "p1", Quantity: 2, Name: "Apples", Price: decimal.RequireFromString("3.50")},
		},
		TotalAmount:     decimal.RequireFromString("7.00"),
		Status:          order.StatusPending,
		DeliveryAddress: "1 Main St",
		PaymentMode:     "card",
	}
	h := newTestRouter(testDeps{orders: &mockOrderRepo{byID: map[string]*order.Order{"ord-1": ord}}})

	rec := doJSON(t, h, http.MethodGet, "/orders/ord-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "ord-1", resp.ID)
	assert.Equal(t, "Pending", resp.Status)
	require.Len(t, resp.Products, 1)
	assert.InDelta(t, 7.00, resp.TotalAmount, 0.001)
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestRouter(testDeps{orders: &mockOrderRepo{byID: map[string]*order.Order{}}})

	rec := doJSON(t, h, http.MethodGet, "/orders/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders_ByStatus(t *testing.T) {
	orders := &mockOrderRepo{byStatus: []order.Order{
		{ID: "ord-1", Status: order.StatusPending},
		{ID: "ord-2", Status: order.StatusPending},
	}}
	h := newTestRouter(testDeps{orders: orders})

	rec := doJSON(t, h, http.MethodGet, "/orders?status=Pending", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[[]orderResponse](t, rec)
	assert.Len(t, resp, 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	orders := &mockOrderRepo{byID: map[string]*order.Order{
		"ord-1": {ID: "ord-1", Status: order.StatusPending},
	}}
	h := newTestRouter(testDeps{orders: orders})

	rec := doJSON(t, h, http.MethodPatch, "/orders/ord-1/status", `{"status":"Shipped"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []order.Status{order.StatusShipped}, orders.updated)
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	orders := &mockOrderRepo{byID: map[string]*order.Order{
		"ord-1": {ID: "ord-1", Status: order.StatusDelivered},
	}}
	h := newTestRouter(testDeps{orders: orders})

	rec := doJSON(t, h, http.MethodPatch, "/orders/ord-1/status", `{"status":"Shipped"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, orders.updated)
}

func TestUpdateOrderStatus_ConcurrentChange(t *testing.T) {
	orders := &mockOrderRepo{
		byID: map[string]*order.Order{
			"ord-1": {ID: "ord-1", Status: order.StatusPending},
		},
		updateErr: order.ErrNotFound,
	}
	h := newTestRouter(testDeps{orders: orders})

	rec := doJSON(t, h, http.MethodPatch, "/orders/ord-1/status", `{"status":"Shipped"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
