package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/cart"
	"github.com/livemart/marketplace/internal/domain/order"
	"github.com/livemart/marketplace/internal/domain/product"
)

// Service encapsulates the checkout flow: identity gate, cart snapshot,
// stock and backorder evaluation, pricing, and the atomic commit.
type Service struct {
	carts    cart.Repository
	products product.Repository
	store    Store
	newID    func() string
}

// NewService creates a checkout Service with the required dependencies.
func NewService(carts cart.Repository, products product.Repository, store Store) *Service {
	return &Service{
		carts:    carts,
		products: products,
		store:    store,
		newID:    uuid.NewString,
	}
}

// PlaceOrder runs one checkout attempt for the authenticated caller. The cart
// is read from storage, each line resolved against the authoritative catalog,
// priced server-side, and committed atomically. Stock figures read here are
// advisory: the commit transaction re-validates them, so a concurrent
// checkout can never oversell a non-proxy product through this path.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	caller := auth.IdentityFromContext(ctx)
	if caller == nil || caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	if req.DeliveryAddress == "" {
		return nil, ErrMissingDeliveryAddress
	}
	if req.PaymentMode == "" {
		return nil, ErrMissingPaymentMode
	}

	items, err := s.carts.ListByUser(ctx, caller.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	// Resolve every line against the catalog in a single batch.
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines, err := buildLines(items, byID)
	if err != nil {
		return nil, err
	}

	ord := &order.Order{
		ID:              s.newID(),
		UserID:          caller.ID,
		Lines:           lines,
		TotalAmount:     totalAmount(lines),
		Status:          order.StatusPending,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMode:     req.PaymentMode,
	}

	if err := s.store.Commit(ctx, caller, ord); err != nil {
		return nil, err
	}

	return &Result{OrderID: ord.ID}, nil
}

// buildLines evaluates each (cart item, product) pair. A line short on stock
// is accepted as a backorder only when the item carries the proxy flag;
// otherwise the whole checkout fails. Partial fulfillment is never allowed.
func buildLines(items []cart.Item, byID map[string]product.Product) ([]order.Line, error) {
	lines := make([]order.Line, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}

		backorder := false
		if p.Stock < int64(item.Quantity) {
			if !item.IsProxy {
				return nil, &OutOfStockError{ProductID: p.ID, Name: p.Name}
			}
			backorder = true
		}

		lines[i] = order.Line{
			ProductID:   p.ID,
			Quantity:    item.Quantity,
			Name:        p.Name,
			Price:       p.Price,
			IsBackorder: backorder,
			IsProxy:     item.IsProxy,
		}
	}
	return lines, nil
}

// totalAmount sums price × quantity over all lines using only catalog prices,
// rounded to 2 decimal places.
func totalAmount(lines []order.Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}
