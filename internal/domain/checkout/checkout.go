// Package checkout converts a shopper's live cart into a committed order
// while enforcing inventory correctness under concurrent checkouts.
package checkout

import (
	"context"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/order"
)

// Request holds the caller-supplied checkout fields. The cart itself is read
// server-side from storage; clients cannot claim items they never added, and
// they never supply prices.
type Request struct {
	DeliveryAddress string
	PaymentMode     string
}

// Result is returned for a successfully committed checkout.
type Result struct {
	OrderID string
}

// Store executes the atomic commit: decrement stock, insert the order, record
// the notification, delete the checked-out cart items — all in a single
// all-or-nothing transaction. Implementations must re-validate stock inside
// the transaction rather than trusting the order's precomputed backorder
// flags, and may rewrite Lines[i].IsBackorder to match the committed state.
type Store interface {
	Commit(ctx context.Context, caller *auth.Identity, ord *order.Order) error
}
