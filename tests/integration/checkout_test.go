//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/cart"
	"github.com/livemart/marketplace/internal/domain/checkout"
	"github.com/livemart/marketplace/internal/domain/order"
	"github.com/livemart/marketplace/internal/storage/postgres"
)

func newCheckoutService() *checkout.Service {
	return checkout.NewService(
		postgres.NewCartRepository(pool),
		postgres.NewProductRepository(pool),
		postgres.NewCheckoutStore(pool),
	)
}

func authedCtx(userID, email, name string) context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{
		ID:          userID,
		Email:       email,
		DisplayName: name,
	})
}

func checkoutReq() checkout.Request {
	return checkout.Request{DeliveryAddress: "1 Main St", PaymentMode: "card"}
}

func TestCheckout_CommitEffectsAreAtomic(t *testing.T) {
	userID := seedUser(t, "alice@example.com", "Alice")
	p1 := seedProduct(t, "Apples", "3.50", 45, false)
	p2 := seedProduct(t, "Eggs", "6.50", 28, false)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 2})
	seedCartItem(t, userID, cart.Item{ProductID: p2, Quantity: 1})

	svc := newCheckoutService()
	res, err := svc.PlaceOrder(authedCtx(userID, "alice@example.com", "Alice"), checkoutReq())
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)

	// All four commit effects landed together.
	assert.EqualValues(t, 43, productStock(t, p1))
	assert.EqualValues(t, 27, productStock(t, p2))
	assert.Equal(t, 0, cartSize(t, userID))
	assert.Equal(t, 1, orderCount(t, userID))
	assert.Equal(t, 1, notificationCount(t, "alice@example.com"))

	ord, err := postgres.NewOrderRepository(pool).GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, ord.Status)
	assert.True(t, ord.TotalAmount.Equal(decimal.RequireFromString("13.50")),
		"expected 13.50, got %s", ord.TotalAmount)
	require.Len(t, ord.Lines, 2)
}

func TestCheckout_OutOfStockLeavesNoPartialEffect(t *testing.T) {
	userID := seedUser(t, "bob@example.com", "Bob")
	p1 := seedProduct(t, "Apples", "3.50", 45, false)
	p2 := seedProduct(t, "Bread", "4.25", 1, false)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 1})
	seedCartItem(t, userID, cart.Item{ProductID: p2, Quantity: 5})

	svc := newCheckoutService()
	_, err := svc.PlaceOrder(authedCtx(userID, "bob@example.com", "Bob"), checkoutReq())

	var oosErr *checkout.OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, p2, oosErr.ProductID)

	// Nothing moved: no stock change, cart intact, no order, no notification.
	assert.EqualValues(t, 45, productStock(t, p1))
	assert.EqualValues(t, 1, productStock(t, p2))
	assert.Equal(t, 2, cartSize(t, userID))
	assert.Equal(t, 0, orderCount(t, userID))
	assert.Equal(t, 0, notificationCount(t, "bob@example.com"))
}

func TestCheckout_ProxyBackorderGoesNegative(t *testing.T) {
	userID := seedUser(t, "carol@example.com", "Carol")
	p1 := seedProduct(t, "Specialty Coffee", "18.00", 0, true)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 3, IsProxy: true})

	svc := newCheckoutService()
	res, err := svc.PlaceOrder(authedCtx(userID, "carol@example.com", "Carol"), checkoutReq())
	require.NoError(t, err)

	// Stock records the backorder deficit.
	assert.EqualValues(t, -3, productStock(t, p1))

	ord, err := postgres.NewOrderRepository(pool).GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, ord.Lines, 1)
	assert.True(t, ord.Lines[0].IsBackorder)
}

func TestCheckout_ProxyWithStockIsNotBackorder(t *testing.T) {
	userID := seedUser(t, "dave@example.com", "Dave")
	p1 := seedProduct(t, "Olive Oil", "12.75", 10, true)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 2, IsProxy: true})

	svc := newCheckoutService()
	res, err := svc.PlaceOrder(authedCtx(userID, "dave@example.com", "Dave"), checkoutReq())
	require.NoError(t, err)

	assert.EqualValues(t, 8, productStock(t, p1))

	ord, err := postgres.NewOrderRepository(pool).GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.False(t, ord.Lines[0].IsBackorder)
}

func TestCheckout_ProductDeletedBetweenReadAndCommit(t *testing.T) {
	userID := seedUser(t, "erin@example.com", "Erin")
	p1 := seedProduct(t, "Phantom", "9.99", 10, false)

	// The product vanishes after the order was evaluated but before commit.
	// The transaction must classify the missing row as not-found, not
	// out-of-stock.
	store := postgres.NewCheckoutStore(pool)
	_, err := pool.Exec(context.Background(), `DELETE FROM products WHERE id = $1`, p1)
	require.NoError(t, err)

	caller := &auth.Identity{ID: userID, Email: "erin@example.com"}
	ord := &order.Order{
		ID:     "ord-" + t.Name(),
		UserID: userID,
		Lines: []order.Line{
			{ProductID: p1, Quantity: 1, Name: "Phantom", Price: decimal.RequireFromString("9.99")},
		},
		TotalAmount: decimal.RequireFromString("9.99"),
		Status:      order.StatusPending,
	}
	err = store.Commit(context.Background(), caller, ord)

	var pnfErr *checkout.ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, p1, pnfErr.ProductID)
}

func TestCheckout_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	// 8 shoppers race for a product with stock for only 5 of them. Exactly
	// five orders may commit; the rest fail cleanly and the counter never
	// goes negative.
	const (
		shoppers = 8
		stock    = 5
	)

	p1 := seedProduct(t, "Limited Drop", "25.00", stock, false)
	svc := newCheckoutService()

	userIDs := make([]string, shoppers)
	for i := range shoppers {
		userID := fmt.Sprintf("user-%s-%d", t.Name(), i)
		_, err := pool.Exec(context.Background(),
			`INSERT INTO users (id, email, display_name) VALUES ($1, $2, $3)`,
			userID, "racer@example.com", "Racer",
		)
		require.NoError(t, err)
		seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 1})
		userIDs[i] = userID
	}

	var committed, rejected atomic.Int64
	g := new(errgroup.Group)
	for _, userID := range userIDs {
		g.Go(func() error {
			_, err := svc.PlaceOrder(authedCtx(userID, "racer@example.com", "Racer"), checkoutReq())
			switch {
			case err == nil:
				committed.Add(1)
			case isStockRejection(err):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, stock, committed.Load())
	assert.EqualValues(t, shoppers-stock, rejected.Load())
	assert.EqualValues(t, 0, productStock(t, p1))
}

// isStockRejection accepts the two clean failure modes of a losing racer:
// classified shortfall, or retry exhaustion under serializable contention.
func isStockRejection(err error) bool {
	var oosErr *checkout.OutOfStockError
	return errors.As(err, &oosErr) || errors.Is(err, checkout.ErrAborted)
}

func TestCheckout_OnlyCheckedOutItemsLeaveCart(t *testing.T) {
	// An item added to the cart while checkout is in flight must survive the
	// cart cleanup: the transaction deletes only the products it committed.
	userID := seedUser(t, "fred@example.com", "Fred")
	p1 := seedProduct(t, "Apples", "3.50", 45, false)
	p2 := seedProduct(t, "Milk", "5.99", 12, false)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 1})

	caller := &auth.Identity{ID: userID, Email: "fred@example.com"}
	ord := &order.Order{
		ID:     "ord-" + t.Name(),
		UserID: userID,
		Lines: []order.Line{
			{ProductID: p1, Quantity: 1, Name: "Apples", Price: decimal.RequireFromString("3.50")},
		},
		TotalAmount: decimal.RequireFromString("3.50"),
		Status:      order.StatusPending,
	}

	// Simulates the late add: present in storage, absent from the order.
	seedCartItem(t, userID, cart.Item{ProductID: p2, Quantity: 1})

	require.NoError(t, postgres.NewCheckoutStore(pool).Commit(context.Background(), caller, ord))

	items, err := postgres.NewCartRepository(pool).ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, p2, items[0].ProductID)
}

func TestOrderStatus_CASUpdate(t *testing.T) {
	userID := seedUser(t, "gina@example.com", "Gina")
	p1 := seedProduct(t, "Apples", "3.50", 45, false)
	seedCartItem(t, userID, cart.Item{ProductID: p1, Quantity: 1})

	svc := newCheckoutService()
	res, err := svc.PlaceOrder(authedCtx(userID, "gina@example.com", "Gina"), checkoutReq())
	require.NoError(t, err)

	orders := postgres.NewOrderRepository(pool)
	ctx := context.Background()

	require.NoError(t, orders.UpdateStatus(ctx, res.OrderID, order.StatusPending, order.StatusShipped))

	// Second transition from the stale expected status must fail.
	err = orders.UpdateStatus(ctx, res.OrderID, order.StatusPending, order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrNotFound)

	ord, err := orders.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, ord.Status)
}
