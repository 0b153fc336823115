package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livemart/marketplace/internal/domain/auth"
	"github.com/livemart/marketplace/internal/domain/checkout"
	"github.com/livemart/marketplace/internal/domain/notification"
	"github.com/livemart/marketplace/internal/domain/order"
)

const (
	// The conditional UPDATE is the in-transaction stock re-validation: it
	// re-reads the row, decides, and writes in one statement. A non-proxy
	// product short on stock matches no row, and the transaction aborts
	// before any effect becomes visible.
	decrementStockSQL = `UPDATE products SET stock = stock - $1
		WHERE id = $2 AND (is_proxy OR stock >= $1)
		RETURNING stock`

	stockFailureProbeSQL = `SELECT name FROM products WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, user_id, lines, total_amount, status, delivery_address, payment_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	insertNotificationSQL = `INSERT INTO notifications (recipients, template_name, template_data)
		VALUES ($1, $2, $3)`

	deleteCheckedOutItemsSQL = `DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = ANY($2)`
)

// commitMaxAttempts bounds the serialization-conflict retry loop.
const commitMaxAttempts = 5

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore executes the checkout commit as a single serializable
// transaction: stock decrements, order insert, notification insert, and cart
// cleanup are visible all together or not at all.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// Commit runs the atomic checkout transaction, retrying the whole unit on
// serialization conflicts. Each attempt re-runs every read inside the
// transaction, so stock decisions are never made against stale figures.
// When retries are exhausted it returns checkout.ErrAborted with no partial
// effect left behind.
func (s *CheckoutStore) Commit(ctx context.Context, caller *auth.Identity, ord *order.Order) error {
	for attempt := 1; ; attempt++ {
		err := s.commitOnce(ctx, caller, ord)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		if attempt >= commitMaxAttempts {
			return checkout.ErrAborted
		}
		if err := ctx.Err(); err != nil {
			return checkout.ErrAborted
		}
	}
}

func (s *CheckoutStore) commitOnce(ctx context.Context, caller *auth.Identity, ord *order.Order) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		productIDs := make([]string, len(ord.Lines))

		// 1. Decrement stock, re-deciding each line's backorder flag from
		// the stock actually observed inside this transaction.
		for i := range ord.Lines {
			line := &ord.Lines[i]
			productIDs[i] = line.ProductID

			var newStock int64
			err := tx.QueryRow(ctx, decrementStockSQL, line.Quantity, line.ProductID).Scan(&newStock)
			if errors.Is(err, pgx.ErrNoRows) {
				return classifyStockFailure(ctx, tx, line.ProductID)
			}
			if err != nil {
				return errors.Wrapf(err, "decrement stock for %s", line.ProductID)
			}
			line.IsBackorder = newStock < 0
		}

		// 2. Create the order.
		linesJSON, err := json.Marshal(ord.Lines)
		if err != nil {
			return errors.Wrap(err, "encode order lines")
		}
		err = tx.QueryRow(ctx, insertOrderSQL,
			ord.ID, ord.UserID, linesJSON, ord.TotalAmount,
			string(ord.Status), ord.DeliveryAddress, ord.PaymentMode,
		).Scan(&ord.CreatedAt)
		if err != nil {
			return errors.Wrapf(err, "insert order %s", ord.ID)
		}

		// 3. Record the confirmation email, atomically with the order, when
		// the caller has an email address.
		if caller.Email != "" {
			n := confirmationFor(caller, ord)
			dataJSON, err := json.Marshal(n.Template.Data)
			if err != nil {
				return errors.Wrap(err, "encode notification data")
			}
			if _, err := tx.Exec(ctx, insertNotificationSQL, n.To, n.Template.Name, dataJSON); err != nil {
				return errors.Wrapf(err, "insert notification for order %s", ord.ID)
			}
		}

		// 4. Delete exactly the cart items that were checked out.
		if _, err := tx.Exec(ctx, deleteCheckedOutItemsSQL, ord.UserID, productIDs); err != nil {
			return errors.Wrapf(err, "clear cart for %s", ord.UserID)
		}

		return nil
	})
}

// classifyStockFailure decides why the conditional stock decrement matched no
// row: the product is either gone from the catalog or short on stock.
func classifyStockFailure(ctx context.Context, tx pgx.Tx, productID string) error {
	var name string
	err := tx.QueryRow(ctx, stockFailureProbeSQL, productID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return &checkout.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return errors.Wrapf(err, "probe product %s", productID)
	}
	return &checkout.OutOfStockError{ProductID: productID, Name: name}
}

// confirmationFor builds the order confirmation notification, falling back
// from display name to email to a generic label.
func confirmationFor(caller *auth.Identity, ord *order.Order) notification.Notification {
	name := caller.DisplayName
	if name == "" {
		name = caller.Email
	}
	if name == "" {
		name = "Customer"
	}
	return notification.Notification{
		To: []string{caller.Email},
		Template: notification.Template{
			Name: notification.TemplateOrderConfirmation,
			Data: notification.OrderConfirmationData{
				OrderID:     ord.ID,
				TotalAmount: ord.TotalAmount.StringFixed(2),
				Name:        name,
			},
		},
	}
}

// isSerializationFailure reports whether the error is a PostgreSQL
// serialization failure (40001) or deadlock (40P01), both of which are safe
// to retry as a whole new transaction.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
