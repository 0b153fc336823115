package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livemart/marketplace/internal/domain/cart"
)

const (
	listCartItemsSQL = `SELECT product_id, quantity, is_proxy
		FROM cart_items WHERE user_id = $1 ORDER BY product_id`

	upsertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity, is_proxy)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ListByUser returns all cart items owned by the given user.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var item cart.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.IsProxy)
		return item, err
	})
}

// Upsert adds the item to the user's cart, incrementing the quantity when the
// product is already present.
func (r *CartRepository) Upsert(ctx context.Context, userID string, item cart.Item) error {
	_, err := r.pool.Exec(ctx, upsertCartItemSQL, userID, item.ProductID, item.Quantity, item.IsProxy)
	if err != nil {
		return fmt.Errorf("upserting cart item %q for %q: %w", item.ProductID, userID, err)
	}
	return nil
}

// Delete removes one product from the user's cart.
func (r *CartRepository) Delete(ctx context.Context, userID, productID string) error {
	_, err := r.pool.Exec(ctx, deleteCartItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting cart item %q for %q: %w", productID, userID, err)
	}
	return nil
}
