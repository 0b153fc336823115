package cart

import "context"

// Item is one cart entry, keyed by (user, product). The proxy flag is copied
// from the product when the item is added, marking the line as
// backorder-eligible at checkout time.
type Item struct {
	ProductID string
	Quantity  int
	IsProxy   bool
}

// Repository defines persistence operations for cart items. Items are owned
// exclusively by one user; deletion of checked-out items happens inside the
// checkout transaction, not through this interface.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Item, error)
	Upsert(ctx context.Context, userID string, item Item) error
	Delete(ctx context.Context, userID, productID string) error
}
