package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is the
// authoritative inventory counter; it is mutated only inside the checkout
// transaction. A proxy product may be sold beyond its current stock, in which
// case the counter goes negative and represents the backorder deficit.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int64
	IsProxy  bool
	Category string
	ImageURL string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
