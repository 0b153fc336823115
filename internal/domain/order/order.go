package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// validTransitions lists the allowed status moves for the fulfillment flow.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// InvalidTransitionError indicates a disallowed status change.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid status transition from " + string(e.From) + " to " + string(e.To)
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Line is a single order line, frozen at checkout time with the authoritative
// product name and price. IsBackorder is true when the line was committed
// beyond available stock, which only proxy products permit.
type Line struct {
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsBackorder bool            `json:"isBackorder"`
	IsProxy     bool            `json:"isProxy"`
}

// Order is immutable once created, except for status updates by the
// fulfillment flow.
type Order struct {
	ID              string
	UserID          string
	Lines           []Line
	TotalAmount     decimal.Decimal
	Status          Status
	DeliveryAddress string
	PaymentMode     string
	CreatedAt       time.Time
}

// Repository defines read and fulfillment operations for orders. Order
// creation is not part of this interface: new orders come into existence only
// through the checkout transaction.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
