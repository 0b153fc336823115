package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for checkout validation. These are precondition failures:
// retrying without caller action will not fix them.
var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMissingDeliveryAddress = errors.New("delivery address is required")
	ErrMissingPaymentMode     = errors.New("payment mode is required")
)

// ErrAborted is returned when the commit transaction exhausted its conflict
// retries. The checkout left no partial effect and is safe to resubmit.
var ErrAborted = errors.New("checkout aborted due to concurrent updates")

// ProductNotFoundError indicates a cart line references a product that no
// longer exists in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// OutOfStockError indicates insufficient stock for a non-proxy product.
// Name may be empty when the shortfall was detected before the product row
// was read.
type OutOfStockError struct {
	ProductID string
	Name      string
}

func (e *OutOfStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("not enough stock for %s", e.Name)
	}
	return fmt.Sprintf("not enough stock for product %s", e.ProductID)
}
