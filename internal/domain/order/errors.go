package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyLines = errors.New("order lines required")
	// ErrNotOwner is returned when a customer acts on an order they do not own.
	ErrNotOwner = errors.New("order belongs to a different customer")
	// ErrIdempotencyConflict is returned by the repository when an insert
	// loses the race against another request carrying the same idempotency
	// key. The caller re-reads the winner's order.
	ErrIdempotencyConflict = errors.New("order already exists for idempotency key")
)

// MissingProductsError reports every referenced product that does not exist.
// The whole request fails; no partial order is persisted.
type MissingProductsError struct {
	ProductIDs []string
}

func (e *MissingProductsError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.ProductIDs, ", "))
}

// MinQuantityViolation is one line below the class minimum.
type MinQuantityViolation struct {
	ProductID string
	Quantity  int
	Minimum   int
}

// MinQuantityError batches every line failing the minimum-order-quantity
// rule for the resolved customer class.
type MinQuantityError struct {
	Violations []MinQuantityViolation
}

func (e *MinQuantityError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("product %s: quantity %d below minimum %d", v.ProductID, v.Quantity, v.Minimum)
	}
	return "quantity below minimum: " + strings.Join(parts, "; ")
}

// InvalidTransitionError reports an illegal state change.
type InvalidTransitionError struct {
	Op     string
	Status Status
}

func (e *InvalidTransitionError) Error() string {
	if e.Op == "resend" {
		return fmt.Sprintf("order is not cancelled, cannot resend (status %q)", e.Status)
	}
	return fmt.Sprintf("cannot %s order in status %q", e.Op, e.Status)
}

// ErrNotPayable is returned when a checkout session is requested for an
// order whose total is not positive.
var ErrNotPayable = errors.New("order total must be positive to create a checkout session")

// ErrSessionMismatch is returned when a settlement event references a
// session that does not belong to the order.
var ErrSessionMismatch = errors.New("payment session does not match order")
